package otel

import "testing"

func TestOTLPEndpointStripsScheme(t *testing.T) {
	for in, want := range map[string]string{
		"http://collector:4317":  "collector:4317",
		"https://collector:4317": "collector:4317",
		"localhost:4317":         "localhost:4317",
	} {
		if got := otlpEndpoint(in); got != want {
			t.Fatalf("otlpEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

package geofence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNominatimGeocoder(t *testing.T) {
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		if gotQuery == "nowhere" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"48.8566","lon":"2.3522","display_name":"Paris"}]`))
	}))
	defer srv.Close()

	g, err := NewNominatimGeocoder(srv.URL+"/", "kikenqr-test", 2*time.Second)
	if err != nil {
		t.Fatalf("new geocoder: %v", err)
	}

	coords, err := g.Geocode(context.Background(), "1 rue de Rivoli 75001 Paris")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if len(coords) != 1 || coords[0] != paris {
		t.Fatalf("unexpected coordinates %+v", coords)
	}
	if gotQuery != "1 rue de Rivoli 75001 Paris" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if gotAgent != "kikenqr-test" {
		t.Fatalf("unexpected user agent %q", gotAgent)
	}

	coords, err = g.Geocode(context.Background(), "nowhere")
	if err != nil {
		t.Fatalf("geocode nowhere: %v", err)
	}
	if len(coords) != 0 {
		t.Fatalf("expected no candidates, got %+v", coords)
	}
}

func TestNominatimGeocoderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g, err := NewNominatimGeocoder(srv.URL, "kikenqr-test", 2*time.Second)
	if err != nil {
		t.Fatalf("new geocoder: %v", err)
	}
	if _, err := g.Geocode(context.Background(), "Paris"); err == nil {
		t.Fatalf("expected error on 503")
	}
}

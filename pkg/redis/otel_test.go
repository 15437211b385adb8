package redis

import "testing"

func TestMaskKeyHidesSessionAndLockIDs(t *testing.T) {
	cases := []struct{ in, want string }{
		{"kqr:clockin:session:7f1c", "kqr:clockin:session:***"},
		{"kqr:clockin:lock:7f1c", "kqr:clockin:lock:***"},
		{"kqr:clockin:count:op-1:2026-10-18", "kqr:clockin:count:op-1:2026-10-18"},
	}
	for _, tc := range cases {
		if got := maskKey(tc.in); got != tc.want {
			t.Fatalf("maskKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCommandKeys(t *testing.T) {
	if keys := commandKeys([]interface{}{"get"}); keys != nil {
		t.Fatalf("expected no keys, got %v", keys)
	}
	keys := commandKeys([]interface{}{"get", "kqr:clockin:session:abc"})
	if len(keys) != 1 || keys[0] != "kqr:clockin:session:***" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

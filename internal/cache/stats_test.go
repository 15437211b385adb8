package cache

import (
	"testing"
	"time"

	"KikenQR/config"
)

func TestCountKeyUsesUTCDay(t *testing.T) {
	prev := config.Cfg.RedisPrefix
	config.Cfg.RedisPrefix = "kqr"
	t.Cleanup(func() { config.Cfg.RedisPrefix = prev })

	paris := time.FixedZone("CEST", 2*60*60)
	day := time.Date(2024, 3, 8, 1, 30, 0, 0, paris)

	if got := CountKey("op-1", day); got != "kqr:clockin:count:op-1:2024-03-07" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestParseCount(t *testing.T) {
	values := []interface{}{"12", nil}
	if got := parseCount(values, 0); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
	if got := parseCount(values, 1); got != 0 {
		t.Fatalf("nil field must count as 0, got %d", got)
	}
	if got := parseCount(values, 5); got != 0 {
		t.Fatalf("out of range must count as 0, got %d", got)
	}
}

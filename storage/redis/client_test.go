package redis

import (
	"testing"

	"KikenQR/config"
)

func TestKeySkipsEmptyParts(t *testing.T) {
	prev := config.Cfg.RedisPrefix
	t.Cleanup(func() { config.Cfg.RedisPrefix = prev })

	config.Cfg.RedisPrefix = ""
	if got := Key("clockin", "", "session", "abc"); got != "kqr:clockin:session:abc" {
		t.Fatalf("unexpected key %q", got)
	}

	config.Cfg.RedisPrefix = "tenant"
	if got := Key("clockin", "count"); got != "tenant:clockin:count" {
		t.Fatalf("unexpected key %q", got)
	}
}

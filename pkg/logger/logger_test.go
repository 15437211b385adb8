package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestForSessionTagsEntries(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := Logger
	Logger = zap.New(core)
	defer func() { Logger = prev }()

	ForSession("6f1c", "op-paris").Info("Clock-in session started")
	ForOperation("op-lyon").Debug("dropped below level")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["session_id"] != "6f1c" || ctx["operation_token"] != "op-paris" {
		t.Fatalf("context = %v", ctx)
	}
}

func TestLWithoutInitIsNop(t *testing.T) {
	prev := Logger
	Logger = nil
	defer func() { Logger = prev }()

	if L() == nil {
		t.Fatal("L must never return nil")
	}
	ForOperation("op").Info("ignored")
}

func TestParseZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"Error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseZapLevel(in); got != want {
			t.Fatalf("parseZapLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"
)

func newEngine() *route.Engine {
	return route.NewEngine(config.NewOptions([]config.Option{}))
}

func TestRecoverMiddlewareWritesErrorEnvelope(t *testing.T) {
	r := newEngine()
	r.Use(RecoverMiddlewareWithConfig(RecoverConfig{IsProduction: true}))
	r.GET("/boom", func(ctx context.Context, c *app.RequestContext) {
		panic("nil map")
	})

	resp := ut.PerformRequest(r, consts.MethodGet, "/boom", nil).Result()
	if resp.StatusCode() != consts.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode())
	}

	var body struct {
		Error struct {
			Code    string                 `json:"code"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "INTERNAL_SERVER_ERROR" {
		t.Fatalf("code = %q", body.Error.Code)
	}
	if body.Error.Details != nil {
		t.Fatal("production responses must not expose panic details")
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	r := newEngine()
	r.Use(CORSMiddleware())
	called := false
	r.OPTIONS("/v1/clock-in/session", func(ctx context.Context, c *app.RequestContext) {
		called = true
	})

	resp := ut.PerformRequest(r, consts.MethodOptions, "/v1/clock-in/session", nil,
		ut.Header{Key: "Origin", Value: "https://scan.example.org"},
	).Result()

	if resp.StatusCode() != consts.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode())
	}
	if got := string(resp.Header.Peek("Access-Control-Allow-Origin")); got != "https://scan.example.org" {
		t.Fatalf("allow origin = %q", got)
	}
	if called {
		t.Fatal("preflight must not reach the handler")
	}
}

func TestGetSessionID(t *testing.T) {
	c := app.NewContext(0)
	if _, ok := GetSessionID(context.Background(), c); ok {
		t.Fatal("empty context must not yield a session id")
	}

	c.Set(IdentityKey, "6f1c")
	if sid, ok := GetSessionID(context.Background(), c); !ok || sid != "6f1c" {
		t.Fatalf("GetSessionID = %q, %v", sid, ok)
	}
}

package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"

	"KikenQR/internal/model/dto"
	"KikenQR/pkg/errors"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Details struct {
			Session *dto.ClockInSessionData `json:"session"`
			Fields  map[string]string       `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func performWriteSession(t *testing.T, view *dto.ClockInSessionData, err error) (int, errorBody) {
	t.Helper()
	r := route.NewEngine(config.NewOptions([]config.Option{}))
	r.POST("/v1/clock-in/session/back", func(ctx context.Context, c *app.RequestContext) {
		writeSession(ctx, c, view, err)
	})

	resp := ut.PerformRequest(r, consts.MethodPost, "/v1/clock-in/session/back", nil).Result()
	var body errorBody
	if decodeErr := json.Unmarshal(resp.Body(), &body); decodeErr != nil {
		t.Fatalf("decode body: %v", decodeErr)
	}
	return resp.StatusCode(), body
}

func TestWriteSessionErrorCarriesSessionView(t *testing.T) {
	view := &dto.ClockInSessionData{
		SessionID: "6f1c",
		State:     "step3_confirmed",
		Fields:    nil,
		Event:     &dto.ClockInEventView{ClockInID: "42", SubjectID: "7"},
	}

	status, body := performWriteSession(t, view, fmt.Errorf("go back in step3_confirmed: %w", errors.InvalidStep))
	if status != consts.StatusConflict {
		t.Fatalf("status = %d, want 409", status)
	}
	if body.Error.Code != errors.InvalidStep.Code {
		t.Fatalf("code = %q", body.Error.Code)
	}
	sess := body.Error.Details.Session
	if sess == nil || sess.SessionID != "6f1c" || sess.State != "step3_confirmed" {
		t.Fatalf("details.session = %+v", sess)
	}
	if sess.Event == nil || sess.Event.ClockInID != "42" {
		t.Fatalf("details.session.event = %+v", sess.Event)
	}
}

func TestWriteSessionValidationKeepsFieldsAndSession(t *testing.T) {
	view := &dto.ClockInSessionData{
		SessionID: "a9",
		State:     "step1_always_fill",
		Draft:     map[string]string{"101": "not-an-email"},
	}

	status, body := performWriteSession(t, view, errors.FieldErrors{101: "invalid email"})
	if status != consts.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if body.Error.Code != errors.ValidationFailed.Code {
		t.Fatalf("code = %q", body.Error.Code)
	}
	if body.Error.Details.Fields["101"] != "invalid email" {
		t.Fatalf("details.fields = %v", body.Error.Details.Fields)
	}
	if sess := body.Error.Details.Session; sess == nil || sess.Draft["101"] != "not-an-email" {
		t.Fatalf("details.session = %+v", sess)
	}
}

func TestWriteSessionWithoutViewOmitsSession(t *testing.T) {
	status, body := performWriteSession(t, nil, errors.SessionNotFound)
	if status != consts.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if body.Error.Details.Session != nil {
		t.Fatal("unknown session must not carry a view")
	}
}

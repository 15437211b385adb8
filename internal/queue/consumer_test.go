package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"KikenQR/internal/model"
	"KikenQR/pkg/errors"
)

type fakeMarker struct {
	marks     map[string]string
	tryErr    error
	unmarked  []string
	processed []string
}

func newFakeMarker() *fakeMarker {
	return &fakeMarker{marks: map[string]string{}}
}

func (m *fakeMarker) TryMark(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if m.tryErr != nil {
		return false, m.tryErr
	}
	if _, ok := m.marks[id]; ok {
		return false, nil
	}
	m.marks[id] = "processing"
	return true, nil
}

func (m *fakeMarker) Unmark(ctx context.Context, id string) error {
	delete(m.marks, id)
	m.unmarked = append(m.unmarked, id)
	return nil
}

func (m *fakeMarker) MarkProcessed(ctx context.Context, id string) error {
	m.marks[id] = "done"
	m.processed = append(m.processed, id)
	return nil
}

type countCall struct {
	token      string
	day        string
	newSubject bool
}

type fakeCounter struct {
	calls []countCall
	err   error
}

func (c *fakeCounter) Incr(ctx context.Context, token string, day time.Time, newSubject bool) error {
	if c.err != nil {
		return c.err
	}
	c.calls = append(c.calls, countCall{token: token, day: day.UTC().Format("2006-01-02"), newSubject: newSubject})
	return nil
}

func body(t *testing.T, msg model.ClockInRecordedMessage) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestStatsHandlerCountsOncePerMessage(t *testing.T) {
	marker := newFakeMarker()
	counter := &fakeCounter{}
	h := NewStatsHandler(marker, counter)
	msg := body(t, model.ClockInRecordedMessage{
		MessageID:      "clockin_1",
		OperationToken: "op",
		NewSubject:     true,
		OccurredAt:     "2026-03-02T23:30:00Z",
	})

	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	err := h.Handle(context.Background(), msg)
	var skip *errors.SkipMessageError
	if !stderrors.As(err, &skip) {
		t.Fatalf("redelivery should be skipped, got %v", err)
	}

	if len(counter.calls) != 1 {
		t.Fatalf("counted %d times, want 1", len(counter.calls))
	}
	got := counter.calls[0]
	if got.token != "op" || got.day != "2026-03-02" || !got.newSubject {
		t.Fatalf("unexpected count call %+v", got)
	}
	if marker.marks["clockin_1"] != "done" {
		t.Fatalf("message mark = %q", marker.marks["clockin_1"])
	}
}

func TestStatsHandlerUnmarksOnCounterFailure(t *testing.T) {
	marker := newFakeMarker()
	counter := &fakeCounter{err: stderrors.New("redis down")}
	h := NewStatsHandler(marker, counter)

	err := h.Handle(context.Background(), body(t, model.ClockInRecordedMessage{MessageID: "m2", OperationToken: "op"}))
	if err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if _, ok := marker.marks["m2"]; ok || len(marker.unmarked) != 1 {
		t.Fatalf("mark not released: %+v", marker.marks)
	}
}

func TestStatsHandlerProceedsWhenMarkerUnavailable(t *testing.T) {
	marker := newFakeMarker()
	marker.tryErr = stderrors.New("timeout")
	counter := &fakeCounter{}
	h := NewStatsHandler(marker, counter)

	if err := h.Handle(context.Background(), body(t, model.ClockInRecordedMessage{MessageID: "m3", OperationToken: "op"})); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(counter.calls) != 1 {
		t.Fatalf("counted %d times, want 1", len(counter.calls))
	}
}

func TestStatsHandlerSkipsMalformedBody(t *testing.T) {
	h := NewStatsHandler(newFakeMarker(), &fakeCounter{})

	var skip *errors.SkipMessageError
	if err := h.Handle(context.Background(), []byte("{")); !stderrors.As(err, &skip) {
		t.Fatalf("expected SkipMessageError, got %v", err)
	}
}

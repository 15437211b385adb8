package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"KikenQR/internal/geofence"
	"KikenQR/internal/model"
	"KikenQR/internal/repository/repotest"
	"KikenQR/internal/schema"
	"KikenQR/internal/workflow"
	pkgerrors "KikenQR/pkg/errors"
)

type memorySessions struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func (m *memorySessions) Save(ctx context.Context, id string, snapshot []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = snapshot
	m.ttls[id] = ttl
	return nil
}

func (m *memorySessions) Load(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, pkgerrors.SessionNotFound)
	}
	return data, nil
}

type stubLocker struct {
	busy     bool
	released int
}

func (l *stubLocker) Lock(ctx context.Context, id string) (func(), error) {
	if l.busy {
		return nil, fmt.Errorf("session %s: %w", id, pkgerrors.SessionBusy)
	}
	return func() { l.released++ }, nil
}

type capturePublisher struct {
	msgs []model.ClockInRecordedMessage
	err  error
}

func (p *capturePublisher) PublishClockInRecorded(ctx context.Context, msg model.ClockInRecordedMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

type harness struct {
	store     *repotest.MemoryStore
	sessions  *memorySessions
	locker    *stubLocker
	publisher *capturePublisher
	svc       *ClockInService
}

func newHarness() *harness {
	h := &harness{
		store:     newStore(),
		sessions:  &memorySessions{data: map[string][]byte{}, ttls: map[string]time.Duration{}},
		locker:    &stubLocker{},
		publisher: &capturePublisher{},
	}
	resolver := NewIdentityResolver(h.store)
	h.svc = NewClockInService(ClockInDeps{
		Workflow: workflow.Deps{
			Data:     h.store,
			Resolver: resolver,
			Recorder: NewSubmissionRecorder(h.store, resolver),
			Geofence: geofence.NewValidator(nil, time.Second),
			Locale:   "fr",
		},
		Sessions:  h.sessions,
		Locker:    h.locker,
		Publisher: h.publisher,
		IssueToken: func(sessionID string) (string, time.Time, error) {
			return "token-" + sessionID, time.Now().Add(time.Hour), nil
		},
		SessionTTL: 15 * time.Minute,
	})
	return h
}

func (h *harness) start(t *testing.T) string {
	t.Helper()
	resp, err := h.svc.StartSession(context.Background(), "op")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if resp.SessionToken != "token-"+resp.Session.SessionID {
		t.Fatalf("unexpected token %q", resp.SessionToken)
	}
	return resp.Session.SessionID
}

func TestStartSessionUnknownOperation(t *testing.T) {
	h := newHarness()

	_, err := h.svc.StartSession(context.Background(), "missing")
	if !stderrors.Is(err, pkgerrors.OperationNotFound) {
		t.Fatalf("expected OperationNotFound, got %v", err)
	}
	if len(h.sessions.data) != 0 {
		t.Fatal("no session may be stored for an unknown operation")
	}
}

func TestFullRegistrationPublishesOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sid := h.start(t)

	view, err := h.svc.SubmitStep1(ctx, sid, schema.Values{emailID: "new@x.fr"}, nil)
	if err != nil {
		t.Fatalf("SubmitStep1: %v", err)
	}
	if view.State != string(workflow.StateRegistration) || len(view.Fields) != 1 {
		t.Fatalf("unexpected view after step 1: %+v", view)
	}
	if view.Draft["11"] != "new@x.fr" {
		t.Fatalf("draft = %v", view.Draft)
	}

	view, err = h.svc.SubmitStep2(ctx, sid, schema.Values{nameID: "Nouveau"})
	if err != nil {
		t.Fatalf("SubmitStep2: %v", err)
	}
	if view.State != string(workflow.StateConfirmed) || view.Event == nil || !view.Event.NewSubject {
		t.Fatalf("unexpected view after step 2: %+v", view)
	}

	if len(h.publisher.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(h.publisher.msgs))
	}
	msg := h.publisher.msgs[0]
	if msg.OperationToken != "op" || msg.ClockInID != h.store.Events[0].ID || !msg.NewSubject || msg.OperationID == 0 {
		t.Fatalf("unexpected message %+v", msg)
	}

	if _, err := h.svc.GoBack(ctx, sid); !stderrors.Is(err, pkgerrors.InvalidStep) {
		t.Fatalf("go back from confirmation: expected InvalidStep, got %v", err)
	}
	if len(h.publisher.msgs) != 1 {
		t.Fatal("a failed action on a confirmed session must not republish")
	}
	if h.sessions.ttls[sid] != 15*time.Minute {
		t.Fatalf("ttl = %v", h.sessions.ttls[sid])
	}
}

func TestSubmitErrorReturnsViewAndPersistsLastError(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sid := h.start(t)

	view, err := h.svc.SubmitStep1(ctx, sid, schema.Values{emailID: "nope"}, nil)
	if !stderrors.Is(err, pkgerrors.ValidationFailed) {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}
	if view == nil || view.LastError == nil || view.LastError.Fields["11"] == "" {
		t.Fatalf("view must carry field errors: %+v", view)
	}

	stored, err := h.svc.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if stored.LastError == nil || stored.LastError.Code != pkgerrors.ValidationFailed.Code {
		t.Fatalf("last error not persisted: %+v", stored.LastError)
	}
	if stored.State != string(workflow.StateAlwaysFill) {
		t.Fatalf("state = %s", stored.State)
	}
}

func TestBusySessionIsRejected(t *testing.T) {
	h := newHarness()
	sid := h.start(t)
	h.locker.busy = true

	view, err := h.svc.SubmitStep1(context.Background(), sid, schema.Values{emailID: "a@x.fr"}, nil)
	if !stderrors.Is(err, pkgerrors.SessionBusy) || view != nil {
		t.Fatalf("expected SessionBusy without view, got %v %+v", err, view)
	}
	if h.store.FindCalls != 0 {
		t.Fatal("busy session must not reach storage")
	}
}

func TestLockReleasedAfterEachAction(t *testing.T) {
	h := newHarness()
	sid := h.start(t)

	_, _ = h.svc.SubmitStep1(context.Background(), sid, schema.Values{}, nil)
	_, _ = h.svc.Restart(context.Background(), sid)
	if h.locker.released != 2 {
		t.Fatalf("released %d locks, want 2", h.locker.released)
	}
}

func TestPublishFailureDoesNotFailClockIn(t *testing.T) {
	h := newHarness()
	h.publisher.err = stderrors.New("channel closed")
	h.store.SeedSubject("op", "known@x.fr")
	sid := h.start(t)

	view, err := h.svc.SubmitStep1(context.Background(), sid, schema.Values{emailID: "known@x.fr"}, nil)
	if err != nil {
		t.Fatalf("SubmitStep1: %v", err)
	}
	if view.State != string(workflow.StateConfirmed) || view.Event.NewSubject {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestRestartAllowsAnotherClockIn(t *testing.T) {
	h := newHarness()
	h.store.SeedSubject("op", "twice@x.fr")
	ctx := context.Background()
	sid := h.start(t)

	for i := 0; i < 2; i++ {
		if _, err := h.svc.SubmitStep1(ctx, sid, schema.Values{emailID: "twice@x.fr"}, nil); err != nil {
			t.Fatalf("SubmitStep1 #%d: %v", i, err)
		}
		view, err := h.svc.Restart(ctx, sid)
		if err != nil {
			t.Fatalf("Restart: %v", err)
		}
		if view.State != string(workflow.StateAlwaysFill) || view.Event != nil {
			t.Fatalf("restart view %+v", view)
		}
	}
	if len(h.store.Events) != 2 || len(h.publisher.msgs) != 2 {
		t.Fatalf("events=%d published=%d, want 2 and 2", len(h.store.Events), len(h.publisher.msgs))
	}
}

func TestUnknownAndCorruptedSessions(t *testing.T) {
	h := newHarness()

	if _, err := h.svc.GetSession(context.Background(), "nope"); !stderrors.Is(err, pkgerrors.SessionNotFound) {
		t.Fatalf("expected SessionNotFound, got %v", err)
	}

	h.sessions.data["bad"] = []byte("{not json")
	if _, err := h.svc.SubmitStep1(context.Background(), "bad", schema.Values{}, nil); !stderrors.Is(err, pkgerrors.SessionNotFound) {
		t.Fatalf("expected SessionNotFound for corrupted snapshot, got %v", err)
	}
}

func TestErrorViewHidesInternalDetails(t *testing.T) {
	view := ErrorView(fmt.Errorf("dial tcp 10.0.0.1:5432: %w: %w", pkgerrors.NetworkError, stderrors.New("refused")))
	if view.Code != pkgerrors.NetworkError.Code || view.Message != pkgerrors.NetworkError.Message {
		t.Fatalf("unexpected view %+v", view)
	}

	view = ErrorView(stderrors.New("boom"))
	if view.Code != "INTERNAL_ERROR" || view.Message == "boom" {
		t.Fatalf("unexpected view %+v", view)
	}
}

package schedule

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	pkgerrors "KikenQR/pkg/errors"
)

type recordingPurger struct {
	before []time.Time
	purged int64
	err    error
}

func (p *recordingPurger) PurgeOrphanFieldValues(ctx context.Context, before time.Time) (int64, error) {
	p.before = append(p.before, before)
	return p.purged, p.err
}

type stubLocker struct {
	err      error
	released int
}

func (l *stubLocker) Lock(ctx context.Context, name string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() { l.released++ }, nil
}

func TestSweepUsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	purger := &recordingPurger{purged: 3}
	locker := &stubLocker{}

	s := NewOrphanSweeper(purger, locker, 24*time.Hour)
	s.now = func() time.Time { return now }

	purged, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if purged != 3 {
		t.Fatalf("expected 3 purged, got %d", purged)
	}
	if len(purger.before) != 1 || !purger.before[0].Equal(now.Add(-24*time.Hour)) {
		t.Fatalf("unexpected cutoff %v", purger.before)
	}
	if locker.released != 1 {
		t.Fatalf("lock should be released once, got %d", locker.released)
	}
	if !s.LastRun().Equal(now) {
		t.Fatalf("last run not recorded: %v", s.LastRun())
	}
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	purger := &recordingPurger{}
	locker := &stubLocker{err: fmt.Errorf("job: %w", pkgerrors.SessionBusy)}

	s := NewOrphanSweeper(purger, locker, time.Hour)
	purged, err := s.Sweep(context.Background())
	if err != nil || purged != 0 {
		t.Fatalf("expected silent skip, got %d err=%v", purged, err)
	}
	if len(purger.before) != 0 {
		t.Fatalf("purger must not run without the lock")
	}
}

func TestSweepPropagatesPurgeError(t *testing.T) {
	boom := errors.New("db down")
	s := NewOrphanSweeper(&recordingPurger{err: boom}, nil, time.Hour)

	if _, err := s.Sweep(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected purge error, got %v", err)
	}
	if !s.LastRun().IsZero() {
		t.Fatalf("failed run must not update last run")
	}
}

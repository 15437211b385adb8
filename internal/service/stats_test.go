package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"KikenQR/internal/cache"
	pkgerrors "KikenQR/pkg/errors"
)

func TestGetDailyStatsReadsRequestedDay(t *testing.T) {
	var gotDay time.Time
	counts := func(ctx context.Context, operationToken string, day time.Time) (cache.ClockInCount, error) {
		gotDay = day
		return cache.ClockInCount{Events: 7, NewSubjects: 2}, nil
	}
	s := NewStatsService(newStore(), counts)

	stats, err := s.GetDailyStats(context.Background(), "op", "2026-03-02")
	if err != nil {
		t.Fatalf("GetDailyStats: %v", err)
	}
	if stats.Date != "2026-03-02" || stats.Events != 7 || stats.NewSubjects != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if gotDay.Format("2006-01-02") != "2026-03-02" {
		t.Fatalf("counter read for %v", gotDay)
	}
}

func TestGetDailyStatsRejectsBadInput(t *testing.T) {
	called := false
	counts := func(ctx context.Context, operationToken string, day time.Time) (cache.ClockInCount, error) {
		called = true
		return cache.ClockInCount{}, nil
	}
	s := NewStatsService(newStore(), counts)

	if _, err := s.GetDailyStats(context.Background(), "op", "02/03/2026"); !stderrors.Is(err, pkgerrors.InvalidRequest) {
		t.Fatalf("bad date: expected InvalidRequest, got %v", err)
	}
	if _, err := s.GetDailyStats(context.Background(), "nope", ""); !stderrors.Is(err, pkgerrors.OperationNotFound) {
		t.Fatalf("unknown operation: expected OperationNotFound, got %v", err)
	}
	if called {
		t.Fatal("counter must not be read for rejected requests")
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"KikenQR/internal/cache"
	"KikenQR/internal/model/dto"
	"KikenQR/internal/repository"
	pkgerrors "KikenQR/pkg/errors"
)

const statsDateLayout = "2006-01-02"

type CountReader func(ctx context.Context, operationToken string, day time.Time) (cache.ClockInCount, error)

// StatsService 查询 worker 维护的每日打卡计数
type StatsService struct {
	data   repository.DataManager
	counts CountReader
}

func NewStatsService(data repository.DataManager, counts CountReader) *StatsService {
	return &StatsService{data: data, counts: counts}
}

// GetDailyStats date 为空时取 UTC 今天
func (s *StatsService) GetDailyStats(ctx context.Context, operationToken, date string) (*dto.ClockInStatsData, error) {
	day := time.Now().UTC()
	if date != "" {
		parsed, err := time.Parse(statsDateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", date, pkgerrors.InvalidRequest)
		}
		day = parsed
	}

	if _, err := s.data.GetOperation(ctx, operationToken); err != nil {
		return nil, asNetworkError("load operation", err)
	}

	count, err := s.counts(ctx, operationToken, day)
	if err != nil {
		return nil, err
	}

	return &dto.ClockInStatsData{
		OperationToken: operationToken,
		Date:           day.Format(statsDateLayout),
		Events:         count.Events,
		NewSubjects:    count.NewSubjects,
	}, nil
}

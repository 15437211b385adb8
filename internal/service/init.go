package service

import (
	"fmt"
	"sync"
	"time"

	"KikenQR/config"
	"KikenQR/internal/cache"
	"KikenQR/internal/geofence"
	"KikenQR/internal/queue"
	"KikenQR/internal/repository"
	"KikenQR/internal/workflow"
	"KikenQR/pkg/token"
	"KikenQR/storage/database"
)

var (
	clockInService *ClockInService
	statsService   *StatsService
	initOnce       sync.Once
	initErr        error
)

// Init 在 storage 与 token 初始化之后调用
func Init() error {
	initOnce.Do(func() {
		store, err := repository.NewStore(database.DB())
		if err != nil {
			initErr = err
			return
		}

		geocoder, err := geofence.NewNominatimGeocoder(
			config.Cfg.GeocoderBaseURL,
			config.Cfg.GeocoderUserAgent,
			config.Cfg.GeocoderTimeout(),
		)
		if err != nil {
			initErr = fmt.Errorf("failed to init geocoder: %w", err)
			return
		}

		resolver := NewIdentityResolver(store)
		clockInService = NewClockInService(ClockInDeps{
			Workflow: workflow.Deps{
				Data:     store,
				Resolver: resolver,
				Recorder: NewSubmissionRecorder(store, resolver),
				Geofence: geofence.NewValidator(geofence.NewBreakerGeocoder(geocoder, 5, 30*time.Second), config.Cfg.GeolocationTimeout()),
				Locale:   config.Cfg.FieldLocale,
			},
			Sessions:   cache.NewSessionStore(),
			Locker:     cache.NewSessionLocker(config.Cfg.SessionLockTTL()),
			Publisher:  queue.NewClockInPublisher(),
			IssueToken: token.IssueSessionToken,
			SessionTTL: config.Cfg.SessionTTL(),
		})
		statsService = NewStatsService(store, cache.GetClockInCount)
	})

	return initErr
}

func ClockIn() *ClockInService {
	return clockInService
}

func Stats() *StatsService {
	return statsService
}

package geofence

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"KikenQR/pkg/logger"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // 正常放行
	BreakerOpen                         // 熔断中，直接失败
	BreakerHalfOpen                     // 试探恢复
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrBreakerOpen = errors.New("geocoder circuit breaker is open")

// BreakerGeocoder 给地理编码服务加熔断，连续失败后短时间内不再请求上游
type BreakerGeocoder struct {
	next             Geocoder
	maxFailures      int
	resetTimeout     time.Duration
	halfOpenMaxCalls int
	now              func() time.Time

	mu            sync.Mutex
	state         BreakerState
	failures      int
	lastFailTime  time.Time
	halfOpenCalls int
}

func NewBreakerGeocoder(next Geocoder, maxFailures int, resetTimeout time.Duration) *BreakerGeocoder {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &BreakerGeocoder{
		next:             next,
		maxFailures:      maxFailures,
		resetTimeout:     resetTimeout,
		halfOpenMaxCalls: 1,
		now:              time.Now,
	}
}

func (b *BreakerGeocoder) Geocode(ctx context.Context, query string) ([]Coordinates, error) {
	if !b.allow() {
		return nil, ErrBreakerOpen
	}

	results, err := b.next.Geocode(ctx, query)
	// 调用方取消不算上游故障
	if err != nil && ctx.Err() != nil {
		b.release()
		return nil, err
	}
	b.record(err)
	return results, err
}

func (b *BreakerGeocoder) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *BreakerGeocoder) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && b.now().Sub(b.lastFailTime) >= b.resetTimeout {
		b.transition(BreakerHalfOpen)
	}

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		if b.halfOpenCalls >= b.halfOpenMaxCalls {
			return false
		}
		b.halfOpenCalls++
		return true
	default:
		return false
	}
}

func (b *BreakerGeocoder) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen && b.halfOpenCalls > 0 {
		b.halfOpenCalls--
	}
}

func (b *BreakerGeocoder) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		if b.state != BreakerClosed {
			b.transition(BreakerClosed)
		}
		return
	}

	b.failures++
	b.lastFailTime = b.now()

	logger.L().Warn("Geocoder call failed",
		zap.Int("failures", b.failures),
		zap.String("state", b.state.String()),
		zap.Error(err),
	)

	if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
		b.transition(BreakerOpen)
	}
}

func (b *BreakerGeocoder) transition(to BreakerState) {
	b.state = to
	b.halfOpenCalls = 0
	if to == BreakerClosed {
		b.failures = 0
	}

	logger.L().Info("Geocoder circuit breaker transitioned",
		zap.String("state", to.String()),
		zap.Int("failures", b.failures),
		zap.Duration("reset_timeout", b.resetTimeout),
	)
}

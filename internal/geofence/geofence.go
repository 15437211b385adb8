package geofence

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"KikenQR/internal/model"
	pkgerrors "KikenQR/pkg/errors"
	"KikenQR/pkg/logger"
)

// EarthRadiusMeters 地球平均半径
const EarthRadiusMeters = 6371000.0

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocoder 把自由文本地址解析为候选坐标
type Geocoder interface {
	Geocode(ctx context.Context, query string) ([]Coordinates, error)
}

// PositionProvider 设备当前位置
type PositionProvider interface {
	CurrentPosition(ctx context.Context) (Coordinates, error)
}

var errNoPositionProvider = errors.New("no position provider")

type Validator struct {
	geocoder Geocoder
	timeout  time.Duration
}

// NewValidator timeout 为获取设备位置的最长等待时间
func NewValidator(geocoder Geocoder, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Validator{geocoder: geocoder, timeout: timeout}
}

// ResolveAddress 地址 -> 坐标，取第一个候选；不做缓存
func (v *Validator) ResolveAddress(ctx context.Context, addr *model.Address) (Coordinates, error) {
	if addr.IsEmpty() {
		return Coordinates{}, fmt.Errorf("empty operation address: %w", pkgerrors.AddressResolutionError)
	}

	query := addr.Query()
	candidates, err := v.geocoder.Geocode(ctx, query)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode %q: %w: %w", query, pkgerrors.AddressResolutionError, err)
	}
	if len(candidates) == 0 {
		return Coordinates{}, fmt.Errorf("geocode %q returned no result: %w", query, pkgerrors.AddressResolutionError)
	}

	return candidates[0], nil
}

// GetCurrentPosition 在超时内等待位置，拒绝、失败、超时都视为 GeolocationDenied
func (v *Validator) GetCurrentPosition(ctx context.Context, provider PositionProvider) (Coordinates, error) {
	if provider == nil {
		return Coordinates{}, fmt.Errorf("%w: %w", pkgerrors.GeolocationDenied, errNoPositionProvider)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	type result struct {
		pos Coordinates
		err error
	}
	done := make(chan result, 1)
	go func() {
		pos, err := provider.CurrentPosition(ctx)
		done <- result{pos: pos, err: err}
	}()

	select {
	case <-ctx.Done():
		return Coordinates{}, fmt.Errorf("%w: %w", pkgerrors.GeolocationDenied, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return Coordinates{}, fmt.Errorf("%w: %w", pkgerrors.GeolocationDenied, r.err)
		}
		return r.pos, nil
	}
}

// DistanceMeters haversine 大圆距离
func DistanceMeters(a, b Coordinates) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// CheckProximity 当前位置是否在 origin 的 radiusMeters 范围内。
// radius <= 0 视为未启用，直接通过且不读取位置。
func (v *Validator) CheckProximity(ctx context.Context, provider PositionProvider, origin Coordinates, radiusMeters float64) (bool, error) {
	if radiusMeters <= 0 {
		return true, nil
	}

	pos, err := v.GetCurrentPosition(ctx, provider)
	if err != nil {
		return false, err
	}

	distance := DistanceMeters(pos, origin)
	logger.L().Debug("Geofence distance computed",
		zap.Float64("distance_m", distance),
		zap.Float64("radius_m", radiusMeters),
	)
	return distance <= radiusMeters, nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

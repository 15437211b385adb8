package geofence

import (
	"context"
	"errors"
	"fmt"
)

var errPositionMissing = errors.New("position not provided")

// StaticPosition 请求体里带上来的设备位置（或浏览器的定位错误）
type StaticPosition struct {
	Coords *Coordinates
	// 浏览器 Geolocation API 的错误：denied, unavailable, timeout
	Err string
}

func (p StaticPosition) CurrentPosition(ctx context.Context) (Coordinates, error) {
	if p.Err != "" {
		return Coordinates{}, fmt.Errorf("device reported position error: %s", p.Err)
	}
	if p.Coords == nil {
		return Coordinates{}, errPositionMissing
	}
	return *p.Coords, nil
}

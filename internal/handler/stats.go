package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"KikenQR/internal/model/dto"
	"KikenQR/internal/service"
	"KikenQR/pkg/response"
)

// GetTodayClockInStats worker 维护的当日计数，可用 ?date=YYYY-MM-DD 查询其他日期
// GET /v1/operations/:operation_token/clock-ins/today
func GetTodayClockInStats(ctx context.Context, c *app.RequestContext) {
	var query dto.ClockInStatsQuery
	if err := c.BindQuery(&query); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Stats().GetDailyStats(ctx, c.Param("operation_token"), query.Date)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// Healthz 存活探针
// GET /healthz
func Healthz(ctx context.Context, c *app.RequestContext) {
	response.Success(ctx, c, map[string]string{"status": "ok"})
}

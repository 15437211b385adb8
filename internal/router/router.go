package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"KikenQR/internal/handler"
	"KikenQR/internal/middleware"
)

func Register(h *server.Hertz) {
	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())

	h.GET("/healthz", handler.Healthz)

	v1 := h.Group("/v1")

	// 扫码入口与统计，按 IP 限流
	operations := v1.Group("/operations/:operation_token")
	operations.Use(middleware.ClockInRateLimitMiddleware())
	{
		operations.POST("/clock-in/sessions", handler.StartClockInSession)
		operations.GET("/clock-ins/today", handler.GetTodayClockInStats)
	}

	// 打卡会话，需要会话 token
	session := v1.Group("/clock-in/session")
	session.Use(middleware.ClockInRateLimitMiddleware(), middleware.AuthMiddleware())
	{
		session.GET("", handler.GetClockInSession)
		session.POST("/step1", handler.SubmitClockInStep1)
		session.POST("/step2", handler.SubmitClockInStep2)
		session.POST("/back", handler.GoBackClockInSession)
		session.POST("/restart", handler.RestartClockInSession)
	}
}

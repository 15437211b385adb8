package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"KikenQR/internal/middleware"
	"KikenQR/internal/model/dto"
	"KikenQR/internal/service"
	"KikenQR/pkg/errors"
	"KikenQR/pkg/response"
)

// StartClockInSession 扫码进入，返回会话 token 与第一步字段
// POST /v1/operations/:operation_token/clock-in/sessions
func StartClockInSession(ctx context.Context, c *app.RequestContext) {
	operationToken := c.Param("operation_token")
	if operationToken == "" {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	result, err := service.ClockIn().StartSession(ctx, operationToken)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, result)
}

// GetClockInSession 当前会话视图
// GET /v1/clock-in/session
func GetClockInSession(ctx context.Context, c *app.RequestContext) {
	sessionID, ok := middleware.GetSessionID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}

	result, err := service.ClockIn().GetSession(ctx, sessionID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// SubmitClockInStep1 提交每次必填字段与设备位置
// POST /v1/clock-in/session/step1
func SubmitClockInStep1(ctx context.Context, c *app.RequestContext) {
	sessionID, ok := middleware.GetSessionID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}

	var req dto.SubmitStepRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}
	values, err := req.ToValues()
	if err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.ClockIn().SubmitStep1(ctx, sessionID, values, req.PositionProvider())
	writeSession(ctx, c, result, err)
}

// SubmitClockInStep2 首次登记时提交一次性字段
// POST /v1/clock-in/session/step2
func SubmitClockInStep2(ctx context.Context, c *app.RequestContext) {
	sessionID, ok := middleware.GetSessionID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}

	var req dto.SubmitStepRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}
	values, err := req.ToValues()
	if err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.ClockIn().SubmitStep2(ctx, sessionID, values)
	writeSession(ctx, c, result, err)
}

// GoBackClockInSession 从第二步返回第一步
// POST /v1/clock-in/session/back
func GoBackClockInSession(ctx context.Context, c *app.RequestContext) {
	sessionID, ok := middleware.GetSessionID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}

	result, err := service.ClockIn().GoBack(ctx, sessionID)
	writeSession(ctx, c, result, err)
}

// RestartClockInSession 重新开始，字段重新加载
// POST /v1/clock-in/session/restart
func RestartClockInSession(ctx context.Context, c *app.RequestContext) {
	sessionID, ok := middleware.GetSessionID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}

	result, err := service.ClockIn().Restart(ctx, sessionID)
	writeSession(ctx, c, result, err)
}

// writeSession 出错时在 details.session 中带上未变化的会话视图
func writeSession(ctx context.Context, c *app.RequestContext, view *dto.ClockInSessionData, err error) {
	if err == nil {
		response.Success(ctx, c, view)
		return
	}

	if view == nil {
		response.Error(ctx, c, err)
		return
	}
	response.ErrorWithDetails(ctx, c, err, map[string]interface{}{
		"session": view,
	})
}

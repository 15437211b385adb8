package response

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"KikenQR/pkg/errors"
)

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// SuccessResponse 统一的成功响应格式
type SuccessResponse struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// StatusFor 根据错误码映射 HTTP 状态码
func StatusFor(err error) int {
	def, ok := errors.As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch def.Code {
	case errors.ValidationFailed.Code, errors.InvalidRequest.Code:
		return http.StatusBadRequest // 400
	case errors.Unauthorized.Code:
		return http.StatusUnauthorized // 401
	case errors.GeolocationDenied.Code, errors.ProximityError.Code:
		return http.StatusForbidden // 403
	case errors.SubjectNotFound.Code, errors.SessionNotFound.Code, errors.OperationNotFound.Code:
		return http.StatusNotFound // 404
	case errors.DuplicateIdentifier.Code, errors.InvalidStep.Code, errors.SessionBusy.Code:
		return http.StatusConflict // 409
	case errors.SchemaIntegrityError.Code, errors.AddressResolutionError.Code:
		return http.StatusUnprocessableEntity // 422
	case errors.TooManyRequests.Code:
		return http.StatusTooManyRequests // 429
	case errors.FieldValueWriteError.Code, errors.NetworkError.Code:
		return http.StatusBadGateway // 502
	case errors.SchemaUnavailable.Code:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}

// Error 返回错误响应
func Error(ctx context.Context, c *app.RequestContext, err error) {
	ErrorWithDetails(ctx, c, err, nil)
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	statusCode := StatusFor(err)

	var code, message string
	if def, ok := errors.As(err); ok {
		code = def.Code
		message = def.Message
	} else {
		code = "INTERNAL_ERROR"
		message = err.Error()
	}

	// 校验失败时附带逐字段信息
	var fieldErrs errors.FieldErrors
	if stderrors.As(err, &fieldErrs) {
		if details == nil {
			details = map[string]interface{}{}
		}
		fields := make(map[string]string, len(fieldErrs))
		for id, msg := range fieldErrs {
			fields[strconv.FormatInt(id, 10)] = msg
		}
		details["fields"] = fields
	}

	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
	})
}

func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data: data,
	})
}

func SuccessWithMeta(ctx context.Context, c *app.RequestContext, data interface{}, meta map[string]interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
		Meta: meta,
	})
}

func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidRequest.Code,
			Message: err.Error(),
		},
	})
}

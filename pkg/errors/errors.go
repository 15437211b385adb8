package errors

import (
	stderrors "errors"
)

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
// Definition 可比较，调用方用 errors.Is 匹配被 %w 包装后的错误。
type Definition struct {
	Code    string
	Message string
}

// 字段定义（schema）相关错误。
var (
	SchemaUnavailable    = Definition{Code: "SCHEMA_UNAVAILABLE", Message: "Field schema could not be loaded"}
	SchemaIntegrityError = Definition{Code: "SCHEMA_INTEGRITY_ERROR", Message: "Operation must define exactly one unique field"}
	ValidationFailed     = Definition{Code: "VALIDATION_FAILED", Message: "Some fields are invalid"}
)

// 地理围栏相关错误。
var (
	GeolocationDenied      = Definition{Code: "GEOLOCATION_DENIED", Message: "Geolocation denied or unavailable"}
	AddressResolutionError = Definition{Code: "ADDRESS_RESOLUTION_ERROR", Message: "Operation address could not be resolved"}
	ProximityError         = Definition{Code: "PROXIMITY_ERROR", Message: "You are too far from the operation site"}
)

// 身份与提交相关错误。
var (
	DuplicateIdentifier  = Definition{Code: "DUPLICATE_IDENTIFIER", Message: "A subject with this identifier already exists"}
	SubjectNotFound      = Definition{Code: "SUBJECT_NOT_FOUND", Message: "Subject not found"}
	FieldValueWriteError = Definition{Code: "FIELD_VALUE_WRITE_ERROR", Message: "Field value could not be saved"}
	NetworkError         = Definition{Code: "NETWORK_ERROR", Message: "Remote service unavailable"}
	OperationNotFound    = Definition{Code: "OPERATION_NOT_FOUND", Message: "Operation not found"}
)

// 打卡会话相关错误。
var (
	InvalidStep     = Definition{Code: "INVALID_STEP", Message: "Action not allowed in current step"}
	SessionNotFound = Definition{Code: "SESSION_NOT_FOUND", Message: "Clock-in session not found or expired"}
	SessionBusy     = Definition{Code: "SESSION_BUSY", Message: "Clock-in session is processing another request"}
	Unauthorized    = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests"}
	InvalidRequest  = Definition{Code: "INVALID_REQUEST", Message: "Invalid request"}
)

// 基础设施错误（不对外暴露错误码）。
var (
	ErrTokenGeneratorNotInitialized = stderrors.New("token generator not initialized")
	ErrInvalidToken                 = stderrors.New("invalid token")
	ErrInvalidTokenClaims           = stderrors.New("invalid token claims")
	ErrUnexpectedSigningMethod      = stderrors.New("unexpected signing method")
	ErrSessionIDNotFound            = stderrors.New("session id not found in token")
	ErrDatabaseConnectionNil        = stderrors.New("database connection is nil")
	ErrMQConnectionNil              = stderrors.New("RabbitMQ connection is nil")
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	SchemaUnavailable.Code:      SchemaUnavailable,
	SchemaIntegrityError.Code:   SchemaIntegrityError,
	ValidationFailed.Code:       ValidationFailed,
	GeolocationDenied.Code:      GeolocationDenied,
	AddressResolutionError.Code: AddressResolutionError,
	ProximityError.Code:         ProximityError,
	DuplicateIdentifier.Code:    DuplicateIdentifier,
	SubjectNotFound.Code:        SubjectNotFound,
	FieldValueWriteError.Code:   FieldValueWriteError,
	NetworkError.Code:           NetworkError,
	OperationNotFound.Code:      OperationNotFound,
	InvalidStep.Code:            InvalidStep,
	SessionNotFound.Code:        SessionNotFound,
	SessionBusy.Code:            SessionBusy,
	Unauthorized.Code:           Unauthorized,
	TooManyRequests.Code:        TooManyRequests,
	InvalidRequest.Code:         InvalidRequest,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

// As 从错误链中取出最外层的 Definition。
func As(err error) (Definition, bool) {
	var def Definition
	if stderrors.As(err, &def) {
		return def, true
	}
	return Definition{}, false
}

// FieldErrors 是 ValidationFailed 的载体，按字段 ID 记录失败原因。
type FieldErrors map[int64]string

func (fe FieldErrors) Error() string {
	return ValidationFailed.Message
}

func (fe FieldErrors) Unwrap() error {
	return ValidationFailed
}

// SkipMessageError 表示消息已被处理，消费者应直接 ack。
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return e.Reason
}

package dto

import (
	"fmt"
	"strconv"
	"time"

	"KikenQR/internal/geofence"
	"KikenQR/internal/schema"
)

// ========== 打卡会话相关 DTO ==========

// StartSessionResponse 返回会话 token，后续请求放在 Authorization 头中
type StartSessionResponse struct {
	SessionToken string             `json:"session_token"`
	ExpiresAt    time.Time          `json:"expires_at"`
	Session      ClockInSessionData `json:"session"`
}

// ClockInSessionData 会话当前视图
type ClockInSessionData struct {
	SessionID string             `json:"session_id"`
	State     string             `json:"state"`
	Operation *OperationView     `json:"operation,omitempty"`
	Fields    []schema.FieldView `json:"fields"`
	Draft     map[string]string  `json:"draft,omitempty"`
	LastError *ClockInErrorView  `json:"last_error,omitempty"`
	Event     *ClockInEventView  `json:"event,omitempty"`
}

// OperationView 运营活动的公开信息
type OperationView struct {
	Token                 string  `json:"token"`
	Name                  string  `json:"name"`
	UseClockInGeolocation bool    `json:"use_clock_in_geolocation"`
	DistanceKm            float64 `json:"distance_km,omitempty"`
}

// ClockInErrorView 上一次操作的错误，Fields 为逐字段校验信息
type ClockInErrorView struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ClockInEventView 确认页展示的打卡结果
type ClockInEventView struct {
	ClockInID  string    `json:"clock_in_id"`
	SubjectID  string    `json:"subject_id"`
	NewSubject bool      `json:"new_subject"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PositionPayload 浏览器 Geolocation API 返回的坐标
type PositionPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SubmitStepRequest 提交当前步骤；values 以字段 ID 为键
type SubmitStepRequest struct {
	Values        map[string]interface{} `json:"values"`
	Position      *PositionPayload       `json:"position,omitempty"`
	PositionError string                 `json:"position_error,omitempty"` // denied, unavailable, timeout
}

// ToValues 把 JSON 值统一转为字符串
func (r *SubmitStepRequest) ToValues() (schema.Values, error) {
	values := make(schema.Values, len(r.Values))
	for key, raw := range r.Values {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid field id %q", key)
		}

		switch v := raw.(type) {
		case nil:
			values[id] = ""
		case string:
			values[id] = v
		case bool:
			values[id] = strconv.FormatBool(v)
		case float64:
			values[id] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("unsupported value for field %s", key)
		}
	}
	return values, nil
}

// PositionProvider 未携带位置信息时返回 nil，校验时视为拒绝定位
func (r *SubmitStepRequest) PositionProvider() geofence.PositionProvider {
	if r.PositionError != "" {
		return geofence.StaticPosition{Err: r.PositionError}
	}
	if r.Position == nil {
		return nil
	}
	return geofence.StaticPosition{Coords: &geofence.Coordinates{
		Latitude:  r.Position.Latitude,
		Longitude: r.Position.Longitude,
	}}
}

// ========== 打卡统计 DTO ==========

// ClockInStatsQuery 按天查询，date 为 YYYY-MM-DD（UTC），默认今天
type ClockInStatsQuery struct {
	Date string `query:"date"`
}

// ClockInStatsData 某运营活动某天的打卡计数
type ClockInStatsData struct {
	OperationToken string `json:"operation_token"`
	Date           string `json:"date"`
	Events         int64  `json:"events"`
	NewSubjects    int64  `json:"new_subjects"`
}

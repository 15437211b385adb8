package model

// ClockInRecordedMessage 打卡完成事件，由 worker 消费做统计
type ClockInRecordedMessage struct {
	MessageID      string `json:"message_id"` // 消息唯一ID，用于幂等性检查
	OperationToken string `json:"operation_token"`
	OperationID    int64  `json:"operation_id"`
	ClockInID      int64  `json:"clock_in_id"`
	SubjectID      int64  `json:"subject_id"`
	NewSubject     bool   `json:"new_subject"` // 本次流程是否新登记了打卡人
	OccurredAt     string `json:"occurred_at"`
}

package model

import "time"

// ClockInEmployee 已登记的打卡人，Identifier 为唯一字段的取值
type ClockInEmployee struct {
	BaseModel
	OperationID int64        `gorm:"not null;uniqueIndex:idx_clock_in_employees_operation_identifier" json:"operation_id"`
	Identifier  string       `gorm:"type:varchar(255);not null;uniqueIndex:idx_clock_in_employees_operation_identifier" json:"identifier"`
	FieldValues []FieldValue `gorm:"foreignKey:ClockInEmployeeID" json:"field_values,omitempty"`
}

func (ClockInEmployee) TableName() string {
	return "clock_in_employees"
}

// FieldValue 字段取值，先独立写入，再挂到打卡人或打卡记录上
type FieldValue struct {
	BaseModel
	FieldID           int64  `gorm:"not null;index" json:"field_id"`
	Value             string `gorm:"type:text;not null" json:"value"`
	ClockInEmployeeID *int64 `gorm:"index" json:"clock_in_employee_id,omitempty"`
	ClockInID         *int64 `gorm:"index" json:"clock_in_id,omitempty"`
}

func (FieldValue) TableName() string {
	return "field_values"
}

// ClockIn 打卡记录，只追加不去重
type ClockIn struct {
	BaseModel
	OperationID       int64        `gorm:"not null;index:idx_clock_ins_operation_start" json:"operation_id"`
	ClockInEmployeeID int64        `gorm:"not null;index" json:"clock_in_employee_id"`
	Start             time.Time    `gorm:"not null;index:idx_clock_ins_operation_start" json:"start"`
	FieldValues       []FieldValue `gorm:"foreignKey:ClockInID" json:"field_values,omitempty"`
}

func (ClockIn) TableName() string {
	return "clock_ins"
}

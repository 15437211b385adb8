package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldType 字段类型，封闭集合
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypePassword FieldType = "password"
	FieldTypeEmail    FieldType = "email"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeDatetime FieldType = "datetime"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeRange    FieldType = "range"
	FieldTypePhone    FieldType = "phone"
	FieldTypeURL      FieldType = "url"
	FieldTypeTextarea FieldType = "textarea"
)

// 管理后台历史上使用的数字编码
var fieldTypeCodes = map[int]FieldType{
	1:  FieldTypeText,
	2:  FieldTypePassword,
	3:  FieldTypeEmail,
	4:  FieldTypeNumber,
	5:  FieldTypeDate,
	6:  FieldTypeCheckbox,
	7:  FieldTypeRadio,
	8:  FieldTypeRange,
	9:  FieldTypePhone,
	10: FieldTypeURL,
	11: FieldTypeTextarea,
}

func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypePassword, FieldTypeEmail, FieldTypeNumber,
		FieldTypeDate, FieldTypeDatetime, FieldTypeCheckbox, FieldTypeRadio,
		FieldTypeRange, FieldTypePhone, FieldTypeURL, FieldTypeTextarea:
		return true
	}
	return false
}

// ParseFieldType 接受类型名（大小写不敏感，tel 视为 phone）或数字编码
func ParseFieldType(s string) (FieldType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if code, err := strconv.Atoi(s); err == nil {
		if t, ok := fieldTypeCodes[code]; ok {
			return t, nil
		}
		return "", fmt.Errorf("unknown field type code %d", code)
	}
	if s == "tel" {
		return FieldTypePhone, nil
	}
	if t := FieldType(s); t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown field type %q", s)
}

func (t *FieldType) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		// 3.7 之类的小数不能截断成合法编码
		if v != math.Trunc(v) {
			return fmt.Errorf("invalid field type %s", string(data))
		}
		s = strconv.Itoa(int(v))
	default:
		return fmt.Errorf("invalid field type %s", string(data))
	}

	parsed, err := ParseFieldType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Choice 单选项
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDefinition 租户在运行时定义的表单字段
type FieldDefinition struct {
	BaseModel
	OperationID int64     `gorm:"not null;index:idx_fields_operation_position" json:"operation_id"`
	Label       string    `gorm:"type:varchar(255);not null" json:"label"`
	Type        FieldType `gorm:"type:varchar(16);not null" json:"type"`
	IsUnique    bool      `gorm:"not null;default:false" json:"isUnique"`
	AllwaysFill bool      `gorm:"column:allways_fill;not null;default:false" json:"allwaysFill"`
	IsRequired  bool      `gorm:"not null;default:false" json:"isRequired"`
	Position    int       `gorm:"not null;default:0;index:idx_fields_operation_position" json:"position"`
	Choices     []Choice  `gorm:"type:text;serializer:json" json:"choices,omitempty"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
}

func (FieldDefinition) TableName() string {
	return "fields"
}

// Step1 唯一字段与每次必填字段属于第一步
func (f *FieldDefinition) Step1() bool {
	return f.IsUnique || f.AllwaysFill
}

// Required 唯一字段总是必填
func (f *FieldDefinition) Required() bool {
	return f.IsUnique || f.IsRequired
}

// FieldEntry 归一化后的字段取值
type FieldEntry struct {
	FieldID int64  `json:"field_id"`
	Value   string `json:"value"`
}

// FieldValueRef 已写入的字段取值引用
type FieldValueRef struct {
	ID      int64 `json:"id"`
	FieldID int64 `json:"field_id"`
}

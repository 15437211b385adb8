package schema

import (
	"fmt"

	"KikenQR/internal/model"
)

type WidgetKind string

const (
	WidgetInput      WidgetKind = "input"
	WidgetTextarea   WidgetKind = "textarea"
	WidgetCheckbox   WidgetKind = "checkbox"
	WidgetRadioGroup WidgetKind = "radio_group"
	WidgetDatePicker WidgetKind = "date_picker"
	WidgetSlider     WidgetKind = "slider"
)

// 输入过滤，前端按键级别拦截
const (
	KeyFilterDigits     = "digits"
	KeyFilterDigitsPlus = "digits+plus"
)

type Widget struct {
	Kind      WidgetKind `json:"kind"`
	InputType string     `json:"input_type,omitempty"`
	KeyFilter string     `json:"key_filter,omitempty"`
	Pattern   string     `json:"pattern,omitempty"`
	Format    string     `json:"format,omitempty"`
}

// WidgetFor 字段类型到控件的映射，新增类型必须在这里补齐
func WidgetFor(t model.FieldType) Widget {
	switch t {
	case model.FieldTypeText:
		return Widget{Kind: WidgetInput, InputType: "text"}
	case model.FieldTypePassword:
		return Widget{Kind: WidgetInput, InputType: "password"}
	case model.FieldTypeEmail:
		return Widget{Kind: WidgetInput, InputType: "email"}
	case model.FieldTypeNumber:
		return Widget{Kind: WidgetInput, InputType: "text", KeyFilter: KeyFilterDigits, Pattern: numberPattern}
	case model.FieldTypePhone:
		return Widget{Kind: WidgetInput, InputType: "tel", KeyFilter: KeyFilterDigitsPlus, Pattern: phonePattern}
	case model.FieldTypeURL:
		return Widget{Kind: WidgetInput, InputType: "url"}
	case model.FieldTypeTextarea:
		return Widget{Kind: WidgetTextarea}
	case model.FieldTypeCheckbox:
		return Widget{Kind: WidgetCheckbox}
	case model.FieldTypeRadio:
		return Widget{Kind: WidgetRadioGroup}
	case model.FieldTypeRange:
		return Widget{Kind: WidgetSlider}
	case model.FieldTypeDate:
		return Widget{Kind: WidgetDatePicker, Format: "DD/MM/YYYY"}
	case model.FieldTypeDatetime:
		return Widget{Kind: WidgetDatePicker, Format: "DD/MM/YYYY HH:mm"}
	}
	panic(fmt.Sprintf("schema: no widget for field type %q", t))
}

// FieldView 前端渲染一个字段所需的信息
type FieldView struct {
	ID       int64           `json:"id"`
	Label    string          `json:"label"`
	Type     model.FieldType `json:"type"`
	Required bool            `json:"required"`
	Unique   bool            `json:"unique"`
	Widget   Widget          `json:"widget"`
	Choices  []model.Choice  `json:"choices,omitempty"`
	Min      *float64        `json:"min,omitempty"`
	Max      *float64        `json:"max,omitempty"`
}

func Render(fields []model.FieldDefinition) []FieldView {
	views := make([]FieldView, 0, len(fields))
	for _, f := range fields {
		views = append(views, FieldView{
			ID:       f.ID,
			Label:    f.Label,
			Type:     f.Type,
			Required: f.Required(),
			Unique:   f.IsUnique,
			Widget:   WidgetFor(f.Type),
			Choices:  f.Choices,
			Min:      f.Min,
			Max:      f.Max,
		})
	}
	return views
}

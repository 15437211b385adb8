package schema

import (
	"strings"

	"github.com/shopspring/decimal"

	"KikenQR/internal/model"
)

const (
	dateFormat     = "02/01/2006"
	datetimeFormat = "02/01/2006 15:04"
)

// BoolLiterals 勾选框写入的本地化字面量
func BoolLiterals(locale string) (yes, no string) {
	if locale == "en" {
		return "Yes", "No"
	}
	return "Oui", "Non"
}

// Normalize 把已校验的输入转换为待写入的取值，按字段顺序输出。
// 空的非勾选字段不产生取值。
func Normalize(fields []model.FieldDefinition, values Values, locale string) []model.FieldEntry {
	yes, no := BoolLiterals(locale)
	entries := make([]model.FieldEntry, 0, len(fields))

	for _, f := range fields {
		raw := values[f.ID]

		if f.Type == model.FieldTypeCheckbox {
			value := no
			if checked, _ := parseBool(raw); checked {
				value = yes
			}
			entries = append(entries, model.FieldEntry{FieldID: f.ID, Value: value})
			continue
		}

		if strings.TrimSpace(raw) == "" {
			continue
		}

		entries = append(entries, model.FieldEntry{FieldID: f.ID, Value: normalizeValue(f.Type, raw)})
	}
	return entries
}

func normalizeValue(t model.FieldType, raw string) string {
	switch t {
	case model.FieldTypeDate:
		if d, ok := parseDate(raw); ok {
			return d.Format(dateFormat)
		}
	case model.FieldTypeDatetime:
		if d, ok := parseDate(raw); ok {
			return d.Format(datetimeFormat)
		}
	case model.FieldTypeRange:
		if d, err := decimal.NewFromString(strings.TrimSpace(raw)); err == nil {
			return d.String()
		}
	}
	return raw
}

// ValueOf 在取值列表中查找字段
func ValueOf(entries []model.FieldEntry, fieldID int64) (string, bool) {
	for _, e := range entries {
		if e.FieldID == fieldID {
			return e.Value, true
		}
	}
	return "", false
}

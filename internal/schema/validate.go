package schema

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"KikenQR/internal/model"
	pkgerrors "KikenQR/pkg/errors"
)

const (
	numberPattern = `^[0-9]+$`
	phonePattern  = `(^\d+$)|(^\+\d+$)`
)

var (
	numberRe = regexp.MustCompile(numberPattern)
	phoneRe  = regexp.MustCompile(phonePattern)

	// validator.Validate 并发安全，全局复用
	validate = validator.New()
)

// 字段校验的提示信息
const (
	MsgRequired      = "required"
	MsgInvalidNumber = "digits only"
	MsgInvalidPhone  = "invalid phone number"
	MsgInvalidEmail  = "invalid email"
	MsgInvalidURL    = "invalid url"
	MsgInvalidDate   = "invalid date"
	MsgInvalidBool   = "invalid boolean"
	MsgInvalidRange  = "out of range"
	MsgInvalidChoice = "unknown choice"
)

// Validate 只校验给定字段（当前步骤），返回 FieldErrors 或 nil
func Validate(fields []model.FieldDefinition, values Values) error {
	fieldErrs := pkgerrors.FieldErrors{}
	for _, f := range fields {
		if msg := ValidateField(f, values[f.ID]); msg != "" {
			fieldErrs[f.ID] = msg
		}
	}
	if len(fieldErrs) > 0 {
		return fieldErrs
	}
	return nil
}

// ValidateField 返回空串表示合法
func ValidateField(f model.FieldDefinition, raw string) string {
	if f.Type == model.FieldTypeCheckbox {
		checked, ok := parseBool(raw)
		if !ok {
			return MsgInvalidBool
		}
		if f.Required() && !checked {
			return MsgRequired
		}
		return ""
	}

	if strings.TrimSpace(raw) == "" {
		if f.Required() {
			return MsgRequired
		}
		return ""
	}

	switch f.Type {
	case model.FieldTypeNumber:
		if !numberRe.MatchString(raw) {
			return MsgInvalidNumber
		}
	case model.FieldTypePhone:
		if !phoneRe.MatchString(raw) {
			return MsgInvalidPhone
		}
	case model.FieldTypeEmail:
		if validate.Var(raw, "email") != nil {
			return MsgInvalidEmail
		}
	case model.FieldTypeURL:
		if validate.Var(raw, "url") != nil {
			return MsgInvalidURL
		}
	case model.FieldTypeDate, model.FieldTypeDatetime:
		if _, ok := parseDate(raw); !ok {
			return MsgInvalidDate
		}
	case model.FieldTypeRange:
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return MsgInvalidRange
		}
		if f.Min != nil && d.LessThan(decimal.NewFromFloat(*f.Min)) {
			return MsgInvalidRange
		}
		if f.Max != nil && d.GreaterThan(decimal.NewFromFloat(*f.Max)) {
			return MsgInvalidRange
		}
	case model.FieldTypeRadio:
		if len(f.Choices) > 0 && !hasChoice(f.Choices, raw) {
			return MsgInvalidChoice
		}
	}
	return ""
}

func hasChoice(choices []model.Choice, value string) bool {
	for _, c := range choices {
		if c.Value == value {
			return true
		}
	}
	return false
}

// parseBool 空值视为未勾选
func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "false", "0", "off", "non", "no":
		return false, true
	case "true", "1", "on", "oui", "yes":
		return true, true
	}
	return false, false
}

var dateLayouts = []string{
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

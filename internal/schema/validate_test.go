package schema

import (
	"errors"
	"testing"

	"KikenQR/internal/model"
	pkgerrors "KikenQR/pkg/errors"
)

func TestValidateField(t *testing.T) {
	low, high := 1.0, 10.0
	rangeField := field(1, model.FieldTypeRange, false, true)
	rangeField.Min, rangeField.Max = &low, &high

	radio := field(2, model.FieldTypeRadio, false, true)
	radio.Choices = []model.Choice{{Value: "am", Label: "Matin"}, {Value: "pm", Label: "Après-midi"}}

	required := field(3, model.FieldTypeText, false, true)
	required.IsRequired = true

	cases := []struct {
		name  string
		field model.FieldDefinition
		raw   string
		want  string
	}{
		{"unique always required", field(4, model.FieldTypeEmail, true, false), "", MsgRequired},
		{"required text blank", required, "   ", MsgRequired},
		{"optional empty ok", field(5, model.FieldTypeEmail, false, true), "", ""},
		{"email ok", field(5, model.FieldTypeEmail, false, true), "jean@example.fr", ""},
		{"email bad", field(5, model.FieldTypeEmail, false, true), "jean@", MsgInvalidEmail},
		{"number ok", field(6, model.FieldTypeNumber, false, true), "0042", ""},
		{"number with sign", field(6, model.FieldTypeNumber, false, true), "-4", MsgInvalidNumber},
		{"phone plain", field(7, model.FieldTypePhone, false, true), "0612345678", ""},
		{"phone intl", field(7, model.FieldTypePhone, false, true), "+33612345678", ""},
		{"phone spaces", field(7, model.FieldTypePhone, false, true), "06 12 34", MsgInvalidPhone},
		{"url ok", field(8, model.FieldTypeURL, false, true), "https://kiken-qr.com", ""},
		{"url bad", field(8, model.FieldTypeURL, false, true), "kiken", MsgInvalidURL},
		{"date fr", field(9, model.FieldTypeDate, false, true), "31/12/2024", ""},
		{"date iso", field(9, model.FieldTypeDate, false, true), "2024-12-31", ""},
		{"date bad", field(9, model.FieldTypeDate, false, true), "31.12.2024", MsgInvalidDate},
		{"range inside", rangeField, "5.5", ""},
		{"range outside", rangeField, "11", MsgInvalidRange},
		{"radio ok", radio, "pm", ""},
		{"radio unknown", radio, "night", MsgInvalidChoice},
		{"checkbox garbage", field(10, model.FieldTypeCheckbox, false, true), "maybe", MsgInvalidBool},
		{"checkbox unchecked optional", field(10, model.FieldTypeCheckbox, false, true), "", ""},
	}

	for _, tc := range cases {
		if got := ValidateField(tc.field, tc.raw); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestValidateReturnsFieldErrors(t *testing.T) {
	fields := []model.FieldDefinition{
		field(1, model.FieldTypeEmail, true, false),
		field(2, model.FieldTypeNumber, false, true),
	}

	err := Validate(fields, Values{2: "abc"})
	if !errors.Is(err, pkgerrors.ValidationFailed) {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}

	var fieldErrs pkgerrors.FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if fieldErrs[1] != MsgRequired || fieldErrs[2] != MsgInvalidNumber {
		t.Fatalf("unexpected field errors: %v", fieldErrs)
	}

	if err := Validate(fields, Values{1: "a@b.fr", 2: "12"}); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

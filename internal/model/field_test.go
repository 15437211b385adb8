package model

import (
	"encoding/json"
	"testing"
)

func TestParseFieldType(t *testing.T) {
	cases := map[string]FieldType{
		"email":    FieldTypeEmail,
		" Radio ":  FieldTypeRadio,
		"tel":      FieldTypePhone,
		"datetime": FieldTypeDatetime,
		"6":        FieldTypeCheckbox,
		"11":       FieldTypeTextarea,
	}
	for in, want := range cases {
		got, err := ParseFieldType(in)
		if err != nil || got != want {
			t.Fatalf("ParseFieldType(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	for _, in := range []string{"12", "0", "select", ""} {
		if _, err := ParseFieldType(in); err == nil {
			t.Fatalf("ParseFieldType(%q) should fail", in)
		}
	}
}

func TestFieldDefinitionDecodesNumericAndNamedTypes(t *testing.T) {
	var fields []FieldDefinition
	body := `[{"label":"Email","type":3,"isUnique":true},{"label":"Arrivée","type":"datetime","allwaysFill":true}]`
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fields[0].Type != FieldTypeEmail || !fields[0].Required() || !fields[0].Step1() {
		t.Fatalf("unexpected unique field %+v", fields[0])
	}
	if fields[1].Type != FieldTypeDatetime || !fields[1].Step1() {
		t.Fatalf("unexpected always-fill field %+v", fields[1])
	}

	var bad FieldDefinition
	if err := json.Unmarshal([]byte(`{"type":true}`), &bad); err == nil {
		t.Fatalf("boolean type should be rejected")
	}
	for _, body := range []string{`{"type":3.7}`, `{"type":11.2}`} {
		if err := json.Unmarshal([]byte(body), &bad); err == nil {
			t.Fatalf("%s: fractional type code should be rejected, got %q", body, bad.Type)
		}
	}
}

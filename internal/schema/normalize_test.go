package schema

import (
	"testing"

	"KikenQR/internal/model"
)

func TestNormalizeStoresLocalizedBooleans(t *testing.T) {
	fields := []model.FieldDefinition{
		field(1, model.FieldTypeCheckbox, false, true),
		field(2, model.FieldTypeCheckbox, false, true),
	}

	entries := Normalize(fields, Values{1: "true"}, "fr")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Value != "Oui" || entries[1].Value != "Non" {
		t.Fatalf("unexpected values: %+v", entries)
	}

	entries = Normalize(fields, Values{1: "on", 2: "0"}, "en")
	if entries[0].Value != "Yes" || entries[1].Value != "No" {
		t.Fatalf("unexpected english values: %+v", entries)
	}
}

func TestNormalizeFormatsDatesAndRanges(t *testing.T) {
	fields := []model.FieldDefinition{
		field(1, model.FieldTypeEmail, true, false),
		field(2, model.FieldTypeDate, false, true),
		field(3, model.FieldTypeDatetime, false, true),
		field(4, model.FieldTypeRange, false, true),
		field(5, model.FieldTypeText, false, true),
	}

	entries := Normalize(fields, Values{
		1: "jean@example.fr",
		2: "2024-03-07",
		3: "2024-03-07T08:05",
		4: "07.50",
	}, "fr")

	want := []model.FieldEntry{
		{FieldID: 1, Value: "jean@example.fr"},
		{FieldID: 2, Value: "07/03/2024"},
		{FieldID: 3, Value: "07/03/2024 08:05"},
		{FieldID: 4, Value: "7.5"},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entry %d: got %+v, want %+v", i, entries[i], want[i])
		}
	}

	if v, ok := ValueOf(entries, 1); !ok || v != "jean@example.fr" {
		t.Fatalf("ValueOf unique field = %q, %v", v, ok)
	}
}

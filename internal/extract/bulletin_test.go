package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/concordia/internal/model"
)

func TestReadBulletins(t *testing.T) {
	input := `{"id": "b1", "raw_output": {"people": [{"id": "p1", "name": "Jan"}]}}
{"id": 7, "raw_output": "{\"people\": [{\"id\": \"p1\", \"name\": \"Piet\"}]}"}

{"raw_output": null}
`

	bulletins, warnings, err := ReadBulletins(strings.NewReader(input), "")
	if err != nil {
		t.Fatalf("ReadBulletins failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}
	if len(bulletins) != 3 {
		t.Fatalf("Expected 3 bulletins, got %d", len(bulletins))
	}

	expectedIDs := []string{"b1", "7", UnknownBulletin}
	for i, b := range bulletins {
		if b.ID != expectedIDs[i] {
			t.Errorf("Bulletin %d: expected id %s, got %s", i, expectedIDs[i], b.ID)
		}
		if b.Output == nil {
			t.Errorf("Bulletin %d: expected non-nil output", i)
		}
	}

	people, _ := bulletins[1].Output["people"].([]any)
	if len(people) != 1 {
		t.Errorf("Expected string output to be parsed, got %v", bulletins[1].Output)
	}
}

func TestReadBulletins_RepairsMalformedOutput(t *testing.T) {
	// trailing comma and a missing closing brace
	input := `{"id": "b1", "raw_output": "{\"people\": [{\"id\": \"p1\", \"name\": \"Jan\"},]"}` + "\n"

	bulletins, warnings, err := ReadBulletins(strings.NewReader(input), DefaultOutputField)
	if err != nil {
		t.Fatalf("ReadBulletins failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Expected repair to succeed, got warnings %v", warnings)
	}

	people, _ := bulletins[0].Output["people"].([]any)
	if len(people) != 1 {
		t.Fatalf("Expected 1 person after repair, got %v", bulletins[0].Output)
	}
}

func TestReadBulletins_UnrecoverableOutput(t *testing.T) {
	input := `{"id": "b1", "raw_output": 42}` + "\n"

	bulletins, warnings, err := ReadBulletins(strings.NewReader(input), "")
	if err != nil {
		t.Fatalf("ReadBulletins failed: %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("Expected 1 warning, got %v", warnings)
	}
	if len(bulletins) != 1 || len(bulletins[0].Output) != 0 {
		t.Errorf("Expected an empty bulletin, got %+v", bulletins)
	}
}

func TestReadBulletins_InvalidLine(t *testing.T) {
	_, _, err := ReadBulletins(strings.NewReader("not json\n"), "")
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestIDString(t *testing.T) {
	tests := []struct {
		in       any
		expected string
	}{
		{in: nil, expected: ""},
		{in: " p1 ", expected: "p1"},
		{in: 3.0, expected: "3"},
		{in: 3.5, expected: "3.5"},
		{in: true, expected: "true"},
	}

	for _, tt := range tests {
		if got := idString(tt.in); got != tt.expected {
			t.Errorf("idString(%v) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

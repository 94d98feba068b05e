package extract

import (
	"reflect"
	"testing"
)

func sampleBulletins() []Bulletin {
	return []Bulletin{
		{
			ID: "b1",
			Output: map[string]any{
				"people": []any{
					map[string]any{"id": "p1", "name": "Jan", "inferred_full_name": "Jan van der Berg"},
					map[string]any{"id": "p2", "name": "Anna de Vries"},
					"garbage",
				},
				"organizations": []any{
					map[string]any{"id": "o1", "name": "KNAW", "official_name": "Koninklijke Akademie"},
				},
				"artifacts": []any{
					map[string]any{"id": 4.0},
				},
				"events": []any{
					map[string]any{"id": "e1", "name": "Opening", "participants": "['p1', 'o1', 'x9']"},
				},
				"relations": []any{
					map[string]any{"source_id": "p1", "target_id": "o1", "relation_type": "member_of", "certainty": 0.9},
					map[string]any{"source_id": "p1", "target_id": "zz"},
					map[string]any{"source_id": "p1"},
					42.0,
				},
			},
		},
		{
			ID: "b2",
			Output: map[string]any{
				"people": []any{
					map[string]any{"name": "Piet"},
				},
			},
		},
	}
}

func TestFlattener_Entities(t *testing.T) {
	out := NewFlattener(nil).Flatten(sampleBulletins())

	people := out.Entities["people"]
	if len(people) != 3 {
		t.Fatalf("Expected 3 people, got %d", len(people))
	}

	jan := people[0]
	if jan[FieldRawEntityID] != "b1_p1" || jan[FieldBulletinID] != "b1" || jan[FieldCanonicalName] != "Jan van der Berg" {
		t.Errorf("Unexpected flattened person: %v", jan)
	}
	if people[1][FieldCanonicalName] != "Anna de Vries" {
		t.Errorf("Expected fallback to name, got %v", people[1][FieldCanonicalName])
	}
	if people[2][FieldRawEntityID] != nil {
		t.Errorf("Expected nil global id without local id, got %v", people[2][FieldRawEntityID])
	}

	if got := out.Entities["organizations"][0][FieldCanonicalName]; got != "Koninklijke Akademie" {
		t.Errorf("Expected official name, got %v", got)
	}
	artifact := out.Entities["artifacts"][0]
	if artifact[FieldCanonicalName] != "4" || artifact[FieldRawEntityID] != "b1_4" {
		t.Errorf("Expected id fallback for artifact, got %v", artifact)
	}
	if out.Count("locations") != 0 {
		t.Errorf("Expected no locations, got %d", out.Count("locations"))
	}
}

func TestFlattener_Participants(t *testing.T) {
	out := NewFlattener(nil).Flatten(sampleBulletins())

	event := out.Entities["events"][0]
	expectedGlobal := []string{"b1_p1", "b1_o1", "b1_x9"}
	expectedLabel := []string{"Jan van der Berg", "Koninklijke Akademie", "[MISSING:b1_x9]"}

	if !reflect.DeepEqual(event[FieldParticipantsGlobal], expectedGlobal) {
		t.Errorf("Expected %v, got %v", expectedGlobal, event[FieldParticipantsGlobal])
	}
	if !reflect.DeepEqual(event[FieldParticipantsLabel], expectedLabel) {
		t.Errorf("Expected %v, got %v", expectedLabel, event[FieldParticipantsLabel])
	}
}

func TestFlattener_Relations(t *testing.T) {
	out := NewFlattener(nil).Flatten(sampleBulletins())

	if out.Count(RelationsKey) != 1 {
		t.Fatalf("Expected 1 relation, got %d", out.Count(RelationsKey))
	}
	rel := out.Relations[0]
	if rel["source_label"] != "Jan van der Berg" || rel["target_label"] != "Koninklijke Akademie" {
		t.Errorf("Unexpected relation labels: %v", rel)
	}
	if rel["relation_type"] != "member_of" || rel["certainty"] != 0.9 {
		t.Errorf("Unexpected relation fields: %v", rel)
	}

	// one bad person, three bad relations
	if out.Skipped != 4 {
		t.Errorf("Expected 4 skipped items, got %d", out.Skipped)
	}
	// plus the unresolved participant
	if len(out.Warnings) != 5 {
		t.Errorf("Expected 5 warnings, got %d: %v", len(out.Warnings), out.Warnings)
	}
}

func TestFlattener_DoesNotModifyInput(t *testing.T) {
	bulletins := sampleBulletins()
	NewFlattener(nil).Flatten(bulletins)

	person := bulletins[0].Output["people"].([]any)[0].(map[string]any)
	if _, ok := person[FieldCanonicalName]; ok {
		t.Error("Expected input entity to stay untouched")
	}
}

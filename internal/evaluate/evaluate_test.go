package evaluate

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func span(start, end int, typ string) Span {
	return Span{Start: start, End: end, Type: typ}
}

func TestReadPredictions(t *testing.T) {
	input := `{"id": "d1", "valid": true, "parsed": {"entities": [{"start": 0, "end": 3, "type": "PER"}, {"start": 0, "end": 3, "type": "PER"}, {"start": 5, "end": 9, "type": "ORG"}]}}
{"id": "d2", "valid": false, "parsed": "{\"entities\": [{\"start\": 1, \"end\": 2, \"type\": \"LOC\",}]}"}
{"id": "d3", "parsed": null}
{"id": "d4", "valid": "yes", "parsed": {"entities": [{"start": "x", "end": 2, "type": "PER"}, {"start": 1, "end": 2}]}}
`

	preds, warnings, err := ReadPredictions(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadPredictions failed: %v", err)
	}
	if len(preds) != 4 {
		t.Fatalf("Expected 4 predictions, got %d", len(preds))
	}

	want := []Prediction{
		{ID: "d1", Valid: true, Spans: []Span{span(0, 3, "PER"), span(5, 9, "ORG")}},
		{ID: "d2", Valid: false, Spans: []Span{span(1, 2, "LOC")}},
		{ID: "d3", Valid: false},
		{ID: "d4", Valid: true},
	}
	for i := range want {
		if !reflect.DeepEqual(preds[i], want[i]) {
			t.Errorf("Prediction %d: expected %+v, got %+v", i, want[i], preds[i])
		}
	}

	if len(warnings) != 2 {
		t.Errorf("Expected 2 warnings for malformed entities, got %v", warnings)
	}
}

func TestLoadPredictions_MissingFile(t *testing.T) {
	_, _, err := LoadPredictions(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSchemaValidityRate(t *testing.T) {
	tests := []struct {
		name  string
		preds []Prediction
		want  float64
	}{
		{name: "empty", preds: nil, want: 0},
		{name: "all valid", preds: []Prediction{{Valid: true}, {Valid: true}}, want: 1},
		{name: "half", preds: []Prediction{{Valid: true}, {}, {Valid: true}, {}}, want: 0.5},
		{name: "none", preds: []Prediction{{}, {}, {}}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SchemaValidityRate(tt.preds); !approx(got, tt.want) {
				t.Errorf("SchemaValidityRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntityF1(t *testing.T) {
	preds := []Prediction{
		{ID: "a", Spans: []Span{span(0, 3, "PER"), span(5, 9, "ORG")}},
		{ID: "b", Spans: []Span{span(1, 2, "PER")}}, // no gold document
	}
	gold := []Prediction{
		{ID: "a", Spans: []Span{span(0, 3, "PER"), span(10, 12, "LOC")}},
		{ID: "c", Spans: []Span{span(0, 1, "PER")}}, // never predicted
	}

	got := EntityF1(preds, gold)

	if got.TruePositives != 1 || got.FalsePositives != 2 || got.FalseNegatives != 1 {
		t.Fatalf("Expected tp=1 fp=2 fn=1, got %+v", got)
	}
	if !approx(got.Precision, 1.0/3) {
		t.Errorf("Precision = %v, want 1/3", got.Precision)
	}
	if !approx(got.Recall, 0.5) {
		t.Errorf("Recall = %v, want 0.5", got.Recall)
	}
	if !approx(got.F1, 0.4) {
		t.Errorf("F1 = %v, want 0.4", got.F1)
	}
}

func TestEntityF1_TypeMustMatch(t *testing.T) {
	preds := []Prediction{{ID: "a", Spans: []Span{span(0, 3, "ORG")}}}
	gold := []Prediction{{ID: "a", Spans: []Span{span(0, 3, "PER")}}}

	if got := EntityF1(preds, gold); got.F1 != 0 || got.TruePositives != 0 {
		t.Errorf("Expected no match across types, got %+v", got)
	}
}

func TestEntityF1_Empty(t *testing.T) {
	got := EntityF1(nil, nil)
	if got != (F1Score{}) {
		t.Errorf("Expected zero score, got %+v", got)
	}
}

func TestEntityF1_LaterDuplicateGoldWins(t *testing.T) {
	preds := []Prediction{{ID: "a", Spans: []Span{span(0, 3, "PER")}}}
	gold := []Prediction{
		{ID: "a", Spans: []Span{span(4, 5, "LOC")}},
		{ID: "a", Spans: []Span{span(0, 3, "PER")}},
	}

	if got := EntityF1(preds, gold); !approx(got.F1, 1) {
		t.Errorf("Expected F1 1 against the later gold line, got %+v", got)
	}
}

func TestAgreement(t *testing.T) {
	a := []Prediction{
		{ID: "x1", Spans: []Span{span(0, 3, "PER"), span(5, 9, "ORG")}},
		{ID: "x2"},
		{ID: "x3", Spans: []Span{span(0, 1, "PER")}}, // not in b
	}
	b := []Prediction{
		{ID: "x1", Spans: []Span{span(0, 3, "PER")}},
		{ID: "x2"},
		{ID: "x4", Spans: []Span{span(0, 1, "PER")}},
	}

	got := Agreement(a, b)

	if got.Matched != 2 {
		t.Errorf("Matched = %d, want 2", got.Matched)
	}
	// (2*1/3 + 1) / 2
	if !approx(got.Score, 5.0/6) {
		t.Errorf("Score = %v, want 5/6", got.Score)
	}
}

func TestAgreement_NothingShared(t *testing.T) {
	a := []Prediction{{ID: "x1", Spans: []Span{span(0, 1, "PER")}}}
	b := []Prediction{{ID: "y1", Spans: []Span{span(0, 1, "PER")}}}

	if got := Agreement(a, b); got.Score != 0 || got.Matched != 0 {
		t.Errorf("Expected zero agreement, got %+v", got)
	}
}

func TestAgreement_Identical(t *testing.T) {
	a := []Prediction{
		{ID: "x1", Spans: []Span{span(0, 3, "PER"), span(5, 9, "ORG")}},
		{ID: "x2", Spans: []Span{span(2, 4, "LOC")}},
	}

	if got := Agreement(a, a); !approx(got.Score, 1) {
		t.Errorf("Expected agreement 1 with itself, got %v", got.Score)
	}
}

func TestReport(t *testing.T) {
	preds := []Prediction{
		{ID: "a", Valid: true, Spans: []Span{span(0, 3, "PER")}},
		{ID: "b", Spans: []Span{span(1, 2, "LOC")}},
	}

	report := NewReport(preds)
	if report.Predictions != 2 || !approx(report.SchemaValidity, 0.5) {
		t.Errorf("Unexpected base report: %+v", report)
	}
	if report.EntityF1 != nil || report.Agreement != nil {
		t.Error("Optional metrics should be absent until requested")
	}

	report.WithGold(preds, preds).WithOther(preds, preds[:1])
	if report.EntityF1 == nil || !approx(report.EntityF1.F1, 1) {
		t.Errorf("Expected F1 1 against itself, got %+v", report.EntityF1)
	}
	if report.Agreement == nil || report.Agreement.Matched != 1 {
		t.Errorf("Expected one shared document, got %+v", report.Agreement)
	}
}

func TestLoadPredictions_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preds.jsonl")
	content := `{"id": 1, "valid": true, "parsed": {"entities": [{"start": 0, "end": 4, "type": "PER"}]}}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	preds, _, err := LoadPredictions(path)
	if err != nil {
		t.Fatalf("LoadPredictions failed: %v", err)
	}
	if len(preds) != 1 || preds[0].ID != "1" || len(preds[0].Spans) != 1 {
		t.Errorf("Unexpected predictions: %+v", preds)
	}
}

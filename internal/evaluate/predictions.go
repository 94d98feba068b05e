// Package evaluate scores extraction predictions against a gold set or
// against another model's predictions.
package evaluate

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/concordia/internal/extract"
)

// ParsedField holds the parsed extraction output of each prediction line
const ParsedField = "parsed"

// ValidField marks whether the model output passed schema checks
const ValidField = "valid"

// Span is one labelled entity mention
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Type  string `json:"type"`
}

// Prediction is one evaluated document. Spans hold no duplicates.
type Prediction struct {
	ID    string
	Valid bool
	Spans []Span
}

// LoadPredictions reads predictions from a JSONL file
func LoadPredictions(path string) ([]Prediction, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open predictions: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadPredictions(f)
}

// ReadPredictions reads one prediction per JSONL line. The parsed field may
// be an object or a string holding (possibly malformed) JSON.
func ReadPredictions(r io.Reader) ([]Prediction, []string, error) {
	bulletins, warnings, err := extract.ReadBulletins(r, ParsedField)
	if err != nil {
		return nil, nil, err
	}
	preds, more := FromBulletins(bulletins)
	return preds, append(warnings, more...), nil
}

// FromBulletins converts bulletins into predictions. Entities without an
// integral start, end and a type are skipped with a warning.
func FromBulletins(bulletins []extract.Bulletin) ([]Prediction, []string) {
	preds := make([]Prediction, 0, len(bulletins))
	var warnings []string

	for _, b := range bulletins {
		pred := Prediction{ID: b.ID, Valid: truthy(b.Fields[ValidField])}

		entities, _ := b.Output["entities"].([]any)
		seen := make(map[Span]bool, len(entities))
		for i, item := range entities {
			span, ok := toSpan(item)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("prediction %s: entity %d is not a span", b.ID, i))
				continue
			}
			if seen[span] {
				continue
			}
			seen[span] = true
			pred.Spans = append(pred.Spans, span)
		}
		sortSpans(pred.Spans)
		preds = append(preds, pred)
	}
	return preds, warnings
}

func toSpan(item any) (Span, bool) {
	entity, ok := item.(map[string]any)
	if !ok {
		return Span{}, false
	}
	start, ok := toInt(entity["start"])
	if !ok {
		return Span{}, false
	}
	end, ok := toInt(entity["end"])
	if !ok {
		return Span{}, false
	}
	typ, ok := entity["type"].(string)
	if !ok || strings.TrimSpace(typ) == "" {
		return Span{}, false
	}
	return Span{Start: start, End: end, Type: typ}, true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	case int:
		return n, true
	}
	return 0, false
}

// truthy follows the loose truth test extraction tools write "valid" with
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	}
	return true
}

func sortSpans(spans []Span) {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		if spans[i].End != spans[j].End {
			return spans[i].End < spans[j].End
		}
		return spans[i].Type < spans[j].Type
	})
}

// byID indexes predictions by id; a later duplicate replaces an earlier one
func byID(preds []Prediction) map[string]Prediction {
	index := make(map[string]Prediction, len(preds))
	for _, p := range preds {
		index[p.ID] = p
	}
	return index
}

func spanSet(spans []Span) map[Span]bool {
	set := make(map[Span]bool, len(spans))
	for _, s := range spans {
		set[s] = true
	}
	return set
}

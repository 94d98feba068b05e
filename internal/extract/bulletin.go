// Package extract flattens per-bulletin entity extraction output into flat
// record collections, one per entity type, ready for resolution.
package extract

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/ppiankov/concordia/internal/model"
)

// DefaultOutputField holds the extraction output inside each input line
const DefaultOutputField = "raw_output"

// UnknownBulletin is used when an input line has no id
const UnknownBulletin = "UNKNOWN_BULLETIN"

// Bulletin is one extraction result: a source document id and the entities
// found in it
type Bulletin struct {
	ID     string
	Output map[string]any
	Fields map[string]any // The whole input line
}

// ReadBulletins reads one bulletin per JSONL line. The output field may be a
// JSON object or a string holding JSON; malformed JSON strings are repaired
// before parsing. Lines whose output cannot be recovered yield a bulletin
// with an empty output and a warning.
func ReadBulletins(r io.Reader, field string) ([]Bulletin, []string, error) {
	if field == "" {
		field = DefaultOutputField
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 32<<20)

	var bulletins []Bulletin
	var warnings []string
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var doc map[string]any
		if err := json.Unmarshal(text, &doc); err != nil {
			return nil, nil, fmt.Errorf("line %d: %v: %w", line, err, model.ErrInvalidInput)
		}

		id := idString(doc["id"])
		if id == "" {
			id = UnknownBulletin
		}

		output, err := parseOutput(doc[field])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("bulletin %s: unreadable %s: %v", id, field, err))
		}
		bulletins = append(bulletins, Bulletin{ID: id, Output: output, Fields: doc})
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan input: %w", err)
	}
	return bulletins, warnings, nil
}

// parseOutput turns the raw output value into an object. It never returns
// a nil map.
func parseOutput(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return val, nil
	case string:
		return parseOutputString(val)
	}
	return map[string]any{}, fmt.Errorf("unexpected type %T", v)
}

func parseOutputString(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]any{}, nil
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err == nil && out != nil {
		return out, nil
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return map[string]any{}, fmt.Errorf("repair json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil || out == nil {
		return map[string]any{}, fmt.Errorf("repaired output is not an object")
	}
	return out, nil
}

// idString renders an id value as text. Whole numbers lose their decimal
// point; missing ids become "".
func idString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

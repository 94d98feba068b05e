// Package normalize turns raw entity names into a comparison form.
package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ppiankov/concordia/internal/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Func maps a raw name to its comparison form
type Func func(string) string

// decomposer splits accented runes and drops the combining marks. NFKD alone
// keeps the marks as separate runes. Chains carry buffers, so each call
// builds its own.
func decomposer() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Map(unicode.ToLower))
}

// Normalize lower-cases, strips diacritics, keeps only a-z, 0-9 and spaces,
// and collapses whitespace
func Normalize(name string) string {
	lowered := strings.ToLower(name)
	decomposed, _, err := transform.String(decomposer(), lowered)
	if err != nil {
		decomposed = lowered
	}

	var buf strings.Builder
	buf.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			buf.WriteRune(r)
		case unicode.IsSpace(r):
			buf.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(buf.String()), " ")
}

// FromRecord returns the string value of the name field, failing with
// model.ErrInvalidInput when it is missing, null or not a string
func FromRecord(record model.Record, field string) (string, error) {
	raw, ok := record[field]
	if !ok {
		return "", fmt.Errorf("%w: missing name field %q", model.ErrInvalidInput, field)
	}
	if raw == nil {
		return "", fmt.Errorf("%w: name field %q is null", model.ErrInvalidInput, field)
	}
	name, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: name field %q has type %T, want string", model.ErrInvalidInput, field, raw)
	}
	return name, nil
}

// Names extracts the name field of every record before any scoring starts.
// The first bad record aborts the whole run.
func Names(records []model.Record, field string) ([]string, error) {
	names := make([]string, len(records))
	for i, record := range records {
		name, err := FromRecord(record, field)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		names[i] = name
	}
	return names, nil
}

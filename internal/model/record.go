package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Output fields added to every resolved record
const (
	FieldClusterID  = "cluster_id"
	FieldClusterRep = "cluster_rep"
)

// Record is one flat entity record (string keys to scalar, list or nil values)
type Record map[string]any

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	out := make(Record, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the record's field names in sorted order
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Assignment maps a record index to its cluster id
type Assignment []int

// Clusters returns cluster ids in order of first appearance together with
// the member indices of each cluster
func (a Assignment) Clusters() ([]int, map[int][]int) {
	order := make([]int, 0)
	members := make(map[int][]int)
	for idx, id := range a {
		if _, seen := members[id]; !seen {
			order = append(order, id)
		}
		members[id] = append(members[id], idx)
	}
	return order, members
}

// Count returns the number of distinct clusters
func (a Assignment) Count() int {
	seen := make(map[int]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// IsNull reports whether a value carries no data
func IsNull(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

// ValueKey returns a canonical comparison key for a scalar value
func ValueKey(v any) string {
	switch val := v.(type) {
	case string:
		return "s:" + val
	case fmt.Stringer:
		return fmt.Sprintf("t:%T:", val) + val.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("v:%v", v)
	}
	return "j:" + string(data)
}

// ParseList interprets a list-valued attribute. It accepts native lists,
// JSON arrays and Python-style list literals such as "['a', 'b']" as
// written by tabular exporters. Any other scalar becomes a one-element list.
func ParseList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), val...)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if IsNull(item) {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return parseListLiteral(val)
	default:
		return []string{fmt.Sprint(val)}
	}
}

func parseListLiteral(s string) []string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return []string{trimmed}
	}

	var items []any
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		return ParseList(items)
	}

	// Python repr: quoted items, comma separated
	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" {
		return []string{}
	}
	if !strings.ContainsAny(inner, `'"`) {
		var out []string
		for _, part := range strings.Split(inner, ",") {
			if item := strings.TrimSpace(part); item != "" {
				out = append(out, item)
			}
		}
		return out
	}

	var out []string
	var quote rune
	var buf strings.Builder
	escaped := false
	for _, r := range inner {
		switch {
		case quote == 0:
			if r == '\'' || r == '"' {
				quote = r
				buf.Reset()
			}
		case escaped:
			buf.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == quote:
			out = append(out, buf.String())
			quote = 0
		default:
			buf.WriteRune(r)
		}
	}
	return out
}

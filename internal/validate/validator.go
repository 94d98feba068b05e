// Package validate checks resolved clusters for attributes their member
// records disagree on.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/concordia/internal/model"
)

// Validator reports attribute conflicts inside clusters
type Validator struct {
	nameField  string
	classifier *AttributeClassifier
	logger     *zap.Logger
}

// NewValidator creates a new validator. Attributes named in listValued are
// compared as sets; every other attribute is compared as a scalar.
func NewValidator(nameField string, listValued []string) *Validator {
	return &Validator{
		nameField:  nameField,
		classifier: NewAttributeClassifier(listValued),
		logger:     zap.NewNop(),
	}
}

// WithLogger sets the logger used for per-cluster diagnostics
func (v *Validator) WithLogger(logger *zap.Logger) *Validator {
	if logger != nil {
		v.logger = logger
	}
	return v
}

// Validate compares the given attributes inside every cluster. Conflicts are
// ordered by the first appearance of their cluster, then by the order of
// attributes. Disagreement is reported, never returned as an error.
func (v *Validator) Validate(records []model.Record, assignment model.Assignment, attributes []string) ([]model.ConflictRecord, error) {
	if strings.TrimSpace(v.nameField) == "" {
		return nil, fmt.Errorf("name field is empty: %w", model.ErrInvalidConfiguration)
	}
	for _, attr := range attributes {
		if model.IsNameAttribute(attr, v.nameField) {
			return nil, fmt.Errorf("cannot validate name attribute %q: %w", attr, model.ErrInvalidConfiguration)
		}
	}
	if len(records) != len(assignment) {
		return nil, fmt.Errorf("%d records but %d cluster labels: %w", len(records), len(assignment), model.ErrInvalidInput)
	}

	conflicts := []model.ConflictRecord{}
	order, members := assignment.Clusters()

	for _, id := range order {
		for _, attr := range attributes {
			var values []any
			var ok bool
			if v.classifier.Classify(attr) == KindList {
				values, ok = listConflict(records, members[id], attr)
			} else {
				values, ok = scalarConflict(records, members[id], attr)
			}
			if !ok {
				continue
			}

			v.logger.Debug("attribute conflict",
				zap.Int("cluster_id", id),
				zap.String("attribute", attr),
				zap.Int("values", len(values)),
			)
			conflicts = append(conflicts, model.ConflictRecord{
				ClusterID:         id,
				Attribute:         attr,
				ConflictingValues: values,
			})
		}
	}

	return conflicts, nil
}

// scalarConflict returns the distinct non-null values in first-seen order
// when there is more than one
func scalarConflict(records []model.Record, members []int, attr string) ([]any, bool) {
	var distinct []any
	seen := make(map[string]bool)

	for _, idx := range members {
		value := records[idx][attr]
		if model.IsNull(value) {
			continue
		}
		key := model.ValueKey(value)
		if seen[key] {
			continue
		}
		seen[key] = true
		distinct = append(distinct, value)
	}

	return distinct, len(distinct) > 1
}

// listConflict returns every contributing record's set when the sets have
// no element in common. Empty sets count as missing data.
func listConflict(records []model.Record, members []int, attr string) ([]any, bool) {
	var sets []any
	var common map[string]bool

	for _, idx := range members {
		value := records[idx][attr]
		if model.IsNull(value) {
			continue
		}
		set := uniq(model.ParseList(value))
		if len(set) == 0 {
			continue
		}
		sets = append(sets, set)

		if common == nil {
			common = make(map[string]bool, len(set))
			for _, item := range set {
				common[item] = true
			}
			continue
		}
		next := make(map[string]bool)
		for _, item := range set {
			if common[item] {
				next[item] = true
			}
		}
		common = next
	}

	if len(sets) < 2 || len(common) > 0 {
		return nil, false
	}
	return sets, true
}

func uniq(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

// ConflictedClusters returns the ids of clusters with at least one conflict
func ConflictedClusters(conflicts []model.ConflictRecord) map[int]bool {
	ids := make(map[int]bool)
	for _, c := range conflicts {
		ids[c.ClusterID] = true
	}
	return ids
}

// AssignmentFromField rebuilds a cluster assignment from records that already
// carry their cluster id, e.g. a previously annotated export
func AssignmentFromField(records []model.Record, field string) (model.Assignment, error) {
	assignment := make(model.Assignment, len(records))
	for i, record := range records {
		id, err := clusterID(record[field])
		if err != nil {
			return nil, fmt.Errorf("record %d: field %q: %w", i, field, err)
		}
		assignment[i] = id
	}
	return assignment, nil
}

func clusterID(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int(v), nil
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), nil
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, nil
		}
	case nil:
		return 0, fmt.Errorf("missing cluster id: %w", model.ErrInvalidInput)
	}
	return 0, fmt.Errorf("cluster id %v is not an integer: %w", value, model.ErrInvalidInput)
}

package cluster

import (
	"fmt"
	"unicode/utf8"

	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/normalize"
)

// SelectRepresentatives picks the canonical name of every cluster: the
// longest raw name by character count, ties going to the earliest record.
func SelectRepresentatives(records []model.Record, assignment model.Assignment, nameField string) (map[int]string, error) {
	if len(records) != len(assignment) {
		return nil, fmt.Errorf("%d records but %d cluster labels: %w", len(records), len(assignment), model.ErrInvalidInput)
	}

	reps := make(map[int]string)
	lengths := make(map[int]int)
	for i, record := range records {
		name, err := normalize.FromRecord(record, nameField)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		id := assignment[i]
		l := utf8.RuneCountInString(name)
		if best, seen := lengths[id]; !seen || l > best {
			reps[id] = name
			lengths[id] = l
		}
	}

	return reps, nil
}

// Annotate returns copies of records carrying their cluster id and the
// cluster's representative name. The input records are not modified.
func Annotate(records []model.Record, assignment model.Assignment, reps map[int]string) ([]model.Record, error) {
	if len(records) != len(assignment) {
		return nil, fmt.Errorf("%d records but %d cluster labels: %w", len(records), len(assignment), model.ErrInvalidInput)
	}

	out := make([]model.Record, len(records))
	for i, record := range records {
		id := assignment[i]
		rep, ok := reps[id]
		if !ok {
			return nil, fmt.Errorf("cluster %d has no representative: %w", id, model.ErrInvalidInput)
		}

		annotated := record.Clone()
		annotated[model.FieldClusterID] = id
		annotated[model.FieldClusterRep] = rep
		out[i] = annotated
	}

	return out, nil
}

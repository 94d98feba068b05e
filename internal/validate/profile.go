package validate

import (
	"fmt"

	"github.com/ppiankov/concordia/internal/model"
)

// ClusterProfile is one cluster's representative and the distinct values
// an attribute takes across its members
type ClusterProfile struct {
	ClusterID      int    `json:"cluster_id"`
	Representative string `json:"cluster_rep"`
	Attribute      string `json:"attribute"`
	Values         []any  `json:"values"`
}

// Profiles looks up attribute for every cluster, in order of first
// appearance. List attributes contribute their items, scalars their
// distinct non-null values. The representative is read from the first
// member's cluster_rep, falling back to its name field.
func (v *Validator) Profiles(records []model.Record, assignment model.Assignment, attribute string) ([]ClusterProfile, error) {
	if len(records) != len(assignment) {
		return nil, fmt.Errorf("%d records but %d cluster labels: %w", len(records), len(assignment), model.ErrInvalidInput)
	}

	list := v.classifier.Classify(attribute) == KindList
	order, members := assignment.Clusters()

	profiles := make([]ClusterProfile, 0, len(order))
	for _, id := range order {
		idx := members[id]
		profile := ClusterProfile{
			ClusterID:      id,
			Representative: v.representative(records[idx[0]]),
			Attribute:      attribute,
			Values:         []any{},
		}

		seen := make(map[string]bool)
		add := func(value any) {
			key := model.ValueKey(value)
			if !seen[key] {
				seen[key] = true
				profile.Values = append(profile.Values, value)
			}
		}

		for _, i := range idx {
			value := records[i][attribute]
			if model.IsNull(value) {
				continue
			}
			if !list {
				add(value)
				continue
			}
			for _, item := range model.ParseList(value) {
				add(item)
			}
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}

func (v *Validator) representative(record model.Record) string {
	if rep, ok := record[model.FieldClusterRep].(string); ok && rep != "" {
		return rep
	}
	name, _ := record[v.nameField].(string)
	return name
}

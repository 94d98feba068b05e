package validate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/concordia/internal/model"
)

func TestValidate_ListIntersectionNoConflict(t *testing.T) {
	records := []model.Record{
		{"id": 1, "cluster_id": 1, "occupation": []any{"farmer"}},
		{"id": 2, "cluster_id": 1, "occupation": []any{"farmer", "mayor"}},
	}

	conflicts, err := NewValidator("name", []string{"occupation"}).
		Validate(records, model.Assignment{1, 1}, []string{"occupation"})

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestValidate_ScalarConflict(t *testing.T) {
	records := []model.Record{
		{"id": 1, "cluster_id": 1, "nationality": "Dutch"},
		{"id": 2, "cluster_id": 1, "nationality": "Belgian"},
	}

	conflicts, err := NewValidator("name", nil).
		Validate(records, model.Assignment{1, 1}, []string{"nationality"})

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictRecord{
		ClusterID:         1,
		Attribute:         "nationality",
		ConflictingValues: []any{"Dutch", "Belgian"},
	}, conflicts[0])
}

func TestValidate_ScalarSoundness(t *testing.T) {
	records := []model.Record{
		{"nationality": "Dutch"},
		{"nationality": nil},
		{"nationality": "Dutch"},
		{"nationality": ""},
	}

	conflicts, err := NewValidator("name", nil).
		Validate(records, model.Assignment{1, 1, 1, 1}, []string{"nationality", "birth_year"})

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestValidate_ListDisjointSets(t *testing.T) {
	records := []model.Record{
		{"occupation": "['baker', 'mayor']"},
		{"occupation": nil},
		{"occupation": `["farmer"]`},
		{"occupation": "[]"},
	}

	conflicts, err := NewValidator("name", []string{"occupation"}).
		Validate(records, model.Assignment{1, 1, 1, 1}, []string{"occupation"})

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, []any{[]string{"baker", "mayor"}, []string{"farmer"}}, conflicts[0].ConflictingValues)
}

func TestValidate_ScalarJSONNumberDiffersFromString(t *testing.T) {
	records := []model.Record{
		{"birth_year": json.Number("1901")},
		{"birth_year": "1901"},
	}

	conflicts, err := NewValidator("name", nil).
		Validate(records, model.Assignment{1, 1}, []string{"birth_year"})

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, []any{json.Number("1901"), "1901"}, conflicts[0].ConflictingValues)
}

// An empty list says nothing about the entity, so it neither conflicts with
// a populated list nor joins the reported sets.
func TestValidate_EmptyListIsMissingData(t *testing.T) {
	tests := []struct {
		desc  string
		empty any
	}{
		{desc: "decoded json list", empty: []any{}},
		{desc: "list literal", empty: "[]"},
		{desc: "native strings", empty: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			records := []model.Record{
				{"occupation": []any{"farmer"}},
				{"occupation": tt.empty},
			}

			conflicts, err := NewValidator("name", []string{"occupation"}).
				Validate(records, model.Assignment{1, 1}, []string{"occupation"})

			require.NoError(t, err)
			assert.Empty(t, conflicts)
		})
	}

	t.Run("excluded from reported sets", func(t *testing.T) {
		records := []model.Record{
			{"occupation": []any{"farmer"}},
			{"occupation": []any{}},
			{"occupation": []any{"mayor"}},
		}

		conflicts, err := NewValidator("name", []string{"occupation"}).
			Validate(records, model.Assignment{1, 1, 1}, []string{"occupation"})

		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, []any{[]string{"farmer"}, []string{"mayor"}}, conflicts[0].ConflictingValues)
	})
}

func TestValidate_ListValueAsBareString(t *testing.T) {
	records := []model.Record{
		{"occupation": "farmer"},
		{"occupation": []string{"mayor", "farmer"}},
	}

	conflicts, err := NewValidator("name", []string{"occupation"}).
		Validate(records, model.Assignment{1, 1}, []string{"occupation"})

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestValidate_ScalarTreatsListsAsValues(t *testing.T) {
	// occupation is not configured as list-valued here
	records := []model.Record{
		{"occupation": []any{"farmer"}},
		{"occupation": []any{"farmer", "mayor"}},
	}

	conflicts, err := NewValidator("name", nil).
		Validate(records, model.Assignment{1, 1}, []string{"occupation"})

	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestValidate_Ordering(t *testing.T) {
	records := []model.Record{
		{"party": "A", "nationality": "Dutch"},   // cluster 2
		{"party": "B", "nationality": "Dutch"},   // cluster 1
		{"party": "C", "nationality": "Belgian"}, // cluster 2
		{"party": "D", "nationality": "German"},  // cluster 1
	}

	conflicts, err := NewValidator("name", nil).
		Validate(records, model.Assignment{2, 1, 2, 1}, []string{"party", "nationality"})

	require.NoError(t, err)
	require.Len(t, conflicts, 4)

	got := make([][2]any, len(conflicts))
	for i, c := range conflicts {
		got[i] = [2]any{c.ClusterID, c.Attribute}
	}
	assert.Equal(t, [][2]any{
		{2, "party"}, {2, "nationality"},
		{1, "party"}, {1, "nationality"},
	}, got)
}

func TestValidate_SingletonsNeverConflict(t *testing.T) {
	records := []model.Record{{"nationality": "Dutch"}, {"nationality": "Belgian"}}

	conflicts, err := NewValidator("name", nil).
		Validate(records, model.Assignment{1, 2}, []string{"nationality"})

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestValidate_RejectsNameAttributes(t *testing.T) {
	v := NewValidator("canonical_name", nil)
	records := []model.Record{{"canonical_name": "Jan"}}

	for _, attr := range []string{"canonical_name", "name"} {
		_, err := v.Validate(records, model.Assignment{1}, []string{"nationality", attr})
		assert.True(t, errors.Is(err, model.ErrInvalidConfiguration), "attribute %q", attr)
	}

	_, err := NewValidator(" ", nil).Validate(records, model.Assignment{1}, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidConfiguration))
}

func TestValidate_LengthMismatch(t *testing.T) {
	_, err := NewValidator("name", nil).Validate([]model.Record{{}}, model.Assignment{1, 2}, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestConflictedClusters(t *testing.T) {
	ids := ConflictedClusters([]model.ConflictRecord{
		{ClusterID: 3, Attribute: "a"},
		{ClusterID: 3, Attribute: "b"},
		{ClusterID: 7, Attribute: "a"},
	})
	assert.Equal(t, map[int]bool{3: true, 7: true}, ids)
}

func TestAssignmentFromField(t *testing.T) {
	records := []model.Record{
		{"cluster_id": 1},
		{"cluster_id": 2.0},
		{"cluster_id": " 3 "},
		{"cluster_id": json.Number("4")},
		{"cluster_id": int64(5)},
	}

	assignment, err := AssignmentFromField(records, "cluster_id")

	require.NoError(t, err)
	assert.Equal(t, model.Assignment{1, 2, 3, 4, 5}, assignment)
}

func TestAssignmentFromField_Invalid(t *testing.T) {
	for _, value := range []any{nil, 1.5, "x", []any{1}} {
		_, err := AssignmentFromField([]model.Record{{"cluster_id": value}}, "cluster_id")
		assert.True(t, errors.Is(err, model.ErrInvalidInput), "value %v", value)
	}
}

func TestProfiles(t *testing.T) {
	records := []model.Record{
		{"name": "Jan van der Berg", "cluster_rep": "Jan van der Berg", "occupation": "['farmer', 'mayor']", "nationality": "Dutch"},
		{"name": "Anna de Vries", "cluster_rep": "Anna de Vries", "occupation": nil, "nationality": nil},
		{"name": "J. van der Berg", "cluster_rep": "Jan van der Berg", "occupation": []any{"farmer"}, "nationality": "Belgian"},
	}
	assignment := model.Assignment{1, 2, 1}
	v := NewValidator("name", []string{"occupation"})

	occupations, err := v.Profiles(records, assignment, "occupation")
	require.NoError(t, err)
	assert.Equal(t, []ClusterProfile{
		{ClusterID: 1, Representative: "Jan van der Berg", Attribute: "occupation", Values: []any{"farmer", "mayor"}},
		{ClusterID: 2, Representative: "Anna de Vries", Attribute: "occupation", Values: []any{}},
	}, occupations)

	nationalities, err := v.Profiles(records, assignment, "nationality")
	require.NoError(t, err)
	assert.Equal(t, []any{"Dutch", "Belgian"}, nationalities[0].Values)
}

func TestProfiles_RepresentativeFallsBackToName(t *testing.T) {
	records := []model.Record{{"name": "Piet Jansen", "party": "A"}}

	profiles, err := NewValidator("name", nil).Profiles(records, model.Assignment{1}, "party")

	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Piet Jansen", profiles[0].Representative)
	assert.Equal(t, []any{"A"}, profiles[0].Values)
}

func TestProfiles_LengthMismatch(t *testing.T) {
	_, err := NewValidator("name", nil).Profiles([]model.Record{{}}, model.Assignment{1, 2}, "party")
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

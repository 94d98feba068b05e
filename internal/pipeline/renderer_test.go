package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/concordia/internal/cluster"
	"github.com/ppiankov/concordia/internal/model"
)

func sampleReport() *model.Report {
	return &model.Report{
		RunID:        "run-1",
		Subject:      "people",
		Source:       "people.csv",
		RecordCount:  3,
		ClusterCount: 2,
		Settings:     model.ReportSettings{DistanceThreshold: 0.15, NameField: "canonical_name", Localized: true},
		Clusters: []model.ClusterSummary{
			{ID: 1, Representative: "Jan van der Berg", Members: []int{0, 1}, Names: []string{"Jan van der Berg", "J. van der Berg"}, HasConflict: true},
			{ID: 2, Representative: "Anna de Vries", Members: []int{2}, Names: []string{"Anna de Vries"}},
		},
		Conflicts: []model.ConflictRecord{
			{ClusterID: 1, Attribute: "nationality", ConflictingValues: []any{"Dutch", "Belgian"}},
		},
		Score: model.Score{
			Index:      75,
			Confidence: "low",
			Signals: []model.Signal{
				{Type: model.SignalConflictRate, Severity: model.SeverityCritical, Description: "Conflicting clusters: 1/1"},
			},
		},
	}
}

func TestRenderer_Markdown(t *testing.T) {
	md := NewRenderer(true).Markdown(sampleReport())

	assert.Contains(t, md, "# people")
	assert.Contains(t, md, "### 1. Jan van der Berg ⚠")
	assert.Contains(t, md, "- J. van der Berg (record 1)")
	assert.Contains(t, md, "1 record(s) remained singletons.")
	assert.Contains(t, md, "| 1 | nationality | Dutch; Belgian |")
	assert.Contains(t, md, "| conflict_rate | critical |")
	assert.Contains(t, md, "Clusters are inferred from name similarity alone")

	noFooter := NewRenderer(false).Markdown(sampleReport())
	assert.NotContains(t, noFooter, "Clusters are inferred")
}

func TestRenderer_RenderJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	require.NoError(t, NewRenderer(false).RenderJSON(sampleReport(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"conflicting_values": [`)
	assert.Contains(t, string(data), `"cluster_id": 1`)
}

func TestWriteCSV(t *testing.T) {
	records := []model.Record{
		{"name": "Jan", "cluster_id": 1, "cluster_rep": "Jan", "occupation": []any{"farmer"}, "year": 1901.0},
		{"name": "Piet", "cluster_id": 2, "cluster_rep": "Piet", "note": nil},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "name,note,occupation,year,cluster_id,cluster_rep", lines[0])
	assert.Equal(t, `Jan,,"[""farmer""]",1901,1,Jan`, lines[1])
	assert.Equal(t, "Piet,,,,2,Piet", lines[2])
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, []model.Record{{"name": "Jan"}, {"name": "Piet"}}))

	assert.Equal(t, "{\"name\":\"Jan\"}\n{\"name\":\"Piet\"}\n", buf.String())
}

func TestRenderer_RenderRecords_UnsupportedExtension(t *testing.T) {
	err := NewRenderer(false).RenderRecords(nil, filepath.Join(t.TempDir(), "out.xlsx"))
	assert.Error(t, err)
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", FormatCell(nil))
	assert.Equal(t, "1.5", FormatCell(1.5))
	assert.Equal(t, "3", FormatCell(3))
	assert.Equal(t, "true", FormatCell(true))
	assert.Equal(t, `["a","b"]`, FormatCell([]string{"a", "b"}))
}

func TestDendrogramText(t *testing.T) {
	tree := &cluster.Dendrogram{
		Leaves: 3,
		Merges: []cluster.Merge{
			{Left: 0, Right: 1, Distance: 0, Size: 2},
			{Left: 2, Right: 3, Distance: 0.79, Size: 3},
		},
	}

	text := DendrogramText(tree, []string{"Jan van der Berg", "J. van der Berg", ""})

	expected := "+ 0.7900 [3]\n" +
		"  - #2\n" +
		"  + 0.0000 [2]\n" +
		"    - Jan van der Berg (#0)\n" +
		"    - J. van der Berg (#1)\n"
	assert.Equal(t, expected, text)
	assert.Empty(t, DendrogramText(nil, nil))
}

func TestRenderer_RenderSummary(t *testing.T) {
	var buf bytes.Buffer

	NewRenderer(false).RenderSummary(&buf, sampleReport(), true)

	out := buf.String()
	assert.Contains(t, out, "people")
	assert.Contains(t, out, "Jan van der Berg")
	assert.Contains(t, out, "75/100")
}

package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/concordia/internal/cluster"
	"github.com/ppiankov/concordia/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e")).Width(16)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#c9d1d9"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d29922"))
	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f85149"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#30363d")).Padding(0, 1)
)

// Renderer writes resolution results to files and the terminal
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes a human-readable report
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// Markdown formats the report as Markdown
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	subject := report.Subject
	if subject == "" {
		subject = "Entity resolution"
	}
	fmt.Fprintf(&b, "# %s\n\n", subject)
	if report.Source != "" {
		fmt.Fprintf(&b, "- **Source:** `%s`\n", report.Source)
	}
	fmt.Fprintf(&b, "- **Run:** `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- **Resolved:** %s\n", report.ResolvedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- **Records:** %d\n", report.RecordCount)
	fmt.Fprintf(&b, "- **Clusters:** %d\n", report.ClusterCount)
	fmt.Fprintf(&b, "- **Distance threshold:** %.2f (name field `%s`, localized: %v)\n\n",
		report.Settings.DistanceThreshold, report.Settings.NameField, report.Settings.Localized)

	fmt.Fprintf(&b, "## Diagnostics\n\n")
	fmt.Fprintf(&b, "**Health index:** %d/100 (confidence: %s)\n\n", report.Score.Index, report.Score.Confidence)
	if len(report.Score.Signals) > 0 {
		b.WriteString("| Signal | Severity | Description |\n|---|---|---|\n")
		for _, s := range report.Score.Signals {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", s.Type, s.Severity, escapeCell(s.Description))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Clusters\n\n")
	merged := 0
	for _, c := range report.Clusters {
		if len(c.Members) < 2 {
			continue
		}
		merged++
		marker := ""
		if c.HasConflict {
			marker = " ⚠"
		}
		fmt.Fprintf(&b, "### %d. %s%s\n\n", c.ID, c.Representative, marker)
		for i, name := range c.Names {
			fmt.Fprintf(&b, "- %s (record %d)\n", name, c.Members[i])
		}
		b.WriteString("\n")
	}
	if merged == 0 {
		b.WriteString("_No records were merged._\n\n")
	}
	if singletons := len(report.Clusters) - merged; singletons > 0 {
		fmt.Fprintf(&b, "%d record(s) remained singletons.\n\n", singletons)
	}

	b.WriteString("## Conflicts\n\n")
	if len(report.Conflicts) == 0 {
		b.WriteString("_No attribute conflicts._\n")
	} else {
		b.WriteString("| Cluster | Attribute | Values |\n|---|---|---|\n")
		for _, c := range report.Conflicts {
			fmt.Fprintf(&b, "| %d | %s | %s |\n", c.ClusterID, c.Attribute, escapeCell(formatValues(c.ConflictingValues)))
		}
	}

	if r.includeFooter {
		b.WriteString("\n---\n\n")
		b.WriteString("_Clusters are inferred from name similarity alone. Conflicts flag disagreement; they do not decide which record is right._\n")
	}

	return b.String()
}

// RenderRecords writes annotated records as CSV or JSONL depending on the extension
func (r *Renderer) RenderRecords(records []model.Record, path string) error {
	var buf bytes.Buffer
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		err = WriteJSONL(&buf, records)
	case ".csv":
		err = WriteCSV(&buf, records)
	default:
		return fmt.Errorf("unsupported records file %q (want .csv or .jsonl)", path)
	}
	if err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

// WriteJSONL writes one JSON object per record
func WriteJSONL(w io.Writer, records []model.Record) error {
	enc := json.NewEncoder(w)
	for i, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return nil
}

// WriteCSV writes records with a header of every field seen. Cluster fields
// come last; lists and objects are written as JSON.
func WriteCSV(w io.Writer, records []model.Record) error {
	columns := Columns(records)

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(columns))
	for _, record := range records {
		for i, column := range columns {
			row[i] = FormatCell(record[column])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Columns returns the union of record fields in sorted order, with the
// cluster fields moved to the end
func Columns(records []model.Record) []string {
	seen := make(map[string]bool)
	for _, record := range records {
		for k := range record {
			seen[k] = true
		}
	}

	columns := make([]string, 0, len(seen))
	for k := range seen {
		if k != model.FieldClusterID && k != model.FieldClusterRep {
			columns = append(columns, k)
		}
	}
	sort.Strings(columns)

	for _, k := range []string{model.FieldClusterID, model.FieldClusterRep} {
		if seen[k] {
			columns = append(columns, k)
		}
	}
	return columns
}

// FormatCell renders a value for a tabular cell
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// RenderDendrogram writes the merge tree as indented text. labels holds one
// label per leaf.
func (r *Renderer) RenderDendrogram(tree *cluster.Dendrogram, labels []string, path string) error {
	return writeFile(path, []byte(DendrogramText(tree, labels)))
}

// DendrogramText formats the merge tree, one node per line, root first
func DendrogramText(tree *cluster.Dendrogram, labels []string) string {
	if tree == nil || len(tree.Merges) == 0 {
		return ""
	}

	var b strings.Builder
	var walk func(node, depth int)
	walk = func(node, depth int) {
		indent := strings.Repeat("  ", depth)
		if node < tree.Leaves {
			label := fmt.Sprintf("#%d", node)
			if node < len(labels) && labels[node] != "" {
				label = fmt.Sprintf("%s (#%d)", labels[node], node)
			}
			fmt.Fprintf(&b, "%s- %s\n", indent, label)
			return
		}
		m := tree.Merges[node-tree.Leaves]
		fmt.Fprintf(&b, "%s+ %.4f [%d]\n", indent, m.Distance, m.Size)
		walk(m.Left, depth+1)
		walk(m.Right, depth+1)
	}
	walk(tree.Leaves+len(tree.Merges)-1, 0)

	return b.String()
}

// RenderSummary prints a short styled summary of the report
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report, printClusters bool) {
	rows := []string{
		titleStyle.Render("Concordia: " + subjectOrDefault(report.Subject)),
		summaryRow("Records", strconv.Itoa(report.RecordCount)),
		summaryRow("Clusters", strconv.Itoa(report.ClusterCount)),
		summaryRow("Conflicts", strconv.Itoa(len(report.Conflicts))),
		summaryRow("Health index", fmt.Sprintf("%d/100 (%s)", report.Score.Index, report.Score.Confidence)),
	}

	for _, s := range report.Score.Signals {
		rows = append(rows, severityStyle(s.Severity).Render(fmt.Sprintf("• %s", s.Description)))
	}

	if printClusters {
		for _, c := range report.Clusters {
			if len(c.Members) < 2 {
				continue
			}
			line := fmt.Sprintf("%d. %s ← %s", c.ID, c.Representative, strings.Join(c.Names, " | "))
			if c.HasConflict {
				line = warningStyle.Render(line)
			}
			rows = append(rows, line)
		}
	}

	fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}

func summaryRow(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func severityStyle(severity model.SignalSeverity) lipgloss.Style {
	switch severity {
	case model.SeverityCritical:
		return dangerStyle
	case model.SeverityWarning:
		return warningStyle
	default:
		return infoStyle
	}
}

func subjectOrDefault(subject string) string {
	if subject == "" {
		return "records"
	}
	return subject
}

func formatValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = FormatCell(v)
	}
	return strings.Join(parts, "; ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

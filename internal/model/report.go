package model

import "time"

// Report represents the complete resolution report for one input collection
type Report struct {
	RunID      string    `json:"run_id"`      // Unique id of this resolution run
	Subject    string    `json:"subject"`     // Subject of the report (usually the input file name)
	Source     string    `json:"source"`      // Path the records were loaded from
	ResolvedAt time.Time `json:"resolved_at"` // When the run finished

	Settings ReportSettings `json:"settings"` // Options the run used

	RecordCount  int              `json:"record_count"`
	ClusterCount int              `json:"cluster_count"`
	Clusters     []ClusterSummary `json:"clusters"`
	Conflicts    []ConflictRecord `json:"conflicts"`

	Score Score `json:"score"` // Diagnostics for the clustering
}

// ReportSettings echoes the resolution options into the report
type ReportSettings struct {
	DistanceThreshold    float64  `json:"distance_threshold"`
	NameField            string   `json:"name_field"`
	Localized            bool     `json:"localized"`
	ListValuedAttributes []string `json:"list_valued_attributes,omitempty"`
	ValidatedAttributes  []string `json:"validated_attributes,omitempty"`
}

// ClusterSummary describes one resolved identity
type ClusterSummary struct {
	ID             int      `json:"cluster_id"`
	Representative string   `json:"representative"`
	Members        []int    `json:"members"`      // Record indices in input order
	Names          []string `json:"names"`        // Surface forms in input order
	HasConflict    bool     `json:"has_conflict"` // At least one validated attribute disagrees
}

// ConflictRecord reports disagreeing values of one attribute inside one cluster
type ConflictRecord struct {
	ClusterID         int    `json:"cluster_id"`
	Attribute         string `json:"attribute"`
	ConflictingValues []any  `json:"conflicting_values"`
}

// Score represents the transparent diagnostics breakdown
type Score struct {
	Index      int      `json:"index"`      // Overall clustering health (0-100)
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Degenerate bool     `json:"degenerate"` // Fewer than two records were clustered
	Signals    []Signal `json:"signals"`    // Diagnostic signals with transparent data
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`           // Signal classification
	Severity    SignalSeverity         `json:"severity"`       // info, warning, critical
	Description string                 `json:"description"`    // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"` // Transparent scoring data (formulas, inputs)
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalClusterReduction SignalType = "cluster_reduction" // How many records collapsed into shared identities
	SignalSingletonRatio   SignalType = "singleton_ratio"   // Share of records left alone
	SignalConflictRate     SignalType = "conflict_rate"     // Multi-member clusters with attribute disagreement
	SignalBoundaryMerges   SignalType = "boundary_merges"   // Merges decided close to the threshold
	SignalDegenerateInput  SignalType = "degenerate_input"  // Nothing to cluster
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// SettingsFromConfig builds the report settings echo
func SettingsFromConfig(cfg ResolutionConfig) ReportSettings {
	return ReportSettings{
		DistanceThreshold:    cfg.DistanceThreshold,
		NameField:            cfg.NameField,
		Localized:            cfg.Localized,
		ListValuedAttributes: cfg.ListValuedAttributes,
		ValidatedAttributes:  cfg.ValidatedAttributes,
	}
}

// Resolution pairs the annotated records with the report that describes them
type Resolution struct {
	Records []Record
	Report  *Report
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/concordia/internal/cluster"
	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/normalize"
	"github.com/ppiankov/concordia/internal/score"
	"github.com/ppiankov/concordia/internal/similarity"
	"github.com/ppiankov/concordia/internal/validate"
)

// Pipeline orchestrates one resolution run: names are normalized and
// scored, records are clustered, labelled and checked for conflicts
type Pipeline struct {
	loader    *Loader
	builder   *similarity.Builder
	validator *validate.Validator
	scorer    *score.Scorer
	renderer  *Renderer
	config    *model.Config
	logger    *zap.Logger
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		loader: NewLoader(),
		builder: similarity.NewBuilder(
			similarity.WithNormalizer(normalizerFor(cfg.Resolution)),
			similarity.WithWorkers(cfg.Concurrency.Workers),
			similarity.WithLogger(logger),
		),
		validator: validate.NewValidator(cfg.Resolution.NameField, cfg.Resolution.ListValuedAttributes).WithLogger(logger),
		scorer:    score.NewScorer(),
		renderer:  NewRenderer(cfg.Output.IncludeFooter),
		config:    cfg,
		logger:    logger,
	}
}

func normalizerFor(cfg model.ResolutionConfig) normalize.Func {
	if !cfg.Localized {
		return normalize.Normalize
	}
	if len(cfg.Particles) == 0 {
		return normalize.Localized
	}
	return normalize.NewLocalizer(normalize.NewParticleSet(cfg.Particles...)).Normalize
}

// Result contains everything one resolution run produced
type Result struct {
	Records    []model.Record // Annotated copies of the input records
	Assignment model.Assignment
	Dendrogram *cluster.Dendrogram // nil for fewer than two records
	Report     *model.Report
}

// Resolution returns the records and report in the form batch workers pass around
func (r *Result) Resolution() *model.Resolution {
	return &model.Resolution{Records: r.Records, Report: r.Report}
}

// Resolve clusters records by name and validates the configured attributes.
// The input records are not modified.
func (p *Pipeline) Resolve(ctx context.Context, records []model.Record) (*Result, error) {
	cfg := p.config.Resolution
	started := time.Now()

	// 1. Check configuration before touching the data
	if err := p.config.Validate(); err != nil {
		return nil, err
	}

	// 2. Extract names (fails fast on the first bad record)
	names, err := normalize.Names(records, cfg.NameField)
	if err != nil {
		return nil, fmt.Errorf("extract names: %w", err)
	}

	// 3. Build the similarity matrix
	matrix, err := p.builder.BuildContext(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("build similarity matrix: %w", err)
	}

	// 4. Cluster
	assignment, tree, err := cluster.Cluster(matrix, cfg.DistanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	if tree == nil {
		p.logger.Info("nothing to cluster",
			zap.Int("records", len(records)),
			zap.NamedError("condition", model.ErrDegenerateInput),
		)
	}

	// 5. Pick representatives and annotate copies of the records
	reps, err := cluster.SelectRepresentatives(records, assignment, cfg.NameField)
	if err != nil {
		return nil, fmt.Errorf("select representatives: %w", err)
	}
	annotated, err := cluster.Annotate(records, assignment, reps)
	if err != nil {
		return nil, fmt.Errorf("annotate records: %w", err)
	}

	// 6. Validate attributes inside clusters
	conflicts, err := p.validator.Validate(annotated, assignment, cfg.ValidatedAttributes)
	if err != nil {
		return nil, fmt.Errorf("validate attributes: %w", err)
	}

	// 7. Diagnostics
	diagnostics := p.scorer.Calculate(assignment, tree, conflicts, cfg.DistanceThreshold)

	report := &model.Report{
		RunID:        uuid.NewString(),
		ResolvedAt:   time.Now().UTC(),
		Settings:     model.SettingsFromConfig(cfg),
		RecordCount:  len(records),
		ClusterCount: assignment.Count(),
		Clusters:     summarize(names, assignment, reps, conflicts),
		Conflicts:    conflicts,
		Score:        diagnostics,
	}

	p.logger.Info("resolution finished",
		zap.String("run_id", report.RunID),
		zap.Int("records", report.RecordCount),
		zap.Int("clusters", report.ClusterCount),
		zap.Int("conflicts", len(conflicts)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return &Result{
		Records:    annotated,
		Assignment: assignment,
		Dendrogram: tree,
		Report:     report,
	}, nil
}

// ResolveFile loads records from path and resolves them
func (p *Pipeline) ResolveFile(ctx context.Context, path string) (*model.Resolution, error) {
	result, err := p.ResolvePath(ctx, path)
	if err != nil {
		return nil, err
	}
	return result.Resolution(), nil
}

// ResolvePath loads records from path and returns the full result
func (p *Pipeline) ResolvePath(ctx context.Context, path string) (*Result, error) {
	loaded, err := p.loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	p.logger.Debug("records loaded",
		zap.String("path", path),
		zap.String("format", loaded.Format),
		zap.Int("records", len(loaded.Records)),
	)

	result, err := p.Resolve(ctx, loaded.Records)
	if err != nil {
		return nil, err
	}

	result.Report.Subject = loaded.Subject
	result.Report.Source = loaded.Path
	return result, nil
}

// summarize builds one summary per cluster in order of first appearance
func summarize(names []string, assignment model.Assignment, reps map[int]string, conflicts []model.ConflictRecord) []model.ClusterSummary {
	order, members := assignment.Clusters()
	conflicted := validate.ConflictedClusters(conflicts)

	summaries := make([]model.ClusterSummary, 0, len(order))
	for _, id := range order {
		idx := members[id]
		surface := make([]string, len(idx))
		for i, m := range idx {
			surface[i] = names[m]
		}
		summaries = append(summaries, model.ClusterSummary{
			ID:             id,
			Representative: reps[id],
			Members:        idx,
			Names:          surface,
			HasConflict:    conflicted[id],
		})
	}
	return summaries
}

// Outputs names the files a run should be written to. Empty paths are skipped.
type Outputs struct {
	JSON       string
	Markdown   string
	Records    string
	Dendrogram string
}

// RenderResult renders the result to the requested outputs
func (p *Pipeline) RenderResult(result *Result, out Outputs, verbose bool) error {
	report := result.Report

	// Render JSON
	if out.JSON != "" {
		if err := p.renderer.RenderJSON(report, out.JSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote JSON: %s\n", out.JSON)
		}
	}

	// Render Markdown
	if out.Markdown != "" {
		if err := p.renderer.RenderMarkdown(report, out.Markdown); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote Markdown: %s\n", out.Markdown)
		}
	}

	// Render annotated records
	if out.Records != "" {
		if err := p.renderer.RenderRecords(result.Records, out.Records); err != nil {
			return fmt.Errorf("render records: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote records: %s\n", out.Records)
		}
	}

	// Render the merge tree
	if out.Dendrogram != "" && result.Dendrogram != nil {
		labels := labelsFor(report, len(result.Records))
		if err := p.renderer.RenderDendrogram(result.Dendrogram, labels, out.Dendrogram); err != nil {
			return fmt.Errorf("render dendrogram: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote dendrogram: %s\n", out.Dendrogram)
		}
	}

	return nil
}

// labelsFor recovers each record's raw name from the cluster summaries
func labelsFor(report *model.Report, n int) []string {
	labels := make([]string, n)
	for _, c := range report.Clusters {
		for i, m := range c.Members {
			labels[m] = c.Names[i]
		}
	}
	return labels
}

// Renderer returns the pipeline's renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

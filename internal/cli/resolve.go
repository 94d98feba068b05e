package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/pipeline"
	"github.com/ppiankov/concordia/internal/store"
)

var (
	threshold     float64
	nameField     string
	listAttrs     []string
	validateAttrs []string
	noLocalize    bool
	workers       int
	outJSON       string
	outMD         string
	outRecords    string
	outDendrogram string
	sqlitePath    string
	parquetDir    string
	noFooter      bool
	printClusters bool
	timeout       time.Duration
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve <file>",
	Short: "Cluster the records of one file into entities",
	Long: `Resolve reads records from a CSV, TSV, JSONL or JSON file and:
- Normalizes each record's name (case, accents, punctuation, particles)
- Scores every pair of names with a fuzzy partial-ratio score
- Clusters records with average linkage and cuts at the distance threshold
- Picks the longest name of each cluster as its representative
- Reports clusters whose members disagree on validated attributes

Example:
  concordia resolve people.csv --name-field canonical_name
  concordia resolve people.jsonl --validate nationality,occupation --md report.md
  concordia resolve people.csv --threshold 0.2 --out resolved.csv --sqlite runs.db`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	// Resolution flags
	resolveCmd.Flags().Float64Var(&threshold, "threshold", 0.15, "distance threshold in [0,1] for cutting the dendrogram")
	resolveCmd.Flags().StringVar(&nameField, "name-field", "canonical_name", "field holding the entity name")
	resolveCmd.Flags().StringSliceVar(&listAttrs, "list-attrs", nil, "list-valued attributes (names or globs, e.g. occupation,*_roles)")
	resolveCmd.Flags().StringSliceVar(&validateAttrs, "validate", nil, "attributes to check for conflicts inside clusters")
	resolveCmd.Flags().BoolVar(&noLocalize, "no-localize", false, "keep name particles (van, de, ...) when scoring")
	resolveCmd.Flags().IntVar(&workers, "workers", 0, "similarity matrix workers (default from config)")
	resolveCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall resolution timeout")

	// Output flags
	resolveCmd.Flags().StringVar(&outJSON, "json", "report.json", "output JSON report path")
	resolveCmd.Flags().StringVar(&outMD, "md", "", "output Markdown report path (optional)")
	resolveCmd.Flags().StringVar(&outRecords, "out", "", "annotated records path, .csv or .jsonl (optional)")
	resolveCmd.Flags().StringVar(&outDendrogram, "dendrogram", "", "merge tree text path (optional)")
	resolveCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite database to store the run in (optional)")
	resolveCmd.Flags().StringVar(&parquetDir, "parquet-dir", "", "directory for records.parquet and conflicts.parquet (optional)")
	resolveCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	resolveCmd.Flags().BoolVar(&printClusters, "print-clusters", false, "print every multi-member cluster in the summary")
}

// applyResolutionFlags overrides configuration with the flags the user set
func applyResolutionFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.Resolution.DistanceThreshold = threshold
	}
	if flags.Changed("name-field") {
		cfg.Resolution.NameField = nameField
	}
	if flags.Changed("list-attrs") {
		cfg.Resolution.ListValuedAttributes = listAttrs
	}
	if flags.Changed("validate") {
		cfg.Resolution.ValidatedAttributes = validateAttrs
	}
	if flags.Changed("no-localize") {
		cfg.Resolution.Localized = !noLocalize
	}
	if flags.Changed("workers") && workers > 0 {
		cfg.Concurrency.Workers = workers
	}
	if flags.Changed("no-footer") {
		cfg.Output.IncludeFooter = !noFooter
	}
	if flags.Changed("print-clusters") {
		cfg.Output.PrintClusters = printClusters
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyResolutionFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "Resolving: %s\n", path)
		fmt.Fprintf(os.Stderr, "Name field: %s\n", cfg.Resolution.NameField)
		fmt.Fprintf(os.Stderr, "Threshold: %.4f\n", cfg.Resolution.DistanceThreshold)
		fmt.Fprintf(os.Stderr, "Workers: %d\n", cfg.Concurrency.Workers)
		fmt.Fprintln(os.Stderr)
	}

	p := pipeline.NewPipeline(cfg, logger)

	result, err := p.ResolvePath(ctx, path)
	if err != nil {
		logger.Error("resolution failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("resolve failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Loaded %d records\n", result.Report.RecordCount)
		fmt.Fprintf(os.Stderr, "✓ Resolved %d clusters\n", result.Report.ClusterCount)
		fmt.Fprintf(os.Stderr, "✓ Found %d conflicts\n", len(result.Report.Conflicts))
		fmt.Fprintln(os.Stderr)
	}

	// Render outputs
	out := pipeline.Outputs{
		JSON:       outJSON,
		Markdown:   outMD,
		Records:    outRecords,
		Dendrogram: outDendrogram,
	}
	if err := p.RenderResult(result, out, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if err := persist(ctx, result.Resolution(), sqlitePath, parquetDir); err != nil {
		return err
	}

	p.Renderer().RenderSummary(os.Stdout, result.Report, cfg.Output.PrintClusters)
	return nil
}

// persist writes the run to the optional SQLite and Parquet sinks
func persist(ctx context.Context, res *model.Resolution, dbPath, pqDir string) error {
	if dbPath != "" {
		db, err := store.OpenSQLite(dbPath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer func() { _ = db.Close() }()

		if err := db.SaveResolution(ctx, res); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Stored run %s in %s\n", res.Report.RunID, dbPath)
		}
	}

	if pqDir != "" {
		if err := store.WriteParquet(pqDir, res); err != nil {
			return fmt.Errorf("write parquet: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote Parquet: %s\n", pqDir)
		}
	}
	return nil
}

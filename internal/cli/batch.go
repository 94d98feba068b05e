package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/concordia/internal/pipeline"
	"github.com/ppiankov/concordia/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchSQLite  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir|list-file>",
	Short: "Resolve many record files in parallel",
	Long: `Batch resolves every .csv, .tsv, .jsonl and .json file in a directory
(or every path listed in a text file, one per line) concurrently:
- Each file is resolved independently with the same settings
- A JSON and Markdown report is written per file
- Annotated records are written next to each report

Example:
  concordia batch ./exports
  concordia batch ./exports --concurrency 8 --output-dir ./resolved
  concordia batch files.txt --validate nationality --sqlite runs.db`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "files resolved concurrently (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./concordia-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&batchSQLite, "sqlite", "", "SQLite database to store every run in (optional)")

	// Resolution flags shared with resolve
	batchCmd.Flags().Float64Var(&threshold, "threshold", 0.15, "distance threshold in [0,1] for cutting the dendrogram")
	batchCmd.Flags().StringVar(&nameField, "name-field", "canonical_name", "field holding the entity name")
	batchCmd.Flags().StringSliceVar(&listAttrs, "list-attrs", nil, "list-valued attributes (names or globs)")
	batchCmd.Flags().StringSliceVar(&validateAttrs, "validate", nil, "attributes to check for conflicts inside clusters")
	batchCmd.Flags().BoolVar(&noLocalize, "no-localize", false, "keep name particles when scoring")
	batchCmd.Flags().IntVar(&workers, "workers", 0, "similarity matrix workers per file (default from config)")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
}

func runBatch(cmd *cobra.Command, args []string) error {
	input := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyResolutionFlags(cmd, cfg)
	if cmd.Flags().Changed("concurrency") && concurrency > 0 {
		cfg.Concurrency.BatchWorkers = concurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Concordia Batch Resolution\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s\n", input)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.BatchWorkers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Threshold:    %.4f\n", cfg.Resolution.DistanceThreshold)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	paths, err := batchInputs(input)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Found %d input files\n", len(paths))
	fmt.Fprintf(os.Stderr, "⚙️  Resolving with %d workers...\n", cfg.Concurrency.BatchWorkers)
	fmt.Fprintf(os.Stderr, "\n")

	p := pipeline.NewPipeline(cfg, logger)
	processor := worker.NewBatchProcessor(p, cfg.Concurrency.BatchWorkers)
	results := processor.ProcessPaths(ctx, paths)

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			logger.Error("resolution failed", zap.String("path", result.Path), zap.Error(result.Error))
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		report := result.Resolution.Report
		slug := sanitizeFilename(report.Subject)
		out := pipeline.Outputs{
			JSON:     filepath.Join(outputDir, slug+".json"),
			Markdown: filepath.Join(outputDir, slug+".md"),
			Records:  filepath.Join(outputDir, slug+".resolved.jsonl"),
		}
		renderer := p.Renderer()
		if err := renderer.RenderJSON(report, out.JSON); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}
		if err := renderer.RenderMarkdown(report, out.Markdown); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Path, err)
			continue
		}
		if err := renderer.RenderRecords(result.Resolution.Records, out.Records); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write records: %v\n", result.Path, err)
			continue
		}
		if err := persist(ctx, result.Resolution, batchSQLite, ""); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%d records → %d clusters, %d conflicts, index: %d/100)\n",
			report.Subject, report.RecordCount, report.ClusterCount, len(report.Conflicts), report.Score.Index)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d files\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d files failed", failureCount)
	}
	return nil
}

// batchInputs expands a directory or a list file into input paths
func batchInputs(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return worker.ReadPathsFromDir(input, pipeline.InputExtensions)
	}
	return worker.ReadPathsFromFile(input)
}

// sanitizeFilename turns a report subject into a safe file name
func sanitizeFilename(s string) string {
	s = filepath.Base(filepath.Clean(s))

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)

	if s == "" || s == "." {
		s = "records"
	}

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}

	return s
}

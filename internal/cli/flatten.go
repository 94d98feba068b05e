package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/concordia/internal/extract"
	"github.com/ppiankov/concordia/internal/pipeline"
)

var (
	flattenOutDir string
	outputField   string
)

// flattenCmd represents the flatten command
var flattenCmd = &cobra.Command{
	Use:   "flatten <llm-output.jsonl>",
	Short: "Flatten per-bulletin extraction output into entity files",
	Long: `Flatten reads extraction output (one bulletin per JSONL line, with the
extracted entities in a raw_output field) and writes one JSONL file per
entity type plus relations.jsonl. Every entity gets a global id of the form
<bulletin>_<local id> and a canonical_name ready for 'concordia resolve'.
Malformed JSON in the output field is repaired where possible.

Example:
  concordia flatten extractions.jsonl --out-dir ./entities
  concordia resolve ./entities/people.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runFlatten,
}

func init() {
	rootCmd.AddCommand(flattenCmd)

	flattenCmd.Flags().StringVar(&flattenOutDir, "out-dir", "./entities", "output directory for per-type JSONL files")
	flattenCmd.Flags().StringVar(&outputField, "field", extract.DefaultOutputField, "input field holding the extraction output")
}

func runFlatten(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	bulletins, warnings, err := extract.ReadBulletins(f, outputField)
	if err != nil {
		return fmt.Errorf("read bulletins: %w", err)
	}

	flat := extract.NewFlattener(logger).Flatten(bulletins)
	warnings = append(warnings, flat.Warnings...)

	renderer := pipeline.NewRenderer(false)
	for _, etype := range extract.EntityTypes {
		out := filepath.Join(flattenOutDir, etype+".jsonl")
		if err := renderer.RenderRecords(flat.Entities[etype], out); err != nil {
			return fmt.Errorf("write %s: %w", etype, err)
		}
		fmt.Printf("✓ %-14s %6d → %s\n", etype, flat.Count(etype), out)
	}

	out := filepath.Join(flattenOutDir, extract.RelationsKey+".jsonl")
	if err := renderer.RenderRecords(flat.Relations, out); err != nil {
		return fmt.Errorf("write relations: %w", err)
	}
	fmt.Printf("✓ %-14s %6d → %s\n", extract.RelationsKey, flat.Count(extract.RelationsKey), out)

	if len(warnings) > 0 {
		fmt.Fprintf(os.Stderr, "\n⚠️  %d warnings (%d items skipped)\n", len(warnings), flat.Skipped)
		if verbose {
			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "  - %s\n", w)
			}
		}
	}

	return nil
}

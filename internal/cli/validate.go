package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/pipeline"
	"github.com/ppiankov/concordia/internal/validate"
)

var (
	validateOut string
	profileAttr string
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check already clustered records for attribute conflicts",
	Long: `Validate reads records that already carry a cluster_id (for example the
output of 'concordia resolve --out') and reports clusters whose members
disagree on the validated attributes. No clustering is performed.

Example:
  concordia validate resolved.csv --validate nationality,occupation
  concordia validate resolved.jsonl --validate nationality --json conflicts.json
  concordia validate resolved.csv --profile occupation`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringSliceVar(&validateAttrs, "validate", nil, "attributes to check for conflicts inside clusters")
	validateCmd.Flags().StringSliceVar(&listAttrs, "list-attrs", nil, "list-valued attributes (names or globs)")
	validateCmd.Flags().StringVar(&nameField, "name-field", "canonical_name", "field holding the entity name (never validated)")
	validateCmd.Flags().StringVar(&validateOut, "json", "", "write conflicts as JSON to this path (optional)")
	validateCmd.Flags().StringVar(&profileAttr, "profile", "", "print each cluster's representative and the values of this attribute")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]

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

	loaded, err := pipeline.NewLoader().Load(path)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	assignment, err := validate.AssignmentFromField(loaded.Records, model.FieldClusterID)
	if err != nil {
		return fmt.Errorf("read cluster labels: %w", err)
	}

	validator := validate.NewValidator(cfg.Resolution.NameField, cfg.Resolution.ListValuedAttributes).WithLogger(logger)
	conflicts, err := validator.Validate(loaded.Records, assignment, cfg.Resolution.ValidatedAttributes)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Loaded %d records in %d clusters\n", len(loaded.Records), assignment.Count())
		fmt.Fprintf(os.Stderr, "✓ Checked attributes: %v\n", cfg.Resolution.ValidatedAttributes)
		fmt.Fprintln(os.Stderr)
	}

	if validateOut != "" {
		data, err := json.MarshalIndent(conflicts, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal conflicts: %w", err)
		}
		if err := os.WriteFile(validateOut, data, 0644); err != nil {
			return fmt.Errorf("write conflicts: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote JSON: %s\n", validateOut)
		}
	}

	if profileAttr != "" {
		profiles, err := validator.Profiles(loaded.Records, assignment, profileAttr)
		if err != nil {
			return fmt.Errorf("profile %s: %w", profileAttr, err)
		}
		fmt.Printf("Cluster profiles (%s):\n\n", profileAttr)
		for _, p := range profiles {
			fmt.Printf("  cluster %d  %-32s %s\n", p.ClusterID, p.Representative, describeValues(p.Values))
		}
		fmt.Println()
	}

	if len(conflicts) == 0 {
		fmt.Println("✓ No conflicts found")
		return nil
	}

	fmt.Printf("Found %d conflicts in %d clusters:\n\n", len(conflicts), len(validate.ConflictedClusters(conflicts)))
	for _, c := range conflicts {
		fmt.Printf("  cluster %d  %-24s %s\n", c.ClusterID, c.Attribute, describeValues(c.ConflictingValues))
	}
	fmt.Println()
	return nil
}

func describeValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = pipeline.FormatCell(v)
	}
	return strings.Join(parts, " | ")
}

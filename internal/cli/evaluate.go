package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/concordia/internal/evaluate"
)

var (
	predPath  string
	goldPath  string
	otherPath string
	evalOut   string
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score extraction predictions against gold or another model",
	Long: `Evaluate reads extraction predictions (one document per JSONL line with
"id", "valid" and "parsed": {"entities": [{"start", "end", "type"}]}) and reports:
- Schema validity rate (share of lines marked valid)
- Entity-level micro F1 at span+type level against --gold
- Inter-model agreement (mean span overlap) against --other

Example:
  concordia evaluate --pred preds.jsonl
  concordia evaluate --pred preds.jsonl --gold gold.jsonl
  concordia evaluate --pred model-a.jsonl --other model-b.jsonl --json eval.json`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&predPath, "pred", "", "predictions JSONL (required)")
	evaluateCmd.Flags().StringVar(&goldPath, "gold", "", "gold JSONL to compute entity F1 against (optional)")
	evaluateCmd.Flags().StringVar(&otherPath, "other", "", "second predictions JSONL for agreement (optional)")
	evaluateCmd.Flags().StringVar(&evalOut, "json", "", "write metrics as JSON to this path (optional)")
	_ = evaluateCmd.MarkFlagRequired("pred")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	preds, err := loadPredictions(logger, predPath)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d predictions\n", len(preds))

	report := evaluate.NewReport(preds)
	fmt.Printf("Schema validity rate: %.3f\n", report.SchemaValidity)

	if goldPath != "" {
		gold, err := loadPredictions(logger, goldPath)
		if err != nil {
			return err
		}
		report.WithGold(preds, gold)
		fmt.Printf("Entity-level F1 vs gold: %.3f (precision %.3f, recall %.3f)\n",
			report.EntityF1.F1, report.EntityF1.Precision, report.EntityF1.Recall)
	}

	if otherPath != "" {
		other, err := loadPredictions(logger, otherPath)
		if err != nil {
			return err
		}
		report.WithOther(preds, other)
		fmt.Printf("Inter-model agreement: %.4f over %d shared documents\n",
			report.Agreement.Score, report.Agreement.Matched)
	}

	if evalOut != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
		if err := os.WriteFile(evalOut, data, 0644); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		if verbose {
			fmt.Printf("✓ Wrote JSON: %s\n", evalOut)
		}
	}

	return nil
}

func loadPredictions(logger *zap.Logger, path string) ([]evaluate.Prediction, error) {
	preds, warnings, err := evaluate.LoadPredictions(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	for _, w := range warnings {
		logger.Warn("skipped prediction data", zap.String("path", path), zap.String("reason", w))
	}
	return preds, nil
}

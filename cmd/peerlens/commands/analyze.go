package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Shikha-SShikha/peerlens/internal/report"
	"github.com/Shikha-SShikha/peerlens/internal/review"
)

var analyzeInputPath string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report quality metrics over a batch of briefs",
	Long: `Analyze pipeline output and print quality metrics: issue counts,
averages per brief, evidence coverage, consensus tier distribution, and
the validation pass rate.

Accepts either the outcome file written by 'peerlens run-all' or a plain
array of briefs from 'peerlens synthesize'.

Examples:
  peerlens analyze --input briefs.json
  peerlens run-all --reviews reviews.json --out outcomes.json && \
    peerlens analyze --input outcomes.json`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeInputPath, "input", "i", "", "Path to briefs or run-all outcomes JSON (required)")
	analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	briefs, validations, err := loadAnalysisInput(analyzeInputPath)
	if err != nil {
		return err
	}
	if len(briefs) == 0 {
		return fmt.Errorf("no briefs found in %s", analyzeInputPath)
	}

	summary, stats := report.Analyze(briefs, validations)
	report.Render(os.Stdout, summary, stats)
	return nil
}

// loadAnalysisInput reads either a run-all outcome file or a plain brief
// array, returning the briefs and any validation results keyed by
// manuscript ID.
func loadAnalysisInput(path string) ([]*review.Brief, map[string]*review.ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// run-all output: object with an outcomes array
	var runOutput struct {
		Outcomes []struct {
			Brief      *review.Brief            `json:"brief"`
			Validation *review.ValidationResult `json:"validation"`
		} `json:"outcomes"`
	}
	if err := json.Unmarshal(data, &runOutput); err == nil && len(runOutput.Outcomes) > 0 {
		var briefs []*review.Brief
		validations := make(map[string]*review.ValidationResult)
		for _, o := range runOutput.Outcomes {
			if o.Brief == nil {
				continue
			}
			briefs = append(briefs, o.Brief)
			if o.Validation != nil {
				validations[o.Brief.ManuscriptID] = o.Validation
			}
		}
		return briefs, validations, nil
	}

	// synthesize output: plain array of briefs
	var briefs []*review.Brief
	if err := json.Unmarshal(data, &briefs); err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return briefs, map[string]*review.ValidationResult{}, nil
}

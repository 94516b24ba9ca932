package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Shikha-SShikha/peerlens/internal/ingest"
	"github.com/Shikha-SShikha/peerlens/internal/oracle"
	"github.com/Shikha-SShikha/peerlens/internal/orchestrator"
	"github.com/Shikha-SShikha/peerlens/internal/printer"
	"github.com/Shikha-SShikha/peerlens/internal/review"
)

var (
	runReviewsPath     string
	runManuscriptsPath string
	runOutPath         string
)

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run the full synthesis pipeline end to end",
	Long: `Run extraction, resolution, synthesis, and validation for every
manuscript in the review batch.

Manuscripts are processed concurrently and independently: one
manuscript's failure never blocks another's brief. Failed stages are
retried with exponential backoff up to the configured budget; a
manuscript that exhausts its budget is still delivered, marked
needs_manual_review.

Exit codes:
  0  all briefs validated
  2  output produced, at least one brief needs manual review
  1  unrecoverable failure

Examples:
  peerlens run-all --reviews reviews.json --out briefs.json
  peerlens run-all --reviews reviews.json --manuscripts manuscripts.json \
    --redis-addr localhost:6379 --instance prod`,
	RunE: runAll,
}

func init() {
	runAllCmd.Flags().StringVar(&runReviewsPath, "reviews", "", "Path to the reviews JSON file (required)")
	runAllCmd.Flags().StringVar(&runManuscriptsPath, "manuscripts", "", "Optional path to manuscript metadata JSON")
	runAllCmd.Flags().StringVarP(&runOutPath, "out", "o", "", "Output path for pipeline outcomes (stdout if omitted)")
	runAllCmd.MarkFlagRequired("reviews")
	rootCmd.AddCommand(runAllCmd)
}

func runAll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reviews, err := ingest.LoadReviews(runReviewsPath)
	if err != nil {
		return printer.Error(
			"failed to load reviews",
			err.Error(),
			[]string{"Check that the file exists and contains a JSON array of reviews"},
		)
	}
	manuscripts := map[string]*review.Manuscript{}
	if runManuscriptsPath != "" {
		manuscripts, err = ingest.LoadManuscripts(runManuscriptsPath)
		if err != nil {
			return err
		}
	}

	o, err := buildOracle(cfg)
	if err != nil {
		return err
	}
	board, err := buildBoard(cfg)
	if err != nil {
		return err
	}
	if board != nil {
		defer board.Close()
		if err := board.Ping(ctx); err != nil {
			return printer.Error(
				"cannot reach Redis",
				err.Error(),
				[]string{"Check --redis-addr, or omit it to skip brief board persistence"},
			)
		}
	}

	engine, err := orchestrator.New(cfg, o, board)
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx, reviews, manuscripts)
	if err != nil {
		return err
	}

	for _, outcome := range result.Outcomes {
		if outcome.Err != nil {
			printer.Warning("%s: failed at %s stage: %v\n", outcome.ManuscriptID, outcome.FailedStage, outcome.Err)
			continue
		}
		printer.ManuscriptStatus(outcome.ManuscriptID, outcome.Validation.Status, outcome.Validation.ConfidenceScore)
	}

	if err := writeJSON(runOutPath, result); err != nil {
		return err
	}

	switch result.ExitCode() {
	case 1:
		for _, outcome := range result.Outcomes {
			if oracle.IsAuthError(outcome.Err) {
				return printer.Error(
					"oracle authentication failed",
					outcome.Err.Error(),
					[]string{"Check the API key in the environment variable named by oracle.api_key_env"},
				)
			}
		}
		return printer.Error(
			"pipeline failed",
			"At least one manuscript could not be processed. See the outcome list for details.",
			nil,
		)
	case 2:
		return ErrManualReview
	}
	return nil
}

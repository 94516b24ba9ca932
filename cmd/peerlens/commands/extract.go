package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Shikha-SShikha/peerlens/internal/extract"
	"github.com/Shikha-SShikha/peerlens/internal/ingest"
	"github.com/Shikha-SShikha/peerlens/internal/oracle"
	"github.com/Shikha-SShikha/peerlens/internal/printer"
	"github.com/Shikha-SShikha/peerlens/internal/review"
)

var (
	extractReviewsPath string
	extractOutPath     string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract claimed issues from peer reviews",
	Long: `Extract distinct claimed issues from a batch of peer reviews.

Each extracted issue carries a category, a severity, and a verbatim
evidence excerpt copied from the source review. Claims whose excerpt
cannot be found verbatim in the review text are dropped with a warning
rather than passed downstream.

Examples:
  # Extract to stdout
  peerlens extract --reviews reviews.json

  # Extract to a file for the resolve step
  peerlens extract --reviews reviews.json --out issues.json`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractReviewsPath, "reviews", "", "Path to the reviews JSON file (required)")
	extractCmd.Flags().StringVarP(&extractOutPath, "out", "o", "", "Output path for extracted issues (stdout if omitted)")
	extractCmd.MarkFlagRequired("reviews")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reviews, err := ingest.LoadReviews(extractReviewsPath)
	if err != nil {
		return printer.Error(
			"failed to load reviews",
			err.Error(),
			[]string{"Check that the file exists and contains a JSON array of reviews"},
		)
	}

	o, err := buildOracle(cfg)
	if err != nil {
		return err
	}

	extractor := extract.New(o, cfg.Taxonomy)
	issues := []*review.Issue{}
	for _, rev := range reviews {
		extracted, warnings, err := extractor.Extract(ctx, rev)
		if err != nil {
			if oracle.IsAuthError(err) {
				return printer.Error(
					"oracle authentication failed",
					err.Error(),
					[]string{"Check the API key in the environment variable named by oracle.api_key_env"},
				)
			}
			return printer.Error(
				"extraction failed",
				err.Error(),
				[]string{"Retry, or check oracle connectivity if using --oracle remote"},
			)
		}
		for _, w := range warnings {
			printer.Warning("%s\n", w)
		}
		issues = append(issues, extracted...)
	}

	if err := writeJSON(extractOutPath, issues); err != nil {
		return err
	}
	if extractOutPath != "" && extractOutPath != "-" {
		printer.Success("extracted %d issues from %d reviews to %s\n", len(issues), len(reviews), extractOutPath)
	}
	return nil
}

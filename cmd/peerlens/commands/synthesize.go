package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Shikha-SShikha/peerlens/internal/ingest"
	"github.com/Shikha-SShikha/peerlens/internal/printer"
	"github.com/Shikha-SShikha/peerlens/internal/review"
	"github.com/Shikha-SShikha/peerlens/internal/synthesize"
)

var (
	synthReviewsPath     string
	synthIssuesPath      string
	synthCanonicalsPath  string
	synthManuscriptsPath string
	synthOutPath         string
)

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Compose editorial briefs from canonical issues",
	Long: `Compose one editorial brief per manuscript from its reviews, extracted
issues, and canonical issues. A brief ranks issues by severity and
reviewer support, surfaces reviewer disagreements, aggregates the
recommendation distribution into a confidence tier, drafts an action
checklist, and builds the traceability index mapping every canonical
issue back to its verbatim evidence.

Examples:
  peerlens synthesize --reviews reviews.json --issues issues.json \
    --canonicals canonical.json --out briefs.json`,
	RunE: runSynthesize,
}

func init() {
	synthesizeCmd.Flags().StringVar(&synthReviewsPath, "reviews", "", "Path to the reviews JSON file (required)")
	synthesizeCmd.Flags().StringVar(&synthIssuesPath, "issues", "", "Path to the extracted issues JSON file (required)")
	synthesizeCmd.Flags().StringVar(&synthCanonicalsPath, "canonicals", "", "Path to the canonical issues JSON file (required)")
	synthesizeCmd.Flags().StringVar(&synthManuscriptsPath, "manuscripts", "", "Optional path to manuscript metadata JSON")
	synthesizeCmd.Flags().StringVarP(&synthOutPath, "out", "o", "", "Output path for briefs (stdout if omitted)")
	synthesizeCmd.MarkFlagRequired("reviews")
	synthesizeCmd.MarkFlagRequired("issues")
	synthesizeCmd.MarkFlagRequired("canonicals")
	rootCmd.AddCommand(synthesizeCmd)
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reviews, err := ingest.LoadReviews(synthReviewsPath)
	if err != nil {
		return err
	}
	var issues []*review.Issue
	if err := readJSON(synthIssuesPath, &issues); err != nil {
		return err
	}
	var canonicals []*review.CanonicalIssue
	if err := readJSON(synthCanonicalsPath, &canonicals); err != nil {
		return err
	}
	manuscripts := map[string]*review.Manuscript{}
	if synthManuscriptsPath != "" {
		manuscripts, err = ingest.LoadManuscripts(synthManuscriptsPath)
		if err != nil {
			return err
		}
	}

	o, err := buildOracle(cfg)
	if err != nil {
		return err
	}
	synthesizer := synthesize.New(o)

	grouped, ids := ingest.GroupByManuscript(reviews)
	issuesByManuscript := make(map[string][]*review.Issue)
	for _, issue := range issues {
		issuesByManuscript[issue.ManuscriptID] = append(issuesByManuscript[issue.ManuscriptID], issue)
	}
	canonicalsByManuscript := make(map[string][]*review.CanonicalIssue)
	for _, c := range canonicals {
		canonicalsByManuscript[c.ManuscriptID] = append(canonicalsByManuscript[c.ManuscriptID], c)
	}

	briefs := []*review.Brief{}
	for _, id := range ids {
		title := ""
		if m, ok := manuscripts[id]; ok {
			title = m.Title
		}
		brief, err := synthesizer.Synthesize(ctx, synthesize.Input{
			ManuscriptID: id,
			Title:        title,
			Reviews:      grouped[id],
			Canonicals:   canonicalsByManuscript[id],
			Issues:       issuesByManuscript[id],
		})
		if err != nil {
			return printer.Error(
				"synthesis failed",
				err.Error(),
				[]string{"Retry, or check oracle connectivity if using --oracle remote"},
			)
		}
		briefs = append(briefs, brief)
	}

	if err := writeJSON(synthOutPath, briefs); err != nil {
		return err
	}
	if synthOutPath != "" && synthOutPath != "-" {
		printer.Success("synthesized %d briefs to %s\n", len(briefs), synthOutPath)
	}
	return nil
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/Shikha-SShikha/peerlens/internal/ingest"
	"github.com/Shikha-SShikha/peerlens/internal/printer"
	"github.com/Shikha-SShikha/peerlens/internal/review"
	"github.com/Shikha-SShikha/peerlens/internal/validate"
)

var (
	validateBriefsPath     string
	validateReviewsPath    string
	validateIssuesPath     string
	validateCanonicalsPath string
	validateOutPath        string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check briefs for evidence and consistency defects",
	Long: `Validate synthesized briefs against their source reviews.

Deterministic checks verify that every major issue is backed by evidence,
that each cited excerpt appears verbatim in its source review, that
expected disagreements were reported, that action items reference real
canonical issues, and that the confidence tier matches the recommendation
distribution. Holistic checks add warnings for suspicious patterns.

Exits 0 when every brief passes, 2 when any brief needs manual review.

Examples:
  peerlens validate --briefs briefs.json --reviews reviews.json \
    --issues issues.json --canonicals canonical.json`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateBriefsPath, "briefs", "", "Path to the briefs JSON file (required)")
	validateCmd.Flags().StringVar(&validateReviewsPath, "reviews", "", "Path to the reviews JSON file (required)")
	validateCmd.Flags().StringVar(&validateIssuesPath, "issues", "", "Path to the extracted issues JSON file (required)")
	validateCmd.Flags().StringVar(&validateCanonicalsPath, "canonicals", "", "Path to the canonical issues JSON file (required)")
	validateCmd.Flags().StringVarP(&validateOutPath, "out", "o", "", "Output path for validation results (stdout if omitted)")
	validateCmd.MarkFlagRequired("briefs")
	validateCmd.MarkFlagRequired("reviews")
	validateCmd.MarkFlagRequired("issues")
	validateCmd.MarkFlagRequired("canonicals")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	var briefs []*review.Brief
	if err := readJSON(validateBriefsPath, &briefs); err != nil {
		return err
	}
	reviews, err := ingest.LoadReviews(validateReviewsPath)
	if err != nil {
		return err
	}
	var issues []*review.Issue
	if err := readJSON(validateIssuesPath, &issues); err != nil {
		return err
	}
	var canonicals []*review.CanonicalIssue
	if err := readJSON(validateCanonicalsPath, &canonicals); err != nil {
		return err
	}

	grouped, _ := ingest.GroupByManuscript(reviews)
	issuesByManuscript := make(map[string][]*review.Issue)
	for _, issue := range issues {
		issuesByManuscript[issue.ManuscriptID] = append(issuesByManuscript[issue.ManuscriptID], issue)
	}
	canonicalsByManuscript := make(map[string][]*review.CanonicalIssue)
	for _, c := range canonicals {
		canonicalsByManuscript[c.ManuscriptID] = append(canonicalsByManuscript[c.ManuscriptID], c)
	}

	results := []*review.ValidationResult{}
	anyManual := false
	for _, brief := range briefs {
		result := validate.Check(validate.Input{
			Brief:      brief,
			Reviews:    grouped[brief.ManuscriptID],
			Canonicals: canonicalsByManuscript[brief.ManuscriptID],
			Issues:     issuesByManuscript[brief.ManuscriptID],
		})
		results = append(results, result)
		printer.ManuscriptStatus(brief.ManuscriptID, result.Status, result.ConfidenceScore)
		if result.Status == review.StatusNeedsManualReview {
			anyManual = true
		}
	}

	if err := writeJSON(validateOutPath, results); err != nil {
		return err
	}
	if anyManual {
		return ErrManualReview
	}
	return nil
}

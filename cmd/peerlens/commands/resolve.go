package commands

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Shikha-SShikha/peerlens/internal/printer"
	"github.com/Shikha-SShikha/peerlens/internal/resolve"
	"github.com/Shikha-SShikha/peerlens/internal/review"
)

var (
	resolveIssuesPath string
	resolveOutPath    string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Deduplicate extracted issues into canonical issues",
	Long: `Group extracted issues that describe the same underlying concern into
canonical issues. Issues are only compared within the same manuscript and
category; similarity above the merge threshold links them, and linked
groups merge transitively. A canonical issue keeps the severity of its
most severe member and the IDs of every reviewer who raised it.

Resolution is deterministic: the same input issues produce the same
canonical issues regardless of input order.

Examples:
  peerlens resolve --issues issues.json --out canonical.json
  peerlens resolve --issues issues.json --threshold 0.7`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveIssuesPath, "issues", "", "Path to the extracted issues JSON file (required)")
	resolveCmd.Flags().StringVarP(&resolveOutPath, "out", "o", "", "Output path for canonical issues (stdout if omitted)")
	resolveCmd.MarkFlagRequired("issues")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var issues []*review.Issue
	if err := readJSON(resolveIssuesPath, &issues); err != nil {
		return err
	}

	o, err := buildOracle(cfg)
	if err != nil {
		return err
	}
	resolver, err := resolve.New(o, cfg.MergeThreshold())
	if err != nil {
		return err
	}

	// The resolver works one manuscript at a time.
	byManuscript := make(map[string][]*review.Issue)
	for _, issue := range issues {
		byManuscript[issue.ManuscriptID] = append(byManuscript[issue.ManuscriptID], issue)
	}
	ids := make([]string, 0, len(byManuscript))
	for id := range byManuscript {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	canonicals := []*review.CanonicalIssue{}
	for _, id := range ids {
		resolved, err := resolver.Resolve(ctx, byManuscript[id])
		if err != nil {
			return printer.Error(
				"resolution failed",
				err.Error(),
				[]string{"Retry, or check oracle connectivity if using --oracle remote"},
			)
		}
		canonicals = append(canonicals, resolved...)
	}

	if err := writeJSON(resolveOutPath, canonicals); err != nil {
		return err
	}
	if resolveOutPath != "" && resolveOutPath != "-" {
		printer.Success("resolved %d issues into %d canonical issues to %s\n", len(issues), len(canonicals), resolveOutPath)
	}
	return nil
}

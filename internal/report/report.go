// Package report computes quality metrics over a batch of Briefs and
// renders them as a terminal report. It answers the editorial questions
// that follow a pipeline run: how much did reviewers flag, how well is it
// evidenced, and how often did validation pass on its own.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// BriefStats holds the per-manuscript metrics of one Brief.
type BriefStats struct {
	ManuscriptID     string
	Title            string
	MajorIssues      int
	MinorIssues      int
	Disagreements    int
	ActionItems      int
	OpenQuestions    int
	EvidenceCoverage float64 // percent of major issues with at least one excerpt
	Tier             review.ConfidenceTier
	HasValidation    bool
	Passed           bool
	Confidence       int
	Warnings         int
}

// Summary aggregates metrics across all analyzed Briefs.
type Summary struct {
	TotalBriefs        int
	TotalMajorIssues   int
	TotalMinorIssues   int
	TotalDisagreements int
	TotalActionItems   int

	AvgMajorIssues float64
	AvgMinorIssues float64
	AvgActionItems float64

	AvgEvidenceCoverage float64
	MinEvidenceCoverage float64
	MaxEvidenceCoverage float64

	ValidationPassRate float64 // percent, only over briefs with a validation result
	AvgConfidence      float64

	TierDistribution map[review.ConfidenceTier]int
}

// AnalyzeBrief computes the metrics of a single Brief. validation may be nil.
func AnalyzeBrief(b *review.Brief, validation *review.ValidationResult) BriefStats {
	stats := BriefStats{
		ManuscriptID:  b.ManuscriptID,
		Title:         truncate(b.ManuscriptTitle, 60),
		MajorIssues:   len(b.MajorIssues),
		MinorIssues:   len(b.MinorIssues),
		Disagreements: len(b.Disagreements),
		ActionItems:   len(b.ActionChecklist),
		OpenQuestions: len(b.OpenQuestions),
		Tier:          b.Consensus.ConfidenceTier,
		Warnings:      len(b.Warnings),
	}

	// A manuscript with no major issues has nothing to evidence.
	if len(b.MajorIssues) == 0 {
		stats.EvidenceCoverage = 100
	} else {
		covered := 0
		for _, issue := range b.MajorIssues {
			if len(b.TraceabilityIndex[issue.CanonicalID]) > 0 {
				covered++
			}
		}
		stats.EvidenceCoverage = 100 * float64(covered) / float64(len(b.MajorIssues))
	}

	if validation != nil {
		stats.HasValidation = true
		stats.Passed = validation.Passed
		stats.Confidence = validation.ConfidenceScore
		stats.Warnings = len(validation.Warnings)
	}

	return stats
}

// Analyze computes per-Brief and aggregate metrics. Briefs are reported in
// manuscript ID order regardless of input order. validations is keyed by
// manuscript ID and may be nil or partial.
func Analyze(briefs []*review.Brief, validations map[string]*review.ValidationResult) (Summary, []BriefStats) {
	ordered := make([]*review.Brief, len(briefs))
	copy(ordered, briefs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ManuscriptID < ordered[j].ManuscriptID })

	summary := Summary{
		TotalBriefs:      len(ordered),
		TierDistribution: make(map[review.ConfidenceTier]int),
	}

	var all []BriefStats
	validated := 0
	passed := 0
	confidenceSum := 0
	for i, b := range ordered {
		stats := AnalyzeBrief(b, validations[b.ManuscriptID])
		all = append(all, stats)

		summary.TotalMajorIssues += stats.MajorIssues
		summary.TotalMinorIssues += stats.MinorIssues
		summary.TotalDisagreements += stats.Disagreements
		summary.TotalActionItems += stats.ActionItems
		summary.TierDistribution[stats.Tier]++

		summary.AvgEvidenceCoverage += stats.EvidenceCoverage
		if i == 0 || stats.EvidenceCoverage < summary.MinEvidenceCoverage {
			summary.MinEvidenceCoverage = stats.EvidenceCoverage
		}
		if stats.EvidenceCoverage > summary.MaxEvidenceCoverage {
			summary.MaxEvidenceCoverage = stats.EvidenceCoverage
		}

		if stats.HasValidation {
			validated++
			confidenceSum += stats.Confidence
			if stats.Passed {
				passed++
			}
		}
	}

	if n := float64(len(all)); n > 0 {
		summary.AvgMajorIssues = float64(summary.TotalMajorIssues) / n
		summary.AvgMinorIssues = float64(summary.TotalMinorIssues) / n
		summary.AvgActionItems = float64(summary.TotalActionItems) / n
		summary.AvgEvidenceCoverage /= n
	}
	if validated > 0 {
		summary.ValidationPassRate = 100 * float64(passed) / float64(validated)
		summary.AvgConfidence = float64(confidenceSum) / float64(validated)
	}

	return summary, all
}

// Render writes the full report: a per-manuscript table followed by the
// aggregate summary table.
func Render(w io.Writer, summary Summary, stats []BriefStats) {
	perBrief := table.NewWriter()
	perBrief.SetOutputMirror(w)
	perBrief.SetTitle("Briefs")
	perBrief.AppendHeader(table.Row{"Manuscript", "Major", "Minor", "Disagreements", "Actions", "Evidence", "Tier", "Validation"})
	for _, s := range stats {
		validation := "n/a"
		if s.HasValidation {
			if s.Passed {
				validation = fmt.Sprintf("passed (%d)", s.Confidence)
			} else {
				validation = fmt.Sprintf("manual review (%d)", s.Confidence)
			}
		}
		perBrief.AppendRow(table.Row{
			s.ManuscriptID,
			s.MajorIssues,
			s.MinorIssues,
			s.Disagreements,
			s.ActionItems,
			fmt.Sprintf("%.0f%%", s.EvidenceCoverage),
			string(s.Tier),
			validation,
		})
	}
	perBrief.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Evidence", Align: text.AlignRight},
	})
	perBrief.Render()

	fmt.Fprintln(w)

	agg := table.NewWriter()
	agg.SetOutputMirror(w)
	agg.SetTitle("Summary")
	agg.AppendRows([]table.Row{
		{"Total briefs", summary.TotalBriefs},
		{"Total major issues", summary.TotalMajorIssues},
		{"Total minor issues", summary.TotalMinorIssues},
		{"Total disagreements", summary.TotalDisagreements},
		{"Total action items", summary.TotalActionItems},
	})
	agg.AppendSeparator()
	agg.AppendRows([]table.Row{
		{"Avg major issues / brief", fmt.Sprintf("%.1f", summary.AvgMajorIssues)},
		{"Avg minor issues / brief", fmt.Sprintf("%.1f", summary.AvgMinorIssues)},
		{"Avg action items / brief", fmt.Sprintf("%.1f", summary.AvgActionItems)},
	})
	agg.AppendSeparator()
	agg.AppendRows([]table.Row{
		{"Evidence coverage (avg)", fmt.Sprintf("%.1f%%", summary.AvgEvidenceCoverage)},
		{"Evidence coverage (min)", fmt.Sprintf("%.1f%%", summary.MinEvidenceCoverage)},
		{"Evidence coverage (max)", fmt.Sprintf("%.1f%%", summary.MaxEvidenceCoverage)},
	})
	agg.AppendSeparator()
	agg.AppendRows([]table.Row{
		{"Validation pass rate", fmt.Sprintf("%.1f%%", summary.ValidationPassRate)},
		{"Avg validation confidence", fmt.Sprintf("%.1f", summary.AvgConfidence)},
	})
	for _, tier := range []review.ConfidenceTier{review.TierUnanimous, review.TierStrongMajority, review.TierSplit} {
		if n, ok := summary.TierDistribution[tier]; ok {
			agg.AppendRow(table.Row{fmt.Sprintf("Consensus %s", tier), n})
		}
	}
	agg.Render()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// Package validate runs the deterministic and holistic checks that gate a
// Brief. Deterministic failures name the pipeline stage whose retry can
// repair them; holistic findings only reduce the confidence score.
package validate

import (
	"fmt"
	"strings"

	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// Scoring weights for the confidence score.
const (
	deterministicPenalty = 25
	warningPenalty       = 5
)

// Input carries a Brief plus the upstream state needed to re-check it.
type Input struct {
	Brief      *review.Brief
	Reviews    []*review.Review
	Canonicals []*review.CanonicalIssue
	Issues     []*review.Issue
}

// Check runs every validation check against one Brief and returns the
// ValidationResult. The result is attached to the Brief by the orchestrator
// and never discarded, whatever the outcome.
func Check(in Input) *review.ValidationResult {
	result := &review.ValidationResult{
		ManuscriptID: in.Brief.ManuscriptID,
	}

	reviewByID := make(map[string]*review.Review, len(in.Reviews))
	for _, rev := range in.Reviews {
		reviewByID[rev.ReviewID] = rev
	}
	issueByID := make(map[string]*review.Issue, len(in.Issues))
	for _, issue := range in.Issues {
		issueByID[issue.IssueID] = issue
	}

	checkEvidence(in.Brief, reviewByID, result)
	checkDisagreements(in, issueByID, result)
	checkActionReferences(in.Brief, in.Canonicals, result)
	checkTier(in.Brief, result)
	holisticChecks(in, result)

	result.Passed = len(result.IssuesFound) == 0
	if result.Passed {
		result.Status = review.StatusValidated
	} else {
		result.Status = review.StatusNeedsManualReview
	}
	result.ConfidenceScore = score(result)
	return result
}

// checkEvidence verifies that every major issue carries at least one excerpt
// and that every excerpt in the traceability index locates verbatim in its
// attributed review. Exact substring only: a single paraphrased word fails.
func checkEvidence(brief *review.Brief, reviewByID map[string]*review.Review, result *review.ValidationResult) {
	for _, entry := range brief.MajorIssues {
		if len(brief.TraceabilityIndex[entry.CanonicalID]) == 0 {
			result.IssuesFound = append(result.IssuesFound, review.ValidationIssue{
				Stage:   review.StageExtract,
				Code:    review.CheckMissingEvidence,
				Message: fmt.Sprintf("major issue %s has no supporting excerpt", entry.CanonicalID),
			})
		}
	}

	for canonicalID, refs := range brief.TraceabilityIndex {
		for _, ref := range refs {
			source, ok := reviewByID[ref.ReviewID]
			if !ok {
				result.IssuesFound = append(result.IssuesFound, review.ValidationIssue{
					Stage:    review.StageExtract,
					Code:     review.CheckExcerptMismatch,
					Message:  fmt.Sprintf("canonical issue %s cites unknown review %s", canonicalID, ref.ReviewID),
					ReviewID: ref.ReviewID,
				})
				continue
			}
			if !strings.Contains(source.Text, ref.Excerpt) {
				result.IssuesFound = append(result.IssuesFound, review.ValidationIssue{
					Stage:    review.StageExtract,
					Code:     review.CheckExcerptMismatch,
					Message:  fmt.Sprintf("canonical issue %s excerpt is not a verbatim substring of review %s", canonicalID, ref.ReviewID),
					ReviewID: ref.ReviewID,
				})
			}
		}
	}
}

// checkDisagreements re-derives the conflict conditions and requires the
// Brief to surface a disagreement whenever they hold.
func checkDisagreements(in Input, issueByID map[string]*review.Issue, result *review.ValidationResult) {
	expected := false

	for _, ci := range in.Canonicals {
		majors, minors := 0, 0
		for _, id := range ci.MemberIssueIDs {
			issue, ok := issueByID[id]
			if !ok {
				continue
			}
			if issue.Severity == review.SeverityMajor {
				majors++
			} else {
				minors++
			}
		}
		if majors > 0 && minors > 0 {
			expected = true
		}
	}

	minRank, maxRank := -1, -1
	for _, rev := range in.Reviews {
		rank, known := review.RecommendationRank(rev.Recommendation)
		if !known {
			continue
		}
		if minRank == -1 || rank < minRank {
			minRank = rank
		}
		if rank > maxRank {
			maxRank = rank
		}
	}
	if minRank >= 0 && maxRank-minRank > 1 {
		expected = true
	}

	if expected && len(in.Brief.Disagreements) == 0 {
		result.IssuesFound = append(result.IssuesFound, review.ValidationIssue{
			Stage:   review.StageSynthesize,
			Code:    review.CheckMissingDisagreement,
			Message: "conflict conditions hold but the brief surfaces no disagreement",
		})
	}
}

// checkActionReferences verifies that every action item's issue references
// resolve to existing canonical issues.
func checkActionReferences(brief *review.Brief, canonicals []*review.CanonicalIssue, result *review.ValidationResult) {
	known := make(map[string]bool, len(canonicals))
	for _, ci := range canonicals {
		known[ci.CanonicalID] = true
	}

	for _, item := range brief.ActionChecklist {
		if len(item.CanonicalIDs) == 0 {
			result.IssuesFound = append(result.IssuesFound, review.ValidationIssue{
				Stage:   review.StageSynthesize,
				Code:    review.CheckDanglingActionReference,
				Message: fmt.Sprintf("action item %q references no canonical issue", item.Text),
			})
			continue
		}
		for _, id := range item.CanonicalIDs {
			if !known[id] {
				result.IssuesFound = append(result.IssuesFound, review.ValidationIssue{
					Stage:   review.StageSynthesize,
					Code:    review.CheckDanglingActionReference,
					Message: fmt.Sprintf("action item %q references unknown canonical issue %s", item.Text, id),
				})
			}
		}
	}
}

// checkTier recomputes the confidence tier from the Brief's own distribution
// and requires them to agree.
func checkTier(brief *review.Brief, result *review.ValidationResult) {
	labeled := 0
	plurality := 0
	for _, count := range brief.Consensus.RecommendationDistribution {
		labeled += count
		if count > plurality {
			plurality = count
		}
	}
	if labeled == 0 {
		return
	}

	share := float64(plurality) / float64(labeled)
	var want review.ConfidenceTier
	switch {
	case share >= 0.90:
		want = review.TierUnanimous
	case share >= 0.60:
		want = review.TierStrongMajority
	default:
		want = review.TierSplit
	}

	if brief.Consensus.ConfidenceTier != want {
		result.IssuesFound = append(result.IssuesFound, review.ValidationIssue{
			Stage: review.StageSynthesize,
			Code:  review.CheckTierMismatch,
			Message: fmt.Sprintf("confidence tier %s inconsistent with distribution (plurality share %.2f implies %s)",
				brief.Consensus.ConfidenceTier, share, want),
		})
	}
}

// holisticChecks are plausibility signals that lower confidence without
// failing the Brief.
func holisticChecks(in Input, result *review.ValidationResult) {
	if in.Brief.IncompleteInput {
		result.Warnings = append(result.Warnings, "brief was synthesized from an incomplete review set")
	}
	if len(in.Reviews) >= 2 && len(in.Canonicals) == 0 {
		result.Warnings = append(result.Warnings, "multiple reviews produced no issues at all")
	}
	if len(in.Brief.MajorIssues) > 0 && in.Brief.Consensus.ConfidenceTier == review.TierUnanimous {
		if in.Brief.Consensus.RecommendationDistribution[review.RecommendationAccept] > 0 {
			result.Warnings = append(result.Warnings, "unanimous accept despite outstanding major issues")
		}
	}
	result.Warnings = append(result.Warnings, in.Brief.Warnings...)
}

// score derives the confidence score from the check outcome.
func score(result *review.ValidationResult) int {
	s := 100 - deterministicPenalty*len(result.IssuesFound) - warningPenalty*len(result.Warnings)
	if s < 0 {
		s = 0
	}
	return s
}

// RetryStages returns the distinct stages responsible for the failures, in
// a fixed order (extract before synthesize). Used by the orchestrator to
// route bounded retries.
func RetryStages(result *review.ValidationResult) []string {
	stages := make(map[string]bool)
	for _, issue := range result.IssuesFound {
		stages[issue.Stage] = true
	}
	var out []string
	if stages[review.StageExtract] {
		out = append(out, review.StageExtract)
	}
	if stages[review.StageSynthesize] {
		out = append(out, review.StageSynthesize)
	}
	return out
}

// OffendingReviews returns the review IDs named by evidence failures, so
// the orchestrator can re-extract just those reviews.
func OffendingReviews(result *review.ValidationResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, issue := range result.IssuesFound {
		if issue.Stage == review.StageExtract && issue.ReviewID != "" && !seen[issue.ReviewID] {
			seen[issue.ReviewID] = true
			out = append(out, issue.ReviewID)
		}
	}
	return out
}

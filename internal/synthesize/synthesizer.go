// Package synthesize reduces a manuscript's canonical issues and source
// reviews into one Brief: consensus snapshot, ranked issue lists, explicit
// disagreements, an action checklist, and the traceability index. All
// orderings are fixed total orders so repeated runs on identical input
// produce identical Briefs.
package synthesize

import (
	"context"
	"fmt"
	"sort"

	"github.com/Shikha-SShikha/peerlens/internal/oracle"
	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// Tier thresholds on the plurality share of labeled recommendations.
const (
	unanimousShare      = 0.90
	strongMajorityShare = 0.60
)

// Input carries everything the Synthesizer needs for one manuscript.
type Input struct {
	ManuscriptID    string
	Title           string
	Reviews         []*review.Review
	Canonicals      []*review.CanonicalIssue
	Issues          []*review.Issue // resolver input, needed to invert membership into excerpts
	IncompleteInput bool
	Warnings        []string
}

// Synthesizer builds Briefs. The deterministic parts (consensus, ranking,
// disagreements, traceability) are computed here; the free-form parts
// (action item wording, open questions) come from the oracle draft.
type Synthesizer struct {
	oracle oracle.Oracle
}

// New creates a Synthesizer.
func New(o oracle.Oracle) *Synthesizer {
	return &Synthesizer{oracle: o}
}

// Synthesize reduces one manuscript's resolved state into a Brief.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (*review.Brief, error) {
	if in.ManuscriptID == "" {
		return nil, fmt.Errorf("manuscript_id cannot be empty")
	}

	issueByID := make(map[string]*review.Issue, len(in.Issues))
	for _, issue := range in.Issues {
		issueByID[issue.IssueID] = issue
	}

	brief := &review.Brief{
		ManuscriptID:    in.ManuscriptID,
		ManuscriptTitle: in.Title,
		IncompleteInput: in.IncompleteInput,
		Warnings:        append([]string(nil), in.Warnings...),
	}

	consensus, warnings := buildConsensus(in.Reviews)
	brief.Consensus = consensus
	brief.Warnings = append(brief.Warnings, warnings...)

	brief.MajorIssues, brief.MinorIssues = rankIssues(in.Canonicals)
	brief.Disagreements = findDisagreements(in.Reviews, in.Canonicals, issueByID)
	brief.TraceabilityIndex = buildTraceabilityIndex(in.Canonicals, issueByID)

	draft, err := s.oracle.DraftSynthesis(ctx, oracle.SynthesisRequest{
		ManuscriptID:    in.ManuscriptID,
		CanonicalIssues: deref(in.Canonicals),
		Reviews:         derefReviews(in.Reviews),
	})
	if err != nil {
		return nil, fmt.Errorf("oracle synthesis draft: %w", err)
	}

	for _, item := range draft.ActionItems {
		if item.Text == "" {
			continue
		}
		if len(item.CanonicalIDs) == 0 {
			// A checklist item with nothing to point at is a construction
			// defect, surfaced rather than silently emitted.
			return nil, fmt.Errorf("action item %q: %w", item.Text, review.ErrDanglingActionReference)
		}
		brief.ActionChecklist = append(brief.ActionChecklist, review.ActionItem{
			Text:         item.Text,
			CanonicalIDs: item.CanonicalIDs,
		})
	}
	brief.OpenQuestions = draft.OpenQuestions

	return brief, nil
}

// buildConsensus aggregates recommendation labels and derives the confidence
// tier from the plurality share of labeled reviews.
func buildConsensus(reviews []*review.Review) (review.ConsensusSnapshot, []string) {
	distribution := make(map[string]int)
	labeled := 0
	for _, rev := range reviews {
		if rev.Recommendation == "" {
			continue
		}
		distribution[rev.Recommendation]++
		labeled++
	}

	snapshot := review.ConsensusSnapshot{RecommendationDistribution: distribution}
	if labeled == 0 {
		snapshot.ConfidenceTier = review.TierSplit
		return snapshot, []string{"no reviewer provided a recommendation label"}
	}

	plurality := 0
	for _, count := range distribution {
		if count > plurality {
			plurality = count
		}
	}
	share := float64(plurality) / float64(labeled)

	switch {
	case share >= unanimousShare:
		snapshot.ConfidenceTier = review.TierUnanimous
	case share >= strongMajorityShare:
		snapshot.ConfidenceTier = review.TierStrongMajority
	default:
		snapshot.ConfidenceTier = review.TierSplit
	}
	return snapshot, nil
}

// rankIssues splits canonical issues into major/minor lists, each sorted by
// (severity desc, reviewer count desc, first-seen order asc). The incoming
// slice is already in first-seen order, so a stable sort preserves that as
// the final tie-break.
func rankIssues(canonicals []*review.CanonicalIssue) (major, minor []review.RankedIssue) {
	ranked := make([]review.RankedIssue, 0, len(canonicals))
	for _, ci := range canonicals {
		ranked = append(ranked, review.RankedIssue{
			CanonicalID:   ci.CanonicalID,
			Category:      ci.Category,
			Severity:      ci.Severity,
			Description:   ci.RepresentativeDescription,
			ReviewerCount: len(ci.ReviewerIDs),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Severity.Rank() != ranked[j].Severity.Rank() {
			return ranked[i].Severity.Rank() > ranked[j].Severity.Rank()
		}
		return ranked[i].ReviewerCount > ranked[j].ReviewerCount
	})

	for _, entry := range ranked {
		if entry.Severity == review.SeverityMajor {
			major = append(major, entry)
		} else {
			minor = append(minor, entry)
		}
	}
	return major, minor
}

// findDisagreements derives explicit conflicts. A mere count split in
// otherwise-agreeing recommendations is not a disagreement; only severity
// conflicts over one underlying concern and recommendation spreads crossing
// more than one category boundary qualify.
func findDisagreements(reviews []*review.Review, canonicals []*review.CanonicalIssue, issueByID map[string]*review.Issue) []review.Disagreement {
	var out []review.Disagreement

	// Severity conflicts: members of one canonical concern assessed at
	// different severities by different reviewers.
	for _, ci := range canonicals {
		var majors, minors []string
		for _, id := range ci.MemberIssueIDs {
			issue, ok := issueByID[id]
			if !ok {
				continue
			}
			if issue.Severity == review.SeverityMajor {
				majors = append(majors, issue.ReviewerID)
			} else {
				minors = append(minors, issue.ReviewerID)
			}
		}
		if len(majors) > 0 && len(minors) > 0 {
			out = append(out, review.Disagreement{
				Kind:        review.DisagreementSeverityConflict,
				CanonicalID: ci.CanonicalID,
				Summary: fmt.Sprintf("reviewers disagree on the severity of %q (%d major vs %d minor)",
					ci.RepresentativeDescription, len(majors), len(minors)),
				ReviewerIDs: review.DedupReviewers(append(majors, minors...)),
			})
		}
	}

	// Recommendation spread: labels spanning more than one category boundary.
	minRank, maxRank := -1, -1
	var minLabel, maxLabel string
	var labeledReviewers []string
	for _, rev := range reviews {
		rank, known := review.RecommendationRank(rev.Recommendation)
		if !known {
			continue
		}
		labeledReviewers = append(labeledReviewers, rev.ReviewerID)
		if minRank == -1 || rank < minRank {
			minRank, minLabel = rank, rev.Recommendation
		}
		if rank > maxRank {
			maxRank, maxLabel = rank, rev.Recommendation
		}
	}
	if minRank >= 0 && maxRank-minRank > 1 {
		out = append(out, review.Disagreement{
			Kind:        review.DisagreementRecommendationSpread,
			Summary:     fmt.Sprintf("recommendations span %s to %s", minLabel, maxLabel),
			ReviewerIDs: review.DedupReviewers(labeledReviewers),
		})
	}

	return out
}

// buildTraceabilityIndex inverts canonical membership back to
// (reviewer, review, excerpt) triples, in member order.
func buildTraceabilityIndex(canonicals []*review.CanonicalIssue, issueByID map[string]*review.Issue) map[string][]review.EvidenceRef {
	index := make(map[string][]review.EvidenceRef, len(canonicals))
	for _, ci := range canonicals {
		refs := make([]review.EvidenceRef, 0, len(ci.MemberIssueIDs))
		for _, id := range ci.MemberIssueIDs {
			issue, ok := issueByID[id]
			if !ok {
				continue
			}
			refs = append(refs, review.EvidenceRef{
				ReviewerID: issue.ReviewerID,
				ReviewID:   issue.SourceReviewID,
				Excerpt:    issue.EvidenceExcerpt,
			})
		}
		index[ci.CanonicalID] = refs
	}
	return index
}

func deref(in []*review.CanonicalIssue) []review.CanonicalIssue {
	out := make([]review.CanonicalIssue, 0, len(in))
	for _, ci := range in {
		out = append(out, *ci)
	}
	return out
}

func derefReviews(in []*review.Review) []review.Review {
	out := make([]review.Review, 0, len(in))
	for _, rev := range in {
		out = append(out, *rev)
	}
	return out
}

// Package extract turns one review document into a set of evidence-backed
// Issues. Extraction is a pure function of the review text plus a fixed
// extraction policy; individual reviews are independent and safe to process
// in parallel.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Shikha-SShikha/peerlens/internal/oracle"
	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// Extractor converts reviews into Issues via the configured oracle.
type Extractor struct {
	oracle   oracle.Oracle
	taxonomy map[string]bool // allowed categories; empty = open taxonomy
}

// New creates an Extractor. A non-empty taxonomy restricts the categories
// accepted from the oracle; anything outside it is dropped with a warning.
func New(o oracle.Oracle, taxonomy []string) *Extractor {
	allowed := make(map[string]bool, len(taxonomy))
	for _, cat := range taxonomy {
		allowed[cat] = true
	}
	return &Extractor{oracle: o, taxonomy: allowed}
}

// Extract returns the Issues extracted from one review, plus warnings for
// every candidate claim that was dropped. A dropped claim is never fatal:
// fabricating evidence would be worse than losing a claim, so a draft whose
// excerpt does not locate verbatim in the review text is discarded
// (EvidenceMissing) rather than repaired.
func (e *Extractor) Extract(ctx context.Context, rev *review.Review) ([]*review.Issue, []string, error) {
	if err := rev.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid review: %w", err)
	}

	drafts, err := e.oracle.ExtractClaims(ctx, rev)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle extraction for review %s: %w", rev.ReviewID, err)
	}

	var issues []*review.Issue
	var warnings []string
	seen := make(map[string]bool)
	ordinal := 0

	for _, draft := range drafts {
		if draft.Category == "" {
			warnings = append(warnings, fmt.Sprintf("review %s: dropped claim with empty category", rev.ReviewID))
			continue
		}
		if len(e.taxonomy) > 0 && !e.taxonomy[draft.Category] {
			warnings = append(warnings, fmt.Sprintf("review %s: dropped claim with category %q outside taxonomy", rev.ReviewID, draft.Category))
			continue
		}

		severity := draft.Severity
		if severity.Validate() != nil {
			warnings = append(warnings, fmt.Sprintf("review %s: normalized unknown severity %q to MINOR", rev.ReviewID, draft.Severity))
			severity = review.SeverityMinor
		}

		issue, err := review.NewIssue(rev, ordinal, draft.Category, severity, draft.Description, draft.Excerpt)
		if err != nil {
			if errors.Is(err, review.ErrEvidenceMissing) {
				log.Printf("[Extractor] review %s: evidence missing, claim dropped: %q", rev.ReviewID, draft.Description)
				warnings = append(warnings, fmt.Sprintf("review %s: dropped claim without verbatim evidence", rev.ReviewID))
				continue
			}
			warnings = append(warnings, fmt.Sprintf("review %s: dropped malformed claim: %v", rev.ReviewID, err))
			continue
		}

		// Issue IDs are content hashes, so a review that repeats the same
		// flaggable sentence produces colliding IDs. Keeping both would put
		// one ID in two cluster member lists downstream.
		if seen[issue.IssueID] {
			warnings = append(warnings, fmt.Sprintf("review %s: dropped duplicate claim %q", rev.ReviewID, draft.Description))
			continue
		}
		seen[issue.IssueID] = true

		issues = append(issues, issue)
		ordinal++
	}

	return issues, warnings, nil
}

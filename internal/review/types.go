// Package review defines the core data model for the peerlens synthesis
// pipeline: Reviews flow in from the ingestion collaborator, the pipeline
// derives Issues and CanonicalIssues from them, and one Brief plus one
// ValidationResult flow out per manuscript.
//
// All pipeline artifacts are immutable once constructed. Issues enforce the
// traceability contract at construction time: an evidence excerpt that is
// not a verbatim substring of its source review text cannot become an Issue.
package review

import (
	"fmt"
	"sort"
	"strings"
)

// Severity classifies how serious an extracted issue is.
type Severity string

const (
	// SeverityMajor marks issues that must be addressed before acceptance.
	SeverityMajor Severity = "MAJOR"

	// SeverityMinor marks issues that are advisory or cosmetic.
	SeverityMinor Severity = "MINOR"
)

// Rank returns a comparable weight for severity ordering (higher = more severe).
func (s Severity) Rank() int {
	if s == SeverityMajor {
		return 2
	}
	return 1
}

// Validate checks if the Severity is a valid enum value.
func (s Severity) Validate() error {
	switch s {
	case SeverityMajor, SeverityMinor:
		return nil
	default:
		return fmt.Errorf("unknown severity: %q", s)
	}
}

// MaxSeverity returns the more severe of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Recommendation labels recognized from reviewer documents. The set is open
// (unknown labels are preserved verbatim in distributions), but only the
// labels below participate in recommendation-spread disagreement detection.
const (
	RecommendationAccept             = "accept"
	RecommendationAcceptWithRevisions = "accept_with_revisions"
	RecommendationMajorRevisions     = "major_revisions"
	RecommendationReject             = "reject"
)

// recommendationRank orders known labels from most to least favorable.
var recommendationRank = map[string]int{
	RecommendationAccept:              0,
	RecommendationAcceptWithRevisions: 1,
	RecommendationMajorRevisions:      2,
	RecommendationReject:              3,
}

// RecommendationRank returns the category position of a known recommendation
// label. The second return is false for unknown or empty labels.
func RecommendationRank(label string) (int, bool) {
	r, ok := recommendationRank[label]
	return r, ok
}

// ConfidenceTier summarizes how concentrated reviewer recommendations are.
type ConfidenceTier string

const (
	// TierUnanimous means the plurality label holds at least 90% of recommendations.
	TierUnanimous ConfidenceTier = "unanimous"

	// TierStrongMajority means the plurality label holds at least 60% but under 90%.
	TierStrongMajority ConfidenceTier = "strong_majority"

	// TierSplit means no label reaches 60%.
	TierSplit ConfidenceTier = "split"
)

// Validate checks if the ConfidenceTier is a valid enum value.
func (t ConfidenceTier) Validate() error {
	switch t {
	case TierUnanimous, TierStrongMajority, TierSplit:
		return nil
	default:
		return fmt.Errorf("unknown confidence tier: %q", t)
	}
}

// Status is the terminal state of a validated Brief.
type Status string

const (
	// StatusValidated means all deterministic checks passed within the retry budget.
	StatusValidated Status = "validated"

	// StatusNeedsManualReview means the retry budget was exhausted without a
	// passing validation. The Brief is still delivered.
	StatusNeedsManualReview Status = "needs_manual_review"
)

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusValidated, StatusNeedsManualReview:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", s)
	}
}

// Review is one reviewer document about one manuscript. Reviews are owned by
// the ingestion collaborator and are read-only to the pipeline.
type Review struct {
	ManuscriptID   string `json:"manuscript_id"`
	ReviewID       string `json:"review_id"`
	ReviewerID     string `json:"reviewer_id"`
	Text           string `json:"text"`
	Recommendation string `json:"recommendation,omitempty"` // empty = reviewer gave no label
	WordCount      int    `json:"word_count"`
}

// Validate checks if the Review has valid field values.
func (r *Review) Validate() error {
	if r.ManuscriptID == "" {
		return fmt.Errorf("manuscript_id cannot be empty")
	}
	if r.ReviewID == "" {
		return fmt.Errorf("review_id cannot be empty")
	}
	if r.ReviewerID == "" {
		return fmt.Errorf("reviewer_id cannot be empty")
	}
	if r.Text == "" {
		return fmt.Errorf("review %s: text cannot be empty", r.ReviewID)
	}
	return nil
}

// Manuscript carries optional manuscript-level context supplied alongside the
// review stream. Only the ID is required; the rest enriches the Brief.
type Manuscript struct {
	ManuscriptID string `json:"manuscript_id"`
	Title        string `json:"title,omitempty"`
	Abstract     string `json:"abstract,omitempty"`
	DOI          string `json:"doi,omitempty"`
	Source       string `json:"source,omitempty"`
	NumReviews   int    `json:"num_reviews,omitempty"`
}

// Issue is a single evidence-backed claim extracted from one review.
// Construct via NewIssue, which enforces the traceability contract.
type Issue struct {
	IssueID         string   `json:"issue_id"`
	ManuscriptID    string   `json:"manuscript_id"`
	SourceReviewID  string   `json:"source_review_id"`
	ReviewerID      string   `json:"reviewer_id"`
	Ordinal         int      `json:"ordinal"` // position within the source review's extraction order
	Category        string   `json:"category"`
	Severity        Severity `json:"severity"`
	Description     string   `json:"description"`
	EvidenceExcerpt string   `json:"evidence_excerpt"`
}

// NewIssue constructs an Issue from an extracted claim, enforcing that the
// evidence excerpt locates verbatim inside the source review's text. A claim
// whose excerpt cannot be found returns ErrEvidenceMissing and must be
// dropped by the caller, never fabricated.
func NewIssue(rev *Review, ordinal int, category string, severity Severity, description, excerpt string) (*Issue, error) {
	if err := rev.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source review: %w", err)
	}
	if category == "" {
		return nil, fmt.Errorf("issue category cannot be empty")
	}
	if err := severity.Validate(); err != nil {
		return nil, err
	}
	if description == "" {
		return nil, fmt.Errorf("issue description cannot be empty")
	}
	if excerpt == "" || !strings.Contains(rev.Text, excerpt) {
		return nil, fmt.Errorf("review %s: %w: excerpt is not a verbatim substring of the review text", rev.ReviewID, ErrEvidenceMissing)
	}

	issue := &Issue{
		ManuscriptID:    rev.ManuscriptID,
		SourceReviewID:  rev.ReviewID,
		ReviewerID:      rev.ReviewerID,
		Ordinal:         ordinal,
		Category:        category,
		Severity:        severity,
		Description:     description,
		EvidenceExcerpt: excerpt,
	}
	issue.IssueID = issueID(issue)
	return issue, nil
}

// Validate checks if the Issue has valid field values, including the
// verbatim-excerpt contract against the supplied source review.
func (i *Issue) Validate(source *Review) error {
	if i.IssueID == "" {
		return fmt.Errorf("issue_id cannot be empty")
	}
	if i.ManuscriptID == "" {
		return fmt.Errorf("manuscript_id cannot be empty")
	}
	if err := i.Severity.Validate(); err != nil {
		return fmt.Errorf("issue %s: %w", i.IssueID, err)
	}
	if source != nil {
		if source.ReviewID != i.SourceReviewID {
			return fmt.Errorf("issue %s: source review mismatch (%s != %s)", i.IssueID, source.ReviewID, i.SourceReviewID)
		}
		if !strings.Contains(source.Text, i.EvidenceExcerpt) {
			return fmt.Errorf("issue %s: %w", i.IssueID, ErrEvidenceMissing)
		}
	}
	return nil
}

// SortKey returns the stable ordering key for an issue: original extraction
// order within its review, reviews ordered by ID. Stages that depend on order
// must sort by this key rather than relying on arrival order.
func (i *Issue) SortKey() string {
	return fmt.Sprintf("%s\x1f%08d", i.SourceReviewID, i.Ordinal)
}

// CanonicalIssue is a cluster of Issues judged semantically equivalent, with
// one representative description. Created only by the Resolver; immutable
// after the resolution pass completes.
type CanonicalIssue struct {
	CanonicalID               string   `json:"canonical_id"`
	ManuscriptID              string   `json:"manuscript_id"`
	Category                  string   `json:"category"`
	Severity                  Severity `json:"severity"`
	RepresentativeDescription string   `json:"representative_description"`
	MemberIssueIDs            []string `json:"member_issue_ids"`
	ReviewerIDs               []string `json:"reviewer_ids"`
}

// Validate checks if the CanonicalIssue has valid field values.
func (c *CanonicalIssue) Validate() error {
	if c.CanonicalID == "" {
		return fmt.Errorf("canonical_id cannot be empty")
	}
	if c.ManuscriptID == "" {
		return fmt.Errorf("manuscript_id cannot be empty")
	}
	if err := c.Severity.Validate(); err != nil {
		return fmt.Errorf("canonical issue %s: %w", c.CanonicalID, err)
	}
	if len(c.MemberIssueIDs) == 0 {
		return fmt.Errorf("canonical issue %s: member_issue_ids cannot be empty", c.CanonicalID)
	}
	if c.RepresentativeDescription == "" {
		return fmt.Errorf("canonical issue %s: representative description cannot be empty", c.CanonicalID)
	}
	return nil
}

// EvidenceRef is one supporting excerpt in the traceability index. ReviewID
// identifies the document the excerpt must locate in verbatim.
type EvidenceRef struct {
	ReviewerID string `json:"reviewer_id"`
	ReviewID   string `json:"review_id"`
	Excerpt    string `json:"excerpt"`
}

// RankedIssue is one entry in a Brief's major or minor issue list.
type RankedIssue struct {
	CanonicalID   string   `json:"canonical_id"`
	Category      string   `json:"category"`
	Severity      Severity `json:"severity"`
	Description   string   `json:"description"`
	ReviewerCount int      `json:"reviewer_count"`
}

// Disagreement kinds recognized by the Synthesizer.
const (
	// DisagreementSeverityConflict records reviewers assessing the same
	// underlying concern at different severities.
	DisagreementSeverityConflict = "severity_conflict"

	// DisagreementRecommendationSpread records recommendations spanning more
	// than one category boundary.
	DisagreementRecommendationSpread = "recommendation_spread"
)

// Disagreement is an explicit conflict surfaced in a Brief.
type Disagreement struct {
	Kind        string   `json:"kind"`
	CanonicalID string   `json:"canonical_id,omitempty"` // set for severity conflicts
	Summary     string   `json:"summary"`
	ReviewerIDs []string `json:"reviewer_ids,omitempty"`
}

// ActionItem is one entry in a Brief's action checklist. Every item must
// reference at least one existing canonical issue.
type ActionItem struct {
	Text         string   `json:"text"`
	CanonicalIDs []string `json:"canonical_ids"`
}

// ConsensusSnapshot aggregates reviewer recommendations for a manuscript.
type ConsensusSnapshot struct {
	RecommendationDistribution map[string]int `json:"recommendation_distribution"`
	ConfidenceTier             ConfidenceTier `json:"confidence_tier"`
}

// Brief is the synthesized per-manuscript output artifact. One Brief exists
// per manuscript; it may be revised in place during a bounded retry cycle
// and is finalized by the Validator.
type Brief struct {
	ManuscriptID      string                   `json:"manuscript_id"`
	ManuscriptTitle   string                   `json:"manuscript_title,omitempty"`
	Consensus         ConsensusSnapshot        `json:"consensus_snapshot"`
	MajorIssues       []RankedIssue            `json:"major_issues"`
	MinorIssues       []RankedIssue            `json:"minor_issues"`
	Disagreements     []Disagreement           `json:"disagreements"`
	ActionChecklist   []ActionItem             `json:"action_checklist"`
	OpenQuestions     []string                 `json:"open_questions"`
	TraceabilityIndex map[string][]EvidenceRef `json:"traceability_index"`
	IncompleteInput   bool                     `json:"incomplete_input,omitempty"`
	Warnings          []string                 `json:"warnings,omitempty"`
}

// Validate checks structural integrity of the Brief. Semantic checks
// (verbatim excerpts, disagreement conditions) belong to the Validator.
func (b *Brief) Validate() error {
	if b.ManuscriptID == "" {
		return fmt.Errorf("manuscript_id cannot be empty")
	}
	if err := b.Consensus.ConfidenceTier.Validate(); err != nil {
		return err
	}
	for _, item := range b.ActionChecklist {
		if item.Text == "" {
			return fmt.Errorf("action item text cannot be empty")
		}
		if len(item.CanonicalIDs) == 0 {
			return fmt.Errorf("action item %q: %w", item.Text, ErrDanglingActionReference)
		}
	}
	return nil
}

// Validation check codes emitted by the Validator.
const (
	CheckMissingEvidence         = "missing_evidence"
	CheckExcerptMismatch         = "excerpt_mismatch"
	CheckMissingDisagreement     = "missing_disagreement"
	CheckDanglingActionReference = "dangling_action_reference"
	CheckTierMismatch            = "tier_mismatch"
)

// Pipeline stage names, used to route validation failures back to the
// responsible stage.
const (
	StageExtract    = "extract"
	StageResolve    = "resolve"
	StageSynthesize = "synthesize"
	StageValidate   = "validate"
)

// ValidationIssue is one failed deterministic check, attributed to the stage
// whose retry can repair it.
type ValidationIssue struct {
	Stage    string `json:"stage"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	ReviewID string `json:"review_id,omitempty"` // set for evidence gaps, names the offending review
}

// ValidationResult is the terminal artifact attached to a Brief. It is never
// silently discarded: even a needs_manual_review result is delivered.
type ValidationResult struct {
	ManuscriptID    string            `json:"manuscript_id"`
	Passed          bool              `json:"passed"`
	ConfidenceScore int               `json:"confidence_score"` // 0..100
	IssuesFound     []ValidationIssue `json:"issues_found"`
	Warnings        []string          `json:"warnings"`
	Status          Status            `json:"status"`
}

// Validate checks if the ValidationResult has valid field values.
func (v *ValidationResult) Validate() error {
	if v.ManuscriptID == "" {
		return fmt.Errorf("manuscript_id cannot be empty")
	}
	if v.ConfidenceScore < 0 || v.ConfidenceScore > 100 {
		return fmt.Errorf("confidence_score out of range: %d", v.ConfidenceScore)
	}
	return v.Status.Validate()
}

// DedupReviewers returns a sorted, de-duplicated copy of reviewer IDs.
func DedupReviewers(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Package oracle abstracts the text-analysis capability the pipeline is
// written against. The pipeline never cares whether claims come from a
// rule-based analyzer or a remote model service; it only calls this
// interface, so implementations are swappable without touching
// orchestration code.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// ClaimDraft is a candidate claim proposed by an oracle before the Extractor
// applies the traceability contract. Excerpt must be copied verbatim from the
// review text; drafts violating that are dropped, never repaired.
type ClaimDraft struct {
	Category    string          `json:"category"`
	Severity    review.Severity `json:"severity"`
	Description string          `json:"description"`
	Excerpt     string          `json:"excerpt"`
}

// SynthesisRequest carries the resolved per-manuscript state an oracle needs
// to draft the free-form parts of a Brief.
type SynthesisRequest struct {
	ManuscriptID    string                  `json:"manuscript_id"`
	CanonicalIssues []review.CanonicalIssue `json:"canonical_issues"`
	Reviews         []review.Review         `json:"reviews"`
}

// ActionDraft is one proposed action checklist entry.
type ActionDraft struct {
	Text         string   `json:"text"`
	CanonicalIDs []string `json:"canonical_ids"`
}

// SynthesisDraft holds the oracle-authored portions of a Brief. The
// deterministic portions (consensus, ranking, disagreements, traceability)
// are computed by the Synthesizer itself.
type SynthesisDraft struct {
	ActionItems   []ActionDraft `json:"action_items"`
	OpenQuestions []string      `json:"open_questions"`
}

// Oracle is the capability interface for all external analysis calls.
// Implementations must be safe for concurrent use.
type Oracle interface {
	// ExtractClaims proposes evidence-backed claims for one review.
	ExtractClaims(ctx context.Context, rev *review.Review) ([]ClaimDraft, error)

	// ScoreSimilarity returns a semantic-equivalence score in [0,1] for two
	// issue descriptions.
	ScoreSimilarity(ctx context.Context, a, b string) (float64, error)

	// DraftSynthesis proposes action items and open questions for a
	// manuscript's resolved issues.
	DraftSynthesis(ctx context.Context, req SynthesisRequest) (SynthesisDraft, error)

	Name() string
}

// Options configures oracle construction.
type Options struct {
	// Endpoint is the base URL of the remote analysis service.
	Endpoint string

	// Model names the remote analysis model to request.
	Model string

	// APIKey authenticates remote calls. Ignored by the lexical oracle.
	APIKey string

	// Timeout bounds each remote HTTP call.
	Timeout time.Duration

	// Taxonomy restricts extraction to these categories. Empty = default set.
	Taxonomy []string
}

// New creates an oracle by kind.
func New(kind string, opts Options) (Oracle, error) {
	switch kind {
	case "lexical", "":
		return NewLexical(opts.Taxonomy), nil
	case "remote":
		return NewRemote(opts)
	default:
		return nil, fmt.Errorf("unknown oracle kind: %s", kind)
	}
}

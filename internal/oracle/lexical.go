package oracle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// defaultTaxonomy maps category names to the cue words that place a sentence
// in that category. The taxonomy is open: configuration can narrow or extend
// the category set, and an unknown category matches on its own name.
var defaultTaxonomy = map[string][]string{
	"methodology":     {"method", "methodology", "approach", "design", "protocol", "procedure", "experiment"},
	"statistics":      {"statistic", "statistical", "power analysis", "sample size", "p-value", "significance", "regression", "confidence interval"},
	"clarity":         {"unclear", "confusing", "clarity", "writing", "readability", "ambiguous", "typo", "grammar"},
	"novelty":         {"novel", "novelty", "originality", "contribution", "incremental", "prior work"},
	"reproducibility": {"reproduc", "code availability", "data availability", "replicat", "open data"},
	"references":      {"citation", "reference", "cite", "bibliography", "related work"},
	"ethics":          {"ethic", "consent", "irb", "conflict of interest", "plagiar"},
}

// majorCues mark a sentence as a MAJOR claim; everything else is MINOR.
var majorCues = []string{
	"major", "serious", "critical", "fundamental", "fatal", "invalid",
	"must", "missing", "lacks", "lacking", "fails", "failure", "flaw",
	"incorrect", "wrong", "cannot", "no ", "not ", "insufficient", "absent",
}

// stopwords excluded from similarity token sets.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "of": true, "in": true, "on": true,
	"to": true, "and": true, "or": true, "for": true, "with": true, "this": true,
	"that": true, "it": true, "its": true, "as": true, "at": true, "by": true,
	"from": true, "there": true, "their": true, "have": true, "has": true,
}

// Lexical is a deterministic, in-process oracle. It segments review text into
// sentences, classifies them against a keyword taxonomy, and scores
// similarity by token overlap. Identical input always produces identical
// output, which makes the whole pipeline reproducible without any network
// dependency.
type Lexical struct {
	taxonomy map[string][]string
}

// NewLexical creates a lexical oracle limited to the given categories.
// An empty category list uses the full default taxonomy.
func NewLexical(categories []string) *Lexical {
	if len(categories) == 0 {
		return &Lexical{taxonomy: defaultTaxonomy}
	}
	taxonomy := make(map[string][]string, len(categories))
	for _, cat := range categories {
		if cues, ok := defaultTaxonomy[cat]; ok {
			taxonomy[cat] = cues
		} else {
			// Unknown category: match on the category name itself.
			taxonomy[cat] = []string{strings.ToLower(cat)}
		}
	}
	return &Lexical{taxonomy: taxonomy}
}

// Name identifies this oracle implementation.
func (l *Lexical) Name() string { return "lexical" }

// ExtractClaims proposes one claim per sentence that matches a taxonomy
// category. Excerpts are the sentences themselves, sliced directly from the
// review text, so the verbatim contract holds by construction.
func (l *Lexical) ExtractClaims(ctx context.Context, rev *review.Review) ([]ClaimDraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var drafts []ClaimDraft
	for _, sentence := range sentences(rev.Text) {
		lower := strings.ToLower(sentence)
		category, ok := l.classify(lower)
		if !ok {
			continue
		}

		severity := review.SeverityMinor
		for _, cue := range majorCues {
			if strings.Contains(lower, cue) {
				severity = review.SeverityMajor
				break
			}
		}

		drafts = append(drafts, ClaimDraft{
			Category:    category,
			Severity:    severity,
			Description: sentence,
			Excerpt:     sentence,
		})
	}
	return drafts, nil
}

// classify returns the first matching category in deterministic (sorted
// category name) order.
func (l *Lexical) classify(lowerSentence string) (string, bool) {
	categories := make([]string, 0, len(l.taxonomy))
	for cat := range l.taxonomy {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	for _, cat := range categories {
		for _, cue := range l.taxonomy[cat] {
			if strings.Contains(lowerSentence, cue) {
				return cat, true
			}
		}
	}
	return "", false
}

// ScoreSimilarity computes Jaccard overlap of stopword-filtered token sets.
func (l *Lexical) ScoreSimilarity(ctx context.Context, a, b string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ta := tokens(a)
	tb := tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0, nil
	}

	intersection := 0
	for tok := range ta {
		if tb[tok] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union), nil
}

// DraftSynthesis proposes one action item per major canonical issue, each
// referencing the canonical issue it addresses.
func (l *Lexical) DraftSynthesis(ctx context.Context, req SynthesisRequest) (SynthesisDraft, error) {
	if err := ctx.Err(); err != nil {
		return SynthesisDraft{}, err
	}

	var draft SynthesisDraft
	for _, ci := range req.CanonicalIssues {
		if ci.Severity != review.SeverityMajor {
			continue
		}
		draft.ActionItems = append(draft.ActionItems, ActionDraft{
			Text:         fmt.Sprintf("Address %s concern: %s", ci.Category, ci.RepresentativeDescription),
			CanonicalIDs: []string{ci.CanonicalID},
		})
	}
	return draft, nil
}

// sentences splits text at sentence-ending punctuation. Returned strings are
// trimmed slices of the input, so each remains a verbatim substring.
func sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// tokens lowercases, strips punctuation, and drops stopwords.
func tokens(s string) map[string]bool {
	set := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(s)) {
		tok := strings.Trim(field, ".,;:!?()[]\"'")
		if tok == "" || stopwords[tok] {
			continue
		}
		set[tok] = true
	}
	return set
}

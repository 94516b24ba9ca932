package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shikha-SShikha/peerlens/internal/config"
	"github.com/Shikha-SShikha/peerlens/internal/oracle"
	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// fakeOracle scripts per-review extraction results and failure injection.
type fakeOracle struct {
	mu           sync.Mutex
	claims       map[string][]oracle.ClaimDraft   // review ID -> drafts
	extractFails map[string]int                   // review ID -> failures before success
	draft        oracle.SynthesisDraft            // default synthesis draft
	drafts       map[string]oracle.SynthesisDraft // manuscript ID -> draft override
	score        float64
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) ExtractClaims(ctx context.Context, rev *review.Review) ([]oracle.ClaimDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.extractFails[rev.ReviewID] > 0 {
		f.extractFails[rev.ReviewID]--
		return nil, errors.New("analysis backend unavailable")
	}
	return f.claims[rev.ReviewID], nil
}

func (f *fakeOracle) ScoreSimilarity(ctx context.Context, a, b string) (float64, error) {
	return f.score, nil
}

func (f *fakeOracle) DraftSynthesis(ctx context.Context, req oracle.SynthesisRequest) (oracle.SynthesisDraft, error) {
	if d, ok := f.drafts[req.ManuscriptID]; ok {
		return d, nil
	}
	return f.draft, nil
}

func testEngine(t *testing.T, o oracle.Oracle) *Engine {
	t.Helper()
	engine, err := New(config.Default(), o, nil)
	require.NoError(t, err)
	engine.backoffInitial = time.Millisecond
	return engine
}

func testReviews() []*review.Review {
	return []*review.Review{
		{ManuscriptID: "ms-001", ReviewID: "rev-a", ReviewerID: "alice",
			Text: "The power analysis is missing.", Recommendation: review.RecommendationMajorRevisions},
		{ManuscriptID: "ms-001", ReviewID: "rev-b", ReviewerID: "bob",
			Text: "No statistical power analysis given.", Recommendation: review.RecommendationMajorRevisions},
		{ManuscriptID: "ms-002", ReviewID: "rev-c", ReviewerID: "carol",
			Text: "Notation is dense in places.", Recommendation: review.RecommendationAccept},
	}
}

func testClaims() map[string][]oracle.ClaimDraft {
	return map[string][]oracle.ClaimDraft{
		"rev-a": {{Category: "statistics", Severity: review.SeverityMajor,
			Description: "missing power analysis", Excerpt: "The power analysis is missing."}},
		"rev-b": {{Category: "statistics", Severity: review.SeverityMajor,
			Description: "no power analysis", Excerpt: "No statistical power analysis given."}},
		"rev-c": {{Category: "clarity", Severity: review.SeverityMinor,
			Description: "dense notation", Excerpt: "Notation is dense in places."}},
	}
}

func TestRunHappyPath(t *testing.T) {
	o := &fakeOracle{claims: testClaims(), score: 0.9}
	engine := testEngine(t, o)

	result, err := engine.Run(context.Background(), testReviews(), nil)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, 0, result.ExitCode())

	first := result.Outcomes[0]
	assert.Equal(t, "ms-001", first.ManuscriptID)
	require.NotNil(t, first.Brief)
	require.NotNil(t, first.Validation)
	assert.Equal(t, review.StatusValidated, first.Validation.Status)

	// Both reviewers flagged the same concern; it must merge to one major issue.
	require.Len(t, first.Brief.MajorIssues, 1)
	assert.Equal(t, 2, first.Brief.MajorIssues[0].ReviewerCount)
	assert.False(t, first.Brief.IncompleteInput)

	second := result.Outcomes[1]
	assert.Equal(t, "ms-002", second.ManuscriptID)
	assert.Empty(t, second.Brief.MajorIssues)
	require.Len(t, second.Brief.MinorIssues, 1)

	for _, outcome := range result.Outcomes {
		for _, stage := range []string{review.StageExtract, review.StageResolve, review.StageSynthesize, review.StageValidate} {
			assert.Equal(t, StageSucceeded, outcome.State.Stage(stage).Status,
				"%s/%s", outcome.ManuscriptID, stage)
		}
	}
}

func TestRunRetriesFlakyExtraction(t *testing.T) {
	o := &fakeOracle{
		claims:       testClaims(),
		extractFails: map[string]int{"rev-a": 2}, // fails twice, budget is 3
		score:        0.9,
	}
	engine := testEngine(t, o)

	result, err := engine.Run(context.Background(), testReviews(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode())

	first := result.Outcomes[0]
	assert.Equal(t, review.StatusValidated, first.Validation.Status)
	assert.False(t, first.Brief.IncompleteInput, "recovered review must not be excluded")
	require.Len(t, first.Brief.MajorIssues, 1)
	assert.Equal(t, 2, first.Brief.MajorIssues[0].ReviewerCount)
}

func TestRunExcludesPermanentlyFailingReview(t *testing.T) {
	o := &fakeOracle{
		claims:       testClaims(),
		extractFails: map[string]int{"rev-b": 100}, // beyond any budget
		score:        0.9,
	}
	engine := testEngine(t, o)

	result, err := engine.Run(context.Background(), testReviews(), nil)
	require.NoError(t, err)

	first := result.Outcomes[0]
	require.NotNil(t, first.Brief, "the brief is delivered despite the excluded review")
	assert.True(t, first.Brief.IncompleteInput)
	require.Len(t, first.Brief.MajorIssues, 1)
	assert.Equal(t, 1, first.Brief.MajorIssues[0].ReviewerCount, "only the surviving review contributes")

	// The healthy manuscript is untouched.
	second := result.Outcomes[1]
	assert.False(t, second.Brief.IncompleteInput)
	assert.Equal(t, review.StatusValidated, second.Validation.Status)
}

func TestRunExhaustsBudgetAndFlagsManualReview(t *testing.T) {
	// ms-001's draft references a canonical issue that does not exist, and
	// keeps doing so on every retry. Validation must exhaust its budget and
	// flag that manuscript without dropping its brief, while ms-002 passes
	// untouched.
	o := &fakeOracle{
		claims: testClaims(),
		score:  0.9,
		drafts: map[string]oracle.SynthesisDraft{
			"ms-001": {ActionItems: []oracle.ActionDraft{
				{Text: "Fix the ghost", CanonicalIDs: []string{"no-such-canonical"}},
			}},
		},
	}
	engine := testEngine(t, o)

	result, err := engine.Run(context.Background(), testReviews(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ExitCode())
	assert.True(t, result.NeedsManualReview())
	assert.False(t, result.Failed())

	first := result.Outcomes[0]
	require.Equal(t, "ms-001", first.ManuscriptID)
	require.NotNil(t, first.Brief)
	require.NotNil(t, first.Validation)
	assert.Equal(t, review.StatusNeedsManualReview, first.Validation.Status)
	assert.Contains(t, first.Validation.Warnings, "retry budget exhausted; manual review required")
	assert.Equal(t, StagePermanentlyFailed, first.State.Stage(review.StageValidate).Status)

	// The healthy sibling is isolated from ms-001's failure.
	second := result.Outcomes[1]
	require.Equal(t, "ms-002", second.ManuscriptID)
	assert.Equal(t, review.StatusValidated, second.Validation.Status)
	assert.Equal(t, StageSucceeded, second.State.Stage(review.StageValidate).Status)
}

func TestRunAllExtractionFailing(t *testing.T) {
	o := &fakeOracle{
		claims:       testClaims(),
		extractFails: map[string]int{"rev-a": 100, "rev-b": 100, "rev-c": 100},
		score:        0.9,
	}
	engine := testEngine(t, o)

	result, err := engine.Run(context.Background(), testReviews(), nil)
	require.NoError(t, err)

	for _, outcome := range result.Outcomes {
		require.NotNil(t, outcome.Brief, "a brief is still produced from an empty issue set")
		assert.True(t, outcome.Brief.IncompleteInput)
		assert.Empty(t, outcome.Brief.MajorIssues)
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := &fakeOracle{claims: testClaims(), score: 0.9}
	engine := testEngine(t, o)

	result, err := engine.Run(ctx, testReviews(), nil)
	require.NoError(t, err)
	for _, outcome := range result.Outcomes {
		assert.Error(t, outcome.Err, "cancelled manuscripts surface their error")
	}
}

func TestRunResultExitCodes(t *testing.T) {
	t.Run("fatal beats manual review", func(t *testing.T) {
		r := &RunResult{Outcomes: []*Outcome{
			{ManuscriptID: "a", Err: errors.New("boom")},
			{ManuscriptID: "b", Validation: &review.ValidationResult{Status: review.StatusNeedsManualReview}},
		}}
		assert.Equal(t, 1, r.ExitCode())
	})

	t.Run("manual review beats success", func(t *testing.T) {
		r := &RunResult{Outcomes: []*Outcome{
			{ManuscriptID: "a", Validation: &review.ValidationResult{Status: review.StatusValidated}},
			{ManuscriptID: "b", Validation: &review.ValidationResult{Status: review.StatusNeedsManualReview}},
		}}
		assert.Equal(t, 2, r.ExitCode())
	})

	t.Run("all validated is clean", func(t *testing.T) {
		r := &RunResult{Outcomes: []*Outcome{
			{ManuscriptID: "a", Validation: &review.ValidationResult{Status: review.StatusValidated}},
		}}
		assert.Equal(t, 0, r.ExitCode())
	})
}

func TestStageStateTransitions(t *testing.T) {
	st := &StageState{Stage: review.StageExtract, Status: StagePending}

	st.MarkRunning()
	assert.Equal(t, StageRunning, st.Status)
	assert.Equal(t, 1, st.Attempts)

	st.MarkFailed(errors.New("transient"))
	assert.Equal(t, StageFailedRetryable, st.Status)
	assert.Equal(t, "transient", st.LastError)

	st.MarkRetrying()
	assert.Equal(t, StageRetrying, st.Status)

	st.MarkRunning()
	assert.Equal(t, 2, st.Attempts)

	st.MarkSucceeded()
	assert.Equal(t, StageSucceeded, st.Status)
	assert.False(t, st.EndedAt.IsZero())
}

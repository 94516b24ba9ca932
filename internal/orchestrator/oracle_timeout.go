package orchestrator

import (
	"context"
	"time"

	"github.com/Shikha-SShikha/peerlens/internal/oracle"
	"github.com/Shikha-SShikha/peerlens/internal/review"
)

// timeoutOracle bounds every external analysis call with a per-call timeout,
// so a hung call counts against the stage's retry budget instead of hanging
// the pipeline.
type timeoutOracle struct {
	inner   oracle.Oracle
	timeout time.Duration
}

func newTimeoutOracle(inner oracle.Oracle, timeout time.Duration) oracle.Oracle {
	if timeout <= 0 {
		return inner
	}
	return &timeoutOracle{inner: inner, timeout: timeout}
}

func (t *timeoutOracle) Name() string { return t.inner.Name() }

func (t *timeoutOracle) ExtractClaims(ctx context.Context, rev *review.Review) ([]oracle.ClaimDraft, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.ExtractClaims(callCtx, rev)
}

func (t *timeoutOracle) ScoreSimilarity(ctx context.Context, a, b string) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.ScoreSimilarity(callCtx, a, b)
}

func (t *timeoutOracle) DraftSynthesis(ctx context.Context, req oracle.SynthesisRequest) (oracle.SynthesisDraft, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.DraftSynthesis(callCtx, req)
}

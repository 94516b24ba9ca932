// Package orchestrator drives the four-stage synthesis DAG per manuscript:
// extract → resolve → synthesize → validate, with a barrier between stages.
// Manuscripts are embarrassingly parallel; no manuscript's processing blocks
// another's. Failures drive a bounded-retry state machine, and a manuscript
// that exhausts its budget is delivered anyway, marked needs_manual_review.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Shikha-SShikha/peerlens/internal/config"
	"github.com/Shikha-SShikha/peerlens/internal/extract"
	"github.com/Shikha-SShikha/peerlens/internal/ingest"
	"github.com/Shikha-SShikha/peerlens/internal/oracle"
	"github.com/Shikha-SShikha/peerlens/internal/resolve"
	"github.com/Shikha-SShikha/peerlens/internal/review"
	"github.com/Shikha-SShikha/peerlens/internal/synthesize"
	"github.com/Shikha-SShikha/peerlens/internal/validate"
	"github.com/Shikha-SShikha/peerlens/pkg/briefboard"
)

const defaultBackoffInitial = 500 * time.Millisecond

// Engine coordinates the synthesis pipeline for a batch of manuscripts.
type Engine struct {
	cfg         *config.Config
	oracle      oracle.Oracle
	extractor   *extract.Extractor
	resolver    *resolve.Resolver
	synthesizer *synthesize.Synthesizer
	fallback    *synthesize.Synthesizer // draft-free synthesis for degraded output
	board       *briefboard.Client      // optional result persistence

	backoffInitial time.Duration
}

// New creates an Engine. The oracle is wrapped with the configured per-call
// timeout so no external analysis call can hang a stage. board may be nil.
func New(cfg *config.Config, o oracle.Oracle, board *briefboard.Client) (*Engine, error) {
	bounded := newTimeoutOracle(o, cfg.PerCallTimeout())

	resolver, err := resolve.New(bounded, cfg.MergeThreshold())
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:            cfg,
		oracle:         bounded,
		extractor:      extract.New(bounded, cfg.Taxonomy),
		resolver:       resolver,
		synthesizer:    synthesize.New(bounded),
		fallback:       synthesize.New(emptyDraftOracle{}),
		board:          board,
		backoffInitial: defaultBackoffInitial,
	}, nil
}

// Outcome is the per-manuscript result: the Brief and its ValidationResult
// are always present unless the manuscript failed fatally (Err set).
type Outcome struct {
	ManuscriptID string                   `json:"manuscript_id"`
	Brief        *review.Brief            `json:"brief,omitempty"`
	Validation   *review.ValidationResult `json:"validation,omitempty"`
	State        *ManuscriptState         `json:"state,omitempty"`
	FailedStage  string                   `json:"failed_stage,omitempty"`
	Err          error                    `json:"-"`
	ErrMessage   string                   `json:"error,omitempty"`
}

// RunResult aggregates the outcomes of one pipeline run.
type RunResult struct {
	RunID    string     `json:"run_id"`
	Outcomes []*Outcome `json:"outcomes"`
}

// NeedsManualReview reports whether any manuscript ended needs_manual_review.
func (r *RunResult) NeedsManualReview() bool {
	for _, o := range r.Outcomes {
		if o.Validation != nil && o.Validation.Status == review.StatusNeedsManualReview {
			return true
		}
	}
	return false
}

// Failed reports whether any manuscript failed fatally.
func (r *RunResult) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}

// ExitCode maps the run outcome to the command exit contract:
// 0 full success, 2 any needs_manual_review, 1 unrecoverable failure.
func (r *RunResult) ExitCode() int {
	if r.Failed() {
		return 1
	}
	if r.NeedsManualReview() {
		return 2
	}
	return 0
}

// Run processes every manuscript present in the review stream. Manuscripts
// run concurrently up to the configured worker limit; a failure in one never
// aborts the others.
func (e *Engine) Run(ctx context.Context, reviews []*review.Review, manuscripts map[string]*review.Manuscript) (*RunResult, error) {
	grouped, ids := ingest.GroupByManuscript(reviews)
	runID := uuid.New().String()

	e.logEvent("run_started", map[string]interface{}{
		"run_id":      runID,
		"manuscripts": len(ids),
		"reviews":     len(reviews),
		"oracle":      e.oracle.Name(),
	})

	outcomes := make(map[string]*Outcome, len(ids))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.cfg.Orchestrator.ManuscriptWorkers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			title := ""
			if m, ok := manuscripts[id]; ok {
				title = m.Title
			}
			outcome := e.processManuscript(ctx, runID, id, grouped[id], title)
			mu.Lock()
			outcomes[id] = outcome
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &RunResult{RunID: runID}
	for _, id := range ids {
		result.Outcomes = append(result.Outcomes, outcomes[id])
	}

	e.logEvent("run_finished", map[string]interface{}{
		"run_id":    runID,
		"exit_code": result.ExitCode(),
	})
	return result, nil
}

// processManuscript executes the stage DAG for one manuscript. It never
// panics the batch: a fatal error is captured on the Outcome.
func (e *Engine) processManuscript(ctx context.Context, runID, manuscriptID string, revs []*review.Review, title string) *Outcome {
	state := NewManuscriptState(manuscriptID, runID,
		review.StageExtract, review.StageResolve, review.StageSynthesize, review.StageValidate)
	outcome := &Outcome{ManuscriptID: manuscriptID, State: state}

	fail := func(stage string, err error) *Outcome {
		state.Stage(stage).MarkPermanentlyFailed(err)
		outcome.FailedStage = stage
		outcome.Err = err
		outcome.ErrMessage = err.Error()
		e.logEvent("manuscript_failed", map[string]interface{}{
			"manuscript_id": manuscriptID,
			"stage":         stage,
			"error":         err.Error(),
		})
		return outcome
	}

	// Stage 1: extraction, all reviews concurrently, barrier before resolve.
	issues, warnings, excluded, err := e.extractAll(ctx, state, revs)
	if err != nil {
		return fail(review.StageExtract, err)
	}
	incomplete := len(excluded) > 0

	// Stage 2: dedup into canonical issues.
	canonicals, resolveWarnings, err := e.resolveStage(ctx, state, issues)
	if err != nil {
		return fail(review.StageResolve, err)
	}
	warnings = append(warnings, resolveWarnings...)

	// Stage 3: synthesis.
	brief, synthWarnings, err := e.synthesizeStage(ctx, state, synthesize.Input{
		ManuscriptID:    manuscriptID,
		Title:           title,
		Reviews:         revs,
		Canonicals:      canonicals,
		Issues:          issues,
		IncompleteInput: incomplete,
		Warnings:        warnings,
	})
	if err != nil {
		return fail(review.StageSynthesize, err)
	}
	warnings = append(warnings, synthWarnings...)

	// Stage 4: validation with bounded retries of the responsible stages.
	result, brief, err := e.validateLoop(ctx, state, brief, revs, canonicals, issues, title, incomplete, warnings)
	if err != nil {
		return fail(review.StageValidate, err)
	}

	outcome.Brief = brief
	outcome.Validation = result
	e.persist(ctx, outcome)

	e.logEvent("manuscript_finished", map[string]interface{}{
		"manuscript_id": manuscriptID,
		"status":        string(result.Status),
		"confidence":    result.ConfidenceScore,
		"major_issues":  len(brief.MajorIssues),
	})
	return outcome
}

// extractAll runs every review's extraction concurrently under the bounded
// worker pool. A review that permanently fails is excluded rather than
// blocking the manuscript; exclusions surface as warnings.
func (e *Engine) extractAll(ctx context.Context, state *ManuscriptState, revs []*review.Review) (issues []*review.Issue, warnings, excluded []string, err error) {
	st := state.Stage(review.StageExtract)
	st.MarkRunning()

	type reviewResult struct {
		issues   []*review.Issue
		warnings []string
		err      error
	}
	results := make([]reviewResult, len(revs))

	var g errgroup.Group
	g.SetLimit(e.cfg.Orchestrator.ExtractionWorkers)
	for i, rev := range revs {
		i, rev := i, rev
		g.Go(func() error {
			iss, warns, extractErr := e.extractOne(ctx, rev)
			results[i] = reviewResult{issues: iss, warnings: warns, err: extractErr}
			return nil
		})
	}
	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, nil, waitErr
	}
	if ctx.Err() != nil {
		st.MarkPermanentlyFailed(ctx.Err())
		return nil, nil, nil, ctx.Err()
	}

	for i, res := range results {
		if res.err != nil {
			excluded = append(excluded, revs[i].ReviewID)
			warnings = append(warnings, fmt.Sprintf("review %s excluded after repeated extraction failures: %v", revs[i].ReviewID, res.err))
			continue
		}
		issues = append(issues, res.issues...)
		warnings = append(warnings, res.warnings...)
	}

	st.MarkSucceeded()
	return issues, warnings, excluded, nil
}

// extractOne extracts a single review with bounded retries and backoff.
func (e *Engine) extractOne(ctx context.Context, rev *review.Review) ([]*review.Issue, []string, error) {
	bo := e.newBackOff()
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries(); attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, bo.NextBackOff()); err != nil {
				return nil, nil, err
			}
		}
		issues, warnings, err := e.extractor.Extract(ctx, rev)
		if err == nil {
			return issues, warnings, nil
		}
		lastErr = err
		e.logEvent("extraction_attempt_failed", map[string]interface{}{
			"review_id": rev.ReviewID,
			"attempt":   attempt + 1,
			"error":     err.Error(),
		})
		if errors.Is(err, context.Canceled) {
			return nil, nil, err
		}
	}
	return nil, nil, fmt.Errorf("%w: %v", review.ErrRetryBudgetExhausted, lastErr)
}

// resolveStage runs the resolver with bounded retries. If the budget is
// exhausted (similarity scoring unavailable), it degrades to one canonical
// issue per issue instead of dropping the manuscript.
func (e *Engine) resolveStage(ctx context.Context, state *ManuscriptState, issues []*review.Issue) ([]*review.CanonicalIssue, []string, error) {
	var canonicals []*review.CanonicalIssue
	err := e.runStage(ctx, state, review.StageResolve, func() error {
		var resolveErr error
		canonicals, resolveErr = e.resolver.Resolve(ctx, issues)
		return resolveErr
	})
	if err == nil {
		return canonicals, nil, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, nil, err
	}

	// Degraded mode: no merging. Still a valid partition.
	degraded, fallbackErr := e.fallbackResolver().Resolve(ctx, issues)
	if fallbackErr != nil {
		return nil, nil, err
	}
	return degraded, []string{"issue deduplication unavailable; issues were not merged"}, nil
}

// fallbackResolver never merges: with threshold 1.0 no score can exceed it.
func (e *Engine) fallbackResolver() *resolve.Resolver {
	r, _ := resolve.New(neverSimilarOracle{}, 1.0)
	return r
}

// synthesizeStage runs the synthesizer with bounded retries, degrading to a
// draft-free Brief (no action checklist or open questions) if the budget is
// exhausted, so partial output is still delivered.
func (e *Engine) synthesizeStage(ctx context.Context, state *ManuscriptState, in synthesize.Input) (*review.Brief, []string, error) {
	var brief *review.Brief
	err := e.runStage(ctx, state, review.StageSynthesize, func() error {
		var synthErr error
		brief, synthErr = e.synthesizer.Synthesize(ctx, in)
		return synthErr
	})
	if err == nil {
		return brief, nil, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, nil, err
	}

	degraded, fallbackErr := e.fallback.Synthesize(ctx, in)
	if fallbackErr != nil {
		return nil, nil, err
	}
	warning := "synthesis draft unavailable; action checklist omitted"
	degraded.Warnings = append(degraded.Warnings, warning)
	return degraded, []string{warning}, nil
}

// validateLoop validates the Brief and retries the responsible stages on
// deterministic failures, up to the retry budget. Exhausting the budget
// marks the result needs_manual_review; the Brief is returned regardless.
func (e *Engine) validateLoop(ctx context.Context, state *ManuscriptState, brief *review.Brief, revs []*review.Review, canonicals []*review.CanonicalIssue, issues []*review.Issue, title string, incomplete bool, warnings []string) (*review.ValidationResult, *review.Brief, error) {
	st := state.Stage(review.StageValidate)
	bo := e.newBackOff()

	var result *review.ValidationResult
	for attempt := 0; ; attempt++ {
		st.MarkRunning()
		result = validate.Check(validate.Input{
			Brief:      brief,
			Reviews:    revs,
			Canonicals: canonicals,
			Issues:     issues,
		})
		if result.Passed {
			st.MarkSucceeded()
			return result, brief, nil
		}

		st.MarkFailed(review.ErrValidationFailure)
		e.logEvent("validation_failed", map[string]interface{}{
			"manuscript_id": brief.ManuscriptID,
			"attempt":       attempt + 1,
			"issues_found":  len(result.IssuesFound),
			"retry_stages":  validate.RetryStages(result),
		})

		if attempt >= e.cfg.MaxRetries() {
			st.MarkPermanentlyFailed(review.ErrValidationFailure)
			result.Status = review.StatusNeedsManualReview
			result.Warnings = append(result.Warnings, "retry budget exhausted; manual review required")
			return result, brief, nil
		}

		st.MarkRetrying()
		if err := e.sleep(ctx, bo.NextBackOff()); err != nil {
			st.MarkPermanentlyFailed(err)
			return nil, nil, err
		}

		brief, canonicals, issues = e.repair(ctx, result, brief, revs, canonicals, issues, title, incomplete, warnings)
	}
}

// repair re-invokes the stages responsible for a validation failure:
// evidence gaps re-extract the offending reviews (then re-resolve and
// re-synthesize); consistency gaps re-synthesize only. Repair is best-effort;
// a failed repair leaves the previous artifacts in place so the loop can
// exhaust its budget and surface needs_manual_review.
func (e *Engine) repair(ctx context.Context, result *review.ValidationResult, brief *review.Brief, revs []*review.Review, canonicals []*review.CanonicalIssue, issues []*review.Issue, title string, incomplete bool, warnings []string) (*review.Brief, []*review.CanonicalIssue, []*review.Issue) {
	stages := validate.RetryStages(result)
	reExtract := false
	reSynthesize := false
	for _, stage := range stages {
		switch stage {
		case review.StageExtract:
			reExtract = true
		case review.StageSynthesize:
			reSynthesize = true
		}
	}

	if reExtract {
		offending := validate.OffendingReviews(result)
		target := make(map[string]bool, len(offending))
		for _, id := range offending {
			target[id] = true
		}

		kept := issues[:0:0]
		for _, issue := range issues {
			if !target[issue.SourceReviewID] {
				kept = append(kept, issue)
			}
		}
		for _, rev := range revs {
			if !target[rev.ReviewID] {
				continue
			}
			fresh, _, err := e.extractOne(ctx, rev)
			if err != nil {
				e.logEvent("repair_extraction_failed", map[string]interface{}{
					"review_id": rev.ReviewID,
					"error":     err.Error(),
				})
				continue
			}
			kept = append(kept, fresh...)
		}
		issues = kept

		resolved, err := e.resolver.Resolve(ctx, issues)
		if err != nil {
			e.logEvent("repair_resolve_failed", map[string]interface{}{"error": err.Error()})
			return brief, canonicals, issues
		}
		canonicals = resolved
		reSynthesize = true
	}

	if reSynthesize {
		fresh, err := e.synthesizer.Synthesize(ctx, synthesize.Input{
			ManuscriptID:    brief.ManuscriptID,
			Title:           title,
			Reviews:         revs,
			Canonicals:      canonicals,
			Issues:          issues,
			IncompleteInput: incomplete,
			Warnings:        warnings,
		})
		if err != nil {
			e.logEvent("repair_synthesis_failed", map[string]interface{}{"error": err.Error()})
			return brief, canonicals, issues
		}
		brief = fresh
	}

	return brief, canonicals, issues
}

// runStage executes fn under the per-stage retry state machine.
func (e *Engine) runStage(ctx context.Context, state *ManuscriptState, stage string, fn func() error) error {
	st := state.Stage(stage)
	bo := e.newBackOff()
	for {
		st.MarkRunning()
		err := fn()
		if err == nil {
			st.MarkSucceeded()
			return nil
		}

		st.MarkFailed(err)
		e.logEvent("stage_attempt_failed", map[string]interface{}{
			"manuscript_id": state.ManuscriptID,
			"stage":         stage,
			"attempt":       st.Attempts,
			"error":         err.Error(),
		})

		if errors.Is(err, context.Canceled) {
			st.MarkPermanentlyFailed(err)
			return err
		}
		if st.Attempts > e.cfg.MaxRetries() {
			st.MarkPermanentlyFailed(err)
			return fmt.Errorf("stage %s: %w: %v", stage, review.ErrRetryBudgetExhausted, err)
		}

		st.MarkRetrying()
		if sleepErr := e.sleep(ctx, bo.NextBackOff()); sleepErr != nil {
			st.MarkPermanentlyFailed(sleepErr)
			return sleepErr
		}
	}
}

// persist writes the finished outcome to the brief board, if configured.
// Persistence failures are logged, never fatal: the outcome is already in
// the caller's hands.
func (e *Engine) persist(ctx context.Context, outcome *Outcome) {
	if e.board == nil {
		return
	}
	if err := e.board.PutBrief(ctx, outcome.Brief); err != nil {
		log.Printf("[Orchestrator] failed to persist brief for %s: %v", outcome.ManuscriptID, err)
		return
	}
	if err := e.board.PutValidation(ctx, outcome.Validation); err != nil {
		log.Printf("[Orchestrator] failed to persist validation for %s: %v", outcome.ManuscriptID, err)
	}
}

// newBackOff builds the exponential backoff schedule for one retry sequence.
// Randomization is disabled so retry timing is reproducible.
func (e *Engine) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.backoffInitial
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// sleep waits out a backoff interval, honoring cancellation.
func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "orchestrator"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Orchestrator] Failed to marshal log event: %v", err)
		return
	}
	log.Println(string(jsonData))
}

// emptyDraftOracle backs the degraded synthesizer: deterministic parts only.
type emptyDraftOracle struct{}

func (emptyDraftOracle) Name() string { return "empty-draft" }
func (emptyDraftOracle) ExtractClaims(ctx context.Context, rev *review.Review) ([]oracle.ClaimDraft, error) {
	return nil, nil
}
func (emptyDraftOracle) ScoreSimilarity(ctx context.Context, a, b string) (float64, error) {
	return 0, nil
}
func (emptyDraftOracle) DraftSynthesis(ctx context.Context, req oracle.SynthesisRequest) (oracle.SynthesisDraft, error) {
	return oracle.SynthesisDraft{}, nil
}

// neverSimilarOracle backs the degraded resolver: nothing ever merges.
type neverSimilarOracle struct{}

func (neverSimilarOracle) Name() string { return "never-similar" }
func (neverSimilarOracle) ExtractClaims(ctx context.Context, rev *review.Review) ([]oracle.ClaimDraft, error) {
	return nil, nil
}
func (neverSimilarOracle) ScoreSimilarity(ctx context.Context, a, b string) (float64, error) {
	return 0, nil
}
func (neverSimilarOracle) DraftSynthesis(ctx context.Context, req oracle.SynthesisRequest) (oracle.SynthesisDraft, error) {
	return oracle.SynthesisDraft{}, nil
}

package review

import "errors"

// Sentinel errors for the pipeline failure taxonomy.
var (
	// ErrEvidenceMissing means a candidate claim had no verbatim excerpt in
	// its source review. The claim is dropped and logged; never fatal.
	ErrEvidenceMissing = errors.New("evidence excerpt missing from source text")

	// ErrAmbiguousMerge means a similarity score landed exactly on the merge
	// threshold. Resolved conservatively as no-merge.
	ErrAmbiguousMerge = errors.New("similarity score at merge threshold")

	// ErrDanglingActionReference means an action checklist item references no
	// existing canonical issue. A Synthesizer construction defect.
	ErrDanglingActionReference = errors.New("action item references no canonical issue")

	// ErrValidationFailure means a deterministic Brief check failed and the
	// responsible stage should be retried.
	ErrValidationFailure = errors.New("brief failed deterministic validation")

	// ErrRetryBudgetExhausted means a manuscript used up its retry budget.
	// Terminal per-manuscript state; output is still delivered.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

	// ErrUpstreamUnavailable means the ingestion collaborator's review stream
	// could not be read. Fatal for the affected manuscripts.
	ErrUpstreamUnavailable = errors.New("review stream unavailable")
)

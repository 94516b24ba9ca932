package orchestrator

import (
	"fmt"
	"time"
)

// StageStatus is the lifecycle state of one pipeline stage for one
// manuscript. Stages progress Pending → Running → {Succeeded,
// FailedRetryable} → Retrying → … → {Succeeded, PermanentlyFailed}.
type StageStatus string

const (
	// StagePending means the stage has not started.
	StagePending StageStatus = "pending"

	// StageRunning means an attempt is in flight.
	StageRunning StageStatus = "running"

	// StageSucceeded means the stage completed.
	StageSucceeded StageStatus = "succeeded"

	// StageFailedRetryable means the last attempt failed with retry budget left.
	StageFailedRetryable StageStatus = "failed_retryable"

	// StageRetrying means a backoff wait is in progress before the next attempt.
	StageRetrying StageStatus = "retrying"

	// StagePermanentlyFailed means the retry budget is exhausted.
	StagePermanentlyFailed StageStatus = "permanently_failed"
)

// Validate checks if the StageStatus is a valid enum value.
func (s StageStatus) Validate() error {
	switch s {
	case StagePending, StageRunning, StageSucceeded, StageFailedRetryable,
		StageRetrying, StagePermanentlyFailed:
		return nil
	default:
		return fmt.Errorf("unknown stage status: %q", s)
	}
}

// StageState tracks attempts and outcome for one stage of one manuscript.
type StageState struct {
	Stage     string      `json:"stage"`
	Status    StageStatus `json:"status"`
	Attempts  int         `json:"attempts"`
	LastError string      `json:"last_error,omitempty"`
	StartedAt time.Time   `json:"started_at,omitempty"`
	EndedAt   time.Time   `json:"ended_at,omitempty"`
}

// MarkRunning records the start of an attempt.
func (s *StageState) MarkRunning() {
	s.Status = StageRunning
	s.Attempts++
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
}

// MarkSucceeded records a successful attempt.
func (s *StageState) MarkSucceeded() {
	s.Status = StageSucceeded
	s.EndedAt = time.Now()
}

// MarkFailed records a failed attempt that still has retry budget.
func (s *StageState) MarkFailed(err error) {
	s.Status = StageFailedRetryable
	s.LastError = err.Error()
}

// MarkRetrying records that the stage is waiting out a backoff interval.
func (s *StageState) MarkRetrying() {
	s.Status = StageRetrying
}

// MarkPermanentlyFailed records retry budget exhaustion.
func (s *StageState) MarkPermanentlyFailed(err error) {
	s.Status = StagePermanentlyFailed
	if err != nil {
		s.LastError = err.Error()
	}
	s.EndedAt = time.Now()
}

// ManuscriptState tracks the stage DAG execution for one manuscript.
type ManuscriptState struct {
	ManuscriptID string                 `json:"manuscript_id"`
	RunID        string                 `json:"run_id"`
	Stages       map[string]*StageState `json:"stages"`
}

// NewManuscriptState creates state trackers for the four pipeline stages.
func NewManuscriptState(manuscriptID, runID string, stages ...string) *ManuscriptState {
	ms := &ManuscriptState{
		ManuscriptID: manuscriptID,
		RunID:        runID,
		Stages:       make(map[string]*StageState, len(stages)),
	}
	for _, stage := range stages {
		ms.Stages[stage] = &StageState{Stage: stage, Status: StagePending}
	}
	return ms
}

// Stage returns the tracker for a stage, creating it on first use.
func (m *ManuscriptState) Stage(name string) *StageState {
	if st, ok := m.Stages[name]; ok {
		return st
	}
	st := &StageState{Stage: name, Status: StagePending}
	m.Stages[name] = st
	return st
}

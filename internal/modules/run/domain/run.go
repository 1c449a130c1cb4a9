package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run is one recorded pipeline execution
type Run struct {
	ID            uuid.UUID `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	State         State     `json:"state"`
	Fetched       int       `json:"fetched"`
	Retained      int       `json:"retained"`
	Persisted     int       `json:"persisted"`
	MediaFailures int       `json:"media_failures"`
	Error         string    `json:"error,omitempty"`
}

// NewRun starts a run in the fetching state
func NewRun(startedAt time.Time) *Run {
	return &Run{
		ID:        uuid.New(),
		StartedAt: startedAt,
		State:     StateFetching,
	}
}

// Duration returns how long a finished run took
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Finish moves the run into a terminal state. A finished run keeps its
// first outcome.
func (r *Run) Finish(at time.Time, err error) {
	if r.State.Terminal() {
		return
	}
	r.FinishedAt = at
	if err != nil {
		r.State = StateFailed
		r.Error = err.Error()
		return
	}
	r.State = StateSucceeded
}

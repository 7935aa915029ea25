// Package store persists observed job status transitions so a notifier or
// a later session can ask what happened while it was not looking.
package store

import (
	"time"

	"github.com/slurmview/slurmview/pkg/models"
)

// Transition is one observed status change of a job between two polls.
type Transition struct {
	ID         int64            `json:"id"`
	JobID      string           `json:"job_id"`
	JobName    string           `json:"job_name"`
	User       string           `json:"user"`
	OldStatus  models.JobStatus `json:"old_status"`
	NewStatus  models.JobStatus `json:"new_status"`
	ObservedAt time.Time        `json:"observed_at"`
}

// Store records and lists transitions.
type Store interface {
	RecordTransition(t Transition) error
	// ListTransitions returns the most recent transitions, newest first.
	// jobID filters to one job when non-empty; limit <= 0 means all.
	ListTransitions(jobID string, limit int) ([]Transition, error)
	Close() error
}

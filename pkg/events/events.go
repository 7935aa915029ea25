package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies a kind of event. The set is closed; consumers switch on
// these constants rather than inspecting payloads.
type Type string

const (
	// ConnectionStateChanged carries "old_state" and "new_state".
	ConnectionStateChanged Type = "connection_state_changed"
	// DataReady carries "nodes" ([]models.NodeRecord) and "jobs"
	// ([]models.JobRecord), one full snapshot per poll cycle.
	DataReady Type = "data_ready"
	// ErrorOccurred carries "error" with a human-readable message.
	ErrorOccurred Type = "error_occurred"
	// JobSubmitted carries "job_id".
	JobSubmitted Type = "job_submitted"
	// JobCancelled carries "job_id".
	JobCancelled Type = "job_cancelled"
	// JobStatusChanged carries "job_id", "old_status", "new_status".
	JobStatusChanged Type = "job_status_changed"
)

// Event is an immutable published record. Payload values are never mutated
// after Publish returns.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

func newEvent(t Type, payload map[string]interface{}, source string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Source:    source,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

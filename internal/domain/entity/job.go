package entity

import (
	"time"
)

// ProcessingStatus of a job
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusDone       ProcessingStatus = "done"
	StatusError      ProcessingStatus = "error"
)

// IsTerminal reports whether no further transition is allowed
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusError
}

// CanTransitionTo enforces pending -> processing -> {done|error}.
// A pending job may also fail directly (watchdog, restart recovery).
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusError
	case StatusProcessing:
		return next == StatusDone || next == StatusError
	}
	return false
}

// Job tracks the processing of one survey submission, keyed by its response id
type Job struct {
	ResponseID   string           `json:"response_id" bson:"_id"`
	Status       ProcessingStatus `json:"status" bson:"status"`
	ResultID     string           `json:"result_id,omitempty" bson:"resultId,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty" bson:"errorMessage,omitempty"`
	CreatedAt    time.Time        `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time        `json:"updated_at" bson:"updatedAt"`
}

package tracker

import (
	"time"

	"github.com/ShayCichocki/proposer/pkg/models"
)

// EventType represents the type of tracker event.
type EventType string

const (
	// EventJobTransition indicates a job changed state.
	EventJobTransition EventType = "job_transition"
	// EventJobAttempt indicates a job started another backend call.
	EventJobAttempt EventType = "job_attempt"
	// EventRequestDone indicates the request reached a terminal status.
	EventRequestDone EventType = "request_done"
)

// Event is emitted on every change to a tracked request.
type Event struct {
	// Type is the kind of event.
	Type EventType `json:"type"`
	// RequestID is the request the event belongs to.
	RequestID string `json:"request_id"`
	// Role is the job's role for job events.
	Role models.Role `json:"role,omitempty"`
	// From is the previous job state for transitions.
	From models.JobState `json:"from,omitempty"`
	// To is the new job state for transitions.
	To models.JobState `json:"to,omitempty"`
	// Attempt is the current attempt number for attempt events.
	Attempt int `json:"attempt,omitempty"`
	// ErrorKind is set when a job fails.
	ErrorKind string `json:"error_kind,omitempty"`
	// Status is the request status after the change.
	Status models.RequestStatus `json:"status"`
	// Timestamp is when the change happened.
	Timestamp time.Time `json:"timestamp"`
}

package models

import "time"

// JobState represents the lifecycle state of a job.
type JobState string

const (
	// JobQueued indicates the job is waiting for a worker slot.
	JobQueued JobState = "queued"
	// JobRunning indicates the job has been dispatched to the backend.
	JobRunning JobState = "running"
	// JobSucceeded indicates the backend returned text for the job.
	JobSucceeded JobState = "succeeded"
	// JobFailed indicates the job exhausted its retries or hit a permanent error.
	JobFailed JobState = "failed"
)

// Valid returns true if the state is a known value.
func (s JobState) Valid() bool {
	switch s {
	case JobQueued, JobRunning, JobSucceeded, JobFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition may leave this state.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// CanTransition reports whether moving from s to next is allowed.
func (s JobState) CanTransition(next JobState) bool {
	switch s {
	case JobQueued:
		return next == JobRunning || next == JobFailed
	case JobRunning:
		return next == JobSucceeded || next == JobFailed
	default:
		return false
	}
}

// Job is one execution of one role against one brief.
type Job struct {
	// Role is the specialist identity this job runs as.
	Role Role `json:"role"`
	// Brief is the project brief the job was created for.
	Brief string `json:"-"`
	// State is the current lifecycle state.
	State JobState `json:"state"`
	// Output is the generated text. Only set when State is JobSucceeded.
	Output string `json:"output,omitempty"`
	// ErrorKind classifies the failure. Only set when State is JobFailed.
	ErrorKind string `json:"error_kind,omitempty"`
	// Error is the failure detail. Only set when State is JobFailed.
	Error string `json:"error,omitempty"`
	// Attempts is the number of backend calls made for this job.
	Attempts int `json:"attempts"`
	// QueuedAt is when the job was created.
	QueuedAt time.Time `json:"queued_at"`
	// StartedAt is when the job entered JobRunning.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// EndedAt is when the job reached a terminal state.
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// Duration returns how long the job ran, or zero if it has not finished.
func (j Job) Duration() time.Duration {
	if j.StartedAt == nil || j.EndedAt == nil {
		return 0
	}
	return j.EndedAt.Sub(*j.StartedAt)
}

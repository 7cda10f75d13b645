package models

import "time"

// RequestStatus is the overall status of a report-generation request.
type RequestStatus string

const (
	// RequestRunning indicates jobs are still queued or executing.
	RequestRunning RequestStatus = "running"
	// RequestSucceeded indicates every job succeeded and the report was stored.
	RequestSucceeded RequestStatus = "succeeded"
	// RequestDegraded indicates synthesis succeeded around failed specialists.
	RequestDegraded RequestStatus = "degraded"
	// RequestFailed indicates no report was produced.
	RequestFailed RequestStatus = "failed"
	// RequestCancelled indicates the caller cancelled before synthesis started.
	RequestCancelled RequestStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestRunning, RequestSucceeded, RequestDegraded, RequestFailed, RequestCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the request has finished.
func (s RequestStatus) Terminal() bool {
	return s != RequestRunning
}

// Request is the aggregate of all jobs needed to produce one report.
type Request struct {
	// ID is the unique identifier for this request.
	ID string `json:"id"`
	// Brief is the free-text project idea.
	Brief string `json:"brief"`
	// Status is the overall status derived from the jobs and the store outcome.
	Status RequestStatus `json:"status"`
	// Specialists holds the non-integration jobs in declaration order.
	Specialists []Job `json:"specialists"`
	// Integration is the synthesis job.
	Integration Job `json:"integration"`
	// ReportID references the stored report once the request completed.
	ReportID string `json:"report_id,omitempty"`
	// Error carries the request-level failure reason, if any.
	Error string `json:"error,omitempty"`
	// Workers is the concurrency bound used for specialist jobs.
	Workers int `json:"workers"`
	// CreatedAt is when the request was accepted.
	CreatedAt time.Time `json:"created_at"`
	// FinishedAt is when the request reached a terminal status.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Job returns the job for the given role and whether it exists.
func (r *Request) Job(role Role) (Job, bool) {
	if role == RoleIntegration {
		return r.Integration, true
	}
	for _, j := range r.Specialists {
		if j.Role == role {
			return j, true
		}
	}
	return Job{}, false
}

// Succeeded returns the specialist jobs that succeeded, in declaration order.
func (r *Request) Succeeded() []Job {
	var out []Job
	for _, j := range r.Specialists {
		if j.State == JobSucceeded {
			out = append(out, j)
		}
	}
	return out
}

// FailedRoles returns the specialist roles that failed, in declaration order.
func (r *Request) FailedRoles() []Role {
	var out []Role
	for _, j := range r.Specialists {
		if j.State == JobFailed {
			out = append(out, j.Role)
		}
	}
	return out
}

// AllSpecialistsTerminal reports whether every specialist job has finished.
func (r *Request) AllSpecialistsTerminal() bool {
	for _, j := range r.Specialists {
		if !j.State.Terminal() {
			return false
		}
	}
	return true
}

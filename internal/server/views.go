package server

import (
	"time"
	"unicode/utf8"

	"github.com/ShayCichocki/proposer/pkg/models"
)

// previewBytes caps the output excerpt included in job views.
const previewBytes = 200

type jobView struct {
	Role        models.Role     `json:"role"`
	Label       string          `json:"label"`
	State       models.JobState `json:"state"`
	Attempts    int             `json:"attempts"`
	OutputBytes int             `json:"output_bytes,omitempty"`
	Preview     string          `json:"preview,omitempty"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMS  int64           `json:"duration_ms,omitempty"`
}

type requestView struct {
	ID          string               `json:"id"`
	Status      models.RequestStatus `json:"status"`
	Workers     int                  `json:"workers"`
	Specialists []jobView            `json:"specialists"`
	Integration jobView              `json:"integration"`
	ReportID    string               `json:"report_id,omitempty"`
	Error       string               `json:"error,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	FinishedAt  *time.Time           `json:"finished_at,omitempty"`
}

func newJobView(j models.Job) jobView {
	v := jobView{
		Role:       j.Role,
		Label:      j.Role.Label(),
		State:      j.State,
		Attempts:   j.Attempts,
		ErrorKind:  j.ErrorKind,
		Error:      j.Error,
		DurationMS: j.Duration().Milliseconds(),
	}
	if j.Output != "" {
		v.OutputBytes = len(j.Output)
		v.Preview = truncate(j.Output, previewBytes)
	}
	return v
}

func newRequestView(r models.Request) requestView {
	v := requestView{
		ID:          r.ID,
		Status:      r.Status,
		Workers:     r.Workers,
		Specialists: make([]jobView, 0, len(r.Specialists)),
		Integration: newJobView(r.Integration),
		ReportID:    r.ReportID,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		FinishedAt:  r.FinishedAt,
	}
	for _, j := range r.Specialists {
		v.Specialists = append(v.Specialists, newJobView(j))
	}
	return v
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

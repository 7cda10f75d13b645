package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Report is a persisted, versioned proposal document.
type Report struct {
	// ID is the unique identifier for this report.
	ID string `json:"id"`
	// Seq is the store-assigned insertion sequence, used as a listing cursor.
	Seq int64 `json:"seq"`
	// RequestID is the request that produced this report.
	RequestID string `json:"request_id"`
	// Lineage groups reports generated from the same brief.
	Lineage string `json:"lineage"`
	// Brief is the project idea the report was generated for.
	Brief string `json:"brief"`
	// Body is the final document body (markdown).
	Body string `json:"body,omitempty"`
	// Version increases by one for every report in the same lineage.
	Version int `json:"version"`
	// CreatedAt is when the report was stored.
	CreatedAt time.Time `json:"created_at"`
}

var (
	nonWord     = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespace  = regexp.MustCompile(`\s+`)
	unsafeChars = regexp.MustCompile(`[\\/*?:"<>|]`)
)

// LineageKey normalizes a brief so that equivalent briefs share a version lineage.
func LineageKey(brief string) string {
	s := strings.ToLower(brief)
	s = nonWord.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	if key := strings.TrimSpace(s); key != "" {
		return key
	}
	// Punctuation-only briefs keep their own lineage.
	return strings.TrimSpace(strings.ToLower(brief))
}

// Title returns a file-name-safe short title built from the first four words of the brief.
func (r *Report) Title() string {
	words := strings.Fields(r.Brief)
	if len(words) > 4 {
		words = words[:4]
	}
	title := unsafeChars.ReplaceAllString(strings.Join(words, "_"), "")
	if title == "" {
		return "Untitled_Project"
	}
	return title
}

// FileName returns the export file name for this report.
func (r *Report) FileName() string {
	return fmt.Sprintf("%s-v%d.md", r.Title(), r.Version)
}

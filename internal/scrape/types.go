// Package scrape defines core types shared across subsystems.
package scrape

import (
	"errors"
	"time"
)

// JobStatus represents the lifecycle state of an extraction job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// SourceType is the optional content-source hint supplied at submission.
type SourceType string

// Known source hints. An empty hint means "sniff the URL".
const (
	SourceNews    SourceType = "NEWS"
	SourceTwitter SourceType = "TWITTER"
	SourceReddit  SourceType = "REDDIT"
	SourceGeneral SourceType = "GENERAL"
)

// ErrorSentinel prefixes the clean text of a scraper-level soft failure.
// A job whose extraction yields sentinel text is marked FAILED but never
// re-dispatched: the scraper already exhausted its own fallbacks.
const ErrorSentinel = "Error:"

// ErrNotFound is returned by stores when a job or result does not exist.
var ErrNotFound = errors.New("not found")

// Job represents the metadata persisted for each submitted extraction request.
type Job struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	SourceType   SourceType `json:"source_type,omitempty"`
	Status       JobStatus  `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ScrapedData is the extraction output stored for a COMPLETED job.
type ScrapedData struct {
	JobID     string         `json:"job_id"`
	CleanText string         `json:"clean_text"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// Result is what a scraper hands back to the orchestrator. It carries either
// extracted content or a sentinel-prefixed error payload, never both.
type Result struct {
	CleanText string
	Metadata  map[string]any
}

// IsError reports whether the result is a soft-failure payload.
func (r Result) IsError() bool {
	return len(r.CleanText) >= len(ErrorSentinel) && r.CleanText[:len(ErrorSentinel)] == ErrorSentinel
}

// Task is the unit of work flowing through the dispatch queue.
type Task struct {
	JobID     string `json:"job_id"`
	Attempt   int    `json:"attempt"`
	Submitted int64  `json:"submitted"`
}

// Next returns a copy of the task with the attempt counter advanced.
func (t Task) Next() Task {
	t.Attempt++
	return t
}

package scrape

import (
	"context"
	"time"
)

// JobStore persists job records.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string) error
}

// ResultStore persists extraction results keyed by job id.
type ResultStore interface {
	CreateResult(ctx context.Context, data ScrapedData) error
	GetResult(ctx context.Context, jobID string) (ScrapedData, error)
}

// Queue provides the dispatch substrate: at-least-once task delivery plus a
// retry-with-delay primitive for infrastructure failures.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
	Retry(ctx context.Context, task Task, delay time.Duration) error
}

// Scraper turns a URL into (clean_text, metadata). Implementations never
// return an error: internal failures become a sentinel-prefixed Result.
type Scraper interface {
	Scrape(ctx context.Context, url string) Result
}

// ScraperFactory builds a fresh Scraper per job execution so that per-instance
// rate-limiter state is never shared across concurrent jobs.
type ScraperFactory interface {
	New(source SourceType) Scraper
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

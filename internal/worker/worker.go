// Package worker implements the extraction pipeline execution loop.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/metrics"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
)

// Defaults for the infrastructure-failure retry policy.
const (
	DefaultMaxRetries = 2
	DefaultRetryDelay = 300 * time.Second
)

// Config controls Worker behavior.
type Config struct {
	// MaxRetries bounds how many delayed re-dispatches a task gets after
	// infrastructure failures. Scraper-level soft failures never retry.
	MaxRetries int
	RetryDelay time.Duration
}

// Worker consumes queue tasks and executes the scrape pipeline.
type Worker struct {
	queue   scrape.Queue
	jobs    scrape.JobStore
	results scrape.ResultStore
	factory scrape.ScraperFactory
	clock   scrape.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Worker.
func New(
	queue scrape.Queue,
	jobs scrape.JobStore,
	results scrape.ResultStore,
	factory scrape.ScraperFactory,
	clock scrape.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Worker{
		queue:   queue,
		jobs:    jobs,
		results: results,
		factory: factory,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run blocks, consuming queue tasks until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued task",
			zap.String("job_id", task.JobID),
			zap.Int("attempt", task.Attempt),
		)
		w.processTask(ctx, task)
	}
}

func (w *Worker) processTask(ctx context.Context, task scrape.Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	job, err := w.jobs.GetJob(ctx, task.JobID)
	if err != nil {
		if errors.Is(err, scrape.ErrNotFound) {
			// Nothing to retry against: the task is acknowledged and dropped.
			w.logger.Warn("task references unknown job", zap.String("job_id", task.JobID))
			return
		}
		w.logger.Error("job load failed", zap.String("job_id", task.JobID), zap.Error(err))
		w.maybeRetry(ctx, task)
		return
	}

	if err := w.jobs.UpdateJobStatus(ctx, job.ID, scrape.JobStatusProcessing, ""); err != nil {
		w.logger.Error("processing status update failed", zap.String("job_id", job.ID), zap.Error(err))
		w.maybeRetry(ctx, task)
		return
	}

	source := scrape.Select(job.URL, job.SourceType)
	scraper := w.factory.New(source)

	started := w.clock.Now()
	result := scraper.Scrape(ctx, job.URL)
	metrics.ObserveScrape(string(source), w.clock.Now().Sub(started))

	if result.IsError() {
		// The scraper already exhausted its own fallbacks. Terminal.
		w.logger.Warn("extraction failed",
			zap.String("job_id", job.ID),
			zap.String("url", job.URL),
			zap.String("error", result.CleanText),
		)
		w.failJob(ctx, job.ID, result.CleanText)
		return
	}

	data := scrape.ScrapedData{
		JobID:     job.ID,
		CleanText: result.CleanText,
		Metadata:  result.Metadata,
		CreatedAt: w.clock.Now(),
	}
	if err := w.results.CreateResult(ctx, data); err != nil {
		w.logger.Error("result persist failed", zap.String("job_id", job.ID), zap.Error(err))
		w.failJob(ctx, job.ID, err.Error())
		w.maybeRetry(ctx, task)
		return
	}

	if err := w.jobs.UpdateJobStatus(ctx, job.ID, scrape.JobStatusCompleted, ""); err != nil {
		// Stranding the job in PROCESSING would leave an orphaned result row
		// with nothing for the caller to read. A retry re-runs the pipeline
		// from the top and overwrites the result.
		w.logger.Error("completed status update failed", zap.String("job_id", job.ID), zap.Error(err))
		w.failJob(ctx, job.ID, err.Error())
		w.maybeRetry(ctx, task)
		return
	}
	metrics.ObserveJob(string(scrape.JobStatusCompleted))
	w.logger.Info("job completed",
		zap.String("job_id", job.ID),
		zap.String("source", string(source)),
		zap.Int("clean_text_len", len(result.CleanText)),
	)
}

// failJob marks the job FAILED with the given error text.
func (w *Worker) failJob(ctx context.Context, jobID, errText string) {
	if err := w.jobs.UpdateJobStatus(ctx, jobID, scrape.JobStatusFailed, errText); err != nil {
		w.logger.Error("failed status update failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	metrics.ObserveJob(string(scrape.JobStatusFailed))
}

// maybeRetry re-dispatches the task with a delay while attempts remain. A
// retried task re-enters the pipeline from the top, so a job that was marked
// FAILED moves back to PROCESSING on the next attempt.
func (w *Worker) maybeRetry(ctx context.Context, task scrape.Task) {
	if task.Attempt >= w.cfg.MaxRetries {
		w.logger.Warn("retry budget exhausted",
			zap.String("job_id", task.JobID),
			zap.Int("attempt", task.Attempt),
		)
		return
	}
	if err := w.queue.Retry(ctx, task.Next(), w.cfg.RetryDelay); err != nil {
		w.logger.Error("retry dispatch failed", zap.String("job_id", task.JobID), zap.Error(err))
		return
	}
	metrics.ObserveRetryDispatched()
	w.logger.Info("task re-dispatched",
		zap.String("job_id", task.JobID),
		zap.Int("next_attempt", task.Attempt+1),
		zap.Duration("delay", w.cfg.RetryDelay),
	)
}

// Package memory provides in-memory persistence for development and testing.
package memory

import (
	"context"
	"sync"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
)

// Store keeps jobs and results in maps. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]scrape.Job
	results map[string]scrape.ScrapedData
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		jobs:    make(map[string]scrape.Job),
		results: make(map[string]scrape.ScrapedData),
	}
}

// CreateJob persists a new job record.
func (s *Store) CreateJob(_ context.Context, job scrape.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

// GetJob returns the job or scrape.ErrNotFound.
func (s *Store) GetJob(_ context.Context, jobID string) (scrape.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.Job{}, scrape.ErrNotFound
	}
	return job, nil
}

// UpdateJobStatus sets the status and error text of an existing job.
func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status scrape.JobStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.ErrNotFound
	}
	job.Status = status
	job.ErrorMessage = errText
	s.jobs[jobID] = job
	return nil
}

// CreateResult persists extraction output for a job.
func (s *Store) CreateResult(_ context.Context, data scrape.ScrapedData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[data.JobID] = data
	return nil
}

// GetResult returns the stored output or scrape.ErrNotFound.
func (s *Store) GetResult(_ context.Context, jobID string) (scrape.ScrapedData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.results[jobID]
	if !ok {
		return scrape.ScrapedData{}, scrape.ErrNotFound
	}
	return data, nil
}

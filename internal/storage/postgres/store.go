// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
)

// StoreConfig controls the Postgres connection pool.
type StoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists jobs and extraction results in Postgres. It implements both
// scrape.JobStore and scrape.ResultStore.
type Store struct {
	pool pgxPool
}

// NewStore connects a pool from the given config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a job row.
func (s *Store) CreateJob(ctx context.Context, job scrape.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO jobs (id, url, source_type, status, error_message, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID,
		job.URL,
		string(job.SourceType),
		string(job.Status),
		job.ErrorMessage,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob loads one job row, mapping a missing row to scrape.ErrNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (scrape.Job, error) {
	var (
		job        scrape.Job
		sourceType string
		status     string
	)
	err := s.pool.QueryRow(ctx, `
SELECT id, url, source_type, status, error_message, created_at
FROM jobs WHERE id = $1`, jobID).
		Scan(&job.ID, &job.URL, &sourceType, &status, &job.ErrorMessage, &job.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Job{}, scrape.ErrNotFound
		}
		return scrape.Job{}, fmt.Errorf("select job: %w", err)
	}
	job.SourceType = scrape.SourceType(sourceType)
	job.Status = scrape.JobStatus(status)
	return job, nil
}

// UpdateJobStatus sets the status and error text of an existing job.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status scrape.JobStatus, errText string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE jobs SET status = $2, error_message = $3 WHERE id = $1`,
		jobID, string(status), errText)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scrape.ErrNotFound
	}
	return nil
}

// CreateResult inserts the extraction output; metadata goes into a JSONB column.
func (s *Store) CreateResult(ctx context.Context, data scrape.ScrapedData) error {
	if data.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	metadataJSON, err := json.Marshal(data.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO scraped_data (job_id, clean_text, metadata, created_at)
VALUES ($1, $2, $3, $4)`,
		data.JobID,
		data.CleanText,
		metadataJSON,
		data.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetResult loads the stored output, mapping a missing row to scrape.ErrNotFound.
func (s *Store) GetResult(ctx context.Context, jobID string) (scrape.ScrapedData, error) {
	var (
		data         scrape.ScrapedData
		metadataJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
SELECT job_id, clean_text, metadata, created_at
FROM scraped_data WHERE job_id = $1`, jobID).
		Scan(&data.JobID, &data.CleanText, &metadataJSON, &data.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.ScrapedData{}, scrape.ErrNotFound
		}
		return scrape.ScrapedData{}, fmt.Errorf("select result: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &data.Metadata); err != nil {
			return scrape.ScrapedData{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return data, nil
}

// Package api exposes the HTTP interface for the collection service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/config"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/dispatcher"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/metrics"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
)

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router     chi.Router
	jobs       scrape.JobStore
	results    scrape.ResultStore
	dispatcher *dispatcher.Dispatcher
	idGen      scrape.IDGenerator
	clock      scrape.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobs scrape.JobStore,
	results scrape.ResultStore,
	dispatch *dispatcher.Dispatcher,
	idGen scrape.IDGenerator,
	clock scrape.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		jobs:       jobs,
		results:    results,
		dispatcher: dispatch,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJobStatus)
				r.Get("/result", s.getJobResult)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// In-memory dependencies are always ready; in future check downstreams.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitJobRequest struct {
	URL        string `json:"url"`
	SourceType string `json:"source_type"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// Validation happens before anything is persisted: a rejected request
	// leaves no job behind.
	if err := validateURL(req.URL); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hint := scrape.SourceType(strings.ToUpper(strings.TrimSpace(req.SourceType)))
	if !scrape.ValidHint(hint) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source_type %q", req.SourceType))
		return
	}

	jobID, err := s.enqueueJob(r.Context(), req.URL, hint)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(scrape.JobStatusPending),
	})
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, scrape.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"job_id":        job.ID,
		"url":           job.URL,
		"source_type":   job.SourceType,
		"status":        job.Status,
		"error_message": job.ErrorMessage,
		"created_at":    job.CreatedAt,
	})
}

func (s *Server) getJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, scrape.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job.Status != scrape.JobStatusCompleted {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("job is %s, result available only for COMPLETED jobs", job.Status))
		return
	}

	data, err := s.results.GetResult(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, scrape.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "result not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to load result")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"job_id":     data.JobID,
		"clean_text": data.CleanText,
		"metadata":   data.Metadata,
		"created_at": data.CreatedAt,
	})
}

func (s *Server) enqueueJob(ctx context.Context, rawURL string, hint scrape.SourceType) (string, error) {
	jobID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	now := s.clock.Now()
	job := scrape.Job{
		ID:         jobID,
		URL:        rawURL,
		SourceType: hint,
		Status:     scrape.JobStatusPending,
		CreatedAt:  now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	task := scrape.Task{
		JobID:     jobID,
		Submitted: now.Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, task); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return jobID, nil
}

func validateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("url host is required")
	}
	return nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		metrics.ObserveHTTPRequest(r.Method, strconv.Itoa(ww.status))
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

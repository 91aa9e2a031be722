// Package fetch implements polite, resilient HTTP retrieval for the scrapers.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/metrics"
)

// Default fetch tuning. The backoff doubles jitter-free between the bounds.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 3

	backoffBase = time.Second
	backoffMin  = 2 * time.Second
	backoffMax  = 10 * time.Second
)

// Config controls a Fetcher instance.
type Config struct {
	// UserAgent sent with every request.
	UserAgent string
	// MinInterval is the minimum spacing between two requests issued by this
	// instance. Zero disables pacing.
	MinInterval time.Duration
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
	// MaxAttempts is the total number of attempts before giving up.
	MaxAttempts int
}

// Response is the raw outcome of a successful fetch.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Error is returned once every attempt has been exhausted. It carries the
// last underlying cause.
type Error struct {
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Pacer enforces a minimum interval between successive operations. It is the
// local leaky-bucket-of-one discipline shared by the fetcher and the headless
// scraper; state is per-instance, never distributed.
type Pacer struct {
	minInterval time.Duration
	last        time.Time
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration)
}

// NewPacer builds a Pacer. A non-positive interval disables pacing.
func NewPacer(minInterval time.Duration) *Pacer {
	return &Pacer{
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Wait sleeps out the remainder of the interval since the previous call, then
// stamps the new request time.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.minInterval > 0 && !p.last.IsZero() {
		elapsed := p.now().Sub(p.last)
		if wait := p.minInterval - elapsed; wait > 0 {
			p.sleep(ctx, wait)
			if ctx.Err() != nil {
				return fmt.Errorf("rate limit wait canceled: %w", ctx.Err())
			}
		}
	}
	p.last = p.now()
	return nil
}

// Fetcher performs rate-limited GETs with bounded retries. Instances hold
// per-instance pacing state and must not be shared across concurrent jobs.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
	pacer         *Pacer

	sleep func(ctx context.Context, d time.Duration)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Fetcher{
		cfg:           cfg,
		baseCollector: colly.NewCollector(colly.Async(false), colly.IgnoreRobotsTxt()),
		logger:        logger,
		pacer:         NewPacer(cfg.MinInterval),
		sleep:         sleepCtx,
	}
}

// Fetch executes an HTTP GET, pacing against the instance interval and
// retrying transient failures with exponential backoff.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Response, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if err := f.pacer.Wait(ctx); err != nil {
			return Response{}, err
		}
		resp, err := f.doFetch(ctx, url)
		if err == nil {
			metrics.ObserveFetchAttempt("success")
			return resp, nil
		}
		metrics.ObserveFetchAttempt("failure")
		lastErr = err
		f.logger.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < f.cfg.MaxAttempts {
			f.sleep(ctx, backoff(attempt))
			if ctx.Err() != nil {
				return Response{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
			}
		}
	}
	return Response{}, &Error{URL: url, Attempts: f.cfg.MaxAttempts, Err: lastErr}
}

func (f *Fetcher) doFetch(ctx context.Context, url string) (Response, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		result   Response
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		for key, value := range browserHeaders() {
			r.Headers.Set(key, value)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("unexpected status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return Response{}, fetchErr
		}
		if err != nil {
			return Response{}, fmt.Errorf("visit %s: %w", url, err)
		}
		return result, nil
	}
}

// backoff doubles from the base and clamps to [backoffMin, backoffMax].
func backoff(attempt int) time.Duration {
	d := backoffBase << attempt
	if d < backoffMin {
		d = backoffMin
	}
	if d > backoffMax {
		d = backoffMax
	}
	return d
}

// browserHeaders is the realistic header set sent with every fetch.
func browserHeaders() map[string]string {
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

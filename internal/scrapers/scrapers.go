// Package scrapers contains the per-source extraction strategies. Every
// strategy satisfies scrape.Scraper and converts internal failures into a
// sentinel-prefixed result instead of returning an error.
package scrapers

import (
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
)

// Per-source minimum spacing between requests. Headless rendering is far more
// detectable and expensive, hence the much larger social interval.
const (
	generalMinInterval = 2 * time.Second
	newsMinInterval    = 3 * time.Second
	redditMinInterval  = 3 * time.Second
	twitterMinInterval = 15 * time.Second
)

// Config carries everything the strategies need at construction time.
type Config struct {
	UserAgent     string
	FetchTimeout  time.Duration
	FetchAttempts int
	Headless      HeadlessConfig
	Reddit        RedditConfig
}

// HeadlessConfig tunes the browser-backed social strategy.
type HeadlessConfig struct {
	NavTimeout    time.Duration
	WaitTimeout   time.Duration
	ScreenshotDir string
}

// RedditConfig holds optional API credentials. When empty the forum strategy
// degrades to the basic HTML fallback.
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
}

// Configured reports whether the API path can be used.
func (c RedditConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Factory builds one fresh scraper per job execution so rate-limiter state is
// never shared across concurrent jobs.
type Factory struct {
	cfg    Config
	clock  scrape.Clock
	logger *zap.Logger
}

// NewFactory constructs a Factory.
func NewFactory(cfg Config, clock scrape.Clock, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{cfg: cfg, clock: clock, logger: logger}
}

// New returns the strategy for the resolved source.
func (f *Factory) New(source scrape.SourceType) scrape.Scraper {
	switch source {
	case scrape.SourceNews:
		return NewNews(f.cfg, f.clock, f.logger)
	case scrape.SourceTwitter:
		return NewTwitter(f.cfg, f.clock, f.logger)
	case scrape.SourceReddit:
		return NewReddit(f.cfg, f.clock, f.logger)
	default:
		return NewGeneral(f.cfg, f.clock, f.logger)
	}
}

// baseMetadata is the minimum payload every strategy emits.
func baseMetadata(rawURL string, source scrape.SourceType, method string, now time.Time) map[string]any {
	return map[string]any{
		"source_url":  rawURL,
		"source_type": string(source),
		"domain":      domainOf(rawURL),
		"scraped_at":  now.UTC().Format(time.RFC3339),
		"method":      method,
	}
}

// errorResult builds the soft-failure payload. The orchestrator keys off the
// sentinel prefix, so every path funnels through here.
func errorResult(rawURL string, source scrape.SourceType, label, reason string, now time.Time) scrape.Result {
	return scrape.Result{
		CleanText: fmt.Sprintf("%s Could not scrape %s content from %s. Reason: %s",
			scrape.ErrorSentinel, label, rawURL, reason),
		Metadata: map[string]any{
			"source_url":  rawURL,
			"source_type": string(source),
			"error":       reason,
			"scraped_at":  now.UTC().Format(time.RFC3339),
		},
	}
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

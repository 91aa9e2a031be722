package scrapers

import (
	"bytes"
	"context"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/fetch"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/textutil"
)

// Elements that never carry article content.
const chromeSelectors = "script, style, nav, footer, aside"

// General is the fallback strategy for any website: strip page chrome and
// keep the remaining visible text.
type General struct {
	fetcher *fetch.Fetcher
	clock   scrape.Clock
	logger  *zap.Logger
}

// NewGeneral builds the general-HTML strategy.
func NewGeneral(cfg Config, clock scrape.Clock, logger *zap.Logger) *General {
	return &General{
		fetcher: fetch.New(fetch.Config{
			UserAgent:   cfg.UserAgent,
			MinInterval: generalMinInterval,
			Timeout:     cfg.FetchTimeout,
			MaxAttempts: cfg.FetchAttempts,
		}, logger),
		clock:  clock,
		logger: logger,
	}
}

// Scrape fetches the page and extracts its visible text.
func (g *General) Scrape(ctx context.Context, rawURL string) scrape.Result {
	resp, err := g.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		g.logger.Error("general scraper failed", zap.String("url", rawURL), zap.Error(err))
		return errorResult(rawURL, scrape.SourceGeneral, "page", err.Error(), g.clock.Now())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return errorResult(rawURL, scrape.SourceGeneral, "page", err.Error(), g.clock.Now())
	}
	doc.Find(chromeSelectors).Remove()

	return scrape.Result{
		CleanText: textutil.Normalize(doc.Text()),
		Metadata:  baseMetadata(rawURL, scrape.SourceGeneral, "goquery", g.clock.Now()),
	}
}

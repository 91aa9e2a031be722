package scrapers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/fetch"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testClock = fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

// fastFailing swaps in a single-attempt fetcher so failure-path tests do not
// sit through retry backoff.
func fastFailing(cfg fetch.Config) *fetch.Fetcher {
	cfg.MaxAttempts = 1
	return fetch.New(cfg, zap.NewNop())
}

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeneral_StripsChromeAndExtractsText(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, `<html><head>
		<script>var tracking = true;</script>
		<style>.x{color:red}</style>
	</head><body>
		<nav>Home About</nav>
		<p>Visible   body
		content.</p>
		<footer>Copyright</footer>
		<aside>Related</aside>
	</body></html>`)

	g := NewGeneral(Config{}, testClock, zap.NewNop())
	result := g.Scrape(context.Background(), srv.URL)

	require.False(t, result.IsError())
	require.Equal(t, "Visible body content.", result.CleanText)
	require.Equal(t, "GENERAL", result.Metadata["source_type"])
	require.Equal(t, "goquery", result.Metadata["method"])
	require.Equal(t, srv.URL, result.Metadata["source_url"])
	require.Equal(t, "2025-06-01T12:00:00Z", result.Metadata["scraped_at"])
	require.NotEmpty(t, result.Metadata["domain"])
}

func TestGeneral_FetchFailureYieldsSentinel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGeneral(Config{}, testClock, zap.NewNop())
	g.fetcher = fastFailing(fetch.Config{})
	result := g.Scrape(context.Background(), srv.URL)

	require.True(t, result.IsError())
	require.Contains(t, result.CleanText, scrape.ErrorSentinel)
	require.NotEmpty(t, result.Metadata["error"])
	require.Equal(t, "GENERAL", result.Metadata["source_type"])
}

func TestGeneral_FetchAttemptsBoundRequests(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGeneral(Config{FetchAttempts: 1}, testClock, zap.NewNop())
	result := g.Scrape(context.Background(), srv.URL)

	require.True(t, result.IsError())
	require.EqualValues(t, 1, hits.Load())
}

func TestFactory_SelectsConcreteStrategies(t *testing.T) {
	t.Parallel()

	factory := NewFactory(Config{}, testClock, zap.NewNop())

	require.IsType(t, &News{}, factory.New(scrape.SourceNews))
	require.IsType(t, &Twitter{}, factory.New(scrape.SourceTwitter))
	require.IsType(t, &Reddit{}, factory.New(scrape.SourceReddit))
	require.IsType(t, &General{}, factory.New(scrape.SourceGeneral))
	require.IsType(t, &General{}, factory.New(""))
}

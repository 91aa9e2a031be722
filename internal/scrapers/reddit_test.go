package scrapers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/fetch"
)

func TestReddit_BasicFallbackWithoutCredentials(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, `<html><body>
		<h1>How do goroutines get scheduled?</h1>
		<p>Some page   body text.</p>
	</body></html>`)

	r := NewReddit(Config{}, testClock, zap.NewNop())
	result := r.Scrape(context.Background(), srv.URL)

	require.False(t, result.IsError())
	require.Contains(t, result.CleanText, "Some page body text.")

	md := result.Metadata
	require.Equal(t, "basic_fallback", md["method"])
	require.Equal(t, "REDDIT", md["source_type"])
	require.Equal(t, "How do goroutines get scheduled?", md["title"])
	require.Equal(t, "API credentials not configured - limited data available", md["note"])
}

func TestReddit_BasicFallbackNoTitle(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, `<html><body><p>just text</p></body></html>`)

	r := NewReddit(Config{}, testClock, zap.NewNop())
	result := r.Scrape(context.Background(), srv.URL)

	require.False(t, result.IsError())
	require.Equal(t, "No title found", result.Metadata["title"])
}

func redditAPIServer(t *testing.T, listings []redditListing) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/access_token":
			user, _, ok := r.BasicAuth()
			require.True(t, ok)
			require.Equal(t, "client-id", user)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"test-token"}`))
		default:
			require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			require.Equal(t, "1", r.URL.Query().Get("raw_json"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(listings)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func configuredReddit(t *testing.T, srv *httptest.Server) *Reddit {
	t.Helper()
	r := NewReddit(Config{
		Reddit: RedditConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			UserAgent:    "test-agent",
		},
	}, testClock, zap.NewNop())
	r.apiBase = srv.URL
	r.tokenBase = srv.URL
	return r
}

func TestReddit_APIPathFullPost(t *testing.T) {
	t.Parallel()

	post := redditThing{
		Title:         "Generics in the standard library",
		Selftext:      "Where are they actually used today?",
		Subreddit:     "golang",
		Author:        "gopher",
		Score:         321,
		NumComments:   57,
		CreatedUTC:    1748592000,
		ID:            "abc123",
		Permalink:     "/r/golang/comments/abc123/generics/",
		URL:           "https://reddit.com/r/golang/comments/abc123/generics/",
		Domain:        "self.golang",
		UpvoteRatio:   0.97,
		TotalAwards:   2,
		LinkFlairText: "Discussion",
		IsSelf:        true,
	}
	postJSON, err := json.Marshal(post)
	require.NoError(t, err)

	raw := `[
		{"data": {"children": [{"kind": "t3", "data": ` + string(postJSON) + `}]}},
		{"data": {"children": [
			{"kind": "t1", "data": {"body": "slices and maps packages, mostly"}},
			{"kind": "t1", "data": {"body": "` + strings.Repeat("x", 1200) + `"}},
			{"kind": "more", "data": {}},
			{"kind": "t1", "data": {"body": "also sync.OnceValue"}}
		]}}
	]`
	var listings []redditListing
	require.NoError(t, json.Unmarshal([]byte(raw), &listings))

	srv := redditAPIServer(t, listings)
	r := configuredReddit(t, srv)

	result := r.Scrape(context.Background(), "https://reddit.com/r/golang/comments/abc123/generics/")
	require.False(t, result.IsError())

	require.Contains(t, result.CleanText, "Generics in the standard library Where are they actually used today?")
	require.Contains(t, result.CleanText, "Top Comments:")
	require.Contains(t, result.CleanText, "- slices and maps packages, mostly")
	require.Contains(t, result.CleanText, "- also sync.OnceValue")
	// The oversized comment is dropped.
	require.NotContains(t, result.CleanText, "xxxx")

	md := result.Metadata
	require.Equal(t, "reddit_api", md["method"])
	require.Equal(t, "golang", md["subreddit"])
	require.Equal(t, "gopher", md["author"])
	require.Equal(t, 321, md["upvotes"])
	require.Equal(t, 57, md["num_comments"])
	require.Equal(t, "2025-05-30T08:00:00Z", md["created_utc"])
	require.Equal(t, false, md["nsfw"])
	require.Equal(t, "abc123", md["post_id"])
	require.Equal(t, "self.golang", md["domain"])
	require.Equal(t, 0.97, md["upvote_ratio"])
	require.Equal(t, 2, md["award_count"])
	require.Equal(t, "Discussion", md["flair"])
	require.Equal(t, "text", md["post_type"])
}

func TestReddit_APIDeletedAuthorIsUnknown(t *testing.T) {
	t.Parallel()

	require.Equal(t, "unknown", redditThing{}.authorOrUnknown())
	require.Equal(t, "gopher", redditThing{Author: "gopher"}.authorOrUnknown())
}

func TestReddit_TokenFailureYieldsSentinel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := configuredReddit(t, srv)
	result := r.Scrape(context.Background(), "https://reddit.com/r/golang/comments/abc123/generics/")

	require.True(t, result.IsError())
	require.Contains(t, result.CleanText, "Reddit content")
	require.Equal(t, "REDDIT", result.Metadata["source_type"])
}

func TestReddit_FallbackFetchFailure(t *testing.T) {
	t.Parallel()

	r := NewReddit(Config{}, testClock, zap.NewNop())
	r.fetcher = fastFailing(fetch.Config{})
	result := r.Scrape(context.Background(), "http://127.0.0.1:1/r/golang")

	require.True(t, result.IsError())
	require.Contains(t, result.CleanText, "All scraping methods failed")
}

func TestRedditThing_ImageURLs(t *testing.T) {
	t.Parallel()

	var post redditThing
	require.NoError(t, json.Unmarshal([]byte(`{
		"is_gallery": true,
		"gallery_data": {"items": [{"media_id": "m1"}, {"media_id": "m2"}, {"media_id": "m3"}]},
		"media_metadata": {
			"m1": {"status": "valid", "s": {"u": "https://i.redd.it/one.jpg"}},
			"m2": {"status": "failed", "s": {"u": "https://i.redd.it/two.jpg"}},
			"m3": {"status": "valid", "s": {"u": "https://i.redd.it/one.jpg"}}
		},
		"preview": {"images": [{"source": {"url": "https://preview.redd.it/p.jpg"}}]},
		"thumbnail": "self"
	}`), &post))

	// m2 failed, m3 duplicates m1, and the "self" thumbnail is skipped.
	require.Equal(t, []string{
		"https://i.redd.it/one.jpg",
		"https://preview.redd.it/p.jpg",
	}, post.imageURLs())
}

func TestRedditThing_VideoInfo(t *testing.T) {
	t.Parallel()

	require.Nil(t, redditThing{}.videoInfo())

	var post redditThing
	require.NoError(t, json.Unmarshal([]byte(`{
		"is_video": true,
		"thumbnail": "https://b.thumbs.redditmedia.com/t.jpg",
		"media": {"reddit_video": {"fallback_url": "https://v.redd.it/clip/DASH_720.mp4", "duration": 34}}
	}`), &post))

	info := post.videoInfo()
	require.Equal(t, true, info["has_video"])
	require.Equal(t, "https://v.redd.it/clip/DASH_720.mp4", info["video_url"])
	require.Equal(t, 34, info["duration_seconds"])
	require.Equal(t, "https://b.thumbs.redditmedia.com/t.jpg", info["thumbnail_url"])
}

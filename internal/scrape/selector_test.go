package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelect_HintOverridesURL(t *testing.T) {
	t.Parallel()

	// The URL matches no reddit pattern; the hint still wins.
	require.Equal(t, SourceReddit, Select("https://example.com", SourceReddit))
	require.Equal(t, SourceTwitter, Select("https://example.com/article", SourceTwitter))
	require.Equal(t, SourceNews, Select("https://example.com", SourceNews))
}

func TestSelect_URLSniffing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		url  string
		want SourceType
	}{
		{"news substring", "https://www.bbc.com/news/world-123", SourceNews},
		{"twitter host", "https://twitter.com/user/status/1", SourceTwitter},
		{"x host", "https://x.com/user/status/1", SourceTwitter},
		{"www twitter", "https://www.twitter.com/user/status/1", SourceTwitter},
		{"reddit host", "https://reddit.com/r/golang/comments/abc", SourceReddit},
		{"www reddit", "https://www.reddit.com/r/golang/comments/abc", SourceReddit},
		{"plain site", "https://example.com/page", SourceGeneral},
		{"unparseable", "://not a url", SourceGeneral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Select(tc.url, ""))
		})
	}
}

func TestSelect_NewsSubstringBeatsTwitterHost(t *testing.T) {
	t.Parallel()

	// Resolution order is fixed: the news clause is evaluated first.
	require.Equal(t, SourceNews, Select("https://twitter.com/somenewsaccount", ""))
}

func TestSelect_Total(t *testing.T) {
	t.Parallel()

	for _, hint := range []SourceType{"", SourceNews, SourceTwitter, SourceReddit, "BOGUS"} {
		got := Select("https://example.com", hint)
		require.Contains(t, []SourceType{SourceNews, SourceTwitter, SourceReddit, SourceGeneral}, got)
	}
}

func TestValidHint(t *testing.T) {
	t.Parallel()

	require.True(t, ValidHint(""))
	require.True(t, ValidHint(SourceNews))
	require.True(t, ValidHint(SourceTwitter))
	require.True(t, ValidHint(SourceReddit))
	require.False(t, ValidHint("FACEBOOK"))
	require.False(t, ValidHint(SourceGeneral))
}

func TestResultIsError(t *testing.T) {
	t.Parallel()

	require.True(t, Result{CleanText: "Error: no luck"}.IsError())
	require.False(t, Result{CleanText: "all good"}.IsError())
	require.False(t, Result{}.IsError())
}

func TestTaskNext(t *testing.T) {
	t.Parallel()

	task := Task{JobID: "j1", Attempt: 0}
	next := task.Next()
	require.Equal(t, 1, next.Attempt)
	require.Equal(t, 0, task.Attempt)
	require.Equal(t, "j1", next.JobID)
}

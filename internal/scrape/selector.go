package scrape

import (
	"net/url"
	"strings"
)

// Select maps a URL and an optional source hint to the strategy that should
// handle it. Deterministic and pure: the hint always wins over URL sniffing so
// callers can override a misclassified link, and sniffing is only a
// convenience fallback.
func Select(rawURL string, hint SourceType) SourceType {
	host := hostOf(rawURL)

	switch {
	case hint == SourceNews || strings.Contains(rawURL, "news"):
		return SourceNews
	case hint == SourceTwitter || host == "twitter.com" || host == "x.com":
		return SourceTwitter
	case hint == SourceReddit || host == "reddit.com":
		return SourceReddit
	default:
		return SourceGeneral
	}
}

// ValidHint reports whether the hint is empty or one of the known sources.
func ValidHint(hint SourceType) bool {
	switch hint {
	case "", SourceNews, SourceTwitter, SourceReddit:
		return true
	default:
		return false
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

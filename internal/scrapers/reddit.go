package scrapers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/fetch"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/textutil"
)

const (
	defaultRedditAPIBase   = "https://oauth.reddit.com"
	defaultRedditTokenBase = "https://www.reddit.com"

	maxComments      = 10
	maxCommentLength = 1000
)

// Reddit pulls structured post data through the OAuth API when credentials
// are configured, and degrades to a bare HTML fetch otherwise. The metadata
// "method" field tells downstream consumers which fidelity they got.
type Reddit struct {
	cfg     Config
	fetcher *fetch.Fetcher
	rest    *resty.Client
	clock   scrape.Clock
	logger  *zap.Logger

	apiBase   string
	tokenBase string
}

// NewReddit builds the forum strategy.
func NewReddit(cfg Config, clock scrape.Clock, logger *zap.Logger) *Reddit {
	return &Reddit{
		cfg: cfg,
		fetcher: fetch.New(fetch.Config{
			UserAgent:   cfg.UserAgent,
			MinInterval: redditMinInterval,
			Timeout:     cfg.FetchTimeout,
			MaxAttempts: cfg.FetchAttempts,
		}, logger),
		rest:      resty.New().SetTimeout(fetch.DefaultTimeout),
		clock:     clock,
		logger:    logger,
		apiBase:   defaultRedditAPIBase,
		tokenBase: defaultRedditTokenBase,
	}
}

// Scrape extracts a Reddit post, choosing the API or HTML path based on
// whether credentials are configured.
func (r *Reddit) Scrape(ctx context.Context, rawURL string) scrape.Result {
	if r.cfg.Reddit.Configured() {
		return r.scrapeWithAPI(ctx, rawURL)
	}
	return r.scrapeWithoutAPI(ctx, rawURL)
}

// scrapeWithAPI fetches the post listing from the OAuth API. No HTML parsing
// and no rate-limited fetch: it is a structured call.
func (r *Reddit) scrapeWithAPI(ctx context.Context, rawURL string) scrape.Result {
	token, err := r.accessToken(ctx)
	if err != nil {
		r.logger.Error("reddit token request failed", zap.String("url", rawURL), zap.Error(err))
		return errorResult(rawURL, scrape.SourceReddit, "Reddit", err.Error(), r.clock.Now())
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errorResult(rawURL, scrape.SourceReddit, "Reddit", err.Error(), r.clock.Now())
	}

	var listings []redditListing
	resp, err := r.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("User-Agent", r.cfg.Reddit.UserAgent).
		SetQueryParam("raw_json", "1").
		SetResult(&listings).
		Get(r.apiBase + strings.TrimSuffix(parsed.Path, "/"))
	if err != nil {
		r.logger.Error("reddit api request failed", zap.String("url", rawURL), zap.Error(err))
		return errorResult(rawURL, scrape.SourceReddit, "Reddit", err.Error(), r.clock.Now())
	}
	if !resp.IsSuccess() || len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		reason := fmt.Sprintf("unexpected API response (status %d)", resp.StatusCode())
		return errorResult(rawURL, scrape.SourceReddit, "Reddit", reason, r.clock.Now())
	}

	post := listings[0].Data.Children[0].Data
	cleanText := post.Title
	if post.Selftext != "" {
		cleanText = post.Title + "\n\n" + post.Selftext
	}
	cleanText = textutil.Normalize(cleanText)

	if comments := topComments(listings); len(comments) > 0 {
		var b strings.Builder
		b.WriteString(cleanText)
		b.WriteString("\n\nTop Comments:\n")
		for i, comment := range comments {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("- " + textutil.Normalize(comment))
		}
		cleanText = b.String()
	}

	metadata := r.apiMetadata(post, rawURL)
	if images := post.imageURLs(); len(images) > 0 {
		metadata["image_urls"] = images
		metadata["image_count"] = len(images)
	}
	for key, value := range post.videoInfo() {
		metadata[key] = value
	}

	return scrape.Result{CleanText: cleanText, Metadata: metadata}
}

// scrapeWithoutAPI is the reduced-fidelity path: plain fetch, title heuristic,
// raw page text.
func (r *Reddit) scrapeWithoutAPI(ctx context.Context, rawURL string) scrape.Result {
	resp, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		r.logger.Error("reddit fallback fetch failed", zap.String("url", rawURL), zap.Error(err))
		return errorResult(rawURL, scrape.SourceReddit, "Reddit",
			"All scraping methods failed", r.clock.Now())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return errorResult(rawURL, scrape.SourceReddit, "Reddit", err.Error(), r.clock.Now())
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = "No title found"
	}

	metadata := baseMetadata(rawURL, scrape.SourceReddit, "basic_fallback", r.clock.Now())
	metadata["title"] = title
	metadata["note"] = "API credentials not configured - limited data available"

	return scrape.Result{
		CleanText: textutil.Normalize(doc.Text()),
		Metadata:  metadata,
	}
}

// accessToken performs the client-credentials grant.
func (r *Reddit) accessToken(ctx context.Context) (string, error) {
	var grant struct {
		AccessToken string `json:"access_token"`
	}
	resp, err := r.rest.R().
		SetContext(ctx).
		SetBasicAuth(r.cfg.Reddit.ClientID, r.cfg.Reddit.ClientSecret).
		SetHeader("User-Agent", r.cfg.Reddit.UserAgent).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&grant).
		Post(r.tokenBase + "/api/v1/access_token")
	if err != nil {
		return "", fmt.Errorf("request access token: %w", err)
	}
	if !resp.IsSuccess() || grant.AccessToken == "" {
		return "", fmt.Errorf("access token request returned status %d", resp.StatusCode())
	}
	return grant.AccessToken, nil
}

func (r *Reddit) apiMetadata(post redditThing, rawURL string) map[string]any {
	metadata := baseMetadata(rawURL, scrape.SourceReddit, "reddit_api", r.clock.Now())
	metadata["title"] = post.Title
	metadata["subreddit"] = post.Subreddit
	metadata["author"] = post.authorOrUnknown()
	metadata["upvotes"] = post.Score
	metadata["num_comments"] = post.NumComments
	metadata["created_utc"] = time.Unix(int64(post.CreatedUTC), 0).UTC().Format(time.RFC3339)
	metadata["nsfw"] = post.Over18
	metadata["post_id"] = post.ID
	metadata["permalink"] = post.Permalink
	metadata["url"] = post.URL
	// The submission's own domain wins over the request URL's host.
	metadata["domain"] = post.Domain
	metadata["upvote_ratio"] = post.UpvoteRatio
	metadata["award_count"] = post.TotalAwards
	if post.LinkFlairText != "" {
		metadata["flair"] = post.LinkFlairText
	}
	if post.IsSelf {
		metadata["post_type"] = "text"
	} else {
		metadata["post_type"] = "link"
	}
	return metadata
}

// topComments collects up to maxComments bodies under the length cap from the
// comments listing.
func topComments(listings []redditListing) []string {
	if len(listings) < 2 {
		return nil
	}
	var comments []string
	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" || child.Data.Body == "" {
			continue
		}
		if len(child.Data.Body) >= maxCommentLength {
			continue
		}
		comments = append(comments, child.Data.Body)
		if len(comments) == maxComments {
			break
		}
	}
	return comments
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string      `json:"kind"`
			Data redditThing `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	Subreddit     string  `json:"subreddit"`
	Author        string  `json:"author"`
	Score         int     `json:"score"`
	NumComments   int     `json:"num_comments"`
	CreatedUTC    float64 `json:"created_utc"`
	Over18        bool    `json:"over_18"`
	ID            string  `json:"id"`
	Permalink     string  `json:"permalink"`
	URL           string  `json:"url"`
	Domain        string  `json:"domain"`
	UpvoteRatio   float64 `json:"upvote_ratio"`
	TotalAwards   int     `json:"total_awards_received"`
	LinkFlairText string  `json:"link_flair_text"`
	IsSelf        bool    `json:"is_self"`
	IsVideo       bool    `json:"is_video"`
	Thumbnail     string  `json:"thumbnail"`
	Body          string  `json:"body"`

	IsGallery   bool `json:"is_gallery"`
	GalleryData *struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`
	MediaMetadata map[string]struct {
		Status string `json:"status"`
		S      struct {
			U string `json:"u"`
		} `json:"s"`
	} `json:"media_metadata"`
	Preview *struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
	Media *struct {
		RedditVideo *struct {
			FallbackURL string `json:"fallback_url"`
			Duration    int    `json:"duration"`
		} `json:"reddit_video"`
	} `json:"media"`
}

func (p redditThing) authorOrUnknown() string {
	if p.Author == "" {
		return "unknown"
	}
	return p.Author
}

// imageURLs gathers gallery, preview, and thumbnail images, deduplicated.
func (p redditThing) imageURLs() []string {
	var images []string
	seen := make(map[string]struct{})
	add := func(u string) {
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		images = append(images, u)
	}

	if p.IsGallery && p.GalleryData != nil {
		for _, item := range p.GalleryData.Items {
			meta, ok := p.MediaMetadata[item.MediaID]
			if ok && meta.Status == "valid" {
				add(meta.S.U)
			}
		}
	}
	if p.Preview != nil {
		for _, image := range p.Preview.Images {
			add(image.Source.URL)
		}
	}
	switch p.Thumbnail {
	case "", "self", "default", "nsfw":
	default:
		add(p.Thumbnail)
	}
	return images
}

func (p redditThing) videoInfo() map[string]any {
	if !p.IsVideo {
		return nil
	}
	info := map[string]any{"has_video": true}
	if p.Media != nil && p.Media.RedditVideo != nil {
		info["video_url"] = p.Media.RedditVideo.FallbackURL
		info["duration_seconds"] = p.Media.RedditVideo.Duration
	}
	if p.Thumbnail != "" {
		info["thumbnail_url"] = p.Thumbnail
	}
	return info
}

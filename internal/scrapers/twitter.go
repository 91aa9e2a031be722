package scrapers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/fetch"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/textutil"
)

const (
	defaultNavTimeout   = 60 * time.Second
	defaultWaitTimeout  = 20 * time.Second
	minTweetFragmentLen = 20

	// Tweet lookups without browser rendering go through the syndication CDN.
	defaultSyndicationBase = "https://cdn.syndication.twimg.com"

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	tweetTextSelectors = []string{
		`[data-testid="tweetText"]`,
		`article div[lang]`,
		`[role="article"]`,
		`div[data-testid="cellInnerDiv"]`,
		`div[lang].css-1rynq56`,
	}
	tweetImageSelectors = []string{
		`[data-testid="tweetPhoto"] img`,
		`div[data-testid="card.layoutLarge.media"] img`,
		`article img[src*="twimg.com"]`,
	}
	tweetVideoSelectors = []string{
		`[data-testid="videoComponent"]`,
		`video`,
		`[data-testid="tweetVideo"]`,
	}
	tweetMetricSelectors = map[string]string{
		"likes":    `[data-testid="like"] span`,
		"retweets": `[data-testid="retweet"] span`,
		"replies":  `[data-testid="reply"] span`,
		"views":    `[data-testid="app-text-transition-container"] span`,
	}

	loginWallIndicators = []string{
		"Don't miss what's happening",
		"People on X are the first to know",
		"Log in",
		"Sign up",
		"See new posts",
		"To view this content, please",
	}

	// Display counts are kept verbatim, K/M suffixes included.
	displayCount = regexp.MustCompile(`[\d.,]+[KkMm]?`)

	tweetIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`twitter\.com/\w+/status/(\d+)`),
		regexp.MustCompile(`x\.com/\w+/status/(\d+)`),
		regexp.MustCompile(`twitter\.com/i/web/status/(\d+)`),
		regexp.MustCompile(`x\.com/i/web/status/(\d+)`),
	}

	textMetricPatterns = map[string]*regexp.Regexp{
		"likes":    regexp.MustCompile(`(\d+(\.\d+)?[KkMm]?)\s*Likes`),
		"retweets": regexp.MustCompile(`(\d+(\.\d+)?[KkMm]?)\s*Retweets`),
		"replies":  regexp.MustCompile(`(\d+(\.\d+)?[KkMm]?)\s*Replies`),
		"views":    regexp.MustCompile(`(\d+(\.\d+)?[KkMm]?)\s*Views`),
	}
)

// pageCapture is everything pulled out of one rendered page.
type pageCapture struct {
	Text           string
	ScreenshotPath string
	Images         []string
	Video          map[string]any
	Engagement     map[string]string
}

// Twitter renders posts in an isolated headless browser per call, with a
// syndication-API fallback when the rendered page is a login wall or the
// browser path fails.
type Twitter struct {
	cfg    Config
	pacer  *fetch.Pacer
	rest   *resty.Client
	clock  scrape.Clock
	logger *zap.Logger

	// render is swapped in tests to avoid launching a browser.
	render          func(ctx context.Context, url string) (*pageCapture, error)
	syndicationBase string
}

// NewTwitter builds the social strategy.
func NewTwitter(cfg Config, clock scrape.Clock, logger *zap.Logger) *Twitter {
	t := &Twitter{
		cfg:             cfg,
		pacer:           fetch.NewPacer(twitterMinInterval),
		rest:            resty.New().SetTimeout(fetch.DefaultTimeout),
		clock:           clock,
		logger:          logger,
		syndicationBase: defaultSyndicationBase,
	}
	t.render = t.renderWithBrowser
	return t
}

// Scrape renders the post headlessly; on a login wall or render failure it
// falls back to the syndication endpoint before giving up.
func (t *Twitter) Scrape(ctx context.Context, rawURL string) scrape.Result {
	if err := t.pacer.Wait(ctx); err != nil {
		return errorResult(rawURL, scrape.SourceTwitter, "Twitter/X", err.Error(), t.clock.Now())
	}

	capture, err := t.render(ctx, rawURL)
	if err != nil || capture.Text == "" || isLoginWall(capture.Text) {
		if err != nil {
			t.logger.Warn("headless render failed", zap.String("url", rawURL), zap.Error(err))
		}
		return t.fallbackScrape(ctx, rawURL)
	}

	metadata := baseMetadata(rawURL, scrape.SourceTwitter, "chromedp", t.clock.Now())
	metadata["screenshot_path"] = capture.ScreenshotPath
	if len(capture.Images) > 0 {
		metadata["image_urls"] = capture.Images
		metadata["image_count"] = len(capture.Images)
	}
	for key, value := range capture.Video {
		metadata[key] = value
	}
	for key, value := range capture.Engagement {
		metadata[key] = value
	}
	// Text-derived metrics fill any gaps the DOM queries missed.
	for key, value := range engagementFromText(capture.Text) {
		if _, ok := metadata[key]; !ok {
			metadata[key] = value
		}
	}

	return scrape.Result{
		CleanText: textutil.Normalize(capture.Text),
		Metadata:  metadata,
	}
}

// renderWithBrowser launches an isolated headless context, navigates, waits
// for tweet content, and harvests text/media/metrics from the DOM. The
// allocator and tab are always released, error or not.
func (t *Twitter) renderWithBrowser(ctx context.Context, rawURL string) (*pageCapture, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(browserUserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	navTimeout := t.cfg.Headless.NavTimeout
	if navTimeout <= 0 {
		navTimeout = defaultNavTimeout
	}
	taskCtx, cancel := context.WithTimeout(taskCtx, navTimeout)
	defer cancel()

	waitTimeout := t.cfg.Headless.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}

	err := chromedp.Run(taskCtx,
		network.Enable(),
		// Images, styles, and fonts only slow the render down.
		network.SetBlockedURLs([]string{
			"*.png", "*.jpg", "*.jpeg", "*.webp", "*.gif",
			"*.css", "*.woff", "*.woff2",
		}),
		emulation.SetUserAgentOverride(browserUserAgent),
		chromedp.Navigate(rawURL),
		// A login wall renders a page without the tweet node; bound the wait
		// separately so it does not eat the whole navigation budget.
		chromedp.ActionFunc(func(ctx context.Context) error {
			waitCtx, waitCancel := context.WithTimeout(ctx, waitTimeout)
			defer waitCancel()
			return chromedp.WaitVisible(`[data-testid="tweetText"]`, chromedp.ByQuery).Do(waitCtx)
		}),
		chromedp.Sleep(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", rawURL, err)
	}

	capture := &pageCapture{
		Video:      map[string]any{},
		Engagement: map[string]string{},
	}
	capture.Text = t.extractTweetText(taskCtx)
	capture.Images = t.extractTweetImages(taskCtx)
	capture.Video = t.extractTweetVideo(taskCtx)
	capture.Engagement = t.extractTweetMetrics(taskCtx)
	capture.ScreenshotPath = t.captureScreenshot(taskCtx)
	return capture, nil
}

// extractTweetText walks the selector ladder, keeping fragments long enough
// to be content rather than UI chrome. Falls back to the whole body text.
func (t *Twitter) extractTweetText(ctx context.Context) string {
	for _, selector := range tweetTextSelectors {
		fragments, err := innerTexts(ctx, selector)
		if err != nil {
			continue
		}
		var parts []string
		for _, fragment := range fragments {
			fragment = strings.TrimSpace(fragment)
			if len(fragment) > minTweetFragmentLen {
				parts = append(parts, fragment)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}

	var body string
	if err := chromedp.Run(ctx, chromedp.Text("body", &body, chromedp.ByQuery)); err != nil {
		return ""
	}
	return body
}

func (t *Twitter) extractTweetImages(ctx context.Context) []string {
	var images []string
	seen := make(map[string]struct{})
	for _, selector := range tweetImageSelectors {
		sources, err := attrValues(ctx, selector, "src")
		if err != nil {
			continue
		}
		for _, src := range sources {
			if !strings.Contains(src, "http") || strings.Contains(src, "profile_images") {
				continue
			}
			// Swap in the larger rendition when the CDN offers one.
			src = strings.ReplaceAll(src, "&name=small", "&name=large")
			if _, dup := seen[src]; dup {
				continue
			}
			seen[src] = struct{}{}
			images = append(images, src)
		}
	}
	return images
}

func (t *Twitter) extractTweetVideo(ctx context.Context) map[string]any {
	info := map[string]any{}
	for _, selector := range tweetVideoSelectors {
		posters, err := attrValues(ctx, selector, "poster")
		if err != nil {
			continue
		}
		count, err := elementCount(ctx, selector)
		if err != nil || count == 0 {
			continue
		}
		info["has_video"] = true
		if len(posters) > 0 && posters[0] != "" {
			info["thumbnail_url"] = posters[0]
		}
		break
	}
	return info
}

// extractTweetMetrics reads engagement counters as displayed; suffixes like
// "12.3K" are preserved verbatim since their semantics vary by locale.
func (t *Twitter) extractTweetMetrics(ctx context.Context) map[string]string {
	metrics := map[string]string{}
	for key, selector := range tweetMetricSelectors {
		texts, err := innerTexts(ctx, selector)
		if err != nil || len(texts) == 0 {
			continue
		}
		// The count is usually the last span in the control.
		if value := displayCount.FindString(strings.TrimSpace(texts[len(texts)-1])); value != "" {
			metrics[key] = value
		}
	}
	return metrics
}

func (t *Twitter) captureScreenshot(ctx context.Context) string {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		t.logger.Warn("screenshot capture failed", zap.Error(err))
		return ""
	}
	dir := t.cfg.Headless.ScreenshotDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("twitter_screenshot_%d.png", t.clock.Now().Unix()))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.logger.Warn("screenshot write failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}

// fallbackScrape pulls the post from the syndication CDN, the lower-fidelity
// path used when rendering is blocked.
func (t *Twitter) fallbackScrape(ctx context.Context, rawURL string) scrape.Result {
	tweetID := extractTweetID(rawURL)
	if tweetID == "" {
		return errorResult(rawURL, scrape.SourceTwitter, "Twitter/X",
			"All scraping methods failed", t.clock.Now())
	}

	var tweet syndicatedTweet
	resp, err := t.rest.R().
		SetContext(ctx).
		SetQueryParam("id", tweetID).
		SetQueryParam("lang", "en").
		SetResult(&tweet).
		Get(t.syndicationBase + "/tweet-result")
	if err != nil || !resp.IsSuccess() || tweet.Text == "" {
		reason := "All scraping methods failed"
		if err != nil {
			t.logger.Warn("syndication fallback failed", zap.String("url", rawURL), zap.Error(err))
		}
		result := errorResult(rawURL, scrape.SourceTwitter, "Twitter/X", reason, t.clock.Now())
		result.Metadata["note"] = "Twitter/X may require authentication or may be blocking automated access"
		return result
	}

	metadata := baseMetadata(rawURL, scrape.SourceTwitter, "syndication_fallback", t.clock.Now())
	metadata["tweet_id"] = tweetID
	if tweet.CreatedAt != "" {
		metadata["date"] = tweet.CreatedAt
	}
	metadata["likes"] = tweet.FavoriteCount
	metadata["replies"] = tweet.ConversationCount
	if tweet.User.ScreenName != "" {
		metadata["author"] = tweet.User.ScreenName
	}

	return scrape.Result{
		CleanText: textutil.Normalize(tweet.Text),
		Metadata:  metadata,
	}
}

type syndicatedTweet struct {
	Text              string `json:"text"`
	CreatedAt         string `json:"created_at"`
	FavoriteCount     int    `json:"favorite_count"`
	ConversationCount int    `json:"conversation_count"`
	User              struct {
		ScreenName string `json:"screen_name"`
	} `json:"user"`
}

func isLoginWall(content string) bool {
	for _, indicator := range loginWallIndicators {
		if strings.Contains(content, indicator) {
			return true
		}
	}
	return false
}

func extractTweetID(rawURL string) string {
	for _, pattern := range tweetIDPatterns {
		if match := pattern.FindStringSubmatch(rawURL); match != nil {
			return match[1]
		}
	}
	return ""
}

func engagementFromText(content string) map[string]string {
	metrics := map[string]string{}
	for key, pattern := range textMetricPatterns {
		if match := pattern.FindStringSubmatch(content); match != nil {
			metrics[key] = match[1]
		}
	}
	return metrics
}

// innerTexts returns the rendered text of every element matching selector.
func innerTexts(ctx context.Context, selector string) ([]string, error) {
	var out []string
	js := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(e => e.innerText)`, selector)
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &out)); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", selector, err)
	}
	return out, nil
}

// attrValues returns a DOM attribute from every element matching selector.
func attrValues(ctx context.Context, selector, attr string) ([]string, error) {
	var out []string
	js := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(e => e.getAttribute(%q) || '')`,
		selector, attr)
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &out)); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", selector, err)
	}
	return out, nil
}

func elementCount(ctx context.Context, selector string) (int, error) {
	var count int
	js := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &count)); err != nil {
		return 0, fmt.Errorf("evaluate %s: %w", selector, err)
	}
	return count, nil
}

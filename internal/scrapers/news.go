package scrapers

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/fetch"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/textutil"
)

// Selector ladders tried in priority order. The first structurally matching
// candidate wins only if it also passes the quality gate (minimum length),
// which is what rejects boilerplate like bare site names.
var (
	newsTitleSelectors = []string{
		"h1",
		"title",
		`[property="og:title"]`,
		`[name="title"]`,
		`[class*="title"]`,
		`[id*="title"]`,
	}
	newsContentSelectors = []string{
		"article",
		`[class*="content"]`,
		`[class*="article"]`,
		`[id*="content"]`,
		`[id*="article"]`,
		"main",
		".story-body",
		".post-content",
	}
	newsDateSelectors = []string{
		`[property="article:published_time"]`,
		`[name="publish_date"]`,
		"time[datetime]",
		`[class*="date"]`,
		`[class*="time"]`,
		".published",
		".date-published",
	}
	newsAuthorSelectors = []string{
		`[property="article:author"]`,
		`[name="author"]`,
		`[class*="author"]`,
		".byline",
		".author-name",
		".post-author",
	}
	newsDescriptionSelectors = []string{
		`[property="og:description"]`,
		`[name="description"]`,
		`[class*="description"]`,
		".article-description",
		".post-excerpt",
	}
	newsCategorySelectors = []string{
		`[class*="category"] a`,
		`[class*="tag"] a`,
		".post-categories a",
		".article-tags a",
	}
	newsImageSelectors = []string{
		"article img",
		".article-content img",
		".post-content img",
		"main img",
		`[class*="image"] img`,
		`img[src*="/wp-content/"]`,
	}
	newsVideoSelectors = []string{
		"video",
		`iframe[src*="youtube"]`,
		`iframe[src*="vimeo"]`,
		`[class*="video"]`,
	}

	firstNumber = regexp.MustCompile(`\d+`)
)

const (
	minTitleLen     = 10
	maxContentImgs  = 10
	wordsPerMinute  = 200
	newsChromeScope = "script, style, nav, footer, aside, header"
)

// News extracts articles: title and main content through selector ladders,
// plus best-effort metadata, media, and engagement counts.
type News struct {
	fetcher *fetch.Fetcher
	clock   scrape.Clock
	logger  *zap.Logger
}

// NewNews builds the article strategy.
func NewNews(cfg Config, clock scrape.Clock, logger *zap.Logger) *News {
	return &News{
		fetcher: fetch.New(fetch.Config{
			UserAgent:   cfg.UserAgent,
			MinInterval: newsMinInterval,
			Timeout:     cfg.FetchTimeout,
			MaxAttempts: cfg.FetchAttempts,
		}, logger),
		clock:  clock,
		logger: logger,
	}
}

// Scrape fetches and extracts an article page.
func (n *News) Scrape(ctx context.Context, rawURL string) scrape.Result {
	resp, err := n.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		n.logger.Error("news scraper failed", zap.String("url", rawURL), zap.Error(err))
		return errorResult(rawURL, scrape.SourceNews, "news", err.Error(), n.clock.Now())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return errorResult(rawURL, scrape.SourceNews, "news", err.Error(), n.clock.Now())
	}

	title := extractTitle(doc)
	content := extractContent(doc)

	metadata := baseMetadata(rawURL, scrape.SourceNews, "goquery", n.clock.Now())
	n.collectArticleMetadata(doc, metadata)
	n.collectMedia(doc, rawURL, metadata)
	collectEngagement(doc, metadata)

	return scrape.Result{
		CleanText: textutil.Normalize(title + "\n\n" + content),
		Metadata:  metadata,
	}
}

// extractTitle walks the title ladder, accepting the first candidate longer
// than the boilerplate threshold.
func extractTitle(doc *goquery.Document) string {
	for _, selector := range newsTitleSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if len(text) > minTitleLen {
			return text
		}
	}
	return "No title found"
}

// extractContent removes page chrome, then walks the content ladder: among
// all elements matched by the first selector that matches anything, the one
// with the most text wins. Falls back to paragraph concatenation, then the
// whole page.
func extractContent(doc *goquery.Document) string {
	doc.Find(newsChromeScope).Remove()

	for _, selector := range newsContentSelectors {
		matches := doc.Find(selector)
		if matches.Length() == 0 {
			continue
		}
		best := ""
		matches.Each(func(_ int, s *goquery.Selection) {
			if text := s.Text(); len(text) > len(best) {
				best = text
			}
		})
		return best
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n")
	}
	return doc.Text()
}

// collectArticleMetadata fills in the independent best-effort attributes;
// each one failing to match simply leaves the key absent.
func (n *News) collectArticleMetadata(doc *goquery.Document, metadata map[string]any) {
	if date := firstAttrOrText(doc, newsDateSelectors, "content", "datetime"); date != "" {
		metadata["publish_date"] = date
	}
	if author := firstAttrOrText(doc, newsAuthorSelectors, "content"); author != "" {
		metadata["author"] = author
	}
	if description := firstAttrOrText(doc, newsDescriptionSelectors, "content"); description != "" {
		metadata["description"] = description
	}
	if categories := extractCategories(doc); len(categories) > 0 {
		metadata["categories"] = categories
		metadata["category_count"] = len(categories)
	}
	words := len(strings.Fields(doc.Text()))
	minutes := words / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	metadata["estimated_reading_time_minutes"] = minutes
}

func (n *News) collectMedia(doc *goquery.Document, baseURL string, metadata map[string]any) {
	if images := extractContentImages(doc, baseURL); len(images) > 0 {
		metadata["image_urls"] = images
		metadata["image_count"] = len(images)
	}

	videoCount := 0
	thumbnail := ""
	for _, selector := range newsVideoSelectors {
		videos := doc.Find(selector)
		videoCount += videos.Length()
		if thumbnail == "" && videos.Length() > 0 {
			first := videos.First()
			poster := first.AttrOr("poster", first.AttrOr("data-thumbnail", ""))
			if poster != "" {
				thumbnail = absoluteURL(baseURL, poster)
			}
		}
	}
	if videoCount > 0 {
		metadata["has_video"] = true
		metadata["video_count"] = videoCount
		if thumbnail != "" {
			metadata["thumbnail_url"] = thumbnail
		}
	}
}

// collectEngagement parses comment/share/view counts from the first matching
// selector per metric.
func collectEngagement(doc *goquery.Document, metadata map[string]any) {
	metricSelectors := []struct {
		key       string
		selectors []string
	}{
		{"comment_count", []string{
			`[class*="comment"] [class*="count"]`,
			`[class*="comment"] [class*="number"]`,
			".comment-count",
			".comments-number",
		}},
		{"share_count", []string{
			`[class*="share"] [class*="count"]`,
			`[class*="share"] [class*="number"]`,
			".share-count",
			".shares-number",
		}},
		{"view_count", []string{
			`[class*="view"] [class*="count"]`,
			`[class*="view"] [class*="number"]`,
			".view-count",
			".views-number",
		}},
	}

	for _, metric := range metricSelectors {
		for _, selector := range metric.selectors {
			element := doc.Find(selector).First()
			if element.Length() == 0 {
				continue
			}
			digits := firstNumber.FindString(element.Text())
			if digits == "" {
				continue
			}
			if count, err := strconv.Atoi(digits); err == nil {
				metadata[metric.key] = count
				break
			}
		}
	}
}

func extractCategories(doc *goquery.Document) []string {
	var categories []string
	seen := make(map[string]struct{})
	for _, selector := range newsCategorySelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			category := strings.TrimSpace(s.Text())
			if category == "" {
				return
			}
			if _, dup := seen[category]; dup {
				return
			}
			seen[category] = struct{}{}
			categories = append(categories, category)
		})
	}
	return categories
}

func extractContentImages(doc *goquery.Document, baseURL string) []string {
	var images []string
	seen := make(map[string]struct{})
	for _, selector := range newsImageSelectors {
		doc.Find(selector).Each(func(_ int, img *goquery.Selection) {
			src := img.AttrOr("src", img.AttrOr("data-src", ""))
			if src == "" {
				return
			}
			full := absoluteURL(baseURL, src)
			if !isContentImage(full) {
				return
			}
			if _, dup := seen[full]; dup {
				return
			}
			seen[full] = struct{}{}
			images = append(images, full)
		})
	}
	if len(images) > maxContentImgs {
		images = images[:maxContentImgs]
	}
	return images
}

// isContentImage filters out icons, logos, and other non-article imagery by
// extension and filename.
func isContentImage(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	hasExt := false
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp"} {
		if strings.Contains(lower, ext) {
			hasExt = true
			break
		}
	}
	if !hasExt {
		return false
	}
	for _, term := range []string{"logo", "icon", "avatar", "spinner", "loading"} {
		if strings.Contains(lower, term) {
			return false
		}
	}
	return true
}

// firstAttrOrText walks a selector ladder and returns the first non-empty
// value among the listed attributes, falling back to element text.
func firstAttrOrText(doc *goquery.Document, selectors []string, attrs ...string) string {
	for _, selector := range selectors {
		element := doc.Find(selector).First()
		if element.Length() == 0 {
			continue
		}
		for _, attr := range attrs {
			if value, ok := element.Attr(attr); ok && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
		if text := strings.TrimSpace(element.Text()); text != "" {
			return text
		}
	}
	return ""
}

func absoluteURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

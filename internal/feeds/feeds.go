// Package feeds pulls configured RSS/Atom sources and maps their items onto
// articles grouped by source topic, ready for preprocessing.
package feeds

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"newsdesk/internal/config"
	"newsdesk/internal/core"
	"newsdesk/internal/logger"
)

// DefaultMaxAge filters out items older than one news cycle.
const DefaultMaxAge = 24 * time.Hour

// Fetcher fetches and converts configured feeds.
type Fetcher struct {
	parser *gofeed.Parser
	maxAge time.Duration
}

// NewFetcher creates a fetcher. maxAge <= 0 falls back to DefaultMaxAge.
func NewFetcher(maxAge time.Duration) *Fetcher {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	parser := gofeed.NewParser()
	parser.UserAgent = "newsdesk/1.0"
	return &Fetcher{parser: parser, maxAge: maxAge}
}

// FetchAll pulls every configured source and returns one topic group per
// feed, in config order. A failing feed is logged and skipped; the pull only
// errors when every source failed.
func (f *Fetcher) FetchAll(ctx context.Context, sources []config.Feed) ([]core.TopicGroup, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no feeds configured")
	}

	var groups []core.TopicGroup
	failures := 0
	for _, src := range sources {
		articles, err := f.fetch(ctx, src)
		if err != nil {
			logger.Warn("feed fetch failed", "url", src.URL, "topic", src.Topic, "error", err.Error())
			failures++
			continue
		}
		logger.Debug("feed fetched", "url", src.URL, "topic", src.Topic, "articles", len(articles))
		groups = append(groups, core.TopicGroup{Topic: src.Topic, Articles: articles})
	}
	if failures == len(sources) {
		return nil, fmt.Errorf("all %d feeds failed", failures)
	}
	return groups, nil
}

func (f *Fetcher) fetch(ctx context.Context, src config.Feed) ([]core.Article, error) {
	feed, err := f.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", src.URL, err)
	}

	publisher := src.Publisher
	if publisher == "" {
		publisher = strings.TrimSpace(feed.Title)
	}

	cutoff := time.Now().Add(-f.maxAge)
	var articles []core.Article
	for _, item := range feed.Items {
		published := itemTime(item)
		if published.IsZero() || published.Before(cutoff) {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" || item.Link == "" {
			continue
		}
		hints := append([]string(nil), src.SectionHints...)
		hints = append(hints, item.Categories...)
		articles = append(articles, core.Article{
			Title:        title,
			Description:  StripHTML(item.Description),
			Link:         strings.TrimSpace(item.Link),
			Publisher:    publisher,
			Topic:        src.Topic,
			Slug:         Slugify(title),
			PubDate:      published,
			SectionHints: hints,
		})
	}
	return articles, nil
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// StripHTML reduces an RSS description to its text content.
func StripHTML(html string) string {
	html = strings.TrimSpace(html)
	if html == "" || !strings.Contains(html, "<") {
		return html
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a stable identity slug from a title.
func Slugify(title string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 80 {
		slug = strings.Trim(slug[:80], "-")
	}
	return slug
}

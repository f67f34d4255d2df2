package parser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"DailyDigest/internal/domain"
	"DailyDigest/internal/scanner"
)

const rssDefaultMaxAgeDays = 7

// RSSScanner parses RSS/Atom feeds; each category URL is one feed.
type RSSScanner struct {
	parser *gofeed.Parser
}

// NewRSSScanner builds a feed parser sharing the given HTTP client.
func NewRSSScanner(client *http.Client) *RSSScanner {
	p := gofeed.NewParser()
	p.Client = defaultClient(client)
	p.UserAgent = userAgent
	return &RSSScanner{parser: p}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan keeps entries published within "maxAgeDays" (default 7) of the window end.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	oldest := req.Window.Until.AddDate(0, 0, -req.IntOption("maxAgeDays", rssDefaultMaxAgeDays))

	var items []domain.RawItem
	for _, cat := range req.Categories {
		feed, err := r.parser.ParseURLWithContext(cat.URL, ctx)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", cat.Name, err)
		}

		for _, entry := range feed.Items {
			published := publishedAt(entry)
			if !published.IsZero() && published.Before(oldest) {
				continue
			}

			desc := entry.Description
			if desc == "" {
				desc = entry.Content
			}

			id := entry.GUID
			if id == "" {
				id = entry.Link
			}

			items = append(items, domain.RawItem{
				ID:      id,
				Title:   entry.Title,
				URL:     entry.Link,
				Summary: truncate(plainText(desc), summaryLimit),
			})
		}
	}

	if maxItems := req.IntOption("maxItems", 0); maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

func publishedAt(entry *gofeed.Item) time.Time {
	switch {
	case entry.PublishedParsed != nil:
		return *entry.PublishedParsed
	case entry.UpdatedParsed != nil:
		return *entry.UpdatedParsed
	default:
		return time.Time{}
	}
}

package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"DailyDigest/internal/domain"
	"DailyDigest/internal/scanner"
)

const (
	hnSearchURL     = "https://hn.algolia.com/api/v1/search"
	hnItemURL       = "https://news.ycombinator.com/item?id="
	hnDefaultMax    = 15
	hnDefaultMaxAge = 7 * 24 * time.Hour
)

type hnResponse struct {
	Hits []struct {
		ObjectID string `json:"objectID"`
		Title    string `json:"title"`
		URL      string `json:"url"`
		Points   int    `json:"points"`
	} `json:"hits"`
}

// HackerNewsScanner runs story searches against the Algolia HN API.
// Queries come from the "queries" option (comma separated) or from category names.
type HackerNewsScanner struct {
	client   *http.Client
	pacer    *rate.Limiter
	endpoint string
}

// NewHackerNewsScanner paces consecutive searches by interval.
func NewHackerNewsScanner(client *http.Client, interval time.Duration) *HackerNewsScanner {
	return &HackerNewsScanner{client: defaultClient(client), pacer: newPacer(interval), endpoint: hnSearchURL}
}

// Name identifies the strategy inside the registry.
func (h *HackerNewsScanner) Name() string {
	return "hackernews"
}

// Scan merges hits of every query, deduplicated by objectID, sorted by points
// and capped by "maxItems" (default 15). A failing query is skipped unless all fail.
func (h *HackerNewsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	queries := hnQueries(req)
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries provided for site %s", req.SiteName)
	}

	since := req.Window.Until.Add(-hnDefaultMaxAge)
	if hours := req.IntOption("maxAgeHours", 0); hours > 0 {
		since = req.Window.Until.Add(-time.Duration(hours) * time.Hour)
	}
	endpoint := req.Option("endpoint", h.endpoint)

	type scored struct {
		item   domain.RawItem
		points int
	}

	var (
		posts    []scored
		seen     = map[string]struct{}{}
		failures int
		lastErr  error
	)

	for _, query := range queries {
		var resp hnResponse
		if err := fetchJSON(ctx, h.client, h.pacer, hnSearchURLFor(endpoint, query, since), &resp); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			lastErr = err
			continue
		}

		for _, hit := range resp.Hits {
			if hit.ObjectID == "" {
				continue
			}
			if _, ok := seen[hit.ObjectID]; ok {
				continue
			}
			seen[hit.ObjectID] = struct{}{}

			link := hit.URL
			if link == "" {
				link = hnItemURL + hit.ObjectID
			}
			posts = append(posts, scored{
				item: domain.RawItem{
					ID:    hit.ObjectID,
					Title: hit.Title,
					URL:   link,
					Score: domain.IntPtr(hit.Points),
				},
				points: hit.Points,
			})
		}
	}

	if failures == len(queries) {
		return nil, fmt.Errorf("all %d hn queries failed: %w", failures, lastErr)
	}

	sort.SliceStable(posts, func(i, j int) bool { return posts[i].points > posts[j].points })

	maxItems := req.IntOption("maxItems", hnDefaultMax)
	if maxItems > 0 && len(posts) > maxItems {
		posts = posts[:maxItems]
	}

	items := make([]domain.RawItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, p.item)
	}
	return items, nil
}

func hnQueries(req scanner.Request) []string {
	var queries []string
	if raw := req.Option("queries", ""); raw != "" {
		for _, q := range strings.Split(raw, ",") {
			if q = strings.TrimSpace(q); q != "" {
				queries = append(queries, q)
			}
		}
	}
	for _, cat := range req.Categories {
		if cat.Name != "" {
			queries = append(queries, cat.Name)
		}
	}
	return queries
}

func hnSearchURLFor(endpoint, query string, since time.Time) string {
	values := url.Values{}
	values.Set("query", query)
	values.Set("tags", "story")
	values.Set("numericFilters", "created_at_i>"+strconv.FormatInt(since.Unix(), 10))
	return endpoint + "?" + values.Encode()
}

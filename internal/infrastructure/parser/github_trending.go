package parser

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"DailyDigest/internal/domain"
	"DailyDigest/internal/scanner"
)

const githubBaseURL = "https://github.com"

var starsTodayExpr = regexp.MustCompile(`([\d,]+)\s+stars?\s+today`)

// GitHubTrendingScanner scrapes the trending page of each configured language.
// Stars gained today become the rank score.
type GitHubTrendingScanner struct {
	client *http.Client
	pacer  *rate.Limiter
}

// NewGitHubTrendingScanner waits interval between consecutive page requests.
func NewGitHubTrendingScanner(client *http.Client, interval time.Duration) *GitHubTrendingScanner {
	return &GitHubTrendingScanner{client: defaultClient(client), pacer: newPacer(interval)}
}

// Name identifies the strategy inside the registry.
func (g *GitHubTrendingScanner) Name() string {
	return "github-trending"
}

// Scan fetches every category page; without categories the global trending page is used.
func (g *GitHubTrendingScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	categories := req.Categories
	if len(categories) == 0 {
		categories = []scanner.Category{{Name: "all", URL: githubBaseURL + "/trending"}}
	}

	var items []domain.RawItem
	for _, cat := range categories {
		doc, err := fetchDocument(ctx, g.client, g.pacer, cat.URL)
		if err != nil {
			return nil, fmt.Errorf("trending %s: %w", cat.Name, err)
		}
		items = append(items, parseTrending(doc)...)
	}

	if maxItems := req.IntOption("maxItems", 0); maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

func parseTrending(doc *goquery.Document) []domain.RawItem {
	var items []domain.RawItem
	doc.Find("article.Box-row").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("h2 a").First()
		if link.Length() == 0 {
			link = row.Find(".lh-condensed a").First()
		}
		href, _ := link.Attr("href")
		repo := strings.Trim(strings.TrimSpace(href), "/")
		if repo == "" {
			return
		}

		title := strings.Join(strings.Fields(link.Text()), "")
		if title == "" {
			title = repo
		}

		item := domain.RawItem{
			ID:      repo,
			Title:   title,
			URL:     githubBaseURL + "/" + repo,
			Summary: truncate(strings.TrimSpace(row.Find("p").First().Text()), summaryLimit),
		}
		if stars, ok := starsToday(row.Find("span.float-sm-right").Text()); ok {
			item.Score = domain.IntPtr(stars)
		}
		items = append(items, item)
	})
	return items
}

func starsToday(text string) (int, bool) {
	match := starsTodayExpr.FindStringSubmatch(strings.ToLower(text))
	if len(match) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(match[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

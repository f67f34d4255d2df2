package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"DailyDigest/internal/domain"
	"DailyDigest/internal/scanner"
)

const (
	arxivBaseURL       = "https://arxiv.org"
	arxivLookbackDays  = 2
	arxivDefaultMaxCap = 0
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// AbstractSummarizer rewrites one paper abstract, e.g. a condensed translation.
type AbstractSummarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// ArxivScanner crawls category listing pages and extracts papers announced
// within the lookback window ending on the requested day.
type ArxivScanner struct {
	client     *http.Client
	logger     *slog.Logger
	pageSize   int
	summarizer AbstractSummarizer
}

// NewArxivScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivScanner(client *http.Client, logger *slog.Logger) *ArxivScanner {
	return &ArxivScanner{client: defaultClient(client), logger: logger, pageSize: 200}
}

// WithSummarizer sets the abstract rewriter used by sites with the
// "summarize" option.
func (a *ArxivScanner) WithSummarizer(s AbstractSummarizer) *ArxivScanner {
	a.summarizer = s
	return a
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Scan walks each category URL. Fresher papers score higher so the
// aggregator's ranking prefers them. Option "lookbackDays" widens the window,
// "maxItems" caps the per-site result and "summarize" rewrites each kept
// abstract through the configured summarizer.
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided for site %s", req.SiteName)
	}

	lookback := req.IntOption("lookbackDays", arxivLookbackDays)
	maxItems := req.IntOption("maxItems", arxivDefaultMaxCap)
	targetDay := utcDay(req.Window.Day)
	oldest := targetDay.AddDate(0, 0, -lookback)

	results := make([]domain.RawItem, 0)
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		skip := 0
		for {
			pageURL, err := buildPageURL(cat.URL, skip, a.pageSize)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			doc, err := fetchDocument(ctx, a.client, nil, pageURL)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			page, shouldContinue := a.extractEntries(doc, targetDay, oldest)
			for _, entry := range page {
				if _, ok := seen[entry.ID]; ok {
					continue
				}
				seen[entry.ID] = struct{}{}
				results = append(results, entry)
			}
			a.debug("arxiv page scanned", "category", cat.Name, "skip", skip, "kept", len(page))

			if !shouldContinue {
				break
			}
			skip += a.pageSize
		}
	}

	if maxItems > 0 && len(results) > maxItems {
		results = results[:maxItems]
	}
	if req.BoolOption("summarize", false) {
		a.summarize(ctx, req.SiteName, results)
	}
	return results, nil
}

// summarize replaces each abstract in place; a failed call keeps the
// original text.
func (a *ArxivScanner) summarize(ctx context.Context, site string, items []domain.RawItem) {
	if a.summarizer == nil {
		a.debug("summarize requested without a summarizer", "site", site)
		return
	}
	for i := range items {
		if ctx.Err() != nil {
			return
		}
		out, err := a.summarizer.Summarize(ctx, items[i].Summary)
		if err != nil {
			a.warn("abstract summary failed, keeping original", "site", site, "id", items[i].ID, "error", err)
			continue
		}
		if out != "" {
			items[i].Summary = truncate(out, summaryLimit)
		}
	}
}

func (a *ArxivScanner) extractEntries(doc *goquery.Document, targetDay, oldest time.Time) ([]domain.RawItem, bool) {
	var (
		collected    []domain.RawItem
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		entry, publishedAt, err := parseEntry(dt, dd)
		if err != nil {
			return true
		}

		entryDay := utcDay(publishedAt)
		if entryDay.Before(oldest) {
			continueScan = false
			return false
		}
		if !entryDay.After(targetDay) {
			age := int(targetDay.Sub(entryDay).Hours() / 24)
			entry.Score = domain.IntPtr(int(targetDay.Sub(oldest).Hours()/24) - age)
			collected = append(collected, entry)
		}
		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

func parseEntry(dt, dd *goquery.Selection) (domain.RawItem, time.Time, error) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")

	id := strings.TrimSpace(link.Text())
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	if href != "" && !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))
	if title == "" {
		return domain.RawItem{}, time.Time{}, fmt.Errorf("entry %s has no title", id)
	}

	abstract := dd.Find("p.mathjax").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	publishedAt := time.Now().UTC()
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = parsed
		}
	}

	if id == "" {
		id = href
	}

	return domain.RawItem{
		ID:      id,
		Title:   title,
		URL:     href,
		Summary: truncate(abstract, summaryLimit),
	}, publishedAt, nil
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func utcDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (a *ArxivScanner) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *ArxivScanner) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}

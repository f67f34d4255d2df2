package parser

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"DailyDigest/internal/domain"
	"DailyDigest/internal/scanner"
)

const (
	v2exHotURL     = "https://www.v2ex.com/api/topics/hot.json"
	v2exTopicURL   = "https://www.v2ex.com/t/"
	v2exDefaultMax = 10
)

type v2exTopic struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Replies int    `json:"replies"`
}

// V2EXScanner reads topic lists from the V2EX JSON API; replies are the score.
// Each category URL is one topic list; without categories the hot list is used.
type V2EXScanner struct {
	client *http.Client
	pacer  *rate.Limiter
}

// NewV2EXScanner paces consecutive list requests by interval.
func NewV2EXScanner(client *http.Client, interval time.Duration) *V2EXScanner {
	return &V2EXScanner{client: defaultClient(client), pacer: newPacer(interval)}
}

// Name identifies the strategy inside the registry.
func (v *V2EXScanner) Name() string {
	return "v2ex"
}

// Scan returns topics from every list, capped by "maxItems" (default 10).
func (v *V2EXScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	categories := req.Categories
	if len(categories) == 0 {
		categories = []scanner.Category{{Name: "hot", URL: v2exHotURL}}
	}

	var items []domain.RawItem
	for _, cat := range categories {
		var topics []v2exTopic
		if err := fetchJSON(ctx, v.client, v.pacer, cat.URL, &topics); err != nil {
			return nil, fmt.Errorf("v2ex %s: %w", cat.Name, err)
		}
		for _, topic := range topics {
			items = append(items, topicItem(topic))
		}
	}

	if maxItems := req.IntOption("maxItems", v2exDefaultMax); maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

func topicItem(topic v2exTopic) domain.RawItem {
	id := strconv.Itoa(topic.ID)
	link := topic.URL
	if link == "" {
		link = v2exTopicURL + id
	}
	return domain.RawItem{
		ID:      id,
		Title:   topic.Title,
		URL:     link,
		Summary: truncate(plainText(topic.Content), summaryLimit),
		Score:   domain.IntPtr(topic.Replies),
	}
}

package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	userAgent      = "Mozilla/5.0 (compatible; DailyDigest/1.0)"
	defaultTimeout = 30 * time.Second
	summaryLimit   = 300
)

func defaultClient(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: defaultTimeout}
	}
	return client
}

// newPacer returns a limiter allowing one request per interval; zero disables pacing.
func newPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func get(ctx context.Context, client *http.Client, pacer *rate.Limiter, pageURL, accept string) (*http.Response, error) {
	if pacer != nil {
		if err := pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for pacer: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", pageURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s returned %s: %s", pageURL, resp.Status, strings.TrimSpace(string(payload)))
	}
	return resp, nil
}

func fetchDocument(ctx context.Context, client *http.Client, pacer *rate.Limiter, pageURL string) (*goquery.Document, error) {
	resp, err := get(ctx, client, pacer, pageURL, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func fetchJSON(ctx context.Context, client *http.Client, pacer *rate.Limiter, pageURL string, v any) error {
	resp, err := get(ctx, client, pacer, pageURL, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", pageURL, err)
	}
	return nil
}

// plainText strips markup and collapses whitespace.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

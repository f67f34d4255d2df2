package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"DailyDigest/internal/config"
	"DailyDigest/internal/domain"
	"DailyDigest/internal/scanner"
)

var scanDay = domain.DayWindow(time.Date(2025, time.November, 8, 0, 0, 0, 0, time.UTC))

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != userAgent {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGitHubTrendingScanner(t *testing.T) {
	t.Parallel()

	srv := serve(t, "text/html", `
	<article class="Box-row">
	  <h2><a href="/acme/rocket"> acme /
	    rocket </a></h2>
	  <p> Fast launches. </p>
	  <span class="d-inline-block float-sm-right">1,234 stars today</span>
	</article>
	<article class="Box-row">
	  <h2><a href="/acme/quiet">acme / quiet</a></h2>
	</article>
	<article class="Box-row"><h2><a href="">broken</a></h2></article>`)

	items, err := NewGitHubTrendingScanner(srv.Client(), 0).Scan(context.Background(), scanner.Request{
		Window:     scanDay,
		Categories: []scanner.Category{{Name: "go", URL: srv.URL}},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 repositories, got %d", len(items))
	}
	first := items[0]
	if first.ID != "acme/rocket" || first.Title != "acme/rocket" || first.URL != "https://github.com/acme/rocket" {
		t.Fatalf("unexpected item %+v", first)
	}
	if first.Summary != "Fast launches." || first.Score == nil || *first.Score != 1234 {
		t.Fatalf("unexpected summary/score %q %v", first.Summary, first.Score)
	}
	if items[1].Score != nil {
		t.Fatalf("repository without stars line should carry no score")
	}
}

func TestStarsToday(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"  12 stars today", 12, true},
		{"1 star today", 1, true},
		{"3,400 Stars Today", 3400, true},
		{"built by", 0, false},
	}
	for _, tt := range tests {
		got, ok := starsToday(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("starsToday(%q) = %d,%v want %d,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHackerNewsScanner(t *testing.T) {
	t.Parallel()

	var queries []string
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		queries = append(queries, q.Get("query"))
		if q.Get("tags") != "story" || !strings.HasPrefix(q.Get("numericFilters"), "created_at_i>") {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		switch q.Get("query") {
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "free credits":
			_, _ = w.Write([]byte(`{"hits":[{"objectID":"1","title":"Free GPU credits","points":50},{"objectID":"2","title":"Cheap API","url":"https://x.test","points":80}]}`))
		default:
			_, _ = w.Write([]byte(`{"hits":[{"objectID":"2","title":"Cheap API","points":80},{"objectID":"3","title":"Coupon","points":5},{"objectID":"","title":"no id"}]}`))
		}
	}))
	defer srv.Close()

	sc := NewHackerNewsScanner(srv.Client(), 0)
	items, err := sc.Scan(context.Background(), scanner.Request{
		Window:     scanDay,
		SiteName:   "hn",
		Options:    map[string]string{"endpoint": srv.URL, "queries": "free credits, broken", "maxItems": "2"},
		Categories: []scanner.Category{{Name: "discount"}},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 searches, got %d (%v)", calls.Load(), queries)
	}
	if len(items) != 2 || items[0].ID != "2" || items[1].ID != "1" {
		t.Fatalf("expected hits sorted by points and capped, got %+v", items)
	}
	if items[1].URL != hnItemURL+"1" {
		t.Fatalf("hit without url should link to the discussion, got %s", items[1].URL)
	}
}

func TestHackerNewsScannerAllQueriesFail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHackerNewsScanner(srv.Client(), 0).Scan(context.Background(), scanner.Request{
		Window:  scanDay,
		Options: map[string]string{"endpoint": srv.URL, "queries": "a,b"},
	})
	if err == nil || !strings.Contains(err.Error(), "all 2 hn queries failed") {
		t.Fatalf("expected aggregate failure, got %v", err)
	}

	if _, err := NewHackerNewsScanner(nil, 0).Scan(context.Background(), scanner.Request{SiteName: "hn"}); err == nil {
		t.Fatalf("expected error without queries")
	}
}

func TestV2EXScanner(t *testing.T) {
	t.Parallel()

	srv := serve(t, "application/json", `[
		{"id":101,"title":"Free VPS trial","content":"<p>two  months</p>","replies":40},
		{"id":102,"title":"Discount codes","url":"https://v2ex.test/t/102","replies":3}
	]`)

	items, err := NewV2EXScanner(srv.Client(), 0).Scan(context.Background(), scanner.Request{
		Window:     scanDay,
		Categories: []scanner.Category{{Name: "deals", URL: srv.URL}},
		Options:    map[string]string{"maxItems": "5"},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(items))
	}
	if items[0].ID != "101" || items[0].URL != v2exTopicURL+"101" || items[0].Summary != "two months" || *items[0].Score != 40 {
		t.Fatalf("unexpected first topic %+v", items[0])
	}
	if items[1].URL != "https://v2ex.test/t/102" {
		t.Fatalf("explicit topic url should win, got %s", items[1].URL)
	}
}

func TestRSSScanner(t *testing.T) {
	t.Parallel()

	srv := serve(t, "application/rss+xml", `<?xml version="1.0"?>
	<rss version="2.0"><channel><title>Blog</title>
	  <item><guid>post-1</guid><title>New release</title><link>https://blog.test/1</link>
	    <description>&lt;b&gt;Big&lt;/b&gt; news</description><pubDate>Fri, 07 Nov 2025 10:00:00 GMT</pubDate></item>
	  <item><title>Ancient post</title><link>https://blog.test/0</link>
	    <pubDate>Mon, 01 Sep 2025 10:00:00 GMT</pubDate></item>
	  <item><title>Undated post</title><link>https://blog.test/2</link></item>
	</channel></rss>`)

	items, err := NewRSSScanner(srv.Client()).Scan(context.Background(), scanner.Request{
		Window:     scanDay,
		Categories: []scanner.Category{{Name: "blog", URL: srv.URL}},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected stale entry to be dropped, got %+v", items)
	}
	if items[0].ID != "post-1" || items[0].Summary != "Big news" {
		t.Fatalf("unexpected first entry %+v", items[0])
	}
	if items[1].ID != "https://blog.test/2" {
		t.Fatalf("entry without guid should use its link, got %s", items[1].ID)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("héllo wörld", 8); got != "héllo..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation %q", got)
	}
}

type stubScanner struct {
	name  string
	items []domain.RawItem
	err   error
	last  scanner.Request
}

func (s *stubScanner) Name() string { return s.name }

func (s *stubScanner) Scan(_ context.Context, req scanner.Request) ([]domain.RawItem, error) {
	s.last = req
	return s.items, s.err
}

func TestStrategySourceSources(t *testing.T) {
	t.Parallel()

	stub := &stubScanner{name: "stub", items: []domain.RawItem{{ID: "1", Title: "one"}}}
	reg := scanner.NewRegistry()
	reg.Register(stub)

	disabled := false
	sites := []config.SiteConfig{
		{Name: "enabled", Scanner: "stub", Categories: []config.CategoryConfig{{Name: "c", URL: "https://c.test"}}, Options: map[string]string{"maxItems": "3"}},
		{Name: "off", Scanner: "stub", Enabled: &disabled},
	}

	sources, err := NewStrategySource(reg, sites, nil).Sources()
	if err != nil {
		t.Fatalf("Sources error: %v", err)
	}
	if len(sources) != 1 || sources[0].Name() != "enabled" {
		t.Fatalf("expected only the enabled site, got %d", len(sources))
	}

	items, err := sources[0].Fetch(context.Background(), scanDay)
	if err != nil || len(items) != 1 {
		t.Fatalf("Fetch = %v, %v", items, err)
	}
	if stub.last.SiteName != "enabled" || stub.last.IntOption("maxItems", 0) != 3 || stub.last.Categories[0].URL != "https://c.test" {
		t.Fatalf("request not built from site config: %+v", stub.last)
	}
	if !stub.last.Window.Day.Equal(scanDay.Day) {
		t.Fatalf("window not forwarded")
	}

	stub.err = errors.New("upstream down")
	if _, err := sources[0].Fetch(context.Background(), scanDay); err == nil || !strings.Contains(err.Error(), "scan site enabled") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestStrategySourceUnknownScanner(t *testing.T) {
	t.Parallel()

	_, err := NewStrategySource(scanner.NewRegistry(), []config.SiteConfig{{Name: "x", Scanner: "nope"}}, nil).Sources()
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected unknown scanner error, got %v", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	got := strings.Join(DefaultRegistry(nil, nil, nil).Names(), ",")
	if got != "arxiv,github-trending,hackernews,rss,v2ex" {
		t.Fatalf("unexpected strategies %s", got)
	}
}

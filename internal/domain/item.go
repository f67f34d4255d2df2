package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Window is the query window handed to every source for one run.
type Window struct {
	Day   time.Time
	Since time.Time
	Until time.Time
}

// DayWindow builds the window covering the calendar day of t in its own location.
func DayWindow(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return Window{Day: start, Since: start, Until: start.AddDate(0, 0, 1)}
}

// DayKey formats the calendar date used to key runs and artifacts.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// RawItem is what a source adapter yields before ingestion.
type RawItem struct {
	ID      string
	Title   string
	URL     string
	Summary string
	Score   *int
}

// Item is one discovered unit of content retained by the aggregator.
type Item struct {
	SourceName   string    `json:"source"`
	Title        string    `json:"title"`
	URL          string    `json:"url,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Fingerprint  string    `json:"fingerprint"`
	RankScore    int       `json:"rank_score"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// NewItem ingests a raw item for the given source. The second return value is
// false when the raw item has no usable title.
func NewItem(source string, raw RawItem, discoveredAt time.Time) (Item, bool) {
	title := strings.Join(strings.Fields(raw.Title), " ")
	if title == "" {
		return Item{}, false
	}

	score := 0
	if raw.Score != nil && *raw.Score > 0 {
		score = *raw.Score
	}

	return Item{
		SourceName:   source,
		Title:        title,
		URL:          strings.TrimSpace(raw.URL),
		Summary:      strings.TrimSpace(raw.Summary),
		Fingerprint:  Fingerprint(source, raw.ID, title),
		RankScore:    score,
		DiscoveredAt: discoveredAt,
	}, true
}

// Fingerprint prefers the source-provided id and falls back to a hash of
// (source, normalized title).
func Fingerprint(source, id, title string) string {
	if id = strings.TrimSpace(id); id != "" {
		return source + ":" + id
	}
	normalized := strings.ToLower(strings.Join(strings.Fields(title), " "))
	sum := sha256.Sum256([]byte(source + "|" + normalized))
	return hex.EncodeToString(sum[:])
}

// IntPtr is a small helper for optional scores.
func IntPtr(v int) *int {
	return &v
}

package aggregator

import (
	"fmt"
	"strings"
	"time"

	"DailyDigest/internal/domain"
)

// Render lays the items out as the plain-text aggregation fed to the analyzer
// and kept as the day's raw artifact. Items are grouped by source in order of
// first appearance and numbered within each group.
func Render(day time.Time, items []domain.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Daily items (%s) ===\n", domain.DayKey(day))

	var order []string
	groups := map[string][]domain.Item{}
	for _, item := range items {
		if _, ok := groups[item.SourceName]; !ok {
			order = append(order, item.SourceName)
		}
		groups[item.SourceName] = append(groups[item.SourceName], item)
	}

	for _, source := range order {
		group := groups[source]
		fmt.Fprintf(&sb, "\n## %s (%d)\n\n", source, len(group))
		for i, item := range group {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, item.Title)
			if item.URL != "" {
				fmt.Fprintf(&sb, "   link: %s\n", item.URL)
			}
			if item.RankScore > 0 {
				fmt.Fprintf(&sb, "   score: %d\n", item.RankScore)
			}
			if item.Summary != "" {
				fmt.Fprintf(&sb, "   %s\n", item.Summary)
			}
		}
	}
	return sb.String()
}

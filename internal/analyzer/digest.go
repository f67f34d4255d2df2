package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"DailyDigest/internal/domain"
)

// Defaults used whenever a section cannot be found in the analysis.
const (
	DefaultHighlight  = "No standout item today."
	DefaultTrend      = "No clear trend identified."
	DefaultInsight    = "No additional insights."
	DefaultPrediction = "No prediction available."
)

type section int

const (
	sectionNone section = iota
	sectionHighlight
	sectionTrends
	sectionInsights
	sectionPrediction
)

// ParseDigest extracts the structured view from free-form analysis text.
// Recognised headers are markdown headings, bold lines or "Name:" prefixes
// naming highlight, trends, insights or prediction, in English or Chinese.
// Missing sections are default-filled; Parsed reports whether any section
// carried content. The function never panics.
func ParseDigest(text string) (d domain.Digest) {
	defer func() {
		if r := recover(); r != nil {
			d = DefaultDigest()
		}
	}()

	var (
		current    section
		highlight  []string
		prediction []string
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if sec, rest, ok := parseHeader(line); ok {
			current = sec
			if rest == "" {
				continue
			}
			line = rest
		}

		switch current {
		case sectionHighlight:
			highlight = append(highlight, stripBullet(line))
		case sectionTrends:
			if item := stripBullet(line); item != "" {
				d.Trends = append(d.Trends, item)
			}
		case sectionInsights:
			if item := stripBullet(line); item != "" {
				d.Insights = append(d.Insights, item)
			}
		case sectionPrediction:
			prediction = append(prediction, stripBullet(line))
		}
	}

	d.Highlight = strings.TrimSpace(strings.Join(highlight, " "))
	d.Prediction = strings.TrimSpace(strings.Join(prediction, " "))
	d.Parsed = d.Highlight != "" || d.Prediction != "" || len(d.Trends) > 0 || len(d.Insights) > 0
	return fillDefaults(d)
}

// DefaultDigest is the view sent when nothing could be extracted.
func DefaultDigest() domain.Digest {
	return fillDefaults(domain.Digest{})
}

func fillDefaults(d domain.Digest) domain.Digest {
	if d.Highlight == "" {
		d.Highlight = DefaultHighlight
	}
	if len(d.Trends) == 0 {
		d.Trends = []string{DefaultTrend}
	}
	if len(d.Insights) == 0 {
		d.Insights = []string{DefaultInsight}
	}
	if d.Prediction == "" {
		d.Prediction = DefaultPrediction
	}
	return d
}

// parseHeader reports whether line opens a section, with any inline content
// left after the header name.
func parseHeader(line string) (section, string, bool) {
	heading := false
	markdown := strings.HasPrefix(line, "#")
	switch {
	case strings.HasPrefix(line, "#"):
		line = strings.TrimLeft(line, "#")
		heading = true
	case strings.HasPrefix(line, "**"):
		line = strings.TrimPrefix(line, "**")
		if end := strings.Index(line, "**"); end >= 0 {
			line = line[:end] + line[end+2:]
		}
		heading = true
	}
	line = strings.TrimSpace(line)

	name, rest := line, ""
	if idx := strings.IndexAny(line, ":："); idx >= 0 {
		_, size := utf8.DecodeRuneInString(line[idx:])
		name, rest = line[:idx], strings.TrimSpace(line[idx+size:])
	} else if !heading {
		return sectionNone, "", false
	}

	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) > 40 {
		return sectionNone, "", false
	}

	var sec section
	switch {
	case containsAny(name, "highlight", "惊艳", "亮点"):
		sec = sectionHighlight
	case containsAny(name, "trend", "趋势"):
		sec = sectionTrends
	case containsAny(name, "insight", "洞察"):
		sec = sectionInsights
	case containsAny(name, "predict", "outlook", "预测", "展望"):
		sec = sectionPrediction
	default:
		// an unrelated markdown heading closes the current section
		return sectionNone, "", markdown
	}
	return sec, rest, true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func stripBullet(line string) string {
	line = strings.TrimSpace(line)
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}

	digits := strings.IndexFunc(line, func(r rune) bool { return !unicode.IsDigit(r) })
	if digits > 0 && digits < len(line) && (line[digits] == '.' || line[digits] == ')') {
		return strings.TrimSpace(line[digits+1:])
	}
	return line
}

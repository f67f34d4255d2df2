package analyzer

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"DailyDigest/internal/domain"
)

// MessageOptions customizes the rendered email.
type MessageOptions struct {
	// Subject may contain {{date}}, replaced with the run day.
	Subject string
	Footer  string
}

var (
	fencePattern    = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*\n?(.*?)\\s*```\\s*$")
	blockTagPattern = regexp.MustCompile(`(?i)<(div|p|h[1-6]|ul|ol|table|section|article|html|body)[\s>]`)
	headingPattern  = regexp.MustCompile(`(?i)<h[1-6][^>]*>`)
	breakPattern    = regexp.MustCompile(`(?i)<(br|/?(p|div|li|ul|ol|tr|table|section|article|h[1-6]))[^>]*>`)

	// analysisPolicy keeps formatting markup and drops scripts, handlers and styles.
	analysisPolicy = bluemonday.UGCPolicy()
	textPolicy     = bluemonday.StrictPolicy()
)

var messageTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body style="font-family: Arial, sans-serif; max-width: 720px; margin: 0 auto; color: #333;">
<h1 style="border-bottom: 2px solid #4a6ee0; padding-bottom: 8px;">{{.Subject}}</h1>
{{if .AnalysisHTML}}<div class="analysis">{{.AnalysisHTML}}</div>
{{else}}<div class="highlight" style="background: #f3f6ff; padding: 12px; border-radius: 6px;">
<h2>Highlight</h2>
<p>{{.Digest.Highlight}}</p>
</div>
<h2>Trends</h2>
<ul>{{range .Digest.Trends}}<li>{{.}}</li>{{end}}</ul>
<h2>Insights</h2>
<ul>{{range .Digest.Insights}}<li>{{.}}</li>{{end}}</ul>
<h2>Prediction</h2>
<p>{{.Digest.Prediction}}</p>
{{if .AnalysisText}}<h2>Full analysis</h2>
<p>{{.AnalysisText}}</p>
{{end}}{{end}}{{if .Items}}<h2>Items</h2>
<ol>{{range .Items}}<li>{{if .URL}}<a href="{{.URL}}">{{.Title}}</a>{{else}}{{.Title}}{{end}} <small>({{.SourceName}}{{if .RankScore}}, {{.RankScore}}{{end}})</small></li>{{end}}</ol>
{{end}}<hr>
<p style="color: #888; font-size: 12px;">{{.Footer}}</p>
</body>
</html>
`))

type messageView struct {
	Subject      string
	AnalysisHTML template.HTML
	AnalysisText template.HTML
	Digest       domain.Digest
	Items        []domain.Item
	Footer       string
}

// RenderMessage turns the day's analysis and items into the outbound message.
// The analysis reaches recipients only when the digest parser recognises at
// least one section in it; otherwise both parts carry the default digest.
// HTML analysis is sanitized before it is embedded, anything else is escaped.
func RenderMessage(day time.Time, analysis domain.AnalysisResult, items []domain.Item, opts MessageOptions) domain.RenderedMessage {
	date := domain.DayKey(day)

	subject := strings.TrimSpace(opts.Subject)
	if subject == "" {
		subject = "Daily digest {{date}}"
	}
	subject = strings.ReplaceAll(subject, "{{date}}", date)

	footer := strings.TrimSpace(opts.Footer)
	if footer == "" {
		footer = fmt.Sprintf("Generated on %s.", date)
	}

	view := messageView{
		Subject: subject,
		Items:   items,
		Footer:  footer,
		Digest:  DefaultDigest(),
	}

	var plain string
	if !analysis.Placeholder {
		cleaned := StripFences(analysis.Text)
		if blockTagPattern.MatchString(cleaned) {
			plain = htmlToText(cleaned)
			if d := ParseDigest(plain); d.Parsed {
				view.AnalysisHTML = template.HTML(analysisPolicy.Sanitize(cleaned))
			} else {
				plain = ""
			}
		} else if d := ParseDigest(cleaned); d.Parsed {
			plain = cleaned
			view.Digest = d
			view.AnalysisText = textToHTML(cleaned)
		}
	}

	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, view); err != nil {
		buf.Reset()
		view.AnalysisHTML, view.AnalysisText = "", ""
		view.Digest = DefaultDigest()
		plain = ""
		_ = messageTemplate.Execute(&buf, view)
	}

	if plain == "" {
		plain = digestText(view.Digest)
	}

	return domain.RenderedMessage{
		Subject: subject,
		HTML:    buf.String(),
		Text:    renderText(subject, plain, items, footer),
	}
}

// StripFences removes a surrounding markdown code fence such as ```html.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

func textToHTML(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>\n"))
}

// htmlToText keeps line structure, turning headings into markdown headings so
// the digest parser can find them.
func htmlToText(s string) string {
	s = headingPattern.ReplaceAllString(s, "\n## ")
	s = breakPattern.ReplaceAllString(s, "\n")
	s = html.UnescapeString(textPolicy.Sanitize(s))

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func digestText(d domain.Digest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Highlight\n%s\n\nTrends\n", d.Highlight)
	for _, t := range d.Trends {
		fmt.Fprintf(&sb, "- %s\n", t)
	}
	sb.WriteString("\nInsights\n")
	for i, in := range d.Insights {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, in)
	}
	fmt.Fprintf(&sb, "\nPrediction\n%s", d.Prediction)
	return sb.String()
}

func renderText(subject, analysis string, items []domain.Item, footer string) string {
	var sb strings.Builder
	sb.WriteString(subject)
	sb.WriteString("\n\n")
	sb.WriteString(analysis)
	if len(items) > 0 {
		sb.WriteString("\n\nItems:\n")
		for i, item := range items {
			fmt.Fprintf(&sb, "%d. %s", i+1, item.Title)
			if item.URL != "" {
				fmt.Fprintf(&sb, " <%s>", item.URL)
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(footer)
	sb.WriteString("\n")
	return sb.String()
}

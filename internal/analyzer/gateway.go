package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
)

const (
	// PlaceholderText is returned instead of calling the service on empty input.
	PlaceholderText = "no input"

	truncationMarker     = "\n...[truncated]"
	defaultMaxInputChars = 2000
	defaultInstructions  = "You are an analyst. Summarize the day's items: one highlight, the main trends, insights and a short prediction."
)

// ErrEmptyResponse is returned when the service answers with nothing usable.
var ErrEmptyResponse = errors.New("analyzer: empty response")

// Gateway shapes the aggregated text into one request for the summarization
// service. It performs no retries; the pipeline controller owns those.
type Gateway struct {
	completer     ports.Completer
	maxInputChars int
	logger        *slog.Logger
}

// New builds a gateway. maxInputChars <= 0 falls back to the default cut.
func New(completer ports.Completer, maxInputChars int, logger *slog.Logger) *Gateway {
	if maxInputChars <= 0 {
		maxInputChars = defaultMaxInputChars
	}
	return &Gateway{
		completer:     completer,
		maxInputChars: maxInputChars,
		logger:        logger,
	}
}

// Analyze sends text with the given instructions and returns the analysis.
// Empty input short-circuits to a placeholder result without any call.
func (g *Gateway) Analyze(ctx context.Context, text, instructions string) (domain.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		g.debug("empty input, skipping service call")
		return domain.AnalysisResult{Text: PlaceholderText, Placeholder: true}, nil
	}
	if g.completer == nil {
		return domain.AnalysisResult{}, fmt.Errorf("analyze: completer is not configured")
	}

	input, truncated := truncateRunes(text, g.maxInputChars)
	if truncated {
		g.debug("input truncated", "limit", g.maxInputChars)
	}

	system := strings.TrimSpace(instructions)
	if system == "" {
		system = defaultInstructions
	}

	out, err := g.completer.Complete(ctx, system, input)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("analyze: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return domain.AnalysisResult{}, ErrEmptyResponse
	}

	return domain.AnalysisResult{Text: out, Truncated: truncated}, nil
}

func truncateRunes(s string, limit int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]) + truncationMarker, true
}

func (g *Gateway) debug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}

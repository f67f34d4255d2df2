package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"DailyDigest/internal/ports"
)

const (
	defaultAbstractMaxChars     = 150
	defaultAbstractInstructions = "Translate the paper abstract into Chinese and condense it to at most %d characters. " +
		"Keep technical terms accurate, stress the core contribution and output plain text without quotes or remarks."
)

// AbstractSummarizer rewrites a single paper abstract through the completion
// service. Callers keep the original text when Summarize fails.
type AbstractSummarizer struct {
	completer    ports.Completer
	instructions string
	maxChars     int
	logger       *slog.Logger
}

// NewAbstractSummarizer builds a summarizer. An empty instructions string
// uses the translate-and-condense prompt; maxChars <= 0 uses 150.
func NewAbstractSummarizer(completer ports.Completer, instructions string, maxChars int, logger *slog.Logger) *AbstractSummarizer {
	if maxChars <= 0 {
		maxChars = defaultAbstractMaxChars
	}
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		instructions = fmt.Sprintf(defaultAbstractInstructions, maxChars)
	}
	return &AbstractSummarizer{
		completer:    completer,
		instructions: instructions,
		maxChars:     maxChars,
		logger:       logger,
	}
}

// Summarize returns the rewritten abstract cut to whole sentences within the
// character limit. Blank input is returned as is without a call.
func (s *AbstractSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return text, nil
	}
	if s.completer == nil {
		return "", fmt.Errorf("summarize abstract: completer is not configured")
	}

	out, err := s.completer.Complete(ctx, s.instructions, text)
	if err != nil {
		return "", fmt.Errorf("summarize abstract: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyResponse
	}
	clipped := clipSentences(out, s.maxChars)
	if clipped != out && s.logger != nil {
		s.logger.Debug("abstract summary clipped", "limit", s.maxChars)
	}
	return clipped, nil
}

// clipSentences keeps as many complete sentences as fit in limit runes and
// hard-cuts with an ellipsis when even the first one does not.
func clipSentences(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	end := 0
	for i, r := range runes[:limit] {
		switch r {
		case '。', '！', '？', '.', '!', '?':
			end = i + 1
		}
	}
	if end == 0 {
		return string(runes[:limit]) + "..."
	}
	return strings.TrimSpace(string(runes[:end]))
}

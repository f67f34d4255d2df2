package aggregator

import (
	"strings"

	"DailyDigest/internal/domain"
)

// KeywordPredicate decides whether an item is relevant enough to retain.
type KeywordPredicate interface {
	Match(item domain.Item) bool
}

// PredicateFunc adapts a plain function to KeywordPredicate.
type PredicateFunc func(item domain.Item) bool

// Match calls f.
func (f PredicateFunc) Match(item domain.Item) bool {
	return f(item)
}

// AcceptAll retains every item.
var AcceptAll = PredicateFunc(func(domain.Item) bool { return true })

// KeywordGate is the conjunctive two-set gate: an item must contain at least
// one Topic term AND at least one Qualifier term. An empty set is satisfied
// trivially. Matching is a case-insensitive substring test over the title, and
// over the summary too when MatchSummary is set.
type KeywordGate struct {
	Topic        []string
	Qualifier    []string
	MatchSummary bool
}

// NewKeywordGate normalizes both term sets, dropping blanks.
func NewKeywordGate(topic, qualifier []string, matchSummary bool) KeywordGate {
	return KeywordGate{
		Topic:        normalizeTerms(topic),
		Qualifier:    normalizeTerms(qualifier),
		MatchSummary: matchSummary,
	}
}

// Match implements KeywordPredicate.
func (g KeywordGate) Match(item domain.Item) bool {
	text := strings.ToLower(item.Title)
	if g.MatchSummary && item.Summary != "" {
		text += "\n" + strings.ToLower(item.Summary)
	}
	return containsAny(text, g.Topic) && containsAny(text, g.Qualifier)
}

func containsAny(text string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

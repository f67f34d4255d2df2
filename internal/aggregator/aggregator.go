package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
)

const (
	defaultWorkers       = 4
	defaultSourceTimeout = 45 * time.Second
)

// Config bounds the adapter fan-out.
type Config struct {
	Workers       int
	SourceTimeout time.Duration
}

// Observer is told how each adapter fared in a run.
type Observer func(source string, items int, err error)

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithClock replaces the ingestion clock.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithObserver registers a per-adapter outcome hook.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observe = o }
}

// Aggregator merges items from several sources into one bounded, deduplicated,
// filtered and ranked list. It keeps no state between runs.
type Aggregator struct {
	workers int
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
	observe Observer
}

// New builds an aggregator; zero config values fall back to defaults.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		workers: cfg.Workers,
		timeout: cfg.SourceTimeout,
		logger:  logger,
		now:     time.Now,
	}
	if a.workers <= 0 {
		a.workers = defaultWorkers
	}
	if a.timeout <= 0 {
		a.timeout = defaultSourceTimeout
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type fetchResult struct {
	items []domain.RawItem
	err   error
}

// Aggregate queries every source, then dedups (first fingerprint wins),
// filters, ranks by score descending (stable) and truncates to limit. A
// failing source contributes nothing; when everything fails the result is
// simply empty. limit <= 0 disables truncation.
func (a *Aggregator) Aggregate(ctx context.Context, window domain.Window, sources []ports.Source, filter KeywordPredicate, limit int) []domain.Item {
	if filter == nil {
		filter = AcceptAll
	}

	results := a.fetchAll(ctx, window, sources)

	var (
		retained []domain.Item
		seen     = make(map[string]struct{})
		failed   int
		dupes    int
		rejected int
	)

	for i, src := range sources {
		res := results[i]
		if a.observe != nil {
			a.observe(src.Name(), len(res.items), res.err)
		}
		if res.err != nil {
			failed++
			a.warn("source failed, contribution dropped", "source", src.Name(), "error", res.err)
			continue
		}

		for _, raw := range res.items {
			item, ok := domain.NewItem(src.Name(), raw, a.now())
			if !ok {
				continue
			}
			if _, dup := seen[item.Fingerprint]; dup {
				dupes++
				continue
			}
			if !filter.Match(item) {
				rejected++
				continue
			}
			seen[item.Fingerprint] = struct{}{}
			retained = append(retained, item)
		}
	}

	if len(sources) > 0 && failed == len(sources) {
		a.warn("all sources failed", "sources", len(sources))
	}

	sort.SliceStable(retained, func(i, j int) bool {
		return retained[i].RankScore > retained[j].RankScore
	})

	if limit > 0 && len(retained) > limit {
		retained = retained[:limit]
	}

	a.debug("aggregation done",
		"sources", len(sources),
		"failed", failed,
		"duplicates", dupes,
		"rejected", rejected,
		"retained", len(retained),
	)
	return retained
}

func (a *Aggregator) fetchAll(ctx context.Context, window domain.Window, sources []ports.Source) []fetchResult {
	results := make([]fetchResult, len(sources))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = a.fetchOne(ctx, window, src)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (a *Aggregator) fetchOne(ctx context.Context, window domain.Window, src ports.Source) (res fetchResult) {
	defer func() {
		if r := recover(); r != nil {
			res = fetchResult{err: fmt.Errorf("source %s panicked: %v", src.Name(), r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return fetchResult{err: err}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	items, err := src.Fetch(fetchCtx, window)
	return fetchResult{items: items, err: err}
}

func (a *Aggregator) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *Aggregator) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}

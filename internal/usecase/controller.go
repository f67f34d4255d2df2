package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"DailyDigest/internal/aggregator"
	"DailyDigest/internal/clock"
	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
)

var (
	// ErrNoItems marks an attempt in which aggregation produced nothing.
	ErrNoItems = errors.New("aggregation produced no items")
	// ErrExhausted is returned once every attempt of a day's run has failed.
	ErrExhausted = errors.New("pipeline attempts exhausted")
)

// State is the controller's position in one run.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateSucceeded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Aggregator is the merge stage the controller drives.
type Aggregator interface {
	Aggregate(ctx context.Context, window domain.Window, sources []ports.Source, filter aggregator.KeywordPredicate, limit int) []domain.Item
}

// Analyzer is the summarization stage the controller drives.
type Analyzer interface {
	Analyze(ctx context.Context, text, instructions string) (domain.AnalysisResult, error)
}

// AttemptObserver is told about every finished attempt.
type AttemptObserver func(day time.Time, attempt domain.RunAttempt)

// ControllerDeps wires the stages of one attempt.
type ControllerDeps struct {
	Aggregator Aggregator
	Sources    []ports.Source
	Filter     aggregator.KeywordPredicate
	Analyzer   Analyzer
	Sleeper    clock.Sleeper
	Clock      func() time.Time
	Observer   AttemptObserver
	Logger     *slog.Logger
}

// ControllerConfig bounds the retry loop and shapes each attempt.
type ControllerConfig struct {
	MaxAttempts  int
	RetryDelay   time.Duration
	Limit        int
	Instructions string
}

// Outcome is what a run hands to delivery.
type Outcome struct {
	Day      time.Time
	State    State
	Items    []domain.Item
	RawText  string
	Analysis domain.AnalysisResult
	Attempts []domain.RunAttempt
}

// Controller runs aggregate-then-analyze as one failable unit of work with a
// bounded number of attempts and a fixed delay between them.
type Controller struct {
	aggregator   Aggregator
	sources      []ports.Source
	filter       aggregator.KeywordPredicate
	analyzer     Analyzer
	sleeper      clock.Sleeper
	now          func() time.Time
	observe      AttemptObserver
	logger       *slog.Logger
	maxAttempts  int
	retryDelay   time.Duration
	limit        int
	instructions string
}

// NewController constructs the retry controller.
func NewController(deps ControllerDeps, cfg ControllerConfig) *Controller {
	c := &Controller{
		aggregator:   deps.Aggregator,
		sources:      deps.Sources,
		filter:       deps.Filter,
		analyzer:     deps.Analyzer,
		sleeper:      deps.Sleeper,
		now:          deps.Clock,
		observe:      deps.Observer,
		logger:       deps.Logger,
		maxAttempts:  cfg.MaxAttempts,
		retryDelay:   cfg.RetryDelay,
		limit:        cfg.Limit,
		instructions: cfg.Instructions,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 1
	}
	if c.sleeper == nil {
		c.sleeper = clock.Context
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.filter == nil {
		c.filter = aggregator.AcceptAll
	}
	return c
}

// Run executes up to MaxAttempts attempts for day. It returns an error
// wrapping ErrExhausted and the last cause once the ceiling is reached, or the
// context error when cancelled between attempts.
func (c *Controller) Run(ctx context.Context, day time.Time) (Outcome, error) {
	window := domain.DayWindow(day)
	out := Outcome{Day: window.Day, State: StateIdle}

	if c.aggregator == nil || c.analyzer == nil {
		out.State = StateExhausted
		return out, fmt.Errorf("controller is not fully configured")
	}

	var lastErr error
	for n := 1; n <= c.maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			out.State = StateExhausted
			return out, fmt.Errorf("run %s cancelled before attempt %d: %w", domain.DayKey(window.Day), n, err)
		}

		out.State = StateAttempting
		attempt := domain.RunAttempt{AttemptNumber: n, Status: domain.AttemptPending, StartedAt: c.now()}

		items, raw, analysis, err := c.attempt(ctx, window)
		attempt.FinishedAt = c.now()
		if err == nil {
			attempt.Status = domain.AttemptSucceeded
			out.Attempts = append(out.Attempts, attempt)
			c.notify(window.Day, attempt)

			out.State = StateSucceeded
			out.Items, out.RawText, out.Analysis = items, raw, analysis
			c.info("run succeeded", "date", domain.DayKey(window.Day), "attempt", n, "items", len(items))
			return out, nil
		}

		lastErr = err
		attempt.Status = domain.AttemptFailed
		attempt.ErrorDetail = err.Error()
		out.Attempts = append(out.Attempts, attempt)
		c.notify(window.Day, attempt)
		c.warn("attempt failed", "date", domain.DayKey(window.Day), "attempt", n, "max", c.maxAttempts, "error", err)

		if n == c.maxAttempts {
			break
		}
		if err := c.sleeper.Sleep(ctx, c.retryDelay); err != nil {
			out.State = StateExhausted
			return out, fmt.Errorf("run %s cancelled while waiting to retry: %w", domain.DayKey(window.Day), err)
		}
	}

	out.State = StateExhausted
	return out, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, len(out.Attempts), lastErr)
}

func (c *Controller) attempt(ctx context.Context, window domain.Window) ([]domain.Item, string, domain.AnalysisResult, error) {
	items := c.aggregator.Aggregate(ctx, window, c.sources, c.filter, c.limit)
	if len(items) == 0 {
		return nil, "", domain.AnalysisResult{}, ErrNoItems
	}

	raw := aggregator.Render(window.Day, items)
	analysis, err := c.analyzer.Analyze(ctx, raw, c.instructions)
	if err != nil {
		return nil, "", domain.AnalysisResult{}, err
	}
	return items, raw, analysis, nil
}

func (c *Controller) notify(day time.Time, attempt domain.RunAttempt) {
	if c.observe != nil {
		c.observe(day, attempt)
	}
}

func (c *Controller) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Controller) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

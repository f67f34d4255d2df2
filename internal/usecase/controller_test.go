package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DailyDigest/internal/aggregator"
	"DailyDigest/internal/clock"
	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
)

type fakeAggregator struct {
	calls   int
	results [][]domain.Item
}

func (f *fakeAggregator) Aggregate(_ context.Context, _ domain.Window, _ []ports.Source, _ aggregator.KeywordPredicate, _ int) []domain.Item {
	f.calls++
	if len(f.results) == 0 {
		return nil
	}
	idx := f.calls - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx]
}

type fakeAnalyzer struct {
	calls int
	errs  []error
	text  string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, text, _ string) (domain.AnalysisResult, error) {
	f.calls++
	if idx := f.calls - 1; idx < len(f.errs) && f.errs[idx] != nil {
		return domain.AnalysisResult{}, f.errs[idx]
	}
	return domain.AnalysisResult{Text: f.text}, nil
}

var controllerDay = time.Date(2025, time.November, 8, 21, 0, 0, 0, time.UTC)

func someItems() []domain.Item {
	return []domain.Item{{SourceName: "hn", Title: "Free GPT credits", Fingerprint: "hn:1", RankScore: 3}}
}

func TestControllerExhaustsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	agg := &fakeAggregator{}
	an := &fakeAnalyzer{}
	sleeper := &clock.Recorder{}
	var observed []domain.RunAttempt

	ctrl := NewController(ControllerDeps{
		Aggregator: agg,
		Analyzer:   an,
		Sleeper:    sleeper,
		Observer:   func(_ time.Time, a domain.RunAttempt) { observed = append(observed, a) },
	}, ControllerConfig{MaxAttempts: 3, RetryDelay: 3 * time.Minute})

	out, err := ctrl.Run(context.Background(), controllerDay)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, ErrNoItems)
	assert.Equal(t, StateExhausted, out.State)
	assert.Equal(t, 3, agg.calls)
	assert.Zero(t, an.calls)
	assert.Len(t, out.Attempts, 3)
	assert.Equal(t, []time.Duration{3 * time.Minute, 3 * time.Minute}, sleeper.Calls)
	assert.Len(t, observed, 3)

	for i, a := range out.Attempts {
		assert.Equal(t, i+1, a.AttemptNumber)
		assert.Equal(t, domain.AttemptFailed, a.Status)
		assert.NotEmpty(t, a.ErrorDetail)
	}
}

func TestControllerSucceedsOnSecondAttempt(t *testing.T) {
	t.Parallel()

	cause := errors.New("service overloaded")
	agg := &fakeAggregator{results: [][]domain.Item{someItems()}}
	an := &fakeAnalyzer{errs: []error{cause}, text: "analysis"}
	sleeper := &clock.Recorder{}

	ctrl := NewController(ControllerDeps{Aggregator: agg, Analyzer: an, Sleeper: sleeper},
		ControllerConfig{MaxAttempts: 3, RetryDelay: time.Minute})

	out, err := ctrl.Run(context.Background(), controllerDay)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, "analysis", out.Analysis.Text)
	assert.Len(t, out.Items, 1)
	assert.Contains(t, out.RawText, "Free GPT credits")
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, domain.AttemptFailed, out.Attempts[0].Status)
	assert.Equal(t, cause.Error(), out.Attempts[0].ErrorDetail)
	assert.Equal(t, domain.AttemptSucceeded, out.Attempts[1].Status)
	assert.Empty(t, out.Attempts[1].ErrorDetail)
	assert.Len(t, sleeper.Calls, 1)
	assert.Equal(t, time.Date(2025, time.November, 8, 0, 0, 0, 0, time.UTC), out.Day)
}

func TestControllerSingleAttemptNeverSleeps(t *testing.T) {
	t.Parallel()

	sleeper := &clock.Recorder{}
	ctrl := NewController(ControllerDeps{
		Aggregator: &fakeAggregator{results: [][]domain.Item{someItems()}},
		Analyzer:   &fakeAnalyzer{errs: []error{errors.New("boom")}},
		Sleeper:    sleeper,
	}, ControllerConfig{MaxAttempts: 1})

	_, err := ctrl.Run(context.Background(), controllerDay)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Empty(t, sleeper.Calls)
}

func TestControllerStopsWhenCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	agg := &fakeAggregator{}
	sleeper := clock.SleeperFunc(func(ctx context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	})

	ctrl := NewController(ControllerDeps{Aggregator: agg, Analyzer: &fakeAnalyzer{}, Sleeper: sleeper},
		ControllerConfig{MaxAttempts: 5, RetryDelay: time.Hour})

	out, err := ctrl.Run(ctx, controllerDay)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, agg.calls)
	assert.Len(t, out.Attempts, 1)
	assert.Equal(t, StateExhausted, out.State)
}

func TestControllerHonorsCancelledContextUpFront(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := &fakeAggregator{}
	_, err := NewController(ControllerDeps{Aggregator: agg, Analyzer: &fakeAnalyzer{}}, ControllerConfig{MaxAttempts: 3}).
		Run(ctx, controllerDay)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, agg.calls)
}

package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
)

// DayJob is the unit the scheduler fires once per calendar day.
type DayJob interface {
	Run(ctx context.Context, day time.Time) (Report, error)
}

// Scheduler wires the cron-like driver with the daily job. Runs are keyed by
// calendar date in loc; a date that already succeeded in this process is not
// run again.
type Scheduler struct {
	driver   ports.Scheduler
	job      DayJob
	location *time.Location
	logger   *slog.Logger

	mu        sync.Mutex
	completed map[string]bool
	running   map[string]bool
	onFinish  func(Report, error)
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, job DayJob, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		driver:    driver,
		job:       job,
		location:  loc,
		logger:    logger,
		completed: map[string]bool{},
		running:   map[string]bool{},
	}
}

// OnFinish registers a hook called after every non-skipped trigger.
func (s *Scheduler) OnFinish(fn func(Report, error)) {
	s.onFinish = fn
}

// Start registers the job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.job == nil {
		return nil
	}

	job := func(trigger time.Time) {
		_, _ = s.Trigger(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// Trigger runs the job for the calendar day containing trigger. Failures are
// logged and returned, never panicked.
func (s *Scheduler) Trigger(ctx context.Context, trigger time.Time) (Report, error) {
	day := trigger.In(s.location)
	key := domain.DayKey(day)

	s.mu.Lock()
	if s.completed[key] || s.running[key] {
		s.mu.Unlock()
		s.log(slog.LevelInfo, "run already handled for date, skipping", "date", key)
		return Report{Day: key, Skipped: true}, nil
	}
	s.running[key] = true
	s.mu.Unlock()

	report, err := s.job.Run(ctx, day)

	s.mu.Lock()
	delete(s.running, key)
	if err == nil {
		s.completed[key] = true
	}
	s.mu.Unlock()

	if err != nil {
		s.log(slog.LevelError, "daily run failed", "date", key, "attempts", len(report.Outcome.Attempts), "error", err)
	} else {
		args := []any{"date", key, "items", len(report.Outcome.Items)}
		if report.Delivery != nil {
			args = append(args, "succeeded", report.Delivery.Succeeded, "failed", report.Delivery.Failed)
		}
		s.log(slog.LevelInfo, "daily run finished", args...)
	}

	if s.onFinish != nil {
		s.onFinish(report, err)
	}
	return report, err
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) log(level slog.Level, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Log(context.Background(), level, msg, args...)
	}
}

package scheduler

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestNextUsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CST", 8*60*60)
	s := NewCronScheduler("0 21 * * *", loc, io.Discard)

	from := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC) // 20:00 CST
	next, err := s.Next(from)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}

	want := time.Date(2025, time.November, 8, 21, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := Validate("0 21 * * *"); err != nil {
		t.Fatalf("expected valid expression, got %v", err)
	}
	if err := Validate("every day"); err == nil {
		t.Fatalf("expected error for invalid expression")
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("not a cron", time.UTC, io.Discard)
	if err := s.Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("0 21 * * *", time.UTC, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
}

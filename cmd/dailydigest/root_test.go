package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
	"DailyDigest/internal/usecase"
)

func TestParseDay(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	fallback := time.Date(2025, time.November, 8, 21, 0, 0, 0, loc)

	tests := []struct {
		input string
		want  time.Time
		err   bool
	}{
		{"", fallback, false},
		{"2025-11-07", time.Date(2025, time.November, 7, 0, 0, 0, 0, loc), false},
		{"07.11.2025", time.Time{}, true},
		{"2025-13-01", time.Time{}, true},
	}

	for _, tt := range tests {
		got, err := parseDay(tt.input, loc, fallback)
		if tt.err {
			if err == nil {
				t.Errorf("parseDay(%q): expected error, got %v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDay(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseDay(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, usecase.Report{
		Day: "2025-11-08",
		Outcome: usecase.Outcome{
			State:    usecase.StateSucceeded,
			Items:    make([]domain.Item, 4),
			Attempts: make([]domain.RunAttempt, 2),
		},
		Message:  domain.RenderedMessage{Subject: "Daily digest 2025-11-08"},
		Delivery: &domain.DeliverySummary{Recipients: 45, Succeeded: 44, Batches: 3},
	})

	out := buf.String()
	for _, want := range []string{"succeeded after 2 attempt(s), 4 item(s)", "Subject: Daily digest 2025-11-08", "44 of 45 recipient(s) in 3 batch(es)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printReport(&buf, usecase.Report{Day: "2025-11-08", Skipped: true})
	if !strings.Contains(buf.String(), "skipped") {
		t.Errorf("expected skip notice, got %q", buf.String())
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	if !strings.HasPrefix(buf.String(), "dailydigest dev") {
		t.Errorf("unexpected version output %q", buf.String())
	}
}

type recordingSession struct{ closed bool }

func (s *recordingSession) Send(context.Context, []string, string, domain.RenderedMessage, []domain.Attachment) error {
	return errors.New("check must not send")
}

func (s *recordingSession) Close() error {
	s.closed = true
	return nil
}

type recordingNotifier struct {
	session *recordingSession
	err     error
}

func (n *recordingNotifier) Open(context.Context) (ports.Session, error) {
	if n.err != nil {
		return nil, n.err
	}
	return n.session, nil
}

func TestCheckNotifier(t *testing.T) {
	session := &recordingSession{}
	if err := checkNotifier(context.Background(), &recordingNotifier{session: session}); err != nil {
		t.Fatalf("checkNotifier: %v", err)
	}
	if !session.closed {
		t.Fatalf("session was not closed")
	}

	cause := errors.New("535 authentication failed")
	if err := checkNotifier(context.Background(), &recordingNotifier{err: cause}); !errors.Is(err, cause) {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func TestCheckCommandHasSMTPFlag(t *testing.T) {
	if checkCmd.Flags().Lookup("smtp") == nil {
		t.Fatalf("check command is missing --smtp")
	}
}

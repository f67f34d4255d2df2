package ports

import (
	"context"
	"errors"
	"time"

	"DailyDigest/internal/domain"
)

// Source wraps one external feed and yields raw items for a query window.
type Source interface {
	Name() string
	Fetch(ctx context.Context, window domain.Window) ([]domain.RawItem, error)
}

// Completer is the external summarization service: one synchronous request/response.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Notifier opens an outbound session scoped to a single dispatch call.
type Notifier interface {
	Open(ctx context.Context) (Session, error)
}

// Session sends one logical batch per call and must be closed by the caller.
type Session interface {
	Send(ctx context.Context, recipients []string, subject string, body domain.RenderedMessage, attachments []domain.Attachment) error
	Close() error
}

// Artifact names written for every run day.
const (
	ArtifactRaw      = "raw.txt"
	ArtifactAnalysis = "analysis.txt"
	ArtifactItems    = "items.json"
	ArtifactDelivery = "delivery.json"
	// ArtifactAnalysisMeta records the placeholder and truncation flags of
	// the stored analysis.
	ArtifactAnalysisMeta = "analysis.json"
)

// ErrArtifactNotFound is returned by ArtifactStore.Get for an unknown key.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore keeps date-keyed run artifacts; Put overwrites.
type ArtifactStore interface {
	Put(ctx context.Context, day, name string, data []byte) error
	Get(ctx context.Context, day, name string) ([]byte, error)
}

// RunLedger records attempts and delivery outcomes for audit.
type RunLedger interface {
	RecordAttempt(ctx context.Context, runID, day string, attempt domain.RunAttempt) error
	RecordDelivery(ctx context.Context, runID string, summary domain.DeliverySummary) error
	History(ctx context.Context, day string) ([]LedgerEntry, error)
}

// LedgerEntry is one row of the run history for a day.
type LedgerEntry struct {
	RunID      string    `json:"run_id"`
	Day        string    `json:"date"`
	Attempt    int       `json:"attempt"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"DailyDigest/internal/config"
	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
)

const (
	eventsTable = "run_events"

	kindAttempt  = "attempt"
	kindDelivery = "delivery"
)

const schema = `CREATE TABLE IF NOT EXISTS run_events (
	run_id      TEXT    NOT NULL,
	day         TEXT    NOT NULL,
	kind        TEXT    NOT NULL,
	attempt     INTEGER NOT NULL DEFAULT 0,
	status      TEXT    NOT NULL,
	detail      TEXT    NOT NULL DEFAULT '',
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	recorded_at BIGINT  NOT NULL
)`

const indexDDL = `CREATE INDEX IF NOT EXISTS run_events_day_idx ON run_events (day, recorded_at)`

// SQLLedger is the run ledger on sqlite or postgres.
type SQLLedger struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

var _ ports.RunLedger = (*SQLLedger)(nil)

// OpenLedger opens the configured database and ensures the schema exists.
func OpenLedger(ctx context.Context, cfg config.LedgerConfig) (*SQLLedger, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("ledger dsn is required")
	}

	var (
		driverName  string
		placeholder sq.PlaceholderFormat
	)
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		driverName, placeholder = "sqlite", sq.Question
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create ledger dir: %w", err)
			}
		}
	case "postgres":
		driverName, placeholder = "postgres", sq.Dollar
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", driverName, err)
	}
	if driverName == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s ledger: %w", driverName, err)
	}

	ledger := NewSQLLedger(db, placeholder)
	if err := ledger.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// NewSQLLedger wires an already opened database.
func NewSQLLedger(db *sql.DB, placeholder sq.PlaceholderFormat) *SQLLedger {
	return &SQLLedger{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(placeholder),
		now: time.Now,
	}
}

// Close closes the database handle.
func (l *SQLLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *SQLLedger) ensureSchema(ctx context.Context) error {
	for _, stmt := range []string{schema, indexDDL} {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

// RecordAttempt appends one finished attempt.
func (l *SQLLedger) RecordAttempt(ctx context.Context, runID, day string, attempt domain.RunAttempt) error {
	recorded := attempt.FinishedAt
	if recorded.IsZero() {
		recorded = l.now()
	}
	return l.insert(ctx, ports.LedgerEntry{
		RunID:      runID,
		Day:        day,
		Attempt:    attempt.AttemptNumber,
		Status:     string(attempt.Status),
		Detail:     attempt.ErrorDetail,
		RecordedAt: recorded,
	}, kindAttempt)
}

// RecordDelivery appends the dispatch totals of a run.
func (l *SQLLedger) RecordDelivery(ctx context.Context, runID string, summary domain.DeliverySummary) error {
	recorded := summary.SentAt
	if recorded.IsZero() {
		recorded = l.now()
	}
	status := "delivered"
	if summary.Succeeded == 0 && summary.Recipients > 0 {
		status = "undelivered"
	}
	return l.insert(ctx, ports.LedgerEntry{
		RunID:      runID,
		Day:        summary.Day,
		Status:     status,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		RecordedAt: recorded,
	}, kindDelivery)
}

func (l *SQLLedger) insert(ctx context.Context, e ports.LedgerEntry, kind string) error {
	query, args, err := l.sb.Insert(eventsTable).
		Columns("run_id", "day", "kind", "attempt", "status", "detail", "succeeded", "failed", "recorded_at").
		Values(e.RunID, e.Day, kind, e.Attempt, e.Status, e.Detail, e.Succeeded, e.Failed, e.RecordedAt.UTC().UnixMilli()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build ledger insert: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert ledger %s: %w", kind, err)
	}
	return nil
}

// History lists a day's events in recording order.
func (l *SQLLedger) History(ctx context.Context, day string) ([]ports.LedgerEntry, error) {
	query, args, err := l.sb.
		Select("run_id", "day", "attempt", "status", "detail", "succeeded", "failed", "recorded_at").
		From(eventsTable).
		Where(sq.Eq{"day": day}).
		OrderBy("recorded_at", "attempt").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ledger query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}

	var entries []ports.LedgerEntry
	for rows.Next() {
		var (
			e      ports.LedgerEntry
			millis int64
		)
		if err := rows.Scan(&e.RunID, &e.Day, &e.Attempt, &e.Status, &e.Detail, &e.Succeeded, &e.Failed, &millis); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		e.RecordedAt = time.UnixMilli(millis).UTC()
		entries = append(entries, e)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return entries, nil
}

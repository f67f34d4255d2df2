package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"DailyDigest/internal/domain"
	"DailyDigest/internal/infrastructure/storage"
	"DailyDigest/internal/ports"
)

type stubLedger struct {
	entries map[string][]ports.LedgerEntry
	err     error
}

func (l *stubLedger) RecordAttempt(context.Context, string, string, domain.RunAttempt) error {
	return nil
}

func (l *stubLedger) RecordDelivery(context.Context, string, domain.DeliverySummary) error {
	return nil
}

func (l *stubLedger) History(_ context.Context, day string) ([]ports.LedgerEntry, error) {
	return l.entries[day], l.err
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewRouter(Deps{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewRouter(Deps{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRunView(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	artifacts := storage.NewFSArtifacts(t.TempDir())
	summary, _ := json.Marshal(domain.DeliverySummary{Day: "2025-11-08", Recipients: 3, Succeeded: 3})
	if err := artifacts.Put(ctx, "2025-11-08", ports.ArtifactDelivery, summary); err != nil {
		t.Fatalf("put: %v", err)
	}

	ledger := &stubLedger{entries: map[string][]ports.LedgerEntry{
		"2025-11-08": {{RunID: "r1", Day: "2025-11-08", Attempt: 1, Status: "succeeded", RecordedAt: time.Now()}},
	}}
	router := NewRouter(Deps{Ledger: ledger, Artifacts: artifacts})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/2025-11-08", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var view RunView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.History) != 1 || view.Delivery == nil || view.Delivery.Succeeded != 3 {
		t.Fatalf("unexpected view %+v", view)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/2025-11-09", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/2025-13-45", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRunViewLedgerError(t *testing.T) {
	t.Parallel()

	router := NewRouter(Deps{Ledger: &stubLedger{err: errors.New("db down")}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/2025-11-08", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

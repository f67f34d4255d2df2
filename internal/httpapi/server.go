// Package httpapi serves health, metrics and run history while the daily
// scheduler is running.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"DailyDigest/internal/domain"
	"DailyDigest/internal/metrics"
	"DailyDigest/internal/ports"
)

// Deps are the read-only views the status endpoints expose. Both are optional.
type Deps struct {
	Ledger    ports.RunLedger
	Artifacts ports.ArtifactStore
	Logger    *slog.Logger
}

// RunView is the response of GET /runs/{date}.
type RunView struct {
	Date     string                  `json:"date"`
	History  []ports.LedgerEntry     `json:"history"`
	Delivery *domain.DeliverySummary `json:"delivery,omitempty"`
}

// NewRouter builds the status routes.
func NewRouter(deps Deps) *mux.Router {
	h := &handler{deps: deps}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/runs/{date:[0-9]{4}-[0-9]{2}-[0-9]{2}}", h.run).Methods(http.MethodGet)
	return router
}

// Server wraps http.Server with context-driven shutdown.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer binds the router to addr.
func NewServer(addr string, deps Deps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: deps.Logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Info("status server listening", "addr", s.srv.Addr)
		}
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

type handler struct {
	deps Deps
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) run(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date"})
		return
	}

	view := RunView{Date: date, History: []ports.LedgerEntry{}}

	if h.deps.Ledger != nil {
		history, err := h.deps.Ledger.History(r.Context(), date)
		if err != nil {
			h.warn("ledger history", "date", date, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ledger unavailable"})
			return
		}
		if history != nil {
			view.History = history
		}
	}

	if h.deps.Artifacts != nil {
		data, err := h.deps.Artifacts.Get(r.Context(), date, ports.ArtifactDelivery)
		switch {
		case err == nil:
			var summary domain.DeliverySummary
			if jsonErr := json.Unmarshal(data, &summary); jsonErr == nil {
				view.Delivery = &summary
			}
		case !errors.Is(err, ports.ErrArtifactNotFound):
			h.warn("delivery artifact", "date", date, "error", err)
		}
	}

	if len(view.History) == 0 && view.Delivery == nil {
		writeJSON(w, http.StatusNotFound, view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) warn(msg string, args ...any) {
	if h.deps.Logger != nil {
		h.deps.Logger.Warn(msg, args...)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mtlprog/treasury/internal/domain"
	"github.com/mtlprog/treasury/internal/export"
)

// Overviewer builds the global reconciliation overview.
type Overviewer interface {
	GetGlobalOverview(ctx context.Context, staleThreshold time.Duration) (domain.GlobalOverview, error)
}

// Syncer runs a rate-limited sync of the integrity tables.
type Syncer interface {
	Sync(ctx context.Context, force, skipPrices bool) (synced bool, at time.Time, err error)
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP endpoints for the treasury admin API.
type Handler struct {
	overview       Overviewer
	syncer         Syncer
	db             Pinger
	staleThreshold time.Duration
}

// NewHandler creates a new API handler. db may be nil.
func NewHandler(overview Overviewer, syncer Syncer, db Pinger, staleThreshold time.Duration) *Handler {
	return &Handler{
		overview:       overview,
		syncer:         syncer,
		db:             db,
		staleThreshold: staleThreshold,
	}
}

// SyncResponse is the body of POST /api/v1/sync.
type SyncResponse struct {
	Synced    bool      `json:"synced"`
	Timestamp time.Time `json:"timestamp"`
}

// GetOverview handles GET /api/v1/overview.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	overview, ok := h.buildOverview(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// GetOverviewXLSX handles GET /api/v1/overview.xlsx.
func (h *Handler) GetOverviewXLSX(w http.ResponseWriter, r *http.Request) {
	overview, ok := h.buildOverview(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, overview); err != nil {
		slog.Error("failed to render overview workbook", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="overview.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
	}
}

// buildOverview runs an opportunistic sync and computes the overview. It writes the error
// response itself and returns ok=false on failure.
func (h *Handler) buildOverview(w http.ResponseWriter, r *http.Request) (domain.GlobalOverview, bool) {
	threshold := h.staleThreshold
	if s := r.URL.Query().Get("staleThreshold"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "staleThreshold must be a positive number of seconds")
			return domain.GlobalOverview{}, false
		}
		threshold = time.Duration(n) * time.Second
	}

	if h.syncer != nil {
		if _, _, err := h.syncer.Sync(r.Context(), false, false); err != nil {
			slog.Warn("opportunistic sync failed", "error", err)
		}
	}

	overview, err := h.overview.GetGlobalOverview(r.Context(), threshold)
	if err != nil {
		slog.Error("failed to build overview", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return domain.GlobalOverview{}, false
	}
	return overview, true
}

// TriggerSync handles POST /api/v1/sync.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	force, err := parseBool(q.Get("force"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid force flag")
		return
	}
	skipPrices, err := parseBool(q.Get("skipPrices"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid skipPrices flag")
		return
	}

	synced, at, err := h.syncer.Sync(r.Context(), force, skipPrices)
	if err != nil {
		slog.Error("sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Synced: synced, Timestamp: at})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			slog.Warn("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

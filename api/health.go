package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// health handles GET /health. A failed store ping answers 503.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("health-check: store ping failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "error", Database: "disconnected", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "connected"})
}

func (h *Handler) serveStats(w http.ResponseWriter, r *http.Request) {
	groups, conns := h.stats.Stats()
	writeJSON(w, http.StatusOK, map[string]int{"groups": groups, "connections": conns})
}

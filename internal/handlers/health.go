package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	// Database is pinged by Ready. Nil means the in-memory store is in use.
	Database Pinger
	Timeout  time.Duration
}

// Live implements GET /healthz.
func (HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready implements GET /readyz. It fails while the database cannot be reached.
func (h HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Database == nil {
		respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok", "database": "memory"})
		return
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := h.Database.Ping(pingCtx); err != nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "unreachable"})
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

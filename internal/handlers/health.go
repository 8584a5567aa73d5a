package handlers

import (
	"context"
	"net/http"
	"time"

	"fleetwear/internal/version"
)

// Health reports build info and database reachability.
// GET /health
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	dbStatus := "ok"
	if err := a.DB.PingContext(ctx); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
		dbStatus = err.Error()
	}

	JSONStatus(w, code, map[string]any{
		"status":   status,
		"database": dbStatus,
		"version":  version.Get(),
	})
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/vytor/flashstudy/internal/logger"
)

const readyTimeout = 2 * time.Second

// handleHealth returns a liveness probe - always returns 200 OK.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"state": "ok"})
}

// handleReady returns 200 when the database answers a ping and the generation
// pool still accepts jobs, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := map[string]string{"database": "ok", "workers": "ok"}
	ready := true

	if err := s.DB.PingContext(ctx); err != nil {
		log.Warn("readiness check failed - database: %v", err)
		checks["database"] = "unavailable"
		ready = false
	}
	if s.GenerationPool != nil && s.GenerationPool.Stopped() {
		log.Warn("readiness check failed - generation pool stopped")
		checks["workers"] = "stopped"
		ready = false
	}

	if !ready {
		writeEnvelope(w, r, http.StatusServiceUnavailable, envelope{Status: "error", Data: checks,
			Error: &errorBody{Code: "NOT_READY", Message: "dependencies unavailable"}})
		return
	}
	writeJSON(w, r, http.StatusOK, checks)
}

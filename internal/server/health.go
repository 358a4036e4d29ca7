package server

import (
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"service":        s.cfg.App.Name,
		"version":        s.version,
		"environment":    s.cfg.App.Environment,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"tenants_loaded": s.tenants.Count(),
		"tenants":        s.tenants.List(),
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ping": "pong"})
}

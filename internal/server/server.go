// Package server exposes the engine over HTTP: the carrier webhook, the
// health/introspection surface and the admin reload endpoint. The
// transport stays thin — all message semantics live in the pipeline.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avonarret22/whatsapp-bot-template/internal/config"
	"github.com/avonarret22/whatsapp-bot-template/internal/feature"
	"github.com/avonarret22/whatsapp-bot-template/internal/metrics"
	"github.com/avonarret22/whatsapp-bot-template/internal/pipeline"
	"github.com/avonarret22/whatsapp-bot-template/internal/tenant"
)

type Server struct {
	cfg       *config.Config
	pipeline  *pipeline.Pipeline
	tenants   *tenant.Registry
	available *feature.Available
	logger    *slog.Logger
	version   string
	server    *http.Server
}

type Config struct {
	Config    *config.Config
	Pipeline  *pipeline.Pipeline
	Tenants   *tenant.Registry
	Available *feature.Available
	Logger    *slog.Logger
	Version   string
}

func New(cfg Config) *Server {
	return &Server{
		cfg:       cfg.Config,
		pipeline:  cfg.Pipeline,
		tenants:   cfg.Tenants,
		available: cfg.Available,
		logger:    cfg.Logger,
		version:   cfg.Version,
	}
}

// Handler builds the full route table. Exposed separately so tests can
// drive it through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /webhook/whatsapp", s.handleWebhookVerify)
	mux.HandleFunc("POST /webhook/whatsapp", s.handleWebhook)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /metrics", metrics.Collector.Handler())
	mux.HandleFunc("POST /admin/tenants/{id}/reload", s.handleTenantReload)

	if s.available != nil {
		for _, rt := range s.available.Routes() {
			mux.HandleFunc(rt.Method+" "+rt.Pattern, rt.Handler)
			s.logger.Info("capability route mounted", "method", rt.Method, "pattern", rt.Pattern)
		}
	}

	return mux
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http server starting", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleTenantReload hot-reloads one tenant's document. Guarded by the
// admin API key when one is configured.
func (s *Server) handleTenantReload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Admin.APIKey != "" && r.Header.Get("X-Admin-Key") != s.cfg.Admin.APIKey {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
		return
	}

	id := r.PathValue("id")
	if err := s.tenants.Reload(id); err != nil {
		s.logger.Error("tenant reload failed", "tenant", id, "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	metrics.TenantsLoaded.Set(int64(s.tenants.Count()))
	writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "tenant": id})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

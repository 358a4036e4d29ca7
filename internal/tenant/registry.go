// Package tenant loads and serves per-tenant configuration documents.
//
// Each tenant is one YAML file in the configured directory. The registry
// is the only piece of state shared across concurrent requests: lookups
// take a read lock and reloads replace whole records under the write
// lock, so readers never observe a half-updated tenant.
package tenant

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/avonarret22/whatsapp-bot-template/internal/config"
	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

// Registry holds all loaded tenant configurations, indexed by tenant id.
type Registry struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	tenants map[string]*domain.TenantConfig
}

func NewRegistry(dir string, logger *slog.Logger) *Registry {
	return &Registry{
		dir:     dir,
		logger:  logger,
		tenants: make(map[string]*domain.TenantConfig),
	}
}

// Load scans the tenant directory and parses every .yaml/.yml document.
// A malformed document is logged and skipped; it never aborts the rest of
// the load. A missing directory is a warning, not an error, so a fresh
// deployment can start empty.
func (r *Registry) Load() error {
	if _, err := os.Stat(r.dir); os.IsNotExist(err) {
		r.logger.Warn("tenant config directory does not exist", "dir", r.dir)
		return nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read tenant dir %s: %w", r.dir, err)
	}

	loaded := make(map[string]*domain.TenantConfig)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(r.dir, name)
		tc, err := parseFile(path, r.logger)
		if err != nil {
			r.logger.Error("skipping tenant document", "path", path, "err", err)
			continue
		}

		if _, dup := loaded[tc.TenantID]; dup {
			r.logger.Error("duplicate tenant id, keeping first", "tenant", tc.TenantID, "path", path)
			continue
		}
		loaded[tc.TenantID] = tc
		r.logger.Info("loaded tenant", "tenant", tc.TenantID, "plan", tc.Plan)
	}

	r.mu.Lock()
	r.tenants = loaded
	r.mu.Unlock()
	return nil
}

// Get returns the tenant's configuration or a *domain.TenantNotFoundError.
func (r *Registry) Get(tenantID string) (*domain.TenantConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tc, ok := r.tenants[tenantID]
	if !ok {
		return nil, &domain.TenantNotFoundError{TenantID: tenantID}
	}
	return tc, nil
}

// List returns all known tenant ids in no particular order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of loaded tenants.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tenants)
}

// Reload re-parses a single tenant's document and atomically replaces its
// registry entry. Other tenants are unaffected; a parse failure leaves
// the existing entry in place.
func (r *Registry) Reload(tenantID string) error {
	path := filepath.Join(r.dir, tenantID+".yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Join(r.dir, tenantID+".yml")
	}

	tc, err := parseFile(path, r.logger)
	if err != nil {
		return fmt.Errorf("reload tenant %s: %w", tenantID, err)
	}
	if tc.TenantID != tenantID {
		return fmt.Errorf("reload tenant %s: document declares tenant_id %q", tenantID, tc.TenantID)
	}

	r.mu.Lock()
	r.tenants[tc.TenantID] = tc
	r.mu.Unlock()

	r.logger.Info("reloaded tenant", "tenant", tenantID)
	return nil
}

// parseFile reads one tenant document, interpolates ${VAR} references
// against the environment and validates the result. Unresolved
// placeholders are kept verbatim with a warning: the document still loads
// but the affected credential is unusable until the secret is provided.
func parseFile(path string, logger *slog.Logger) (*domain.TenantConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	expanded := config.ExpandEnvVars(string(data))
	if config.IsPlaceholder(expanded) {
		logger.Warn("tenant document has unresolved ${VAR} placeholders", "path", path)
	}

	var tc domain.TenantConfig
	if err := yaml.Unmarshal([]byte(expanded), &tc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	if err := validate(&tc); err != nil {
		return nil, err
	}
	applyPlanDefaults(&tc)
	return &tc, nil
}

func validate(tc *domain.TenantConfig) error {
	if tc.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if !tc.Plan.Valid() {
		return fmt.Errorf("tenant %s: plan must be one of basic, pro, enterprise (got %q)", tc.TenantID, tc.Plan)
	}
	return nil
}

// applyPlanDefaults fills in rate limits the document omitted.
func applyPlanDefaults(tc *domain.TenantConfig) {
	defaults := planRateLimits[tc.Plan]
	if tc.RateLimits.MessagesPerMinute <= 0 {
		tc.RateLimits.MessagesPerMinute = defaults.MessagesPerMinute
	}
	if tc.RateLimits.MessagesPerHour <= 0 {
		tc.RateLimits.MessagesPerHour = defaults.MessagesPerHour
	}
}

var planRateLimits = map[domain.Plan]domain.RateLimits{
	domain.PlanBasic:      {MessagesPerMinute: 10, MessagesPerHour: 100},
	domain.PlanPro:        {MessagesPerMinute: 30, MessagesPerHour: 500},
	domain.PlanEnterprise: {MessagesPerMinute: 120, MessagesPerHour: 5000},
}

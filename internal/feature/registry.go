// Package feature manages the capability plugin system: a process-wide
// table of capability constructors and a per-request registry of live,
// initialized instances.
package feature

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

// State tracks one activated capability through its request lifecycle.
type State string

const (
	StateRegistered   State = "registered"
	StateInitializing State = "initializing"
	StateActive       State = "active"
	StateCleaningUp   State = "cleaning_up"
	StateDisabled     State = "disabled"
)

// Available is the process-wide table of capability constructors. It is
// populated once at startup and holds constructors only — never tenant
// state — so it is safe to share across requests.
type Available struct {
	mu     sync.RWMutex
	ctors  map[string]domain.CapabilityConstructor
	logger *slog.Logger
}

func NewAvailable(logger *slog.Logger) *Available {
	return &Available{
		ctors:  make(map[string]domain.CapabilityConstructor),
		logger: logger,
	}
}

// Register adds a capability constructor. Registering the same name again
// overwrites the previous constructor.
func (a *Available) Register(name string, ctor domain.CapabilityConstructor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctors[name] = ctor
	a.logger.Debug("registered capability", "name", name)
}

// Has reports whether a constructor is registered under name.
func (a *Available) Has(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.ctors[name]
	return ok
}

// Names returns all registered capability names.
func (a *Available) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.ctors))
	for n := range a.ctors {
		names = append(names, n)
	}
	return names
}

// Routes collects the extra HTTP endpoints contributed by every
// registered capability. The instances built here are throwaway and never
// initialized, so contributed handlers must not depend on request state.
func (a *Available) Routes() []domain.Route {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var routes []domain.Route
	for _, ctor := range a.ctors {
		routes = append(routes, ctor(a.logger).Routes()...)
	}
	return routes
}

func (a *Available) constructor(name string) (domain.CapabilityConstructor, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ctor, ok := a.ctors[name]
	return ctor, ok
}

// Registry is the per-request table of activated capabilities. A fresh
// instance is created for every request — that, not locking, is the
// tenant isolation mechanism — so its methods need no synchronization.
type Registry struct {
	available *Available
	logger    *slog.Logger
	active    map[string]*activeEntry
}

type activeEntry struct {
	capability domain.Capability
	state      State
}

func NewRegistry(available *Available, logger *slog.Logger) *Registry {
	return &Registry{
		available: available,
		logger:    logger,
		active:    make(map[string]*activeEntry),
	}
}

// Activate constructs, initializes and records a capability for this
// request. Activating an already-active capability is a no-op returning
// the existing instance. An unknown name fails with
// *domain.UnknownCapabilityError; a failed Initialize propagates and
// leaves no partially-active entry behind.
func (r *Registry) Activate(ctx context.Context, name string, settings map[string]any) (domain.Capability, error) {
	if entry, ok := r.active[name]; ok {
		r.logger.Debug("capability already active", "name", name)
		return entry.capability, nil
	}

	ctor, ok := r.available.constructor(name)
	if !ok {
		return nil, &domain.UnknownCapabilityError{Name: name, Available: r.available.Names()}
	}

	inst := ctor(r.logger)
	entry := &activeEntry{capability: inst, state: StateInitializing}

	if err := inst.Initialize(ctx, settings); err != nil {
		entry.state = StateDisabled
		return nil, fmt.Errorf("activate capability %s: %w", name, err)
	}

	entry.state = StateActive
	r.active[name] = entry
	r.logger.Info("capability activated", "name", name)
	return inst, nil
}

// Get returns the active instance for name, or nil when it is not active
// in this request.
func (r *Registry) Get(name string) domain.Capability {
	entry, ok := r.active[name]
	if !ok {
		return nil
	}
	return entry.capability
}

// IsActive reports whether name is active in this request.
func (r *Registry) IsActive(name string) bool {
	entry, ok := r.active[name]
	return ok && entry.state == StateActive
}

// ActiveNames returns the names of all currently active capabilities.
func (r *Registry) ActiveNames() []string {
	names := make([]string, 0, len(r.active))
	for n := range r.active {
		names = append(names, n)
	}
	return names
}

// DeactivateAll cleans up every active capability and empties the table.
// Individual cleanup failures are logged, never re-raised: teardown must
// complete on every request exit path.
func (r *Registry) DeactivateAll() {
	for name, entry := range r.active {
		entry.state = StateCleaningUp
		if err := entry.capability.Cleanup(); err != nil {
			r.logger.Error("capability cleanup failed", "name", name, "err", err)
		}
		entry.state = StateDisabled
		delete(r.active, name)
		r.logger.Debug("capability deactivated", "name", name)
	}
}

package domain

import (
	"context"
	"log/slog"
	"net/http"
)

// Turn is one prior exchange in a conversation.
type Turn struct {
	Role    string `json:"role"` // user | assistant
	Content string `json:"content"`
}

// UserContext carries the request-scoped data a capability may consult
// while processing one message.
type UserContext struct {
	From        string
	Personality map[string]any
	History     []Turn
	Tenant      *TenantConfig
}

// Result is a capability's structured answer. A nil *Result from Process
// means the capability declined to handle the message.
type Result struct {
	Text     string
	Metadata map[string]string
}

// Route is an extra HTTP endpoint a capability contributes. Most
// capabilities contribute none.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Capability is the lifecycle contract every pluggable message-processing
// unit must satisfy. Instances live for a single request: Initialize is
// called once after construction, Cleanup once at request end regardless
// of the outcome in between.
type Capability interface {
	Name() string

	// Initialize prepares the capability from its tenant-supplied settings.
	// Missing credentials or an unconstructible backend fail with a
	// *CapabilityInitError.
	Initialize(ctx context.Context, settings map[string]any) error

	// Process handles one message. It returns (nil, nil) to decline,
	// letting later capabilities in the chain have a go. Backend failures
	// surface as *CapabilityServiceError, never as backend-native errors.
	Process(ctx context.Context, message string, uctx UserContext) (*Result, error)

	// Cleanup releases resources. It is idempotent: cleaning an already
	// clean capability is not an error.
	Cleanup() error

	// Routes lists additional HTTP endpoints the capability exposes.
	Routes() []Route
}

// CapabilityConstructor builds a fresh, uninitialized capability instance.
// Constructors are the only thing shared across requests; they must not
// close over tenant state.
type CapabilityConstructor func(logger *slog.Logger) Capability

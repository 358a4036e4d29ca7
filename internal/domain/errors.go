package domain

import (
	"errors"
	"fmt"
)

// ErrNoContextBound is returned when request-scoped tenant state is read
// before a binding was established. This is a programming-contract
// violation, not a recoverable user error.
var ErrNoContextBound = errors.New("no tenant context bound")

// TenantNotFoundError reports a lookup for a tenant id the registry does
// not know.
type TenantNotFoundError struct {
	TenantID string
}

func (e *TenantNotFoundError) Error() string {
	return fmt.Sprintf("tenant %q not found", e.TenantID)
}

// UnknownCapabilityError reports an activation attempt for a capability
// name absent from the available-capabilities table.
type UnknownCapabilityError struct {
	Name      string
	Available []string
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("unknown capability %q (available: %v)", e.Name, e.Available)
}

// CapabilityInitError reports a capability that could not be initialized
// from its settings.
type CapabilityInitError struct {
	Capability string
	Err        error
}

func (e *CapabilityInitError) Error() string {
	return fmt.Sprintf("capability %s init: %v", e.Capability, e.Err)
}

func (e *CapabilityInitError) Unwrap() error { return e.Err }

// CapabilityServiceError wraps a backend failure with the backend's
// identity. Callers never see the backend-native error type.
type CapabilityServiceError struct {
	Backend string
	Message string
	Err     error
}

func (e *CapabilityServiceError) Error() string {
	return fmt.Sprintf("%s service error: %s", e.Backend, e.Message)
}

func (e *CapabilityServiceError) Unwrap() error { return e.Err }

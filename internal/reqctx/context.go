// Package reqctx carries the request-scoped tenant binding through the
// call chain. The binding rides on the request's context.Context, so it
// follows the request's control flow exactly and can never leak into a
// concurrently-running request. It is not a global: code without the
// bound context simply cannot see the tenant.
package reqctx

import (
	"context"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
	"github.com/avonarret22/whatsapp-bot-template/internal/feature"
)

// Binding ties one tenant configuration to the capability registry
// created for the same request.
type Binding struct {
	Tenant   *domain.TenantConfig
	Features *feature.Registry
}

type ctxKey struct{}

// Bind returns a context carrying the binding for the current request.
func Bind(ctx context.Context, b *Binding) context.Context {
	return context.WithValue(ctx, ctxKey{}, b)
}

// Unbind returns a context with the binding cleared. Reads through the
// returned context fail as if no binding was ever established.
func Unbind(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, (*Binding)(nil))
}

// Current returns the request's binding. Calling it before Bind is a
// programming-contract violation and fails with domain.ErrNoContextBound.
func Current(ctx context.Context) (*Binding, error) {
	b, _ := ctx.Value(ctxKey{}).(*Binding)
	if b == nil {
		return nil, domain.ErrNoContextBound
	}
	return b, nil
}

// CurrentOrNone returns the request's binding, or nil when none is bound.
func CurrentOrNone(ctx context.Context) *Binding {
	b, _ := ctx.Value(ctxKey{}).(*Binding)
	return b
}

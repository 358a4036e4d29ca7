package domain

import "context"

// HistoryStore persists conversation turns per tenant and contact. The
// pipeline injects the most recent turns into the capability context and
// appends new ones after dispatch.
type HistoryStore interface {
	Recent(ctx context.Context, tenantID, contact string, limit int) ([]Turn, error)
	Append(ctx context.Context, tenantID, contact, role, content string) error
	Close() error
}

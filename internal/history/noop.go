package history

import (
	"context"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

// NoopStore discards all turns. Used when history is disabled.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (NoopStore) Recent(ctx context.Context, tenantID, contact string, limit int) ([]domain.Turn, error) {
	return nil, nil
}

func (NoopStore) Append(ctx context.Context, tenantID, contact, role, content string) error {
	return nil
}

func (NoopStore) Close() error { return nil }

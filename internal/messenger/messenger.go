// Package messenger delivers outbound responses through the tenant's
// configured carrier. Delivery is fire-and-forget from the pipeline's
// point of view: failures are logged, never retried, never surfaced to
// the original sender.
package messenger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avonarret22/whatsapp-bot-template/internal/config"
	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

// Messenger sends one outbound response and returns a carrier-assigned
// delivery id.
type Messenger interface {
	Name() string

	// Configured reports whether the tenant supplied usable credentials.
	// An unconfigured messenger is a warning at send time, not an error.
	Configured() bool

	Send(ctx context.Context, resp domain.OutboundResponse) (string, error)
}

// ForTenant builds the messenger selected by the tenant's
// messaging_provider field. Credentials come from the tenant's
// messaging_config bag after env interpolation; values still carrying
// ${VAR} placeholders count as absent.
func ForTenant(t *domain.TenantConfig, logger *slog.Logger) (Messenger, error) {
	switch t.MessagingProvider {
	case "", "twilio":
		return NewTwilio(TwilioConfig{
			AccountSID:     credential(t.MessagingConfig, "account_sid"),
			AuthToken:      credential(t.MessagingConfig, "auth_token"),
			WhatsAppNumber: credential(t.MessagingConfig, "whatsapp_number"),
			TenantID:       t.TenantID,
			Logger:         logger,
		}), nil
	case "telegram":
		return NewTelegram(TelegramConfig{
			Token:    credential(t.MessagingConfig, "bot_token"),
			TenantID: t.TenantID,
			Logger:   logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown messaging provider %q for tenant %s", t.MessagingProvider, t.TenantID)
	}
}

// credential reads a messaging_config value, treating unresolved
// placeholders as missing.
func credential(m map[string]string, key string) string {
	v := m[key]
	if config.IsPlaceholder(v) {
		return ""
	}
	return v
}

package pipeline

import "github.com/avonarret22/whatsapp-bot-template/internal/domain"

// Resolver derives the tenant id for an inbound message. Tenant
// resolution is deliberately pluggable: today deployments run with a
// fixed default tenant, but per-number or per-domain dispatch only needs
// a new Resolver.
type Resolver interface {
	Resolve(msg domain.InboundMessage) string
}

// Fixed always resolves to one tenant id.
type Fixed struct {
	TenantID string
}

func (f Fixed) Resolve(domain.InboundMessage) string { return f.TenantID }

// ByRecipient maps the message's recipient address to a tenant id,
// falling back to a default for unmapped numbers.
type ByRecipient struct {
	Mapping map[string]string
	Default string
}

func (r ByRecipient) Resolve(msg domain.InboundMessage) string {
	if id, ok := r.Mapping[msg.To]; ok {
		return id
	}
	return r.Default
}

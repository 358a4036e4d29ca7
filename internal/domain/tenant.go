package domain

// Plan is the subscription tier that controls which capabilities a tenant
// may enable.
type Plan string

const (
	PlanBasic      Plan = "basic"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Valid reports whether p is one of the known plan tiers.
func (p Plan) Valid() bool {
	switch p {
	case PlanBasic, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// CapabilityConfig is one capability descriptor inside a tenant document.
type CapabilityConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"config"`
}

// RateLimits caps inbound message throughput per tenant.
type RateLimits struct {
	MessagesPerMinute int `yaml:"messages_per_minute"`
	MessagesPerHour   int `yaml:"messages_per_hour"`
}

// TenantConfig is the full configuration of one tenant, parsed from its
// YAML document. Instances are immutable after loading; hot reload swaps
// the whole record in the registry rather than mutating fields.
type TenantConfig struct {
	TenantID   string `yaml:"tenant_id"`
	TenantName string `yaml:"tenant_name"`
	Plan       Plan   `yaml:"plan"`

	Capabilities map[string]CapabilityConfig `yaml:"capabilities"`

	Personality map[string]any `yaml:"personality"`

	MessagingProvider string            `yaml:"messaging_provider"`
	MessagingConfig   map[string]string `yaml:"messaging_config"`

	AIProvider string         `yaml:"ai_provider"`
	AIConfig   map[string]any `yaml:"ai_config"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

// SystemPrompt returns the tenant's configured system prompt, or empty.
func (t *TenantConfig) SystemPrompt() string {
	if s, ok := t.Personality["system_prompt"].(string); ok {
		return s
	}
	return ""
}

// FallbackMessages returns the tenant's configured fallback texts, in order.
func (t *TenantConfig) FallbackMessages() []string {
	raw, ok := t.Personality["fallback_messages"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// RateLimitMessage returns the tenant's configured over-limit reply, or
// empty when none is set.
func (t *TenantConfig) RateLimitMessage() string {
	if s, ok := t.Personality["rate_limit_message"].(string); ok {
		return s
	}
	return ""
}

// DisplayName returns the personality display name, falling back to the
// tenant name.
func (t *TenantConfig) DisplayName() string {
	if s, ok := t.Personality["name"].(string); ok && s != "" {
		return s
	}
	return t.TenantName
}

// Package events publishes processing telemetry to an AMQP topic
// exchange. Publishing is best-effort: failures are logged and never
// affect message handling.
package events

import "time"

// Meta identifies one published event.
type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Source        string    `json:"source"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Envelope wraps every event on the wire.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// MessageProcessed describes one completed pipeline run.
type MessageProcessed struct {
	TenantID  string `json:"tenant_id"`
	MessageID string `json:"message_id"`
	Provider  string `json:"provider,omitempty"`
	Fallback  bool   `json:"fallback"`
	LatencyMs int64  `json:"latency_ms"`
}

const TypeMessageProcessed = "bot.message.processed"

package domain

import "time"

// InboundMessage is one carrier-delivered message entering the pipeline.
// It is immutable once received.
type InboundMessage struct {
	MessageID  string
	From       string
	To         string
	Body       string
	NumMedia   int
	ReceivedAt time.Time
}

// OutboundResponse is the reply handed to the delivery messenger.
type OutboundResponse struct {
	TenantID string
	To       string
	Text     string
}

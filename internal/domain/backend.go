package domain

import "context"

// GenerateRequest is the narrow text-generation contract between the AI
// reply capability and its backend.
type GenerateRequest struct {
	Message      string
	SystemPrompt string
	History      []Turn
	Temperature  float64
	MaxTokens    int
}

// GenerationBackend is an external generative-text service. Backend
// failures are returned as-is here; the calling capability wraps them
// into *CapabilityServiceError before they reach the pipeline.
type GenerationBackend interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Cleanup() error
}

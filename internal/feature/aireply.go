package feature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
	"github.com/avonarret22/whatsapp-bot-template/internal/provider"
)

// CapabilityAIReply is the registry name of the AI response capability.
const CapabilityAIReply = "ai_responses"

const (
	historyWindow         = 5
	defaultGenTimeout     = 30 * time.Second
	defaultTemperature    = 0.8
	defaultMaxOutputToken = 500
)

// backendConstructor builds a generation backend from the capability's
// provider_config settings.
type backendConstructor func(ctx context.Context, cfg backendSettings, logger *slog.Logger) (domain.GenerationBackend, error)

type backendSettings struct {
	apiKey string
	model  string
}

// backendTable is the fixed lookup of supported generation backends.
var backendTable = map[string]backendConstructor{
	"gemini": func(ctx context.Context, cfg backendSettings, logger *slog.Logger) (domain.GenerationBackend, error) {
		return provider.NewGemini(ctx, provider.GeminiConfig{APIKey: cfg.apiKey, Model: cfg.model, Logger: logger})
	},
	"openai": func(ctx context.Context, cfg backendSettings, logger *slog.Logger) (domain.GenerationBackend, error) {
		return provider.NewOpenAI(provider.OpenAIConfig{APIKey: cfg.apiKey, Model: cfg.model, Logger: logger})
	},
	"claude": func(ctx context.Context, cfg backendSettings, logger *slog.Logger) (domain.GenerationBackend, error) {
		return provider.NewClaude(provider.ClaudeConfig{APIKey: cfg.apiKey, Model: cfg.model, Logger: logger})
	},
}

func supportedBackends() []string {
	names := make([]string, 0, len(backendTable))
	for n := range backendTable {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AIReply generates replies through a pluggable generation backend. It is
// the reference capability of the engine; one instance lives for exactly
// one request.
type AIReply struct {
	logger *slog.Logger

	backend     domain.GenerationBackend
	providerKey string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// NewAIReply is the capability constructor registered under
// CapabilityAIReply.
func NewAIReply(logger *slog.Logger) domain.Capability {
	return &AIReply{logger: logger}
}

func (a *AIReply) Name() string { return CapabilityAIReply }

// Routes contributes no extra endpoints.
func (a *AIReply) Routes() []domain.Route { return nil }

func (a *AIReply) Initialize(ctx context.Context, settings map[string]any) error {
	providerKey := stringSetting(settings, "provider", "gemini")

	ctor, ok := backendTable[providerKey]
	if !ok {
		return &domain.CapabilityInitError{
			Capability: CapabilityAIReply,
			Err:        fmt.Errorf("unknown AI provider %q, supported: %v", providerKey, supportedBackends()),
		}
	}

	pc, _ := settings["provider_config"].(map[string]any)
	backend, err := ctor(ctx, backendSettings{
		apiKey: stringSetting(pc, "api_key", ""),
		model:  stringSetting(pc, "model", ""),
	}, a.logger)
	if err != nil {
		return &domain.CapabilityInitError{Capability: CapabilityAIReply, Err: err}
	}

	a.backend = backend
	a.providerKey = providerKey
	a.temperature = floatSetting(pc, "temperature", defaultTemperature)
	a.maxTokens = intSetting(pc, "max_tokens", defaultMaxOutputToken)
	a.timeout = time.Duration(intSetting(pc, "timeout_seconds", int(defaultGenTimeout/time.Second))) * time.Second

	a.logger.Info("AI backend initialized", "backend", backend.Name())
	return nil
}

func (a *AIReply) Cleanup() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Cleanup()
	a.backend = nil
	return err
}

// Process generates one reply. Backend failures — including the per-call
// timeout — surface as *domain.CapabilityServiceError; the backend's raw
// error never crosses this boundary.
func (a *AIReply) Process(ctx context.Context, message string, uctx domain.UserContext) (*domain.Result, error) {
	if a.backend == nil {
		return nil, &domain.CapabilityServiceError{Backend: "ai", Message: "backend not initialized"}
	}

	systemPrompt := "Eres un asistente virtual útil y amigable."
	if s := uctx.Tenant.SystemPrompt(); s != "" {
		systemPrompt = s
	}

	history := uctx.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	genCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.backend.Generate(genCtx, domain.GenerateRequest{
		Message:      message,
		SystemPrompt: systemPrompt,
		History:      history,
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
	})
	if err != nil {
		message := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			message = fmt.Sprintf("generation timed out after %s", a.timeout)
		}
		return nil, &domain.CapabilityServiceError{
			Backend: a.backend.Name(),
			Message: message,
			Err:     err,
		}
	}
	if text == "" {
		return nil, &domain.CapabilityServiceError{
			Backend: a.backend.Name(),
			Message: "empty response from backend",
		}
	}

	return &domain.Result{
		Text: text,
		Metadata: map[string]string{
			"provider": a.providerKey,
			"backend":  a.backend.Name(),
			"feature":  CapabilityAIReply,
		},
	}, nil
}

// --- settings helpers ---

func stringSetting(m map[string]any, key, def string) string {
	if m == nil {
		return def
	}
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return def
}

func floatSetting(m map[string]any, key string, def float64) float64 {
	if m == nil {
		return def
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func intSetting(m map[string]any, key string, def int) int {
	if m == nil {
		return def
	}
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

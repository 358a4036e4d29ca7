package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

const geminiDefaultModel = "gemini-1.5-flash"

// Gemini implements domain.GenerationBackend using the Google Gemini SDK.
type Gemini struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

type GeminiConfig struct {
	APIKey string
	Model  string
	Logger *slog.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api_key is required")
	}
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, logger: cfg.Logger}, nil
}

func (g *Gemini) Name() string { return "gemini (" + g.model + ")" }

func (g *Gemini) Cleanup() error {
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}

func (g *Gemini) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("gemini: client is closed")
	}

	model := g.client.GenerativeModel(g.model)
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	prompt := req.Message
	if len(req.History) > 0 {
		var sb strings.Builder
		sb.WriteString("Historial:\n")
		for _, turn := range req.History {
			fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
		}
		sb.WriteString("\nUsuario: ")
		sb.WriteString(req.Message)
		prompt = sb.String()
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

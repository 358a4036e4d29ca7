package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

// OpenAI implements domain.GenerationBackend for OpenAI-compatible chat
// completion APIs.
type OpenAI struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type OpenAIConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Logger  *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key is required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAI{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		logger:  cfg.Logger,
	}, nil
}

func (o *OpenAI) Name() string   { return "openai (" + o.model + ")" }
func (o *OpenAI) Cleanup() error { return nil }

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []struct {
		Message      oaiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
}

func (o *OpenAI) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	msgs := make([]oaiMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oaiMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, turn := range req.History {
		msgs = append(msgs, oaiMessage{Role: turn.Role, Content: turn.Content})
	}
	msgs = append(msgs, oaiMessage{Role: "user", Content: req.Message})

	body := oaiRequest{
		Model:    o.model,
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	resp, err := doWithRetry(ctx, o.client, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", o.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
		return httpReq, nil
	}, o.logger)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai %d: %s", resp.StatusCode, string(respBody))
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}

	return oaiResp.Choices[0].Message.Content, nil
}

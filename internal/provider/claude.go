package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

const (
	claudeAPIURL       = "https://api.anthropic.com/v1/messages"
	claudeAPIVersion   = "2023-06-01"
	claudeDefaultModel = "claude-3-5-haiku-20241022"
	claudeMaxTokens    = 1024
)

// Claude implements domain.GenerationBackend for the Anthropic API.
type Claude struct {
	apiKey string
	model  string
	client *http.Client
	logger *slog.Logger
}

type ClaudeConfig struct {
	APIKey string
	Model  string
	Logger *slog.Logger
}

func NewClaude(cfg ClaudeConfig) (*Claude, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude: api_key is required")
	}
	if cfg.Model == "" {
		cfg.Model = claudeDefaultModel
	}
	return &Claude{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: &http.Client{Timeout: defaultHTTPTimeout},
		logger: cfg.Logger,
	}, nil
}

func (c *Claude) Name() string   { return "claude (" + c.model + ")" }
func (c *Claude) Cleanup() error { return nil }

type claudeRequest struct {
	Model       string      `json:"model"`
	MaxTokens   int         `json:"max_tokens"`
	System      string      `json:"system,omitempty"`
	Temperature *float64    `json:"temperature,omitempty"`
	Messages    []claudeMsg `json:"messages"`
}

type claudeMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *Claude) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = claudeMaxTokens
	}

	// Claude carries the system prompt outside the message list; history
	// turns map 1:1 onto user/assistant messages.
	msgs := make([]claudeMsg, 0, len(req.History)+1)
	for _, turn := range req.History {
		msgs = append(msgs, claudeMsg{Role: turn.Role, Content: turn.Content})
	}
	msgs = append(msgs, claudeMsg{Role: "user", Content: req.Message})

	body := claudeRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages:  msgs,
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	resp, err := doWithRetry(ctx, c.client, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", claudeAPIURL, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", claudeAPIVersion)
		return httpReq, nil
	}, c.logger)
	if err != nil {
		return "", fmt.Errorf("claude request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("claude %d: %s", resp.StatusCode, string(respBody))
	}

	var claudeResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&claudeResp); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	var sb strings.Builder
	for _, block := range claudeResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

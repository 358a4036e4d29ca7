package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// Twilio sends WhatsApp messages through the Twilio REST API.
type Twilio struct {
	accountSID     string
	authToken      string
	whatsappNumber string
	tenantID       string
	apiBase        string
	client         *http.Client
	logger         *slog.Logger
}

type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	WhatsAppNumber string
	TenantID       string
	APIBase        string // overridable for tests
	Logger         *slog.Logger
}

func NewTwilio(cfg TwilioConfig) *Twilio {
	if cfg.APIBase == "" {
		cfg.APIBase = twilioAPIBase
	}
	return &Twilio{
		accountSID:     cfg.AccountSID,
		authToken:      cfg.AuthToken,
		whatsappNumber: cfg.WhatsAppNumber,
		tenantID:       cfg.TenantID,
		apiBase:        cfg.APIBase,
		client:         &http.Client{Timeout: 30 * time.Second},
		logger:         cfg.Logger,
	}
}

func (t *Twilio) Name() string { return "twilio" }

func (t *Twilio) Configured() bool {
	return t.accountSID != "" && t.authToken != "" && t.whatsappNumber != ""
}

// Send posts one outbound WhatsApp message and returns the Twilio message
// SID.
func (t *Twilio) Send(ctx context.Context, resp domain.OutboundResponse) (string, error) {
	if !t.Configured() {
		return "", fmt.Errorf("twilio not configured for tenant %s", t.tenantID)
	}

	form := url.Values{}
	form.Set("From", whatsappAddr(t.whatsappNumber))
	form.Set("To", whatsappAddr(resp.To))
	form.Set("Body", resp.Text)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.apiBase, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	httpResp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio send: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(httpResp.Body)
		return "", fmt.Errorf("twilio API %d: %s", httpResp.StatusCode, string(respBody))
	}

	var result struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	t.logger.Info("twilio message sent", "sid", result.SID, "status", result.Status, "tenant", t.tenantID)
	return result.SID, nil
}

// whatsappAddr ensures the whatsapp: prefix Twilio expects.
func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

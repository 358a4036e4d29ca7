package messenger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func outbound(to, text string) domain.OutboundResponse {
	return domain.OutboundResponse{TenantID: "acme", To: to, Text: text}
}

// --- Twilio ---

func TestTwilio_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "tok" {
			t.Error("missing or wrong basic auth")
		}
		r.ParseForm()
		if got := r.PostFormValue("From"); got != "whatsapp:+14155551234" {
			t.Errorf("unexpected From %q", got)
		}
		if got := r.PostFormValue("To"); got != "whatsapp:+5491155550000" {
			t.Errorf("unexpected To %q", got)
		}
		if got := r.PostFormValue("Body"); got != "hola" {
			t.Errorf("unexpected Body %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM999","status":"queued"}`))
	}))
	defer srv.Close()

	tw := NewTwilio(TwilioConfig{
		AccountSID:     "AC123",
		AuthToken:      "tok",
		WhatsAppNumber: "+14155551234",
		TenantID:       "acme",
		APIBase:        srv.URL,
		Logger:         testLogger(),
	})

	sid, err := tw.Send(context.Background(), outbound("whatsapp:+5491155550000", "hola"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sid != "SM999" {
		t.Fatalf("expected SM999, got %q", sid)
	}
}

func TestTwilio_Send_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":20003,"message":"Authenticate"}`))
	}))
	defer srv.Close()

	tw := NewTwilio(TwilioConfig{
		AccountSID:     "AC123",
		AuthToken:      "bad",
		WhatsAppNumber: "+14155551234",
		APIBase:        srv.URL,
		Logger:         testLogger(),
	})

	if _, err := tw.Send(context.Background(), outbound("+5491155550000", "hola")); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestTwilio_Send_Unconfigured(t *testing.T) {
	tw := NewTwilio(TwilioConfig{Logger: testLogger()})
	if tw.Configured() {
		t.Fatal("empty credentials should not count as configured")
	}
	if _, err := tw.Send(context.Background(), outbound("+5491155550000", "hola")); err == nil {
		t.Fatal("expected error for unconfigured send")
	}
}

func TestWhatsappAddr(t *testing.T) {
	if got := whatsappAddr("+123"); got != "whatsapp:+123" {
		t.Fatalf("expected prefix added, got %q", got)
	}
	if got := whatsappAddr("whatsapp:+123"); got != "whatsapp:+123" {
		t.Fatalf("prefix should not double, got %q", got)
	}
}

// --- ForTenant ---

func TestForTenant_DefaultsToTwilio(t *testing.T) {
	tc := &domain.TenantConfig{
		TenantID: "acme",
		MessagingConfig: map[string]string{
			"account_sid":     "AC123",
			"auth_token":      "tok",
			"whatsapp_number": "+14155551234",
		},
	}
	m, err := ForTenant(tc, testLogger())
	if err != nil {
		t.Fatalf("for tenant: %v", err)
	}
	if m.Name() != "twilio" {
		t.Fatalf("expected twilio, got %q", m.Name())
	}
	if !m.Configured() {
		t.Fatal("expected configured messenger")
	}
}

func TestForTenant_Telegram(t *testing.T) {
	tc := &domain.TenantConfig{
		TenantID:          "acme",
		MessagingProvider: "telegram",
		MessagingConfig:   map[string]string{"bot_token": "123:abc"},
	}
	m, err := ForTenant(tc, testLogger())
	if err != nil {
		t.Fatalf("for tenant: %v", err)
	}
	if m.Name() != "telegram" {
		t.Fatalf("expected telegram, got %q", m.Name())
	}
}

func TestForTenant_UnknownProvider(t *testing.T) {
	tc := &domain.TenantConfig{TenantID: "acme", MessagingProvider: "smoke-signals"}
	if _, err := ForTenant(tc, testLogger()); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestForTenant_PlaceholderCredentialTreatedAsMissing(t *testing.T) {
	tc := &domain.TenantConfig{
		TenantID: "acme",
		MessagingConfig: map[string]string{
			"account_sid":     "AC123",
			"auth_token":      "${TWILIO_AUTH_TOKEN}",
			"whatsapp_number": "+14155551234",
		},
	}
	m, err := ForTenant(tc, testLogger())
	if err != nil {
		t.Fatalf("for tenant: %v", err)
	}
	if m.Configured() {
		t.Fatal("unresolved placeholder must leave the messenger unconfigured")
	}
}

package feature

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

// fakeBackend stands in for a generation backend so AIReply's request
// handling can be tested without network access.
type fakeBackend struct {
	reply   string
	err     error
	lastReq domain.GenerateRequest
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	f.lastReq = req
	return f.reply, f.err
}

func (f *fakeBackend) Cleanup() error { return nil }

func newTestAIReply(backend domain.GenerationBackend) *AIReply {
	return &AIReply{
		logger:      testLogger(),
		backend:     backend,
		providerKey: "fake",
		temperature: defaultTemperature,
		maxTokens:   defaultMaxOutputToken,
		timeout:     defaultGenTimeout,
	}
}

func basicUserContext() domain.UserContext {
	return domain.UserContext{
		From:   "whatsapp:+5491155550000",
		Tenant: &domain.TenantConfig{TenantID: "acme", Plan: domain.PlanBasic},
	}
}

// --- Initialize ---

func TestAIReply_Initialize_UnknownProvider(t *testing.T) {
	a := NewAIReply(testLogger())
	err := a.Initialize(context.Background(), map[string]any{"provider": "cohere"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	var initErr *domain.CapabilityInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected CapabilityInitError, got %T", err)
	}
	if initErr.Capability != CapabilityAIReply {
		t.Fatalf("error should name the capability, got %q", initErr.Capability)
	}
}

func TestAIReply_Initialize_MissingAPIKey(t *testing.T) {
	a := NewAIReply(testLogger())
	err := a.Initialize(context.Background(), map[string]any{
		"provider":        "openai",
		"provider_config": map[string]any{},
	})
	if err == nil {
		t.Fatal("expected error when api_key is missing")
	}
	var initErr *domain.CapabilityInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected CapabilityInitError, got %T", err)
	}
}

// --- Process ---

func TestAIReply_Process_Success(t *testing.T) {
	backend := &fakeBackend{reply: "¡Hola! ¿En qué puedo ayudarte?"}
	a := newTestAIReply(backend)

	res, err := a.Process(context.Background(), "hola", basicUserContext())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Text != "¡Hola! ¿En qué puedo ayudarte?" {
		t.Fatalf("unexpected reply: %q", res.Text)
	}
	if res.Metadata["provider"] != "fake" {
		t.Fatalf("metadata should carry the provider key, got %v", res.Metadata)
	}
	if res.Metadata["feature"] != CapabilityAIReply {
		t.Fatalf("metadata should carry the feature name, got %v", res.Metadata)
	}
}

func TestAIReply_Process_DefaultSystemPrompt(t *testing.T) {
	backend := &fakeBackend{reply: "ok"}
	a := newTestAIReply(backend)

	if _, err := a.Process(context.Background(), "hola", basicUserContext()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if backend.lastReq.SystemPrompt == "" {
		t.Fatal("a default system prompt should always be supplied")
	}
}

func TestAIReply_Process_TenantSystemPromptWins(t *testing.T) {
	backend := &fakeBackend{reply: "ok"}
	a := newTestAIReply(backend)

	uctx := basicUserContext()
	uctx.Tenant.Personality = map[string]any{"system_prompt": "Eres el bot de Acme."}

	if _, err := a.Process(context.Background(), "hola", uctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	if backend.lastReq.SystemPrompt != "Eres el bot de Acme." {
		t.Fatalf("tenant prompt should win, got %q", backend.lastReq.SystemPrompt)
	}
}

func TestAIReply_Process_TrimsHistory(t *testing.T) {
	backend := &fakeBackend{reply: "ok"}
	a := newTestAIReply(backend)

	uctx := basicUserContext()
	for i := 0; i < 12; i++ {
		uctx.History = append(uctx.History, domain.Turn{Role: "user", Content: fmt.Sprintf("msg %d", i)})
	}

	if _, err := a.Process(context.Background(), "hola", uctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(backend.lastReq.History) != historyWindow {
		t.Fatalf("expected history trimmed to %d turns, got %d", historyWindow, len(backend.lastReq.History))
	}
	// Most recent turns survive.
	if backend.lastReq.History[historyWindow-1].Content != "msg 11" {
		t.Fatalf("expected newest turn last, got %q", backend.lastReq.History[historyWindow-1].Content)
	}
}

func TestAIReply_Process_BackendError(t *testing.T) {
	cause := fmt.Errorf("upstream 503")
	a := newTestAIReply(&fakeBackend{err: cause})

	_, err := a.Process(context.Background(), "hola", basicUserContext())
	if err == nil {
		t.Fatal("expected error")
	}
	var svcErr *domain.CapabilityServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected CapabilityServiceError, got %T", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("service error should wrap the backend error")
	}
}

func TestAIReply_Process_TimeoutLabeled(t *testing.T) {
	cause := fmt.Errorf("reply window closed: %w", context.DeadlineExceeded)
	a := newTestAIReply(&fakeBackend{err: cause})

	_, err := a.Process(context.Background(), "hola", basicUserContext())
	var svcErr *domain.CapabilityServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected CapabilityServiceError, got %T", err)
	}
	if !strings.Contains(svcErr.Message, "timed out") {
		t.Fatalf("timeouts should be labeled as such, got %q", svcErr.Message)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("the context error should stay wrapped")
	}
}

func TestAIReply_Process_EmptyReplyIsError(t *testing.T) {
	a := newTestAIReply(&fakeBackend{reply: ""})

	_, err := a.Process(context.Background(), "hola", basicUserContext())
	var svcErr *domain.CapabilityServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected CapabilityServiceError for empty reply, got %v", err)
	}
}

func TestAIReply_Process_Uninitialized(t *testing.T) {
	a := &AIReply{logger: testLogger()}
	_, err := a.Process(context.Background(), "hola", basicUserContext())
	var svcErr *domain.CapabilityServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected CapabilityServiceError, got %v", err)
	}
}

// --- settings helpers ---

func TestSettingsHelpers(t *testing.T) {
	m := map[string]any{
		"s":     "value",
		"empty": "",
		"f":     0.5,
		"fi":    3,
		"i":     7,
		"ifl":   9.0,
	}

	if got := stringSetting(m, "s", "def"); got != "value" {
		t.Fatalf("stringSetting: %q", got)
	}
	if got := stringSetting(m, "empty", "def"); got != "def" {
		t.Fatalf("empty string should fall back, got %q", got)
	}
	if got := stringSetting(nil, "s", "def"); got != "def" {
		t.Fatalf("nil map should fall back, got %q", got)
	}
	if got := floatSetting(m, "f", 1.0); got != 0.5 {
		t.Fatalf("floatSetting: %v", got)
	}
	if got := floatSetting(m, "fi", 1.0); got != 3.0 {
		t.Fatalf("floatSetting int: %v", got)
	}
	if got := intSetting(m, "i", 1); got != 7 {
		t.Fatalf("intSetting: %v", got)
	}
	if got := intSetting(m, "ifl", 1); got != 9 {
		t.Fatalf("intSetting float: %v", got)
	}
	if got := intSetting(m, "missing", 42); got != 42 {
		t.Fatalf("missing key should fall back, got %v", got)
	}
}

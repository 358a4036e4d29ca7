package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

func domainGenerateRequest(msg string) domain.GenerateRequest {
	return domain.GenerateRequest{Message: msg, SystemPrompt: "sys", MaxTokens: 100}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildGet(t *testing.T, url string) func() (*http.Request, error) {
	t.Helper()
	return func() (*http.Request, error) {
		return http.NewRequest("GET", url, nil)
	}
}

func TestDoWithRetry_SuccessFirstTry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := doWithRetry(context.Background(), srv.Client(), buildGet(t, srv.URL), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestDoWithRetry_RetriesOn500(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := doWithRetry(context.Background(), srv.Client(), buildGet(t, srv.URL), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestDoWithRetry_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := doWithRetry(context.Background(), srv.Client(), buildGet(t, srv.URL), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
}

func TestDoWithRetry_NoRetryOn400(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	resp, err := doWithRetry(context.Background(), srv.Client(), buildGet(t, srv.URL), testLogger())
	if err != nil {
		t.Fatalf("4xx is the caller's problem, not a retry: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 passed through, got %d", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestDoWithRetry_ContextCancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := doWithRetry(ctx, srv.Client(), buildGet(t, srv.URL), testLogger())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("window expiry should surface the context error, got %v", err)
	}
}

// --- OpenAI backend against a stub server ---

func TestOpenAI_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hola"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", APIBase: srv.URL, Logger: testLogger()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	text, err := o.Generate(context.Background(), domainGenerateRequest("hola bot"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "hola" {
		t.Fatalf("unexpected reply %q", text)
	}
}

func TestOpenAI_Generate_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	o, _ := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	if _, err := o.Generate(context.Background(), domainGenerateRequest("hola")); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestNewClaude_RequiresKey(t *testing.T) {
	if _, err := NewClaude(ClaudeConfig{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

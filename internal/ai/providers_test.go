package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGemini_PrependsPrefixAndSplitsThinking(t *testing.T) {
	var got geminiReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "k" || r.URL.RawQuery != "" {
			t.Errorf("key must travel in the header only: header=%q query=%q", r.Header.Get("x-goog-api-key"), r.URL.RawQuery)
		}
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hmm","thought":true},{"text":"4"}]}}]}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "k")
	resp, err := p.Chat(context.Background(), Request{
		Model:         "gemini-2.0-flash",
		Prompt:        "What is 2+2?",
		History:       []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		ContextPrefix: "[Previous conversation summary: s]\n\n",
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "4" || resp.Thinking != "hmm" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(got.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(got.Contents))
	}
	if got.Contents[1].Role != "model" {
		t.Fatalf("assistant turn should use role model, got %q", got.Contents[1].Role)
	}
	last := got.Contents[2].Parts[0].Text
	if last != "[Previous conversation summary: s]\n\nWhat is 2+2?" {
		t.Fatalf("prefix not prepended: %q", last)
	}
}

func TestClaude_UsesSystemFieldAndHeaders(t *testing.T) {
	var got claudeReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" || r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"content":[{"type":"thinking","thinking":"let me see"},{"type":"text","text":"answer"}]}`))
	}))
	defer srv.Close()

	p := NewClaudeProvider(srv.URL, "k")
	resp, err := p.Chat(context.Background(), Request{Model: "claude-3-5-haiku-20241022", Prompt: "q", ContextPrefix: "summary"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "answer" || resp.Thinking != "let me see" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got.System != "summary" {
		t.Fatalf("expected system field, got %q", got.System)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "q" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestOpenAICompat_SystemMessageAndReasoning(t *testing.T) {
	var got openAIChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer: %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok","reasoning_content":"why"}}]}`))
	}))
	defer srv.Close()

	p := NewGroqProvider(srv.URL, "k")
	resp, err := p.Chat(context.Background(), Request{Model: "llama-3.1-8b-instant", Prompt: "q", ContextPrefix: "ctx"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "ok" || resp.Thinking != "why" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[0].Content != "ctx" {
		t.Fatalf("expected leading system message, got %+v", got.Messages)
	}
}

func TestProvider_TransportErrorHidesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := NewGeminiProvider(base, "SUPERSECRETKEY").Chat(context.Background(), Request{Model: "gemini-2.0-flash", Prompt: "q"})
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if strings.Contains(err.Error(), "SUPERSECRETKEY") || strings.Contains(err.Error(), base) {
		t.Fatalf("error leaks the request URL: %q", err.Error())
	}
	if !strings.HasPrefix(err.Error(), "gemini: ") {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	_, err = NewOpenAIProvider(base, "sk-secret").Chat(context.Background(), Request{Model: "gpt-4o", Prompt: "q"})
	if err == nil || strings.Contains(err.Error(), base) {
		t.Fatalf("error leaks the request URL: %v", err)
	}
}

func TestProvider_MissingKeyIsConfigurationError(t *testing.T) {
	_, err := NewGeminiProvider("", "").Chat(context.Background(), Request{Model: "m", Prompt: "q"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if err.Error() != "GEMINI_API_KEY is not set" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestProvider_Non2xxIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider(srv.URL, "k").Chat(context.Background(), Request{Model: "gpt-4o", Prompt: "q"})
	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pErr.StatusCode != http.StatusTooManyRequests || pErr.Body != "rate limited" {
		t.Fatalf("unexpected provider error: %+v", pErr)
	}
	if err.Error() != "OpenAI API Error: 429 - rate limited" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestOllama_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"},{"name":"qwen2:7b"}]}`))
	}))
	defer srv.Close()

	models, err := NewOllamaProvider(srv.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(models) != 2 || models[1].ID != "qwen2:7b" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

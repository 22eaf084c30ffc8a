package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubProvider struct {
	resp  Response
	err   error
	delay time.Duration
	last  Request
}

func (p *stubProvider) Chat(ctx context.Context, req Request) (Response, error) {
	p.last = req
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	return p.resp, p.err
}

type listingProvider struct {
	stubProvider
	models []Model
	err    error
	calls  int
}

func (p *listingProvider) ListModels(ctx context.Context) ([]Model, error) {
	p.calls++
	return p.models, p.err
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]Model
}

func (c *memCache) GetModels(ctx context.Context, provider string) ([]Model, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.data[provider]
	return m, ok
}

func (c *memCache) SetModels(ctx context.Context, provider string, models []Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string][]Model{}
	}
	c.data[provider] = models
}

func TestRegistry_ProvidersKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r, Endpoints{})
	got := r.Providers()
	want := []string{"gemini", "openai", "claude", "groq", "nvidia", "openrouter"}
	if len(got) != len(want) {
		t.Fatalf("expected %d providers, got %d", len(want), len(got))
	}
	for i, k := range want {
		if got[i].Key != k {
			t.Fatalf("position %d: want %q got %q", i, k, got[i].Key)
		}
	}
}

func TestRegistry_DispatchUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), "nope", Request{Prompt: "q"})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestRegistry_DispatchFillsDefaultModel(t *testing.T) {
	r := NewRegistry()
	p := &stubProvider{resp: Response{Content: "ok"}}
	r.Register(Info{Key: "Fake", Name: "Fake", DefaultModel: "m1"}, p)

	resp, err := r.Dispatch(context.Background(), "fake", Request{Prompt: "q"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if resp.Content != "ok" || p.last.Model != "m1" {
		t.Fatalf("unexpected resp=%+v model=%q", resp, p.last.Model)
	}
}

func TestRegistry_DispatchTimeout(t *testing.T) {
	r := NewRegistry()
	r.Timeout = 20 * time.Millisecond
	r.Register(Info{Key: "slow", DefaultModel: "m"}, &stubProvider{delay: time.Second})

	_, err := r.Dispatch(context.Background(), "slow", Request{Prompt: "q"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRegistry_ListModelsFallsBackToStatic(t *testing.T) {
	r := NewRegistry()
	p := &listingProvider{err: errors.New("boom")}
	static := []Model{{ID: "a", Name: "a"}}
	r.Register(Info{Key: "x", DefaultModel: "a", Models: static}, p)

	got := r.ListModels(context.Background(), "x")
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected static table, got %+v", got)
	}
}

func TestRegistry_ListModelsUsesCache(t *testing.T) {
	r := NewRegistry()
	cache := &memCache{}
	r.Cache = cache
	p := &listingProvider{models: []Model{{ID: "live", Name: "live"}}}
	r.Register(Info{Key: "x", DefaultModel: "a", Models: []Model{{ID: "a"}}}, p)

	first := r.ListModels(context.Background(), "x")
	second := r.ListModels(context.Background(), "x")
	if first[0].ID != "live" || second[0].ID != "live" {
		t.Fatalf("expected live models, got %+v / %+v", first, second)
	}
	if p.calls != 1 {
		t.Fatalf("expected one live call, got %d", p.calls)
	}
}

func TestInfo_ResolveShortName(t *testing.T) {
	id, ok := ClaudeInfo.ResolveShortName("haiku")
	if !ok || id != "claude-3-5-haiku-20241022" {
		t.Fatalf("unexpected resolve: %q %v", id, ok)
	}
	if _, ok := ClaudeInfo.ResolveShortName("nope"); ok {
		t.Fatalf("expected miss")
	}
}

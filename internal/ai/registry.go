package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const DefaultTimeout = 60 * time.Second

// ModelCache stores live model listings between calls.
type ModelCache interface {
	GetModels(ctx context.Context, provider string) ([]Model, bool)
	SetModels(ctx context.Context, provider string, models []Model)
}

type entry struct {
	info     Info
	provider Provider
}

// Registry maps provider keys to implementations. Keys are lower-cased and
// Providers returns them in registration order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string

	Timeout time.Duration
	Cache   ModelCache
	Logger  *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
		Timeout: DefaultTimeout,
	}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *Registry) Register(info Info, p Provider) {
	key := normalizeKey(info.Key)
	info.Key = key
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; !exists {
		r.order = append(r.order, key)
	}
	r.entries[key] = entry{info: info, provider: p}
}

func (r *Registry) Lookup(key string) (Info, Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[normalizeKey(key)]
	return e.info, e.provider, ok
}

func (r *Registry) Info(key string) (Info, bool) {
	info, _, ok := r.Lookup(key)
	return info, ok
}

func (r *Registry) Providers() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k].info)
	}
	return out
}

func (r *Registry) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Dispatch sends one chat turn to the provider registered under key. The call
// is bounded by r.Timeout; any deadline surfaces as ErrTimeout.
func (r *Registry) Dispatch(ctx context.Context, key string, req Request) (Response, error) {
	info, p, ok := r.Lookup(key)
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", ErrUnknownProvider, key)
	}
	if strings.TrimSpace(req.Model) == "" {
		req.Model = info.DefaultModel
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.Chat(callCtx, req)
	if err != nil {
		if !errors.Is(err, ErrTimeout) && (isTimeout(err) || errors.Is(callCtx.Err(), context.DeadlineExceeded)) {
			err = fmt.Errorf("%s: %w", info.Key, ErrTimeout)
		}
		r.logger().Warn("ai dispatch failed", "provider", info.Key, "model", req.Model, "elapsed", time.Since(start), "error", err)
		return Response{}, err
	}
	r.logger().Debug("ai dispatch ok", "provider", info.Key, "model", req.Model, "elapsed", time.Since(start))
	return resp, nil
}

// ListModels prefers the cache, then the provider's live listing, then the
// static table. Failures fall through silently.
func (r *Registry) ListModels(ctx context.Context, key string) []Model {
	info, p, ok := r.Lookup(key)
	if !ok {
		return nil
	}

	if r.Cache != nil {
		if cached, hit := r.Cache.GetModels(ctx, info.Key); hit && len(cached) > 0 {
			return cached
		}
	}

	if lister, ok := p.(ModelLister); ok {
		live, err := lister.ListModels(ctx)
		if err == nil && len(live) > 0 {
			if r.Cache != nil {
				r.Cache.SetModels(ctx, info.Key, live)
			}
			return live
		}
		if err != nil {
			r.logger().Debug("live model listing failed, using static table", "provider", info.Key, "error", err)
		}
	}

	out := make([]Model, len(info.Models))
	copy(out, info.Models)
	return out
}

package redisstore

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// scriptCounter answers EVALSHA in-process by counting calls per key, and
// records the TTL argument each call carried.
type scriptCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	ttls   []any
}

func (h *scriptCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, fmt.Errorf("unexpected dial to %s", addr)
	}
}

func (h *scriptCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		c, ok := cmd.(*redis.Cmd)
		if !ok || len(args) < 5 || cmd.Name() != "evalsha" {
			return fmt.Errorf("unexpected command %v", args)
		}
		key := fmt.Sprint(args[3])
		h.mu.Lock()
		h.counts[key]++
		h.ttls = append(h.ttls, args[4])
		c.SetVal(h.counts[key])
		h.mu.Unlock()
		return nil
	}
}

func (h *scriptCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRateLimiter_DisabledAllowsEverything(t *testing.T) {
	var nilLimiter *RateLimiter
	if !nilLimiter.Allow(context.Background(), 1) {
		t.Fatalf("nil limiter must allow")
	}
	l := NewRateLimiter(nil, 10, nil)
	if !l.Allow(context.Background(), 1) {
		t.Fatalf("limiter without client must allow")
	}
	l = NewRateLimiter(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), 0, nil)
	if !l.Allow(context.Background(), 1) {
		t.Fatalf("zero limit must allow")
	}
}

func TestRateLimiter_FailsOpenWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()
	l := NewRateLimiter(rdb, 1, nil)
	for i := 0; i < 3; i++ {
		if !l.Allow(context.Background(), 1) {
			t.Fatalf("expected fail-open on redis error")
		}
	}
}

func TestRateLimiter_CountsAndArmsExpiryEachCall(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()
	hook := &scriptCounter{counts: map[string]int64{}}
	rdb.AddHook(hook)

	l := NewRateLimiter(rdb, 2, nil)
	ctx := context.Background()
	if !l.Allow(ctx, 1) || !l.Allow(ctx, 1) {
		t.Fatal("first two requests must pass")
	}
	if l.Allow(ctx, 1) {
		t.Fatal("third request in the window must be limited")
	}
	if !l.Allow(ctx, 2) {
		t.Fatal("other users have their own window")
	}

	want := time.Minute.Milliseconds()
	for i, ttl := range hook.ttls {
		if fmt.Sprint(ttl) != fmt.Sprint(want) {
			t.Fatalf("call %d carried ttl %v, want %d", i, ttl, want)
		}
	}
	if len(hook.ttls) != 4 {
		t.Fatalf("expected one atomic call per request, got %d", len(hook.ttls))
	}
}

func TestModelsKey(t *testing.T) {
	if modelsKey("gemini") != "models:gemini" {
		t.Fatalf("unexpected key %q", modelsKey("gemini"))
	}
}

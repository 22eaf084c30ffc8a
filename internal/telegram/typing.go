package telegram

import (
	"context"
	"sync"
	"time"
)

const TypingInterval = 4 * time.Second

type ChatActionSender interface {
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// StartTyping re-sends the typing action every interval until stop is called
// or ctx ends. stop is idempotent and returns only after the goroutine exits.
func StartTyping(ctx context.Context, api ChatActionSender, chatID int64, interval time.Duration) (stop func()) {
	if api == nil {
		return func() {}
	}
	if interval <= 0 {
		interval = TypingInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = api.SendChatAction(ctx, chatID, "typing")
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

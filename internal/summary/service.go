package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/suPer8Hu/qbot/internal/ai"
	"github.com/suPer8Hu/qbot/internal/chat"
)

const (
	// MinMessages is the smallest transcript worth summarizing.
	MinMessages = 4

	promptHeader = "Summarize this conversation in 2-3 sentences, capturing the key topics and context:\n\n"
)

var ErrEmptySummary = errors.New("provider returned an empty summary")

type Store interface {
	AllMessages(ctx context.Context, chatID string) ([]chat.Message, error)
	SetSummary(ctx context.Context, chatID string, summary *string) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, providerKey string, req ai.Request) (ai.Response, error)
}

// Service rebuilds a chat's rolling summary from its full transcript.
type Service struct {
	store  Store
	ai     Dispatcher
	logger *slog.Logger
}

func NewService(store Store, dispatcher Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ai: dispatcher, logger: logger}
}

// BuildPrompt renders the transcript as "role: content" lines under the
// summarization instruction.
func BuildPrompt(msgs []chat.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return promptHeader + strings.Join(lines, "\n")
}

// Regenerate overwrites the stored summary. Chats shorter than MinMessages
// are skipped without error.
func (s *Service) Regenerate(ctx context.Context, job chat.SummaryJob) error {
	msgs, err := s.store.AllMessages(ctx, job.ChatID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if len(msgs) < MinMessages {
		s.logger.Debug("summary skipped, chat too short", "chat_id", job.ChatID, "messages", len(msgs))
		return nil
	}

	resp, err := s.ai.Dispatch(ctx, job.Provider, ai.Request{Model: job.Model, Prompt: BuildPrompt(msgs)})
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return ErrEmptySummary
	}
	if err := s.store.SetSummary(ctx, job.ChatID, &text); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	s.logger.Info("summary updated", "chat_id", job.ChatID, "provider", job.Provider, "messages", len(msgs))
	return nil
}

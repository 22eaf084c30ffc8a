package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/suPer8Hu/qbot/internal/access"
	"github.com/suPer8Hu/qbot/internal/telegram"
)

// UpdateDispatcher hands an update to the bot without waiting for it.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, u telegram.Update)
}

type Handler struct {
	Bot    UpdateDispatcher
	Gate   *access.Gate
	Logger *slog.Logger
	Now    func() time.Time
}

func NewHandler(bot UpdateDispatcher, gate *access.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Bot: bot, Gate: gate, Logger: logger, Now: time.Now}
}

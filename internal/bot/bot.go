package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/qbot/internal/access"
	"github.com/suPer8Hu/qbot/internal/ai"
	"github.com/suPer8Hu/qbot/internal/chat"
	"github.com/suPer8Hu/qbot/internal/export"
	"github.com/suPer8Hu/qbot/internal/summary"
	"github.com/suPer8Hu/qbot/internal/telegram"
)

// Messenger is the slice of the Telegram client the handlers talk to.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
	SendHTML(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
	SendButtons(ctx context.Context, chatID int64, text string, keyboard [][]telegram.InlineKeyboardButton) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	SetMessageReaction(ctx context.Context, chatID, messageID int64, emoji string, isBig bool) error
	AnswerInlineQuery(ctx context.Context, queryID string, results []telegram.InlineQueryResultArticle) error
	Deliver(ctx context.Context, chatID int64, html string) error
}

// Store is the conversation and settings persistence used by the handlers.
type Store interface {
	GetSettings(ctx context.Context, userID int64) (chat.Settings, error)
	SetProvider(ctx context.Context, userID int64, provider, model string) error
	SetModel(ctx context.Context, userID int64, model string) error

	GetOrCreateActiveChat(ctx context.Context, userID int64) (*chat.Chat, error)
	CreateChat(ctx context.Context, userID int64) (*chat.Chat, error)
	GetChat(ctx context.Context, chatID string) (*chat.Chat, error)
	GetChatWithMessages(ctx context.Context, chatID string) (*chat.Chat, error)
	SetActiveChat(ctx context.Context, userID int64, chatID string) (*chat.Chat, error)
	DeleteChat(ctx context.Context, userID int64, chatID string) error
	Rename(ctx context.Context, chatID, title string) error
	ListRecent(ctx context.Context, userID int64, limit int) ([]chat.Chat, error)

	AppendMessage(ctx context.Context, chatID, role, content string) (*chat.Message, error)
	RecentMessages(ctx context.Context, chatID string, limit int) ([]chat.Message, error)
	MessageCount(ctx context.Context, chatID string) (int64, error)
	ClearMessages(ctx context.Context, chatID string) error
}

// Gateway is the provider registry as seen by the bot.
type Gateway interface {
	Dispatch(ctx context.Context, key string, req ai.Request) (ai.Response, error)
	ListModels(ctx context.Context, key string) []ai.Model
	Info(key string) (ai.Info, bool)
	Providers() []ai.Info
}

type Exporter interface {
	Configured() bool
	Export(ctx context.Context, userID int64) (export.Result, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, userID int64) bool
}

type Options struct {
	// ContextWindow is how many prior messages accompany each prompt.
	ContextWindow int
	// SummaryEvery triggers summary regeneration whenever a request moves the
	// chat's message count past a multiple of it.
	SummaryEvery int
	// RequestTimeout is only used to word the timeout notice; the registry
	// enforces the deadline.
	RequestTimeout time.Duration
	// Freeform routes plain text to the AI instead of reacting to it.
	Freeform       bool
	TypingInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.ContextWindow <= 0 {
		o.ContextWindow = 4
	}
	if o.SummaryEvery <= 0 {
		o.SummaryEvery = 6
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = ai.DefaultTimeout
	}
	if o.TypingInterval <= 0 {
		o.TypingInterval = telegram.TypingInterval
	}
	return o
}

type Deps struct {
	Store     Store
	AI        Gateway
	Messenger Messenger
	Gate      *access.Gate
	Summaries summary.Scheduler
	Exporter  Exporter
	Limiter   RateLimiter
	Logger    *slog.Logger
}

// Bot routes webhook updates to command, callback and inline handlers.
type Bot struct {
	store     Store
	ai        Gateway
	tg        Messenger
	gate      *access.Gate
	summaries summary.Scheduler
	exporter  Exporter
	limiter   RateLimiter
	logger    *slog.Logger
	opts      Options

	commands []command
	wg       sync.WaitGroup
}

func New(d Deps, opts Options) *Bot {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate := d.Gate
	if gate == nil {
		gate = access.NewGate(nil, nil, logger)
	}
	b := &Bot{
		store:     d.Store,
		ai:        d.AI,
		tg:        d.Messenger,
		gate:      gate,
		summaries: d.Summaries,
		exporter:  d.Exporter,
		limiter:   d.Limiter,
		logger:    logger,
		opts:      opts.withDefaults(),
	}
	b.commands = b.commandTable()
	return b
}

// Dispatch handles u on its own goroutine. ctx must outlive the webhook
// request; callers pass a context detached from it.
func (b *Bot) Dispatch(ctx context.Context, u telegram.Update) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.HandleUpdate(ctx, u)
	}()
}

// Wait blocks until every dispatched update has been handled.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// HandleUpdate runs the access check and routes u. Panics are logged, never
// propagated.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panic", "update_id", u.UpdateID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	switch {
	case u.Message != nil:
		b.onMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		b.onCallback(ctx, u.CallbackQuery)
	case u.InlineQuery != nil:
		b.onInline(ctx, u.InlineQuery)
	default:
		b.logger.Debug("ignoring update", "update_id", u.UpdateID)
	}
}

func senderID(u *telegram.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func (b *Bot) onMessage(ctx context.Context, msg *telegram.Message) {
	if msg.Chat == nil {
		return
	}
	userID := senderID(msg.From)
	if !b.gate.Allowed(ctx, userID) {
		b.logger.Info("access denied", "user_id", userID, "chat_id", msg.Chat.ID)
		b.sendText(ctx, msg.Chat.ID, access.DeniedMessage)
		return
	}
	b.handleMessage(ctx, msg)
}

func (b *Bot) onCallback(ctx context.Context, cq *telegram.CallbackQuery) {
	userID := senderID(cq.From)
	if !b.gate.Allowed(ctx, userID) {
		b.logger.Info("access denied", "user_id", userID, "callback", cq.Data)
		b.answer(ctx, cq.ID, access.DeniedCallback)
		return
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		b.answer(ctx, cq.ID, "")
		return
	}
	b.handleCallback(ctx, cq)
}

// onInline answers with nothing for unknown senders and with a single
// "ask" article otherwise.
func (b *Bot) onInline(ctx context.Context, q *telegram.InlineQuery) {
	var results []telegram.InlineQueryResultArticle
	query := strings.TrimSpace(q.Query)
	if query != "" && b.gate.Allowed(ctx, senderID(q.From)) {
		results = append(results, telegram.InlineQueryResultArticle{
			Type:        "article",
			ID:          "ask",
			Title:       "🤖 Ask AI",
			Description: telegram.Truncate(query, 60),
			InputMessageContent: telegram.InputTextMessageContent{
				MessageText: "/ai " + query,
			},
		})
	}
	if err := b.tg.AnswerInlineQuery(ctx, q.ID, results); err != nil {
		b.logger.Warn("answerInlineQuery failed", "error", err)
	}
}

// Best-effort senders: delivery failures are logged and do not abort the
// handler.

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) {
	if _, err := b.tg.SendText(ctx, chatID, text); err != nil {
		b.logger.Warn("sendMessage failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendHTML(ctx context.Context, chatID int64, text string) *telegram.Message {
	msg, err := b.tg.SendHTML(ctx, chatID, text)
	if err != nil {
		b.logger.Warn("sendMessage failed", "chat_id", chatID, "error", err)
		return nil
	}
	return msg
}

func (b *Bot) sendButtons(ctx context.Context, chatID int64, text string, keyboard [][]telegram.InlineKeyboardButton) {
	if _, err := b.tg.SendButtons(ctx, chatID, text, keyboard); err != nil {
		b.logger.Warn("sendMessage with keyboard failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) deliver(ctx context.Context, chatID int64, html string) {
	if err := b.tg.Deliver(ctx, chatID, html); err != nil {
		b.logger.Warn("delivery failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.tg.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		b.logger.Warn("answerCallbackQuery failed", "error", err)
	}
}

func (b *Bot) fail(ctx context.Context, chatID int64, op string, err error) {
	b.logger.Error(op+" failed", "chat_id", chatID, "error", err)
	b.sendText(ctx, chatID, "❌ Something went wrong. Please try again.")
}

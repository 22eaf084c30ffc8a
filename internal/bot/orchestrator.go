package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/suPer8Hu/qbot/internal/ai"
	"github.com/suPer8Hu/qbot/internal/chat"
	tg "github.com/suPer8Hu/qbot/internal/telegram"
)

const (
	titleLength     = 50
	thinkingLength  = 1000
	slowDown        = "⏳ Slow down! You are sending requests too fast. Please wait a minute."
	noResponse      = "⚠️ No response from AI. Try a different model or provider."
	statusDone      = "✅ <i>Done!</i>"
	statusErrored   = "❌ <i>Error occurred</i>"
	errorHintSuffix = "\n\n<i>Try /models to switch models or /providers to change provider.</i>"
)

func summaryPrefix(c *chat.Chat) string {
	if c.Summary == nil || *c.Summary == "" {
		return ""
	}
	return "[Previous conversation summary: " + *c.Summary + "]\n\n"
}

func toHistory(msgs []chat.Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func (b *Bot) timeoutNotice() string {
	return fmt.Sprintf("⏱️ Request timed out (%ds). The model may be overloaded. Try again or switch to a faster model.",
		int(b.opts.RequestTimeout.Seconds()))
}

func errorNotice(err error) string {
	return "❌ Error: " + tg.EscapeHTML(err.Error()) + errorHintSuffix
}

func statusLine(emoji, verb string, info ai.Info, model string) string {
	return fmt.Sprintf("%s <i>%s</i>\n\n<code>%s: %s</code>", emoji, verb, tg.EscapeHTML(info.Name), tg.EscapeHTML(model))
}

// processAIRequest runs one prompt through the user's provider against the
// active chat and delivers the answer to chatID.
func (b *Bot) processAIRequest(ctx context.Context, chatID, userID int64, prompt string) {
	settings, err := b.store.GetSettings(ctx, userID)
	if err != nil {
		b.fail(ctx, chatID, "load settings", err)
		return
	}
	info, ok := b.ai.Info(settings.Provider)
	if !ok {
		b.sendText(ctx, chatID, invalidProv)
		return
	}
	if b.limiter != nil && !b.limiter.Allow(ctx, userID) {
		b.sendText(ctx, chatID, slowDown)
		return
	}
	log := b.logger.With("user_id", userID, "provider", info.Key, "model", settings.Model)

	active, err := b.store.GetOrCreateActiveChat(ctx, userID)
	if err != nil {
		b.fail(ctx, chatID, "resolve active chat", err)
		return
	}
	log = log.With("chat_id", active.ID)

	// History is read before the prompt is stored so it is not sent twice.
	recent, err := b.store.RecentMessages(ctx, active.ID, b.opts.ContextWindow)
	if err != nil {
		b.fail(ctx, chatID, "load history", err)
		return
	}
	before, err := b.store.MessageCount(ctx, active.ID)
	if err != nil {
		b.fail(ctx, chatID, "count messages", err)
		return
	}
	if _, err := b.store.AppendMessage(ctx, active.ID, chat.RoleUser, prompt); err != nil {
		b.fail(ctx, chatID, "save prompt", err)
		return
	}
	if before == 0 && active.Title == chat.DefaultTitle {
		if err := b.store.Rename(ctx, active.ID, tg.Truncate(prompt, titleLength)); err != nil {
			log.Warn("auto title failed", "error", err)
		}
	}

	req := ai.Request{
		Model:         settings.Model,
		Prompt:        prompt,
		History:       toHistory(recent),
		ContextPrefix: summaryPrefix(active),
	}

	if err := b.tg.SendChatAction(ctx, chatID, "typing"); err != nil {
		log.Debug("sendChatAction failed", "error", err)
	}
	var statusID int64
	if status := b.sendHTML(ctx, chatID, statusLine("🤔", "Thinking...", info, settings.Model)); status != nil {
		statusID = status.MessageID
	}
	stopTyping := tg.StartTyping(ctx, b.tg, chatID, b.opts.TypingInterval)
	defer stopTyping()

	b.editStatus(ctx, chatID, statusID, statusLine("⏳", "Processing...", info, settings.Model))
	resp, err := b.ai.Dispatch(ctx, info.Key, req)
	stopTyping()

	if err != nil {
		log.Error("ai request failed", "error", err)
		b.editStatus(ctx, chatID, statusID, statusErrored)
		b.maybeSummarize(ctx, active.ID, before, info.Key, settings.Model)
		if errors.Is(err, ai.ErrTimeout) {
			b.sendHTML(ctx, chatID, b.timeoutNotice())
		} else {
			b.sendHTML(ctx, chatID, errorNotice(err))
		}
		return
	}
	b.editStatus(ctx, chatID, statusID, statusDone)

	if resp.Content != "" {
		if _, err := b.store.AppendMessage(ctx, active.ID, chat.RoleAssistant, resp.Content); err != nil {
			log.Error("save answer failed", "error", err)
		}
	}
	b.maybeSummarize(ctx, active.ID, before, info.Key, settings.Model)

	if resp.Thinking != "" {
		b.deliver(ctx, chatID, "<b>💭 Thinking:</b>\n<i>"+tg.EscapeHTML(tg.Truncate(resp.Thinking, thinkingLength))+"</i>")
	}
	if resp.Content != "" {
		b.deliver(ctx, chatID, "<b>💬 "+tg.EscapeHTML(info.Name)+":</b>\n"+tg.MarkdownToHTML(resp.Content))
	} else {
		b.sendText(ctx, chatID, noResponse)
	}
	b.sendButtons(ctx, chatID, quickActions, quickActionMenu())
	log.Info("ai request served", "answer_len", len(resp.Content), "thinking", resp.Thinking != "")
}

// editStatus is best-effort; a missing status message is skipped.
func (b *Bot) editStatus(ctx context.Context, chatID, messageID int64, text string) {
	if messageID == 0 {
		return
	}
	if err := b.tg.EditMessageText(ctx, chatID, messageID, text); err != nil {
		b.logger.Debug("status edit failed", "chat_id", chatID, "error", err)
	}
}

// maybeSummarize schedules summary regeneration when this request moved the
// chat's message count past a multiple of SummaryEvery. Comparing against the
// count before the prompt was stored keeps the cadence after a failed request
// leaves an odd count behind.
func (b *Bot) maybeSummarize(ctx context.Context, chatID string, before int64, provider, model string) {
	if b.summaries == nil {
		return
	}
	after, err := b.store.MessageCount(ctx, chatID)
	if err != nil {
		b.logger.Warn("message count failed", "chat_id", chatID, "error", err)
		return
	}
	if !summaryDue(before, after, b.opts.SummaryEvery) {
		return
	}
	b.summaries.Schedule(chat.SummaryJob{ChatID: chatID, Provider: provider, Model: model})
}

// summaryDue reports whether a multiple of every lies in (before, after].
func summaryDue(before, after int64, every int) bool {
	if every <= 0 || after <= before {
		return false
	}
	return before/int64(every) < after/int64(every)
}

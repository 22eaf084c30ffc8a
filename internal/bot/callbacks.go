package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/suPer8Hu/qbot/internal/chat"
	tg "github.com/suPer8Hu/qbot/internal/telegram"
)

// handleCallback routes inline button presses. Exact matches come first,
// then prefixes; set_model_full_ is checked before the legacy set_model_.
func (b *Bot) handleCallback(ctx context.Context, cq *tg.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	userID := senderID(cq.From)
	data := cq.Data

	switch data {
	case cbNew:
		b.answer(ctx, cq.ID, "Creating new chat...")
		b.newChat(ctx, chatID, userID)
		return
	case cbChats:
		b.answer(ctx, cq.ID, "")
		b.showChats(ctx, chatID, userID)
		return
	case cbProviders:
		b.answer(ctx, cq.ID, "")
		b.showProviders(ctx, chatID, userID)
		return
	case cbModels:
		b.answer(ctx, cq.ID, "")
		b.showModels(ctx, chatID, userID)
		return
	case cbExport:
		b.answer(ctx, cq.ID, "Exporting...")
		b.exportActive(ctx, chatID, userID)
		return
	case cbClear:
		b.answer(ctx, cq.ID, "Clearing...")
		b.clearActive(ctx, chatID, userID)
		return
	case cbUsers:
		b.answer(ctx, cq.ID, "")
		b.showUsers(ctx, chatID, userID)
		return
	case cbAskAI:
		b.answer(ctx, cq.ID, "Asking AI...")
		b.processAIRequest(ctx, chatID, userID, funFactPrompt)
		return
	}

	switch {
	case strings.HasPrefix(data, cbSwitchChat):
		b.switchChat(ctx, cq, strings.TrimPrefix(data, cbSwitchChat))
	case strings.HasPrefix(data, cbDeleteChat):
		b.deleteChat(ctx, cq, strings.TrimPrefix(data, cbDeleteChat))
	case strings.HasPrefix(data, cbProvider):
		b.setProvider(ctx, cq, strings.TrimPrefix(data, cbProvider))
	case strings.HasPrefix(data, cbModelFull):
		b.setModel(ctx, cq, strings.TrimPrefix(data, cbModelFull))
	case strings.HasPrefix(data, cbModelShort):
		b.setModelShort(ctx, cq, strings.TrimPrefix(data, cbModelShort))
	default:
		b.answer(ctx, cq.ID, "Button press acknowledged!")
	}
}

func (b *Bot) switchChat(ctx context.Context, cq *tg.CallbackQuery, id string) {
	chatID := cq.Message.Chat.ID
	if _, err := b.store.SetActiveChat(ctx, senderID(cq.From), id); err != nil {
		if !errors.Is(err, chat.ErrChatNotFound) {
			b.logger.Error("switch chat failed", "chat_id", id, "error", err)
		}
		b.answer(ctx, cq.ID, "Chat not found.")
		return
	}
	b.answer(ctx, cq.ID, "Chat switched!")

	c, err := b.store.GetChatWithMessages(ctx, id)
	if err != nil {
		b.fail(ctx, chatID, "load chat", err)
		return
	}
	b.deliver(ctx, chatID, switchedText(c))
}

func (b *Bot) deleteChat(ctx context.Context, cq *tg.CallbackQuery, id string) {
	userID := senderID(cq.From)
	c, err := b.store.GetChat(ctx, id)
	if err != nil || c.UserID != userID {
		b.answer(ctx, cq.ID, "Chat not found.")
		return
	}
	if err := b.store.DeleteChat(ctx, userID, id); err != nil {
		if !errors.Is(err, chat.ErrChatNotFound) {
			b.logger.Error("delete chat failed", "chat_id", id, "error", err)
		}
		b.answer(ctx, cq.ID, "Chat not found.")
		return
	}
	b.answer(ctx, cq.ID, "Chat deleted!")
	b.sendHTML(ctx, cq.Message.Chat.ID, "🗑️ Deleted: <b>"+tg.EscapeHTML(c.Title)+"</b>")
}

// setProvider always resets the model to the new provider's default.
func (b *Bot) setProvider(ctx context.Context, cq *tg.CallbackQuery, key string) {
	info, ok := b.ai.Info(key)
	if !ok {
		b.answer(ctx, cq.ID, "Unknown provider.")
		return
	}
	if err := b.store.SetProvider(ctx, senderID(cq.From), info.Key, info.DefaultModel); err != nil {
		b.answer(ctx, cq.ID, "")
		b.fail(ctx, cq.Message.Chat.ID, "set provider", err)
		return
	}
	b.answer(ctx, cq.ID, "Provider set to "+info.Name+"!")
	b.sendHTML(ctx, cq.Message.Chat.ID, "✅ Provider set to <b>"+tg.EscapeHTML(info.Name)+"</b>\n<i>Model reset to "+tg.EscapeHTML(info.DefaultModel)+"</i>")
}

func (b *Bot) setModel(ctx context.Context, cq *tg.CallbackQuery, modelID string) {
	if modelID == "" {
		b.answer(ctx, cq.ID, "Unknown model.")
		return
	}
	if err := b.store.SetModel(ctx, senderID(cq.From), modelID); err != nil {
		b.answer(ctx, cq.ID, "")
		b.fail(ctx, cq.Message.Chat.ID, "set model", err)
		return
	}
	b.answer(ctx, cq.ID, "Model set!")
	b.sendHTML(ctx, cq.Message.Chat.ID, "✅ Model set to <b>"+tg.EscapeHTML(modelID)+"</b>")
}

// setModelShort resolves a short name against the current provider's static
// table.
func (b *Bot) setModelShort(ctx context.Context, cq *tg.CallbackQuery, short string) {
	userID := senderID(cq.From)
	settings, err := b.store.GetSettings(ctx, userID)
	if err != nil {
		b.answer(ctx, cq.ID, "")
		b.fail(ctx, cq.Message.Chat.ID, "load settings", err)
		return
	}
	info, ok := b.ai.Info(settings.Provider)
	if !ok {
		b.answer(ctx, cq.ID, "Unknown model.")
		return
	}
	modelID, ok := info.ResolveShortName(short)
	if !ok {
		b.answer(ctx, cq.ID, "Unknown model.")
		return
	}
	if err := b.store.SetModel(ctx, userID, modelID); err != nil {
		b.answer(ctx, cq.ID, "")
		b.fail(ctx, cq.Message.Chat.ID, "set model", err)
		return
	}
	b.answer(ctx, cq.ID, "Model set to "+short+"!")
	b.sendHTML(ctx, cq.Message.Chat.ID, "✅ Model set to <b>"+tg.EscapeHTML(modelID)+"</b>")
}

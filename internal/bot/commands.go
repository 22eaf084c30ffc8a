package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/suPer8Hu/qbot/internal/access"
	"github.com/suPer8Hu/qbot/internal/export"
	tg "github.com/suPer8Hu/qbot/internal/telegram"
)

type commandFunc func(ctx context.Context, msg *tg.Message, args string)

type command struct {
	prefix      string
	description string
	run         commandFunc
}

// commandTable is matched in order against the raw message text; the first
// prefix match wins, so "/aiX" still routes to /ai.
func (b *Bot) commandTable() []command {
	return []command{
		{"/start", "Show help message", b.cmdStart},
		{"/help", "Show help message", b.cmdStart},
		{"/ai", "Ask AI a question", b.cmdAI},
		{"/providers", "Select AI provider", b.cmdProviders},
		{"/models", "Select AI model", b.cmdModels},
		{"/new", "Start new chat", b.cmdNew},
		{"/chats", "List/switch chats", b.cmdChats},
		{"/rename", "Rename current chat", b.cmdRename},
		{"/clear", "Clear current chat", b.cmdClear},
		{"/export", "Export chat to notes", b.cmdExport},
		{"/adduser", "Add user (owner)", b.cmdAddUser},
		{"/deluser", "Remove user (owner)", b.cmdDelUser},
		{"/users", "List allowed users (owner)", b.cmdUsers},
	}
}

// Commands lists the slash commands for setMyCommands.
func (b *Bot) Commands() []tg.BotCommand {
	out := make([]tg.BotCommand, 0, len(b.commands))
	for _, c := range b.commands {
		out = append(out, tg.BotCommand{Command: strings.TrimPrefix(c.prefix, "/"), Description: c.description})
	}
	return out
}

var reactions = []string{"👍", "❤️", "🔥", "🎉", "🤔", "👀", "💯", "🚀"}

func (b *Bot) handleMessage(ctx context.Context, msg *tg.Message) {
	text := msg.Text
	for _, c := range b.commands {
		if strings.HasPrefix(text, c.prefix) {
			c.run(ctx, msg, strings.TrimSpace(strings.TrimPrefix(text, c.prefix)))
			return
		}
	}

	if msg.IsForwarded() {
		b.analyzeForward(ctx, msg)
		return
	}

	if b.opts.Freeform && strings.TrimSpace(text) != "" {
		b.processAIRequest(ctx, msg.Chat.ID, senderID(msg.From), strings.TrimSpace(text))
		return
	}

	emoji := reactions[rand.Intn(len(reactions))]
	if err := b.tg.SetMessageReaction(ctx, msg.Chat.ID, msg.MessageID, emoji, emoji == "🎉"); err != nil {
		b.logger.Debug("setMessageReaction failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg *tg.Message, _ string) {
	b.sendButtons(ctx, msg.Chat.ID, helpText, startMenu())
}

func (b *Bot) cmdAI(ctx context.Context, msg *tg.Message, args string) {
	if args == "" {
		b.sendText(ctx, msg.Chat.ID, "Please provide a prompt. Example: /ai What is the moon?")
		return
	}
	b.processAIRequest(ctx, msg.Chat.ID, senderID(msg.From), args)
}

func (b *Bot) cmdProviders(ctx context.Context, msg *tg.Message, _ string) {
	b.showProviders(ctx, msg.Chat.ID, senderID(msg.From))
}

func (b *Bot) showProviders(ctx context.Context, chatID, userID int64) {
	settings, err := b.store.GetSettings(ctx, userID)
	if err != nil {
		b.fail(ctx, chatID, "load settings", err)
		return
	}
	info, ok := b.ai.Info(settings.Provider)
	b.sendButtons(ctx, chatID, providersText(settings.Provider, info, ok), providersKeyboard(b.ai.Providers(), settings.Provider))
}

func (b *Bot) cmdModels(ctx context.Context, msg *tg.Message, _ string) {
	b.showModels(ctx, msg.Chat.ID, senderID(msg.From))
}

func (b *Bot) showModels(ctx context.Context, chatID, userID int64) {
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
	b.sendHTML(ctx, chatID, "<i>Loading "+tg.EscapeHTML(info.Name)+" models...</i>")
	models := b.ai.ListModels(ctx, info.Key)
	if len(models) == 0 {
		b.sendText(ctx, chatID, noModels)
		return
	}
	b.sendButtons(ctx, chatID, modelsText(info, settings.Model), modelsKeyboard(models, settings.Model))
}

func (b *Bot) cmdNew(ctx context.Context, msg *tg.Message, _ string) {
	b.newChat(ctx, msg.Chat.ID, senderID(msg.From))
}

func (b *Bot) newChat(ctx context.Context, chatID, userID int64) {
	if _, err := b.store.CreateChat(ctx, userID); err != nil {
		b.fail(ctx, chatID, "create chat", err)
		return
	}
	b.sendHTML(ctx, chatID, newChatCreated)
}

func (b *Bot) cmdChats(ctx context.Context, msg *tg.Message, _ string) {
	b.showChats(ctx, msg.Chat.ID, senderID(msg.From))
}

func (b *Bot) showChats(ctx context.Context, chatID, userID int64) {
	settings, err := b.store.GetSettings(ctx, userID)
	if err != nil {
		b.fail(ctx, chatID, "load settings", err)
		return
	}
	chats, err := b.store.ListRecent(ctx, userID, recentChats)
	if err != nil {
		b.fail(ctx, chatID, "list chats", err)
		return
	}
	if len(chats) == 0 {
		b.sendText(ctx, chatID, noChatsYet)
		return
	}
	b.sendButtons(ctx, chatID, chatsHeader, chatsKeyboard(chats, settings.ActiveChatID))
}

func (b *Bot) cmdRename(ctx context.Context, msg *tg.Message, title string) {
	chatID := msg.Chat.ID
	if title == "" {
		b.sendText(ctx, chatID, "Usage: /rename <new title>")
		return
	}
	active, err := b.store.GetOrCreateActiveChat(ctx, senderID(msg.From))
	if err != nil {
		b.fail(ctx, chatID, "resolve active chat", err)
		return
	}
	if err := b.store.Rename(ctx, active.ID, title); err != nil {
		b.fail(ctx, chatID, "rename chat", err)
		return
	}
	b.sendHTML(ctx, chatID, "✅ Chat renamed to: <b>"+tg.EscapeHTML(title)+"</b>")
}

func (b *Bot) cmdClear(ctx context.Context, msg *tg.Message, _ string) {
	b.clearActive(ctx, msg.Chat.ID, senderID(msg.From))
}

func (b *Bot) clearActive(ctx context.Context, chatID, userID int64) {
	active, err := b.store.GetOrCreateActiveChat(ctx, userID)
	if err != nil {
		b.fail(ctx, chatID, "resolve active chat", err)
		return
	}
	if err := b.store.ClearMessages(ctx, active.ID); err != nil {
		b.fail(ctx, chatID, "clear chat", err)
		return
	}
	b.sendText(ctx, chatID, historyCleared)
}

func (b *Bot) cmdExport(ctx context.Context, msg *tg.Message, _ string) {
	b.exportActive(ctx, msg.Chat.ID, senderID(msg.From))
}

func (b *Bot) exportActive(ctx context.Context, chatID, userID int64) {
	if b.exporter == nil || !b.exporter.Configured() {
		b.sendText(ctx, chatID, "❌ Notes repo not configured. Set NOTES_REPO environment variable.")
		return
	}
	b.sendText(ctx, chatID, "📝 Exporting chat...")

	res, err := b.exporter.Export(ctx, userID)
	if err != nil {
		b.logger.Error("export failed", "user_id", userID, "error", err)
		b.sendText(ctx, chatID, "❌ Export failed: "+err.Error())
		return
	}
	b.sendHTML(ctx, chatID, "✅ Chat exported!\n\n📄 Raw: "+fileLink(res.RawFile, res.RawURL)+"\n📝 Notes: "+fileLink(res.NotesFile, res.NotesURL))
}

func fileLink(name, url string) string {
	if url == "" {
		return tg.EscapeHTML(name)
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, tg.EscapeHTML(url), tg.EscapeHTML(name))
}

func parseTarget(args string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	return id, err == nil
}

func (b *Bot) cmdAddUser(ctx context.Context, msg *tg.Message, args string) {
	chatID, actor := msg.Chat.ID, senderID(msg.From)
	if !b.gate.IsOwner(actor) {
		b.sendText(ctx, chatID, "🚫 Only the owner can add users.")
		return
	}
	target, ok := parseTarget(args)
	if !ok {
		b.sendText(ctx, chatID, "Usage: /adduser <user_id>")
		return
	}
	if err := b.gate.Add(ctx, actor, target); err != nil {
		b.fail(ctx, chatID, "add user", err)
		return
	}
	b.sendText(ctx, chatID, fmt.Sprintf("✅ User %d added to allowed list.", target))
}

func (b *Bot) cmdDelUser(ctx context.Context, msg *tg.Message, args string) {
	chatID, actor := msg.Chat.ID, senderID(msg.From)
	if !b.gate.IsOwner(actor) {
		b.sendText(ctx, chatID, "🚫 Only the owner can remove users.")
		return
	}
	target, ok := parseTarget(args)
	if !ok {
		b.sendText(ctx, chatID, "Usage: /deluser <user_id>")
		return
	}
	err := b.gate.Remove(ctx, actor, target)
	switch {
	case err == nil, errors.Is(err, access.ErrNotListed):
		b.sendText(ctx, chatID, fmt.Sprintf("✅ User %d removed from allowed list.", target))
	case errors.Is(err, access.ErrOwnerImmune):
		b.sendText(ctx, chatID, "🚫 Cannot delete owner.")
	case errors.Is(err, access.ErrStaticUser):
		b.sendText(ctx, chatID, "⚠️ Cannot delete users configured in environment. Remove from ALLOWED_USERS env var.")
	default:
		b.fail(ctx, chatID, "remove user", err)
	}
}

func (b *Bot) cmdUsers(ctx context.Context, msg *tg.Message, _ string) {
	b.showUsers(ctx, msg.Chat.ID, senderID(msg.From))
}

func (b *Bot) showUsers(ctx context.Context, chatID, actor int64) {
	listing, err := b.gate.List(ctx, actor)
	if errors.Is(err, access.ErrNotOwner) {
		b.sendText(ctx, chatID, "🚫 Only the owner can view users.")
		return
	}
	if err != nil {
		b.fail(ctx, chatID, "list users", err)
		return
	}
	b.sendHTML(ctx, chatID, usersText(listing))
}

var _ Exporter = (*export.Exporter)(nil)

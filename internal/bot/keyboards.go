package bot

import (
	"fmt"
	"strings"

	"github.com/suPer8Hu/qbot/internal/access"
	"github.com/suPer8Hu/qbot/internal/ai"
	"github.com/suPer8Hu/qbot/internal/chat"
	tg "github.com/suPer8Hu/qbot/internal/telegram"
)

// Callback data.
const (
	cbNew        = "cmd_new"
	cbChats      = "cmd_chats"
	cbProviders  = "cmd_providers"
	cbModels     = "cmd_models"
	cbExport     = "cmd_export"
	cbClear      = "cmd_clear"
	cbUsers      = "cmd_users"
	cbAskAI      = "ask_ai"
	cbSwitchChat = "switch_chat_"
	cbDeleteChat = "delete_chat_"
	cbProvider   = "set_provider_"
	cbModelFull  = "set_model_full_"
	cbModelShort = "set_model_"
)

const (
	helpText = "<b>🤖 AI Chat Bot</b>\n\nSelect a command below or just type a message to chat with AI!"

	chatsHeader    = "<b>📂 Your Chats:</b>\n\n<i>Tap to switch</i>"
	quickActions   = "<i>Quick actions:</i>"
	newChatCreated = "✨ <b>New chat created!</b>\n\nSend me a message to start chatting."
	historyCleared = "🗑️ Chat history cleared!"
	noChatsYet     = "No chats yet. Send a message to start!"
	invalidProv    = "Invalid provider selected."
	noModels       = "No models available for this provider."
	funFactPrompt  = "Tell me a random fun fact."
	recentChats    = 10
	chatTitleWidth = 30
)

func startMenu() [][]tg.InlineKeyboardButton {
	return tg.Keyboard(
		tg.Row(tg.Button("✨ New Chat", cbNew), tg.Button("📂 Chats", cbChats)),
		tg.Row(tg.Button("🔌 Providers", cbProviders), tg.Button("📋 Models", cbModels)),
		tg.Row(tg.Button("📝 Export", cbExport), tg.Button("👥 Users", cbUsers)),
		tg.Row(tg.Button("🗑️ Clear", cbClear)),
	)
}

func quickActionMenu() [][]tg.InlineKeyboardButton {
	return tg.Keyboard(
		tg.Row(tg.Button("✨ New", cbNew), tg.Button("📂 Chats", cbChats)),
		tg.Row(tg.Button("🔌 Provider", cbProviders), tg.Button("📝 Export", cbExport)),
	)
}

func marked(active bool, label string) string {
	if active {
		return "✅ " + label
	}
	return label
}

func chatsKeyboard(chats []chat.Chat, activeID *string) [][]tg.InlineKeyboardButton {
	rows := make([][]tg.InlineKeyboardButton, 0, len(chats))
	for _, c := range chats {
		active := activeID != nil && *activeID == c.ID
		title := []rune(c.Title)
		if len(title) > chatTitleWidth {
			title = title[:chatTitleWidth]
		}
		rows = append(rows, tg.Row(
			tg.Button(marked(active, string(title)), cbSwitchChat+c.ID),
			tg.Button("🗑️", cbDeleteChat+c.ID),
		))
	}
	return tg.Keyboard(rows...)
}

func providersText(current string, info ai.Info, ok bool) string {
	name := current
	if ok {
		name = info.Name
	}
	return fmt.Sprintf("<b>🔌 Select AI Provider:</b>\n\n<i>Current: %s</i>", tg.EscapeHTML(name))
}

func providersKeyboard(providers []ai.Info, current string) [][]tg.InlineKeyboardButton {
	rows := make([][]tg.InlineKeyboardButton, 0, len(providers))
	for _, p := range providers {
		rows = append(rows, tg.Row(tg.Button(marked(p.Key == current, p.Name), cbProvider+p.Key)))
	}
	return tg.Keyboard(rows...)
}

func modelsText(info ai.Info, current string) string {
	return fmt.Sprintf("<b>📋 %s Models:</b>\n\n<i>Current: %s</i>", tg.EscapeHTML(info.Name), tg.EscapeHTML(current))
}

// modelsKeyboard drops models whose id does not fit in callback data.
func modelsKeyboard(models []ai.Model, current string) [][]tg.InlineKeyboardButton {
	rows := make([][]tg.InlineKeyboardButton, 0, len(models))
	for _, m := range models {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		rows = append(rows, tg.Row(tg.Button(marked(m.ID == current, name), cbModelFull+m.ID)))
	}
	return tg.Keyboard(rows...)
}

func usersText(l access.Listing) string {
	var sb strings.Builder
	sb.WriteString("<b>👥 Allowed Users:</b>\n\n")
	sb.WriteString("<b>Environment (ALLOWED_USERS):</b>\n")
	for i, id := range l.Static {
		fmt.Fprintf(&sb, "• %d", id)
		if i == 0 {
			sb.WriteString(" 👑")
		}
		sb.WriteString("\n")
	}
	if len(l.Dynamic) > 0 {
		sb.WriteString("\n<b>Database:</b>\n")
		for _, u := range l.Dynamic {
			fmt.Fprintf(&sb, "• %d\n", u.UserID)
		}
	}
	return sb.String()
}

// switchedText renders the chat header plus its transcript, each message
// clipped to 200 characters.
func switchedText(c *chat.Chat) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Switched to: <b>%s</b>\n", tg.EscapeHTML(c.Title))
	fmt.Fprintf(&sb, "<i>%d messages</i>\n", len(c.Messages))
	if len(c.Messages) == 0 {
		sb.WriteString("\n<i>This chat is empty. Send a message to start!</i>")
		return sb.String()
	}
	sb.WriteString("\n<b>Chat History:</b>\n")
	for _, m := range c.Messages {
		icon := "🤖"
		if m.Role == chat.RoleUser {
			icon = "👤"
		}
		fmt.Fprintf(&sb, "\n%s %s\n", icon, tg.EscapeHTML(tg.Truncate(m.Content, 200)))
	}
	sb.WriteString("\n<i>Send a message to continue...</i>")
	return sb.String()
}

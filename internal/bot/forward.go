package bot

import (
	"context"

	"github.com/suPer8Hu/qbot/internal/ai"
	tg "github.com/suPer8Hu/qbot/internal/telegram"
)

const analysisPrompt = `You are a fact-checker and analyst. Analyze the following forwarded message.

For each impact analysis, provide the LOGIC CHAIN showing step-by-step reasoning from event to result.

Provide analysis in this format:
## 📋 Summary
Brief summary of the content.

## ✅ Fact Check
Verify claims. Rate accuracy (Verified/Partially True/Unverified/False/Opinion).
Cite sources or reasoning for your verification.

## 🏛️ Political Impact
Step-by-step logic chain:
1. [Event/Claim] →
2. [Immediate Effect] →
3. [Secondary Effect] →
4. [Political Outcome]

## 📈 Market Impact

### 📈 利好 (Bullish)
Industries: [affected sectors]
Logic chain: [Event] → [Mechanism] → [Positive Effect]
Tickers: [symbols]

### 📉 利空 (Bearish)
Industries: [affected sectors]
Logic chain: [Event] → [Mechanism] → [Negative Effect]
Tickers: [symbols]

## 🔗 Context
Additional context, related events, or background.

Message to analyze:
"""
`

func buildAnalysisPrompt(text string) string {
	return analysisPrompt + text + "\n\"\"\""
}

// analyzeForward fact-checks a forwarded message. It runs without chat
// history and nothing is persisted.
func (b *Bot) analyzeForward(ctx context.Context, msg *tg.Message) {
	chatID := msg.Chat.ID
	userID := senderID(msg.From)
	text := msg.Body()
	if text == "" {
		b.sendText(ctx, chatID, "❌ No text content in forwarded message to analyze.")
		return
	}

	settings, err := b.store.GetSettings(ctx, userID)
	if err != nil {
		b.fail(ctx, chatID, "load settings", err)
		return
	}
	name := "AI"
	if info, ok := b.ai.Info(settings.Provider); ok {
		name = info.Name
	}

	_ = b.tg.SendChatAction(ctx, chatID, "typing")
	b.sendHTML(ctx, chatID, "🔍 <i>Analyzing forwarded message...</i>")

	resp, err := b.ai.Dispatch(ctx, settings.Provider, ai.Request{
		Model:  settings.Model,
		Prompt: buildAnalysisPrompt(text),
	})
	if err != nil {
		b.logger.Error("forward analysis failed", "user_id", userID, "provider", settings.Provider, "error", err)
		b.sendText(ctx, chatID, "❌ Analysis failed: "+err.Error())
		return
	}
	if resp.Content == "" {
		b.sendText(ctx, chatID, "⚠️ Could not analyze the message.")
		return
	}
	b.deliver(ctx, chatID, "<b>🔍 Analysis ("+tg.EscapeHTML(name)+"):</b>\n"+tg.MarkdownToHTML(resp.Content))
}

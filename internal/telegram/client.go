package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	ParseModeHTML  = "HTML"
)

// Client is a minimal Bot API client covering the methods the bot uses.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	logger  *slog.Logger

	// ChunkDelay separates the parts of a split message.
	ChunkDelay time.Duration
}

func NewClient(httpClient *http.Client, baseURL, token string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:       httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
		ChunkDelay: 500 * time.Millisecond,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// RequestError is a Bot API call that returned ok=false or a non-2xx status.
type RequestError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
	Body        string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "telegram request failed"
	}
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		desc = strings.TrimSpace(e.Body)
	}
	if desc == "" {
		return fmt.Sprintf("telegram %s: http %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("telegram %s: http %d: %s", e.Method, e.StatusCode, desc)
}

// IsParseError reports whether Telegram rejected the text's markup.
func IsParseError(err error) bool {
	if err == nil {
		return false
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		desc := strings.ToLower(reqErr.Description)
		if strings.Contains(desc, "can't parse entities") || strings.Contains(desc, "can't parse entity") {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "can't parse entities") || strings.Contains(msg, "can't parse entity")
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep only the cause.
		var uErr *url.Error
		if errors.As(err, &uErr) && uErr.Err != nil {
			err = uErr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()

	var env apiResponse
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.OK {
		return &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   env.ErrorCode,
			Description: env.Description,
			Body:        strings.TrimSpace(string(raw)),
		}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) sendMessage(ctx context.Context, req sendMessageRequest) (*Message, error) {
	var out Message
	if err := c.call(ctx, "sendMessage", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendText sends plain text without a parse mode.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) (*Message, error) {
	return c.sendMessage(ctx, sendMessageRequest{ChatID: chatID, Text: text})
}

// SendHTML sends HTML text. A markup rejection is retried once as plain text
// with the tags stripped; any other error is returned as is.
func (c *Client) SendHTML(ctx context.Context, chatID int64, text string) (*Message, error) {
	return c.SendButtons(ctx, chatID, text, nil)
}

// SendButtons is SendHTML with an inline keyboard attached.
func (c *Client) SendButtons(ctx context.Context, chatID int64, text string, keyboard [][]InlineKeyboardButton) (*Message, error) {
	req := sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             ParseModeHTML,
		DisableWebPagePreview: true,
	}
	if len(keyboard) > 0 {
		req.ReplyMarkup = &InlineKeyboardMarkup{InlineKeyboard: keyboard}
	}
	msg, err := c.sendMessage(ctx, req)
	if err == nil || !IsParseError(err) {
		return msg, err
	}
	c.logger.Warn("telegram rejected html, falling back to plain text", "chat_id", chatID, "error", err)
	req.Text = StripHTML(text)
	req.ParseMode = ""
	return c.sendMessage(ctx, req)
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	return c.call(ctx, "editMessageText", editMessageTextRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: ParseModeHTML,
	}, nil)
}

func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	if action == "" {
		action = "typing"
	}
	return c.call(ctx, "sendChatAction", sendChatActionRequest{ChatID: chatID, Action: action}, nil)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackQueryRequest{CallbackQueryID: callbackID, Text: text}, nil)
}

func (c *Client) SetMessageReaction(ctx context.Context, chatID, messageID int64, emoji string, isBig bool) error {
	if messageID == 0 {
		return fmt.Errorf("missing message_id")
	}
	return c.call(ctx, "setMessageReaction", setMessageReactionRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Reaction:  []ReactionType{{Type: "emoji", Emoji: emoji}},
		IsBig:     isBig,
	}, nil)
}

func (c *Client) AnswerInlineQuery(ctx context.Context, queryID string, results []InlineQueryResultArticle) error {
	if results == nil {
		results = []InlineQueryResultArticle{}
	}
	return c.call(ctx, "answerInlineQuery", answerInlineQueryRequest{InlineQueryID: queryID, Results: results}, nil)
}

// SetWebhook registers webhookURL (already including the /webhook path).
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{URL: webhookURL, SecretToken: secret}, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{URL: ""}, nil)
}

func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", setMyCommandsRequest{Commands: commands}, nil)
}

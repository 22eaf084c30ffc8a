package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

// ClaudeProvider sends the context prefix through the dedicated system field.
type ClaudeProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

type claudeMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeReq struct {
	Model     string      `json:"model"`
	MaxTokens int         `json:"max_tokens"`
	System    string      `json:"system,omitempty"`
	Messages  []claudeMsg `json:"messages"`
}

type claudeResp struct {
	Content []struct {
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		Thinking string `json:"thinking,omitempty"`
	} `json:"content"`
}

type claudeModelsResp struct {
	Data []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}

func NewClaudeProvider(baseURL, apiKey string) *ClaudeProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	return &ClaudeProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(),
	}
}

func (p *ClaudeProvider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.APIKey,
		"anthropic-version": anthropicVersion,
	}
}

func (p *ClaudeProvider) Chat(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return Response{}, &ConfigurationError{Provider: "Claude", EnvVar: "CLAUDE_API_KEY"}
	}

	msgs := make([]claudeMsg, 0, len(req.History)+1)
	for _, m := range req.History {
		msgs = append(msgs, claudeMsg{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, claudeMsg{Role: "user", Content: req.Prompt})

	body := claudeReq{
		Model:     req.Model,
		MaxTokens: 4096,
		System:    strings.TrimSpace(req.ContextPrefix),
		Messages:  msgs,
	}

	url := fmt.Sprintf("%s/messages", strings.TrimRight(p.BaseURL, "/"))
	var decoded claudeResp
	if err := doJSON(ctx, p.Client, "Claude", http.MethodPost, url, p.headers(), body, &decoded); err != nil {
		return Response{}, err
	}

	var content, thinking strings.Builder
	for _, block := range decoded.Content {
		switch block.Type {
		case "thinking":
			thinking.WriteString(block.Thinking)
		case "text":
			content.WriteString(block.Text)
		}
	}
	return Response{Content: content.String(), Thinking: thinking.String()}, nil
}

func (p *ClaudeProvider) ListModels(ctx context.Context) ([]Model, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, &ConfigurationError{Provider: "Claude", EnvVar: "CLAUDE_API_KEY"}
	}
	url := fmt.Sprintf("%s/models", strings.TrimRight(p.BaseURL, "/"))
	var decoded claudeModelsResp
	if err := doJSON(ctx, p.Client, "Claude", http.MethodGet, url, p.headers(), nil, &decoded); err != nil {
		return nil, err
	}
	out := make([]Model, 0, len(decoded.Data))
	for _, m := range decoded.Data {
		name := m.DisplayName
		if name == "" {
			name = m.ID
		}
		out = append(out, Model{ID: m.ID, Name: name})
		if len(out) >= maxListedModels {
			break
		}
	}
	return out, nil
}

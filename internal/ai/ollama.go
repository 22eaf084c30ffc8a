package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type OllamaProvider struct {
	BaseURL string
	Client  *http.Client
}

type ollamaMsg struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

type ollamaTagsResp struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func NewOllamaProvider(baseURL string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Client:  newHTTPClient(),
	}
}

func (p *OllamaProvider) Chat(ctx context.Context, req Request) (Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = "llama3:latest"
	}

	reqBody := ollamaChatReq{
		Model:  model,
		Stream: false,
		Messages: func() []ollamaMsg {
			out := make([]ollamaMsg, 0, len(req.History)+2)
			if req.ContextPrefix != "" {
				out = append(out, ollamaMsg{Role: "system", Content: req.ContextPrefix})
			}
			for _, m := range req.History {
				out = append(out, ollamaMsg{Role: m.Role, Content: m.Content})
			}
			return append(out, ollamaMsg{Role: "user", Content: req.Prompt})
		}(),
	}

	url := fmt.Sprintf("%s/api/chat", strings.TrimRight(p.BaseURL, "/"))
	var decoded ollamaChatResp
	if err := doJSON(ctx, p.Client, "Ollama", http.MethodPost, url, nil, reqBody, &decoded); err != nil {
		return Response{}, err
	}
	if decoded.Error != "" {
		return Response{}, errors.New(decoded.Error)
	}
	return Response{Content: decoded.Message.Content, Thinking: decoded.Message.Thinking}, nil
}

func (p *OllamaProvider) ListModels(ctx context.Context) ([]Model, error) {
	url := fmt.Sprintf("%s/api/tags", strings.TrimRight(p.BaseURL, "/"))
	var decoded ollamaTagsResp
	if err := doJSON(ctx, p.Client, "Ollama", http.MethodGet, url, nil, nil, &decoded); err != nil {
		return nil, err
	}
	out := make([]Model, 0, len(decoded.Models))
	for _, m := range decoded.Models {
		if m.Name == "" {
			continue
		}
		out = append(out, Model{ID: m.Name, Name: m.Name})
		if len(out) >= maxListedModels {
			break
		}
	}
	return out, nil
}

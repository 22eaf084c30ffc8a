package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// maxListedModels bounds live listings so the selection keyboard stays usable.
const maxListedModels = 25

// OpenAICompatProvider talks to any /chat/completions API: OpenAI, Groq,
// NVIDIA NIM and OpenRouter.
type OpenAICompatProvider struct {
	Name    string
	EnvVar  string
	BaseURL string
	APIKey  string
	SiteURL string
	AppName string
	// ModelFilter drops listed models that cannot chat; nil keeps all.
	ModelFilter func(id string) bool
	Client      *http.Client
}

type openAIMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatReq struct {
	Model     string      `json:"model"`
	Messages  []openAIMsg `json:"messages"`
	MaxTokens int         `json:"max_tokens,omitempty"`
	Stream    bool        `json:"stream"`
}

type openAIChatResp struct {
	Choices []struct {
		Message struct {
			Role             string `json:"role"`
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content,omitempty"`
			Reasoning        string `json:"reasoning,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openAIModelsResp struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name,omitempty"`
	} `json:"data"`
}

func NewOpenAICompatProvider(name, envVar, baseURL, apiKey string) *OpenAICompatProvider {
	return &OpenAICompatProvider{
		Name:    name,
		EnvVar:  envVar,
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(),
	}
}

func NewOpenAIProvider(baseURL, apiKey string) *OpenAICompatProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	p := NewOpenAICompatProvider("OpenAI", "OPENAI_API_KEY", baseURL, apiKey)
	p.ModelFilter = func(id string) bool {
		return strings.HasPrefix(id, "gpt-") || strings.HasPrefix(id, "o1") ||
			strings.HasPrefix(id, "o3") || strings.HasPrefix(id, "o4")
	}
	return p
}

func NewGroqProvider(baseURL, apiKey string) *OpenAICompatProvider {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	p := NewOpenAICompatProvider("Groq", "GROQ_API_KEY", baseURL, apiKey)
	p.ModelFilter = func(id string) bool {
		return !strings.Contains(id, "whisper") && !strings.Contains(id, "guard")
	}
	return p
}

func NewNvidiaProvider(baseURL, apiKey string) *OpenAICompatProvider {
	if baseURL == "" {
		baseURL = "https://integrate.api.nvidia.com/v1"
	}
	p := NewOpenAICompatProvider("NVIDIA", "NVIDIA_API_KEY", baseURL, apiKey)
	p.ModelFilter = func(id string) bool {
		return strings.Contains(id, "instruct") || strings.Contains(id, "r1")
	}
	return p
}

func NewOpenRouterProvider(baseURL, apiKey, siteURL, appName string) *OpenAICompatProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	p := NewOpenAICompatProvider("OpenRouter", "OPENROUTER_API_KEY", baseURL, apiKey)
	p.SiteURL = siteURL
	p.AppName = appName
	return p
}

func (p *OpenAICompatProvider) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + p.APIKey,
		"HTTP-Referer":  p.SiteURL,
		"X-Title":       p.AppName,
	}
}

func (p *OpenAICompatProvider) Chat(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return Response{}, &ConfigurationError{Provider: p.Name, EnvVar: p.EnvVar}
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return Response{}, fmt.Errorf("%s: model is required", strings.ToLower(p.Name))
	}

	// The summary goes into a dedicated system slot.
	msgs := make([]openAIMsg, 0, len(req.History)+2)
	if req.ContextPrefix != "" {
		msgs = append(msgs, openAIMsg{Role: "system", Content: req.ContextPrefix})
	}
	for _, m := range req.History {
		msgs = append(msgs, openAIMsg{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, openAIMsg{Role: "user", Content: req.Prompt})

	reqBody := openAIChatReq{
		Model:     model,
		Messages:  msgs,
		MaxTokens: 4096,
		Stream:    false,
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	var decoded openAIChatResp
	if err := doJSON(ctx, p.Client, p.Name, http.MethodPost, url, p.headers(), reqBody, &decoded); err != nil {
		return Response{}, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return Response{}, &ProviderError{Provider: p.Name, StatusCode: http.StatusOK, Body: decoded.Error.Message}
	}
	if len(decoded.Choices) == 0 {
		return Response{}, errors.New(strings.ToLower(p.Name) + ": empty response")
	}

	msg := decoded.Choices[0].Message
	thinking := msg.ReasoningContent
	if thinking == "" {
		thinking = msg.Reasoning
	}
	return Response{Content: msg.Content, Thinking: thinking}, nil
}

func (p *OpenAICompatProvider) ListModels(ctx context.Context) ([]Model, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, &ConfigurationError{Provider: p.Name, EnvVar: p.EnvVar}
	}
	url := fmt.Sprintf("%s/models", strings.TrimRight(p.BaseURL, "/"))
	var decoded openAIModelsResp
	if err := doJSON(ctx, p.Client, p.Name, http.MethodGet, url, p.headers(), nil, &decoded); err != nil {
		return nil, err
	}

	out := make([]Model, 0, len(decoded.Data))
	for _, m := range decoded.Data {
		if m.ID == "" || (p.ModelFilter != nil && !p.ModelFilter(m.ID)) {
			continue
		}
		name := m.Name
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

package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GeminiProvider has no system role: the context prefix is prepended to the
// user prompt and assistant turns are sent with role "model".
type GeminiProvider struct {
	BaseURL        string
	APIKey         string
	ThinkingBudget int
	Client         *http.Client
}

type geminiPart struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiThinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts"`
}

type geminiGenerationConfig struct {
	ThinkingConfig *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiReq struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResp struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiModelsResp struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

func NewGeminiProvider(baseURL, apiKey string) *GeminiProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GeminiProvider{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		ThinkingBudget: 1024,
		Client:         newHTTPClient(),
	}
}

func (p *GeminiProvider) Chat(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return Response{}, &ConfigurationError{Provider: "Gemini", EnvVar: "GEMINI_API_KEY"}
	}

	contents := make([]geminiContent, 0, len(req.History)+1)
	for _, m := range req.History {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: req.ContextPrefix + req.Prompt}},
	})

	body := geminiReq{Contents: contents}
	if p.ThinkingBudget > 0 {
		body.GenerationConfig = &geminiGenerationConfig{
			ThinkingConfig: &geminiThinkingConfig{ThinkingBudget: p.ThinkingBudget, IncludeThoughts: true},
		}
	}

	u := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(p.BaseURL, "/"), url.PathEscape(req.Model))

	var decoded geminiResp
	if err := doJSON(ctx, p.Client, "Gemini", http.MethodPost, u, p.authHeaders(), body, &decoded); err != nil {
		return Response{}, err
	}

	var content, thinking strings.Builder
	if len(decoded.Candidates) > 0 {
		for _, part := range decoded.Candidates[0].Content.Parts {
			if part.Thought {
				thinking.WriteString(part.Text)
			} else {
				content.WriteString(part.Text)
			}
		}
	}
	return Response{Content: content.String(), Thinking: thinking.String()}, nil
}

func (p *GeminiProvider) ListModels(ctx context.Context) ([]Model, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, &ConfigurationError{Provider: "Gemini", EnvVar: "GEMINI_API_KEY"}
	}
	u := strings.TrimRight(p.BaseURL, "/") + "/models"

	var decoded geminiModelsResp
	if err := doJSON(ctx, p.Client, "Gemini", http.MethodGet, u, p.authHeaders(), nil, &decoded); err != nil {
		return nil, err
	}

	out := make([]Model, 0, len(decoded.Models))
	for _, m := range decoded.Models {
		if !supports(m.SupportedGenerationMethods, "generateContent") {
			continue
		}
		id := strings.TrimPrefix(m.Name, "models/")
		name := m.DisplayName
		if name == "" {
			name = id
		}
		out = append(out, Model{ID: id, Name: name})
		if len(out) >= maxListedModels {
			break
		}
	}
	return out, nil
}

// authHeaders keeps the key out of the URL, which transport errors echo.
func (p *GeminiProvider) authHeaders() map[string]string {
	return map[string]string{"x-goog-api-key": p.APIKey}
}

func supports(methods []string, want string) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}

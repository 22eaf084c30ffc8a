package ai

// Static model tables. Short names are what the legacy set_model_<short>
// callback carries.
var (
	GeminiInfo = Info{
		Key:          "gemini",
		Name:         "Gemini",
		DefaultModel: "gemini-2.0-flash",
		Models: []Model{
			{ID: "gemini-2.0-flash", Name: "flash"},
			{ID: "gemini-2.0-flash-lite", Name: "flash-lite"},
			{ID: "gemini-2.5-pro-preview-06-05", Name: "pro"},
		},
	}
	OpenAIInfo = Info{
		Key:          "openai",
		Name:         "OpenAI",
		DefaultModel: "gpt-4o-mini",
		Models: []Model{
			{ID: "gpt-4o", Name: "gpt-4o"},
			{ID: "gpt-4o-mini", Name: "gpt-4o-mini"},
			{ID: "gpt-4-turbo", Name: "gpt-4-turbo"},
		},
	}
	ClaudeInfo = Info{
		Key:          "claude",
		Name:         "Claude",
		DefaultModel: "claude-sonnet-4-20250514",
		Models: []Model{
			{ID: "claude-sonnet-4-20250514", Name: "sonnet"},
			{ID: "claude-3-5-haiku-20241022", Name: "haiku"},
			{ID: "claude-3-opus-20240229", Name: "opus"},
		},
	}
	GroqInfo = Info{
		Key:          "groq",
		Name:         "Groq",
		DefaultModel: "llama-3.3-70b-versatile",
		Models: []Model{
			{ID: "llama-3.3-70b-versatile", Name: "llama-70b"},
			{ID: "llama-3.1-8b-instant", Name: "llama-8b"},
			{ID: "mixtral-8x7b-32768", Name: "mixtral"},
		},
	}
	NvidiaInfo = Info{
		Key:          "nvidia",
		Name:         "NVIDIA",
		DefaultModel: "meta/llama-3.1-70b-instruct",
		Models: []Model{
			{ID: "meta/llama-3.1-70b-instruct", Name: "llama-70b"},
			{ID: "meta/llama-3.1-8b-instruct", Name: "llama-8b"},
			{ID: "deepseek-ai/deepseek-r1", Name: "deepseek-r1"},
		},
	}
	OpenRouterInfo = Info{
		Key:          "openrouter",
		Name:         "OpenRouter",
		DefaultModel: "openrouter/auto",
		Models:       []Model{{ID: "openrouter/auto", Name: "auto"}},
	}
	OllamaInfo = Info{
		Key:          "ollama",
		Name:         "Ollama",
		DefaultModel: "llama3:latest",
		Models:       []Model{{ID: "llama3:latest", Name: "llama3"}},
	}
)

// Endpoints carries credentials and base-URL overrides for the built-in
// providers. An empty base URL selects the public endpoint.
type Endpoints struct {
	GeminiKey, GeminiBaseURL         string
	OpenAIKey, OpenAIBaseURL         string
	ClaudeKey, ClaudeBaseURL         string
	GroqKey, GroqBaseURL             string
	NvidiaKey, NvidiaBaseURL         string
	OpenRouterKey, OpenRouterBaseURL string
	OpenRouterSiteURL, AppName       string
	// OllamaBaseURL enables the local provider when set.
	OllamaBaseURL string
}

// RegisterBuiltins registers every built-in provider in menu order. Providers
// without a key are still registered so the user gets a ConfigurationError
// naming the missing variable instead of "Invalid provider".
func RegisterBuiltins(r *Registry, e Endpoints) {
	r.Register(GeminiInfo, NewGeminiProvider(e.GeminiBaseURL, e.GeminiKey))
	r.Register(OpenAIInfo, NewOpenAIProvider(e.OpenAIBaseURL, e.OpenAIKey))
	r.Register(ClaudeInfo, NewClaudeProvider(e.ClaudeBaseURL, e.ClaudeKey))
	r.Register(GroqInfo, NewGroqProvider(e.GroqBaseURL, e.GroqKey))
	r.Register(NvidiaInfo, NewNvidiaProvider(e.NvidiaBaseURL, e.NvidiaKey))
	r.Register(OpenRouterInfo, NewOpenRouterProvider(e.OpenRouterBaseURL, e.OpenRouterKey, e.OpenRouterSiteURL, e.AppName))
	if e.OllamaBaseURL != "" {
		r.Register(OllamaInfo, NewOllamaProvider(e.OllamaBaseURL))
	}
}

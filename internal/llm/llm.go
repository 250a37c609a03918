package llm

import "fmt"

type compatibleProvider struct {
	baseURL string
	model   string
}

// OpenAI-compatible providers with their base URLs and the model used when
// none is configured.
var openAICompatibleProviders = map[string]compatibleProvider{
	"openrouter": {"https://openrouter.ai/api/v1", "anthropic/claude-sonnet-4-5"},
	"mistral":    {"https://api.mistral.ai/v1", "mistral-large-latest"},
	"groq":       {"https://api.groq.com/openai/v1", "llama-3.3-70b-versatile"},
	"together":   {"https://api.together.xyz/v1", "meta-llama/Llama-3.3-70B-Instruct-Turbo"},
	"deepseek":   {"https://api.deepseek.com/v1", "deepseek-chat"},
}

func New(cfg Config) (LLM, error) {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	switch cfg.Provider {
	case "claude":
		return newClaude(cfg.APIKey, cfg.Model, retries), nil
	case "openai":
		baseURL := cfg.BaseURL

		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}

		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}

		return newOpenAICompatible("openai", cfg.APIKey, baseURL, model, retries), nil
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}

		model := cfg.Model
		if model == "" {
			model = "qwen2.5-coder:7b"
		}

		// Ollama's OpenAI-compatible endpoint
		return newOpenAICompatible("ollama", "ollama", baseURL+"/v1", model, retries), nil
	default:
		if p, ok := openAICompatibleProviders[cfg.Provider]; ok {
			baseURL, model := p.baseURL, p.model
			if cfg.BaseURL != "" {
				baseURL = cfg.BaseURL
			}
			if cfg.Model != "" {
				model = cfg.Model
			}
			return newOpenAICompatible(cfg.Provider, cfg.APIKey, baseURL, model, retries), nil
		}
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// KnownProviders returns all known provider IDs
func KnownProviders() []string {
	providers := []string{"claude", "openai", "ollama"}
	for p := range openAICompatibleProviders {
		providers = append(providers, p)
	}
	return providers
}

// IsKnownProvider checks if a provider is recognized
func IsKnownProvider(provider string) bool {
	switch provider {
	case "claude", "openai", "ollama":
		return true
	default:
		_, ok := openAICompatibleProviders[provider]
		return ok
	}
}

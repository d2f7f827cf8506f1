package backend

import (
	"fmt"
	"os"
)

// Supported chat-completion providers
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderGrok      = "grok"
	ProviderOpenAI    = "openai"
)

// Providers lists every supported provider name
var Providers = []string{ProviderOllama, ProviderAnthropic, ProviderGrok, ProviderOpenAI}

// Settings selects and addresses one provider. Empty fields take the
// provider defaults.
type Settings struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int
}

type providerDefaults struct {
	baseURL   string
	model     string
	apiKeyEnv string
}

var defaults = map[string]providerDefaults{
	ProviderOllama:    {baseURL: "http://localhost:11434", model: "llama3:latest"},
	ProviderAnthropic: {baseURL: "https://api.anthropic.com", model: "claude-sonnet-4-20250514", apiKeyEnv: "ANTHROPIC_API_KEY"},
	ProviderGrok:      {baseURL: "https://api.grok.x.ai", model: "grok-1", apiKeyEnv: "GROK_API_KEY"},
	ProviderOpenAI:    {baseURL: "https://api.openai.com", model: "gpt-3.5-turbo", apiKeyEnv: "OPENAI_API_KEY"},
}

// IsProvider reports whether name is a supported provider
func IsProvider(name string) bool {
	_, ok := defaults[name]
	return ok
}

// withDefaults fills empty settings and checks the API key requirement
func (s Settings) withDefaults() (Settings, error) {
	d, ok := defaults[s.Provider]
	if !ok {
		return s, fmt.Errorf("unknown provider: %s", s.Provider)
	}
	if s.BaseURL == "" {
		s.BaseURL = d.baseURL
	}
	if s.Model == "" {
		s.Model = d.model
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = 1024
	}
	if s.APIKey == "" && d.apiKeyEnv != "" {
		s.APIKey = os.Getenv(d.apiKeyEnv)
		if s.APIKey == "" {
			return s, fmt.Errorf("%s not set", d.apiKeyEnv)
		}
	}
	return s, nil
}

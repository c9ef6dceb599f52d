package llm

import "strings"

const defaultOllamaURL = "http://localhost:11434"

// NewOllamaProvider targets Ollama's OpenAI-compatible endpoint. Ollama
// ignores the API key but the client requires one.
func NewOllamaProvider(config Config) (*OpenAIProvider, error) {
	base := strings.TrimSuffix(config.BaseURL, "/")
	if base == "" {
		base = defaultOllamaURL
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	config.BaseURL = base
	if config.APIKey == "" {
		config.APIKey = "ollama"
	}
	if config.Timeout == 0 {
		config.Timeout = 120
	}
	return newCompatibleProvider("ollama", config), nil
}

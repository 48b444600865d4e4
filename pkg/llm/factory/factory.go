package factory

import (
	"fmt"

	"rizal-chat-be/pkg/llm"
	"rizal-chat-be/pkg/llm/ollama"
	"rizal-chat-be/pkg/llm/openrouter"
)

func NewCompletionProvider(providerType, modelName, apiKey, baseURL, referer, title string) (llm.CompletionProvider, error) {
	switch providerType {
	case "openrouter":
		return openrouter.NewOpenRouterProvider(apiKey, modelName, referer, title), nil
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", providerType)
	}
}

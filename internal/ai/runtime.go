package ai

import "context"

// Runtime is implemented by the chat completion backends (OpenRouter,
// OpenAI and a local Ollama).
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers accepted by the "provider" config key.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderOllama     = "ollama"
)

// Providers lists the supported provider names in display order.
func Providers() []string {
	return []string{ProviderOpenRouter, ProviderOpenAI, ProviderOllama}
}

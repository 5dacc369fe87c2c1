package core

import "context"

// EmbeddingProvider turns texts into vectors, one per input, in input order.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatMessage is one entry of a completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionOptions carries per-tenant overrides. Empty fields use the
// provider defaults.
type CompletionOptions struct {
	Model  string
	APIKey string
}

type LLMProvider interface {
	Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error)
}

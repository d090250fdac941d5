// Package llm — Provider interface.
// Adapters (Ollama, OpenAI-compatible) implement this interface so the rest
// of the application is never coupled to a specific LLM vendor.
package llm

import "context"

// Provider is the model-agnostic interface for LLM operations.
// Both capabilities the orchestrator depends on live here: language
// understanding/generation (ChatCompletion) and text embedding (Embed).
// Every call is I/O against a remote, possibly slow service; adapters own a
// request timeout and callers pass a context for cancellation on top.
type Provider interface {
	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed computes dense vector representations for a batch of texts.
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)

	// ModelInfo returns static metadata about the provider/models.
	ModelInfo() ModelMeta

	// HealthCheck returns nil if the provider is reachable and operational.
	HealthCheck(ctx context.Context) error
}

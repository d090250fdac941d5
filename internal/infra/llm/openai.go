// Package llm — OpenAI-compatible HTTP adapter.
// Works against api.openai.com and any server speaking the same protocol.
// Endpoints used:
//   - POST /chat/completions — non-streaming chat completion
//   - POST /embeddings       — batch embedding
//   - GET  /models           — health check
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenAIProvider implements Provider against an OpenAI-compatible API.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	httpClient *http.Client
}

// NewOpenAIProvider creates an OpenAIProvider with a 30s default timeout.
func NewOpenAIProvider(baseURL, apiKey, chatModel, embedModel string) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ─── internal OpenAI JSON types ─────────────────────────────────────────────

type openaiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openaiChatMessage `json:"messages"`
	Temperature float32             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message      openaiChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type openaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// ─── Provider implementation ────────────────────────────────────────────────

// ChatCompletion performs a non-streaming chat via POST /chat/completions.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.chatModel
	}

	msgs := make([]openaiChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openaiChatMessage(m)
	}

	body, err := json.Marshal(openaiChatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var out openaiChatResponse
	err = withRetry(ctx, func() error {
		return p.postJSON(ctx, "/chat/completions", body, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openai chat: empty choices")
	}
	return &ChatResponse{
		Content:    out.Choices[0].Message.Content,
		StopReason: out.Choices[0].FinishReason,
		Tokens:     out.Usage.TotalTokens,
	}, nil
}

// Embed computes embeddings in a single batch call via POST /embeddings.
// Responses arrive index-tagged; order them back into request order.
func (p *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if len(req.Texts) == 0 {
		return &EmbedResponse{Embeddings: [][]float32{}}, nil
	}

	model := req.Model
	if model == "" {
		model = p.embedModel
	}

	body, err := json.Marshal(openaiEmbedRequest{Model: model, Input: req.Texts})
	if err != nil {
		return nil, err
	}

	var out openaiEmbedResponse
	err = withRetry(ctx, func() error {
		return p.postJSON(ctx, "/embeddings", body, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(out.Data) != len(req.Texts) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d texts", len(out.Data), len(req.Texts))
	}

	embeddings := make([][]float32, len(req.Texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, fmt.Errorf("openai embed: vector index %d out of range", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return &EmbedResponse{Embeddings: embeddings, Tokens: out.Usage.TotalTokens}, nil
}

// ModelInfo returns static metadata for this provider.
func (p *OpenAIProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ChatModel:  p.chatModel,
		EmbedModel: p.embedModel,
		Provider:   "openai",
		MaxTokens:  128000,
	}
}

// HealthCheck calls GET /models — returns nil if the API is reachable.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("openai healthcheck: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// postJSON sends body to baseURL+path and decodes the JSON response into out.
func (p *OpenAIProvider) postJSON(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("openai post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai post %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("openai post %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package embeddings

import (
	"context"
	"fmt"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"
)

// RemoteEncoder calls an OpenAI-compatible embeddings endpoint.
type RemoteEncoder struct {
	provider string
	model    string
	client   *gopenai.Client
}

// NewRemoteEncoder creates an encoder for the endpoint at baseURL.
func NewRemoteEncoder(provider, baseURL, apiKey, model string) (*RemoteEncoder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%s API key is not set", provider)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%s base URL is not set", provider)
	}

	cfg := gopenai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")

	return &RemoteEncoder{
		provider: provider,
		model:    model,
		client:   gopenai.NewClientWithConfig(cfg),
	}, nil
}

// Model returns the model id sent to the endpoint.
func (e *RemoteEncoder) Model() string {
	return e.model
}

// Encode requests embeddings for texts. Results are placed by their index
// since providers do not promise to return them in order.
func (e *RemoteEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, gopenai.EmbeddingRequest{
		Input: texts,
		Model: gopenai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%s embeddings request failed: %w", e.provider, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d inputs",
			e.provider, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("%s returned invalid embedding index %d", e.provider, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Close is a no-op; the HTTP client holds no per-model resources.
func (e *RemoteEncoder) Close() error {
	return nil
}

// JinaModelID maps a configured jina model name to the API model id.
func JinaModelID(model string) string {
	return strings.TrimPrefix(model, "jinaai/")
}

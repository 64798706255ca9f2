package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"

	"github.com/oswaldbot/relay-go/pkg/embedder"
)

// Client is an OpenAI-compatible embedder.
// It implements the embedder.Provider interface on the /v1/embeddings API, which
// local servers (Ollama, llama.cpp, text-embeddings-inference) also expose.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// Config is the configuration for the OpenAI-compatible embedder.
// APIKey: API key (may be a placeholder for local servers)
// Model: embedding model name, defaults to "nomic-embed-text"
// BaseURL: API base URL, defaults to OpenAI official address
// Dimensions: vector dimensions, defaults to 768
// Timeout: per-request timeout, defaults to 60 seconds
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
}

// NewClient creates a new OpenAI-compatible embedder.
func NewClient(cfg *Config) (*Client, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 768
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
	}, nil
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch converts multiple texts to vectors in batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, errors.New("embedding generation failed: no input texts")
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding generation failed: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	// Results carry their input position; servers are not required to keep order.
	embeddings := make([][]float64, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) || embeddings[data.Index] != nil {
			return nil, fmt.Errorf("embedding generation failed: unexpected result index %d", data.Index)
		}
		embeddings[data.Index] = lo.Map(data.Embedding, func(v float32, _ int) float64 {
			return float64(v)
		})
	}

	if err := embedder.CheckDimensions(c.dimensions, embeddings...); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}

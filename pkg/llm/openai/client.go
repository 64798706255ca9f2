package openai

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oswaldbot/relay-go/pkg/llm"
)

// Client is an OpenAI-compatible generation client.
// It implements the llm.Provider interface on the chat-completions API, which
// also lets the relay talk to vLLM, llama.cpp server or Ollama's /v1 endpoint.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for the OpenAI-compatible client.
// APIKey: API key (may be a placeholder for local servers)
// Model: default model name
// BaseURL: API base URL, defaults to OpenAI official address
// Timeout: per-request timeout, defaults to 60 seconds
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new OpenAI-compatible generation client.
//
// Args:
//   - cfg: client configuration; BaseURL points it at a local server
//
// Returns:
//   - *Client: client instance
//   - error: always nil; kept so every provider constructor has the same shape
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

	client := openai.NewClientWithConfig(config)

	return &Client{
		client: client,
		model:  cfg.Model,
	}, nil
}

// Generate sends prompt as a single user message.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - prompt: Complete prompt text, sent verbatim
//   - opts: Optional generation parameters (model, temperature, JSON format, etc.)
//
// Returns:
//   - string: Content of the first choice
//   - error: *llm.ServerError for an error status, *llm.TransportError otherwise
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}
	return c.GenerateWithMessages(ctx, messages, opts...)
}

// GenerateWithMessages generates text from a message list.
// WithJSONFormat requests a json_object response format.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - messages: Ordered system, user and assistant turns
//   - opts: Optional generation parameters (model, temperature, JSON format, etc.)
//
// Returns:
//   - string: Content of the first choice
//   - error: *llm.ServerError for an error status, *llm.TransportError when the
//     server could not be reached or timed out
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	model := c.model
	if options.Model != "" {
		model = options.Model
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stop:        options.Stop,
	}
	if options.JSONFormat {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("llm generation failed: no choices returned from OpenAI API")
	}

	return resp.Choices[0].Message.Content, nil
}

// classify maps go-openai errors onto the llm error taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ServerError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.ServerError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return &llm.TransportError{Endpoint: "chat/completions", Err: err}
}

// Close closes the client connection.
// The OpenAI SDK client does not require explicit closing; this method is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}

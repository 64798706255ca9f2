package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oswaldbot/relay-go/pkg/llm"
)

// maxErrorBody caps how much of a failed response body is kept in a ServerError.
const maxErrorBody = 512

// Client is an Ollama generation client.
// It implements the llm.Provider interface on top of Ollama's /api/generate endpoint,
// which any server honoring the same request/response contract can stand in for.
type Client struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

// Config is the configuration for the Ollama generation client.
// APIKey: optional bearer token for authenticated remote deployments
// Model: default model name, defaults to "joney-bot:latest"
// BaseURL: Ollama service address, defaults to "http://localhost:11434"
// Timeout: per-request timeout, defaults to 60 seconds
// HTTPClient: custom HTTP client; when set, Timeout is ignored
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a new Ollama generation client.
//
// Args:
//   - cfg: Ollama configuration; every field is optional
//
// Returns:
//   - *Client: Ollama client instance
//   - error: always nil; kept so every provider constructor has the same shape
func NewClient(cfg *Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	model := cfg.Model
	if model == "" {
		model = "joney-bot:latest"
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Client{
		client:  client,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
	}, nil
}

type generateRequest struct {
	Model     string                 `json:"model"`
	Prompt    string                 `json:"prompt"`
	System    string                 `json:"system,omitempty"`
	Stream    bool                   `json:"stream"`
	Format    string                 `json:"format,omitempty"`
	KeepAlive *json.RawMessage       `json:"keep_alive,omitempty"`
	Options   map[string]interface{} `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends one prompt to /api/generate and returns the model's text.
//
// An empty response string is returned as-is; deciding what an empty answer
// means is left to the caller.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - prompt: Complete prompt text, sent verbatim
//   - opts: Optional generation parameters (model, temperature, JSON format, keep-alive, etc.)
//
// Returns:
//   - string: The "response" field of the reply
//   - error: *llm.ServerError for a non-2xx status, *llm.TransportError when the
//     endpoint is unreachable or the request or body read times out
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return c.generate(ctx, "", prompt, opts)
}

// GenerateWithMessages folds system messages into Ollama's "system" field and
// the remaining turns into the prompt, one "role: content" line per message.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - messages: Message list; a single non-system turn is sent without a role prefix
//   - opts: Optional generation parameters (model, temperature, JSON format, keep-alive, etc.)
//
// Returns:
//   - string: The "response" field of the reply
//   - error: Same taxonomy as Generate
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	var system []string
	var rest []llm.Message
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg.Content)
		} else {
			rest = append(rest, msg)
		}
	}

	// A lone user turn is sent verbatim.
	turns := make([]string, 0, len(rest))
	for _, msg := range rest {
		if len(rest) == 1 {
			turns = append(turns, msg.Content)
		} else {
			turns = append(turns, fmt.Sprintf("%s: %s", msg.Role, msg.Content))
		}
	}
	return c.generate(ctx, strings.Join(system, "\n\n"), strings.Join(turns, "\n"), opts)
}

func (c *Client) generate(ctx context.Context, system, prompt string, opts []llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	model := c.model
	if options.Model != "" {
		model = options.Model
	}

	reqOptions := map[string]interface{}{
		"temperature": options.Temperature,
		"top_p":       options.TopP,
	}
	if options.MaxTokens > 0 {
		reqOptions["num_predict"] = options.MaxTokens
	}
	if len(options.Stop) > 0 {
		reqOptions["stop"] = options.Stop
	}

	reqBody := generateRequest{
		Model:   model,
		Prompt:  prompt,
		System:  system,
		Stream:  false,
		Options: reqOptions,
	}
	if options.JSONFormat {
		reqBody.Format = "json"
	}
	if options.KeepAlive != "" {
		reqBody.KeepAlive = keepAliveValue(options.KeepAlive)
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &llm.TransportError{Endpoint: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &llm.ServerError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var response generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		if llm.Interrupted(err) {
			return "", &llm.TransportError{Endpoint: url, Err: err}
		}
		return "", fmt.Errorf("decode response: %w", err)
	}

	return response.Response, nil
}

// keepAliveValue encodes keep_alive the way Ollama expects: bare integers are
// seconds, anything else ("5m", "1h") is a duration string.
func keepAliveValue(v string) *json.RawMessage {
	var raw json.RawMessage
	if isInteger(v) {
		raw = json.RawMessage(v)
	} else {
		quoted, _ := json.Marshal(v)
		raw = quoted
	}
	return &raw
}

func isInteger(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Close closes the client connection.
// HTTP client does not require explicit closing; this method is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}

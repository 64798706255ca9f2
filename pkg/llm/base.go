// Package llm provides the generation client abstraction used by the relay.
//
// It defines the Provider interface that every language-model backend satisfies,
// along with message types and per-call generation options. Providers never retry;
// retry or fallback policy belongs to the caller.
package llm

import "context"

// Provider defines the interface for language-model backends.
//
// Implementations (Ollama, OpenAI-compatible servers) report failures as
// *TransportError when the endpoint cannot be reached in time and as
// *ServerError when it answers with a non-success status.
type Provider interface {
	// Generate generates text from a single prompt.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - prompt: The complete prompt text
	//   - opts: Optional generation parameters (model, temperature, JSON format, etc.)
	//
	// Returns the generated text and any error.
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// GenerateWithMessages generates text from a system/user message sequence.
	GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	// Close closes the provider and releases resources.
	Close() error
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	// Role is the message role: "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message content text.
	Content string `json:"content"`
}

// GenerateOptions contains options for text generation.
type GenerateOptions struct {
	// Model overrides the provider's default model for one call.
	Model string

	// Temperature controls randomness (0.0-2.0). Higher = more random.
	Temperature float64

	// MaxTokens limits the maximum number of tokens in the response.
	// Zero leaves the limit to the server.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0).
	TopP float64

	// Stop contains stop sequences that will end generation.
	Stop []string

	// JSONFormat asks the server to constrain output to a JSON object.
	JSONFormat bool

	// KeepAlive is passed to servers that keep models resident ("0" unloads
	// the model right after the call). Empty leaves the server default.
	KeepAlive string
}

// GenerateOption is a function type for configuring generation options.
type GenerateOption func(*GenerateOptions)

// WithModel overrides the model used for a single call.
//
// Example:
//
//	text, _ := provider.Generate(ctx, "Hello", llm.WithModel("llama3.1:8b"))
func WithModel(model string) GenerateOption {
	return func(opts *GenerateOptions) {
		if model != "" {
			opts.Model = model
		}
	}
}

// WithTemperature sets the temperature for text generation.
//
// Temperature controls randomness: 0.0 = deterministic, 2.0 = very random.
func WithTemperature(temp float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens in the response.
func WithMaxTokens(max int) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the top-p (nucleus sampling) parameter.
func WithTopP(topP float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.TopP = topP
	}
}

// WithStop sets stop sequences.
func WithStop(stop ...string) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Stop = stop
	}
}

// WithJSONFormat requests strict JSON output.
func WithJSONFormat() GenerateOption {
	return func(opts *GenerateOptions) {
		opts.JSONFormat = true
	}
}

// WithKeepAlive sets how long the server keeps the model loaded after the call.
func WithKeepAlive(keepAlive string) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.KeepAlive = keepAlive
	}
}

// ApplyGenerateOptions applies a slice of GenerateOption functions to create GenerateOptions.
//
// Default values: Temperature=0.7, TopP=1.0, MaxTokens=0 (server default).
func ApplyGenerateOptions(opts []GenerateOption) *GenerateOptions {
	options := &GenerateOptions{
		Temperature: 0.7,
		TopP:        1.0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

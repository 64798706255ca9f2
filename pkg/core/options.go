package core

import (
	"log/slog"

	"github.com/oswaldbot/relay-go/pkg/embedder"
	"github.com/oswaldbot/relay-go/pkg/llm"
	"github.com/oswaldbot/relay-go/pkg/profile"
	"github.com/oswaldbot/relay-go/pkg/search"
	"github.com/oswaldbot/relay-go/pkg/storage"
)

// ClientOption is a function type for configuring a Client.
//
// Options replace components that NewClient would otherwise build from the
// configuration. The client takes ownership of everything passed in and closes
// it on Close.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger   *slog.Logger
	llm      llm.Provider
	embedder embedder.Provider
	store    storage.ChatLogStore
	profiles profile.Store
	executor search.Executor
}

// WithLogger sets the logger used by the client and its components.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(opts *clientOptions) {
		opts.logger = logger
	}
}

// WithLLM sets the generation provider.
//
// Example:
//
//	client, _ := core.NewClient(config, core.WithLLM(provider))
func WithLLM(provider llm.Provider) ClientOption {
	return func(opts *clientOptions) {
		opts.llm = provider
	}
}

// WithEmbedder sets the embedding provider used for persistence.
func WithEmbedder(provider embedder.Provider) ClientOption {
	return func(opts *clientOptions) {
		opts.embedder = provider
	}
}

// WithChatLogStore sets the chat-log store.
func WithChatLogStore(store storage.ChatLogStore) ClientOption {
	return func(opts *clientOptions) {
		opts.store = store
	}
}

// WithProfileStore sets the profile store. It has no effect when profiles
// are disabled in the configuration.
func WithProfileStore(store profile.Store) ClientOption {
	return func(opts *clientOptions) {
		opts.profiles = store
	}
}

// WithSearchExecutor sets the search executor.
func WithSearchExecutor(executor search.Executor) ClientOption {
	return func(opts *clientOptions) {
		opts.executor = executor
	}
}

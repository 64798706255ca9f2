// Package storage persists chat exchanges together with their embeddings.
//
// It defines the ChatLogStore interface that every backend satisfies. Chat logs
// are write-once: the store only ever inserts and reads them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTableName is the table chat logs are written to.
const DefaultTableName = "chat_logs"

// ErrDimensionMismatch is returned when an embedding does not have the
// configured number of dimensions.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ChatLog is one persisted prompt/response exchange.
type ChatLog struct {
	// ID is assigned by the caller before insertion.
	ID int64

	// Username identifies the user who sent the prompt.
	Username string

	// Prompt is the user's prompt text.
	Prompt string

	// Response is the generated reply.
	Response string

	// PromptEmbedding is the vector embedding of Prompt.
	PromptEmbedding []float64

	// ResponseEmbedding is the vector embedding of Response.
	ResponseEmbedding []float64

	// CreatedAt is when the exchange happened. Zero means now.
	CreatedAt time.Time
}

// ChatLogStore defines the interface for chat-log persistence backends.
type ChatLogStore interface {
	// Insert stores a chat log. Both embeddings must have the store's dimension.
	Insert(ctx context.Context, log *ChatLog) error

	// ListByUser returns up to limit logs for username, newest first.
	ListByUser(ctx context.Context, username string, limit int) ([]*ChatLog, error)

	// CountByUser returns the number of logs stored for username.
	CountByUser(ctx context.Context, username string) (int, error)

	// ListUsernames returns every username with at least one log, sorted.
	ListUsernames(ctx context.Context) ([]string, error)

	// Close closes the store and releases resources.
	Close() error
}

// Validate checks that log is insertable into a store with dims-sized vectors.
// A dims of zero or less disables the dimension check.
func Validate(log *ChatLog, dims int) error {
	if log == nil {
		return errors.New("nil chat log")
	}
	if log.Username == "" {
		return errors.New("chat log has no username")
	}
	if dims <= 0 {
		return nil
	}
	if len(log.PromptEmbedding) != dims {
		return fmt.Errorf("%w: prompt embedding has %d dimensions, want %d", ErrDimensionMismatch, len(log.PromptEmbedding), dims)
	}
	if len(log.ResponseEmbedding) != dims {
		return fmt.Errorf("%w: response embedding has %d dimensions, want %d", ErrDimensionMismatch, len(log.ResponseEmbedding), dims)
	}
	return nil
}

// Package profile maintains free-text behavioral profiles of chat users.
//
// A profile is created once a user has enough chat history and is afterwards
// merged with new observations, never replaced wholesale and never deleted here.
package profile

import (
	"context"
	"time"

	"github.com/oswaldbot/relay-go/pkg/storage"
)

// Profile is the stored behavioral summary of one user.
type Profile struct {
	// Username identifies the user this profile belongs to.
	Username string `json:"username"`

	// Content is the free-text summary.
	Content string `json:"content"`

	// CreatedAt is when the profile was first created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the profile was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for profile persistence.
//
// Implementations can use different storage backends (SQLite, PostgreSQL).
type Store interface {
	// SaveProfile creates or replaces the profile content for username.
	SaveProfile(ctx context.Context, username, content string) error

	// GetProfile returns the profile for username, or nil if none exists.
	GetProfile(ctx context.Context, username string) (*Profile, error)

	// ListUsernames returns every username with a profile, sorted.
	ListUsernames(ctx context.Context) ([]string, error)

	// Close closes the store and releases resources.
	Close() error
}

// History is the chat-log view the maintainer reads from.
// storage.ChatLogStore satisfies it.
type History interface {
	ListByUser(ctx context.Context, username string, limit int) ([]*storage.ChatLog, error)
	CountByUser(ctx context.Context, username string) (int, error)
	ListUsernames(ctx context.Context) ([]string, error)
}

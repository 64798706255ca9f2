// Package embedder provides interfaces for text embedding providers.
//
// The relay treats embedding as an opaque text-to-vector function: it only needs
// vectors of a fixed dimension to store next to each chat exchange.
package embedder

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a provider yields a vector whose length
// differs from the configured dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Provider defines the interface for embedding providers.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings.
	//
	// The returned slice has the same order and length as texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of embedding vectors produced by this provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}

// CheckDimensions verifies every vector has exactly want components.
func CheckDimensions(want int, vectors ...[]float64) error {
	if want <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(v), want)
		}
	}
	return nil
}

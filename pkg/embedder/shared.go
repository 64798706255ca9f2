package embedder

import (
	"context"
	"errors"
	"sync"
)

// ErrShutdown is returned by a Shared provider used after Shutdown.
var ErrShutdown = errors.New("embedder: shut down")

// Factory builds the underlying embedding provider.
type Factory func() (Provider, error)

// Shared is a process-wide embedding provider that is built at most once.
//
// The first call that needs the provider runs the factory; every later call
// reuses the result, including a failed one. Close does not tear the provider
// down; Shutdown does, once, at process exit. It is safe to call Shutdown
// while other goroutines still hold the Shared.
type Shared struct {
	factory Factory
	dims    int

	once     sync.Once
	provider Provider
	err      error

	shutdownOnce sync.Once
}

// NewShared wraps factory in an init-once provider producing dims-sized vectors.
func NewShared(factory Factory, dims int) *Shared {
	return &Shared{factory: factory, dims: dims}
}

// Init builds the provider now instead of on first use.
func (s *Shared) Init() error {
	_, err := s.get()
	return err
}

func (s *Shared) get() (Provider, error) {
	s.once.Do(func() {
		s.provider, s.err = s.factory()
	})
	return s.provider, s.err
}

// Embed converts a single text to a vector.
func (s *Shared) Embed(ctx context.Context, text string) ([]float64, error) {
	p, err := s.get()
	if err != nil {
		return nil, err
	}
	return p.Embed(ctx, text)
}

// EmbedBatch converts multiple texts to vectors.
func (s *Shared) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	p, err := s.get()
	if err != nil {
		return nil, err
	}
	return p.EmbedBatch(ctx, texts)
}

// Dimensions returns the configured dimension of produced vectors.
func (s *Shared) Dimensions() int {
	return s.dims
}

// Close is a no-op so that components sharing the provider can close their
// handle without affecting the others.
func (s *Shared) Close() error {
	return nil
}

// Shutdown closes the underlying provider if it was ever built. A build that
// is in flight completes first. After Shutdown, a provider that was never
// built never will be, and every call fails with ErrShutdown.
func (s *Shared) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		s.once.Do(func() {
			s.err = ErrShutdown
		})
		if s.provider != nil {
			err = s.provider.Close()
		}
	})
	return err
}

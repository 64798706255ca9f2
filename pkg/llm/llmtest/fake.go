// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/oswaldbot/relay-go/pkg/llm"
)

// Call records one request made to a Provider.
type Call struct {
	Prompt   string
	Messages []llm.Message
	Options  *llm.GenerateOptions
}

// Provider answers every call with Respond, or with Response and Err when
// Respond is nil. It is safe for concurrent use.
type Provider struct {
	Response string
	Err      error
	Respond  func(call Call) (string, error)

	mu     sync.Mutex
	calls  []Call
	closed bool
}

// Generate records the call and returns the scripted answer.
func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return p.answer(ctx, Call{Prompt: prompt, Options: llm.ApplyGenerateOptions(opts)})
}

// GenerateWithMessages records the call and returns the scripted answer.
func (p *Provider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	return p.answer(ctx, Call{Messages: messages, Options: llm.ApplyGenerateOptions(opts)})
}

func (p *Provider) answer(ctx context.Context, call Call) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Respond != nil {
		return p.Respond(call)
	}
	return p.Response, p.Err
}

// Calls returns a copy of the recorded calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Close marks the provider closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Provider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

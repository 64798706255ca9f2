package llm_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oswaldbot/relay-go/pkg/llm"
)

func TestInterrupted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "deadline", err: fmt.Errorf("read body: %w", context.DeadlineExceeded), want: true},
		{name: "cancelled", err: context.Canceled, want: true},
		{name: "network", err: &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}, want: true},
		{name: "payload", err: errors.New("invalid character '<' looking for beginning of value"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, llm.Interrupted(tt.err))
		})
	}
}

func TestTransportError_Timeout(t *testing.T) {
	err := &llm.TransportError{Endpoint: "http://localhost:11434/api/generate", Err: context.DeadlineExceeded}
	assert.True(t, err.Timeout())
	assert.True(t, llm.IsTransport(fmt.Errorf("answer: %w", err)))
	assert.False(t, (&llm.TransportError{Err: errors.New("refused")}).Timeout())
}

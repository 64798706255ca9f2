package bot_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oswaldbot/relay-go/pkg/bot"
	"github.com/oswaldbot/relay-go/pkg/server"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeRelay struct {
	mu        sync.Mutex
	requests  []server.GenerateRequest
	response  string
	err       error
	healthErr []error
}

func (f *fakeRelay) Generate(ctx context.Context, req server.GenerateRequest) (*server.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &server.GenerateResponse{Response: f.response}, nil
}

func (f *fakeRelay) Health(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.healthErr) == 0 {
		return nil
	}
	err := f.healthErr[0]
	f.healthErr = f.healthErr[1:]
	return err
}

type reply struct {
	channel, thread, text string
}

type fakeMessenger struct {
	names   map[string]string
	replies []reply
}

func (m *fakeMessenger) Reply(ctx context.Context, channel, threadTS, text string) error {
	m.replies = append(m.replies, reply{channel, threadTS, text})
	return nil
}

func (m *fakeMessenger) DisplayName(ctx context.Context, userID string) (string, error) {
	if name, ok := m.names[userID]; ok {
		return name, nil
	}
	return "", errors.New("user_not_found")
}

func newBot(relay *fakeRelay) (*bot.Bot, *fakeMessenger) {
	messenger := &fakeMessenger{names: map[string]string{"UALICE": "alice", "UBOB": "bob"}}
	b := bot.NewWithMessenger(relay, messenger, "UBOT", &bot.Config{
		Model:          "llama3",
		HealthInterval: time.Millisecond,
		Logger:         quiet,
	})
	return b, messenger
}

func TestHandle_AnswersInThread(t *testing.T) {
	relay := &fakeRelay{response: "He plays the tuba."}
	b, messenger := newBot(relay)

	b.Handle(context.Background(), bot.Mention{
		User:    "UALICE",
		Text:    "<@UBOT> what does <@UBOB> do?",
		Channel: "C1",
		TS:      "100.1",
	})

	require.Len(t, relay.requests, 1)
	assert.Equal(t, server.GenerateRequest{
		Prompt:   "what does bob do?",
		Username: "alice",
		Model:    "llama3",
		Targets:  []string{"bob"},
	}, relay.requests[0])
	assert.Equal(t, []reply{{"C1", "100.1", "He plays the tuba."}}, messenger.replies)
}

func TestHandle_SplitsLongReplies(t *testing.T) {
	relay := &fakeRelay{response: strings.Repeat("x", 4000)}
	b, messenger := newBot(relay)

	b.Handle(context.Background(), bot.Mention{User: "UALICE", Text: "<@UBOT> talk", Channel: "C1", TS: "1", ThreadTS: "0.5"})

	require.Len(t, messenger.replies, 3)
	for _, r := range messenger.replies {
		assert.Equal(t, "0.5", r.thread)
	}
	assert.Len(t, messenger.replies[2].text, 20)
}

func TestHandle_Ignores(t *testing.T) {
	tests := []struct {
		name    string
		mention bot.Mention
	}{
		{name: "own message", mention: bot.Mention{User: "UBOT", Text: "<@UBOT> hi"}},
		{name: "other bot", mention: bot.Mention{User: "UX", BotID: "B1", Text: "<@UBOT> hi"}},
		{name: "empty prompt", mention: bot.Mention{User: "UALICE", Text: "<@UBOT>   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := &fakeRelay{response: "unused"}
			b, messenger := newBot(relay)
			b.Handle(context.Background(), tt.mention)
			assert.Empty(t, relay.requests)
			assert.Empty(t, messenger.replies)
		})
	}
}

func TestHandle_ErrorReplies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "api error",
			err:  &server.APIError{StatusCode: http.StatusServiceUnavailable, Detail: server.DetailUnreachable},
			want: "An error occurred with the API: Could not connect to the language model service.",
		},
		{
			name: "rate limited",
			err:  &server.APIError{StatusCode: http.StatusTooManyRequests},
			want: bot.ReplyRateLimited,
		},
		{
			name: "relay unreachable",
			err:  errors.New("dial tcp: connection refused"),
			want: bot.ReplyUnreachable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, messenger := newBot(&fakeRelay{err: tt.err})
			b.Handle(context.Background(), bot.Mention{User: "UALICE", Text: "<@UBOT> hi", Channel: "C1", TS: "1"})
			require.Len(t, messenger.replies, 1)
			assert.Equal(t, tt.want, messenger.replies[0].text)
		})
	}
}

func TestHandle_EmptyResponse(t *testing.T) {
	b, messenger := newBot(&fakeRelay{response: "  "})
	b.Handle(context.Background(), bot.Mention{User: "UALICE", Text: "<@UBOT> hi", Channel: "C1", TS: "1"})
	require.Len(t, messenger.replies, 1)
	assert.Equal(t, bot.ReplyEmpty, messenger.replies[0].text)
}

func TestHandle_UnknownUserFallsBackToID(t *testing.T) {
	relay := &fakeRelay{response: "ok"}
	b, _ := newBot(relay)
	b.Handle(context.Background(), bot.Mention{User: "UNEW", Text: "<@UBOT> hi", Channel: "C1", TS: "1"})
	require.Len(t, relay.requests, 1)
	assert.Equal(t, "UNEW", relay.requests[0].Username)
}

func TestWaitForBackend(t *testing.T) {
	down := errors.New("connection refused")

	b, _ := newBot(&fakeRelay{healthErr: []error{down, down}})
	assert.NoError(t, b.WaitForBackend(context.Background()))

	never := make([]error, bot.DefaultHealthRetries)
	for i := range never {
		never[i] = down
	}
	b, _ = newBot(&fakeRelay{healthErr: never})
	err := b.WaitForBackend(context.Background())
	assert.ErrorIs(t, err, down)
}

func TestWaitForBackend_Cancelled(t *testing.T) {
	relay := &fakeRelay{healthErr: []error{errors.New("down"), errors.New("down")}}
	b := bot.NewWithMessenger(relay, &fakeMessenger{}, "UBOT", &bot.Config{HealthInterval: time.Hour, Logger: quiet})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.WaitForBackend(ctx), context.Canceled)
}

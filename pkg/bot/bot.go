// Package bot connects the relay to Slack: it answers app mentions in
// thread by forwarding them to the relay service.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/oswaldbot/relay-go/pkg/server"
)

// Replies sent when the relay cannot answer.
const (
	ReplyEmpty       = "Sorry, I received an empty response."
	ReplyRateLimited = "You are sending requests too quickly! Please wait a moment."
	ReplyUnreachable = "I couldn't connect to my brain (the relay service). Please check if it's running."
	ReplyAPIError    = "An error occurred with the API: %s"
)

// Health-check defaults: up to a minute of polling.
const (
	DefaultHealthRetries  = 12
	DefaultHealthInterval = 5 * time.Second
)

// Relay is the part of the relay service the bot uses.
type Relay interface {
	Generate(ctx context.Context, req server.GenerateRequest) (*server.GenerateResponse, error)
	Health(ctx context.Context) error
}

// Messenger posts replies and looks up user names.
type Messenger interface {
	Reply(ctx context.Context, channel, threadTS, text string) error
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Mention is one message addressed to the bot.
type Mention struct {
	User     string
	BotID    string
	Text     string
	Channel  string
	TS       string
	ThreadTS string
}

// Config contains configuration for the bot.
type Config struct {
	// BotToken is the bot user OAuth token (xoxb-...).
	BotToken string

	// AppToken is the app-level Socket Mode token (xapp-...).
	AppToken string

	// Model overrides the relay's default model.
	Model string

	// ChunkSize is the longest single reply, in runes. Defaults to 1990.
	ChunkSize int

	HealthRetries  int
	HealthInterval time.Duration

	Logger *slog.Logger
}

// Bot answers mentions through the relay.
type Bot struct {
	relay     Relay
	messenger Messenger
	selfID    string
	config    Config
	logger    *slog.Logger
}

// NewWithMessenger creates a bot that posts through messenger and ignores
// mentions of, and messages from, selfID.
func NewWithMessenger(relay Relay, messenger Messenger, selfID string, cfg *Config) *Bot {
	var config Config
	if cfg != nil {
		config = *cfg
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.HealthRetries <= 0 {
		config.HealthRetries = DefaultHealthRetries
	}
	if config.HealthInterval <= 0 {
		config.HealthInterval = DefaultHealthInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		relay:     relay,
		messenger: messenger,
		selfID:    selfID,
		config:    config,
		logger:    logger.With("component", "bot"),
	}
}

// Handle answers one mention. Messages from the bot itself and prompts that
// are empty once the bot's mention is removed are ignored.
func (b *Bot) Handle(ctx context.Context, m Mention) {
	if m.User == b.selfID || m.BotID != "" {
		return
	}

	prompt := StripMention(m.Text, b.selfID)
	prompt, targets := ResolveMentions(prompt, func(userID string) string {
		return b.displayName(ctx, userID)
	})
	if prompt == "" {
		return
	}

	username := b.displayName(ctx, m.User)
	thread := m.ThreadTS
	if thread == "" {
		thread = m.TS
	}
	b.logger.Info("received prompt", "user", username, "channel", m.Channel, "targets", len(targets))

	resp, err := b.relay.Generate(ctx, server.GenerateRequest{
		Prompt:   prompt,
		Username: username,
		Model:    b.config.Model,
		Targets:  targets,
	})
	if err != nil {
		b.logger.Error("relay request failed", "user", username, "error", err)
		b.reply(ctx, m.Channel, thread, errorReply(err))
		return
	}

	text := resp.Response
	if strings.TrimSpace(text) == "" {
		text = ReplyEmpty
	}
	chunks := SplitMessage(text, b.config.ChunkSize)
	if len(chunks) > 1 {
		b.logger.Warn("response too long, splitting", "chunks", len(chunks))
	}
	for _, chunk := range chunks {
		if !b.reply(ctx, m.Channel, thread, chunk) {
			return
		}
	}
}

func (b *Bot) reply(ctx context.Context, channel, thread, text string) bool {
	if err := b.messenger.Reply(ctx, channel, thread, text); err != nil {
		b.logger.Error("failed to post reply", "channel", channel, "error", err)
		return false
	}
	return true
}

func (b *Bot) displayName(ctx context.Context, userID string) string {
	name, err := b.messenger.DisplayName(ctx, userID)
	if err != nil || name == "" {
		b.logger.Warn("could not resolve user name", "user_id", userID, "error", err)
		return userID
	}
	return name
}

// errorReply picks the user-facing reply for a relay failure.
func errorReply(err error) string {
	var apiErr *server.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return ReplyRateLimited
		}
		return fmt.Sprintf(ReplyAPIError, apiErr.Detail)
	}
	return ReplyUnreachable
}

// WaitForBackend polls the relay's health endpoint until it reports ok,
// trying up to HealthRetries times HealthInterval apart.
func (b *Bot) WaitForBackend(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= b.config.HealthRetries; attempt++ {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = b.relay.Health(checkCtx)
		cancel()
		if lastErr == nil {
			b.logger.Info("relay is online and healthy")
			return nil
		}
		b.logger.Debug("relay not ready", "attempt", attempt, "error", lastErr)

		if attempt == b.config.HealthRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.config.HealthInterval):
		}
	}
	return fmt.Errorf("relay did not become healthy after %d attempts: %w", b.config.HealthRetries, lastErr)
}

// slackMessenger posts through the Slack Web API.
type slackMessenger struct {
	api *slack.Client

	mu    sync.Mutex
	names map[string]string
}

func (s *slackMessenger) Reply(ctx context.Context, channel, threadTS, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTS),
	)
	return err
}

func (s *slackMessenger) DisplayName(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	name, ok := s.names[userID]
	s.mu.Unlock()
	if ok {
		return name, nil
	}

	user, err := s.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", err
	}
	name = user.Profile.DisplayName
	if name == "" {
		name = user.RealName
	}
	if name == "" {
		name = user.Name
	}

	s.mu.Lock()
	s.names[userID] = name
	s.mu.Unlock()
	return name, nil
}

// Run connects to Slack over Socket Mode, waits for the relay to become
// healthy and answers app mentions until ctx is cancelled.
func Run(ctx context.Context, relay Relay, cfg *Config) error {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return errors.New("bot: both a bot token and an app-level token are required")
	}

	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("bot: auth test: %w", err)
	}

	b := NewWithMessenger(relay, &slackMessenger{api: api, names: map[string]string{}}, auth.UserID, cfg)
	b.logger.Info("connected to Slack, waiting for relay", "bot_user", auth.User)
	if err := b.WaitForBackend(ctx); err != nil {
		b.logger.Error("relay is not healthy, bot may not function correctly", "error", err)
	}

	client := socketmode.New(api)
	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-client.Events:
				if !ok {
					return
				}
				if mention, ok := b.mentionFrom(client, evt); ok {
					wg.Add(1)
					go func() {
						defer wg.Done()
						b.Handle(ctx, mention)
					}()
				}
			}
		}
	}()

	b.logger.Info("bot is ready, listening for mentions")
	err = client.RunContext(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// mentionFrom acknowledges evt and extracts an app mention from it.
func (b *Bot) mentionFrom(client *socketmode.Client, evt socketmode.Event) (Mention, bool) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		b.logger.Info("socket mode connected")
	case socketmode.EventTypeConnectionError:
		b.logger.Warn("socket mode connection error")
	case socketmode.EventTypeEventsAPI:
		if evt.Request != nil {
			client.Ack(*evt.Request)
		}
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || apiEvent.Type != slackevents.CallbackEvent {
			return Mention{}, false
		}
		ev, ok := apiEvent.InnerEvent.Data.(*slackevents.AppMentionEvent)
		if !ok {
			return Mention{}, false
		}
		return Mention{
			User:     ev.User,
			BotID:    ev.BotID,
			Text:     ev.Text,
			Channel:  ev.Channel,
			TS:       ev.TimeStamp,
			ThreadTS: ev.ThreadTimeStamp,
		}, true
	}
	return Mention{}, false
}

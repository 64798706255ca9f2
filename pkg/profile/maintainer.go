package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/oswaldbot/relay-go/pkg/llm"
	"github.com/oswaldbot/relay-go/pkg/storage"
)

// Defaults.
const (
	DefaultMinHistory   = 5
	DefaultHistoryLimit = 50
)

// ErrEmptyProfile is returned when the model produced no usable profile text.
var ErrEmptyProfile = errors.New("model returned an empty profile")

// Config contains configuration for the profile maintainer.
type Config struct {
	// Model overrides the provider's default model.
	Model string

	// MinHistory is the number of chat logs a user needs before a first
	// profile is summarized. Defaults to 5.
	MinHistory int

	// HistoryLimit caps how many recent chat logs are summarized. Defaults to 50.
	HistoryLimit int

	Logger *slog.Logger
}

// Maintainer summarizes chat history into profiles and merges new
// observations into existing ones.
type Maintainer struct {
	llm     llm.Provider
	store   Store
	history History
	config  Config
	logger  *slog.Logger
	locks   *userLocks
}

// NewMaintainer creates a new Maintainer. history may be nil, in which case
// profiles are only ever merged, never created from history.
func NewMaintainer(provider llm.Provider, store Store, history History, cfg *Config) *Maintainer {
	var config Config
	if cfg != nil {
		config = *cfg
	}
	if config.MinHistory <= 0 {
		config.MinHistory = DefaultMinHistory
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultHistoryLimit
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintainer{
		llm:     provider,
		store:   store,
		history: history,
		config:  config,
		logger:  logger.With("component", "profile"),
		locks:   newUserLocks(),
	}
}

// Summarize builds a profile from a chat history transcript.
func (m *Maintainer) Summarize(ctx context.Context, history, username string) (string, error) {
	return m.generate(ctx, summarizePrompt, buildSummarizeMessage(username, history))
}

// Update merges a recent interaction into an existing profile and returns the
// merged text.
func (m *Maintainer) Update(ctx context.Context, oldProfile, recentInteraction, username string) (string, error) {
	return m.generate(ctx, updatePrompt, buildUpdateMessage(username, oldProfile, recentInteraction))
}

func (m *Maintainer) generate(ctx context.Context, system, user string) (string, error) {
	response, err := m.llm.GenerateWithMessages(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}, llm.WithModel(m.config.Model), llm.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("generate profile: %w", err)
	}

	content := strings.TrimSpace(response)
	if content == "" || strings.EqualFold(content, "none") {
		return "", ErrEmptyProfile
	}
	return content, nil
}

// Get returns the stored profile content for username, or "" when none exists.
func (m *Maintainer) Get(ctx context.Context, username string) (string, error) {
	p, err := m.store.GetProfile(ctx, username)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", nil
	}
	return p.Content, nil
}

// Refresh applies the create-or-merge policy after a new interaction.
//
// An existing profile is merged with recentInteraction. Without a profile, a
// first one is summarized from chat history once the user has at least
// MinHistory logs. On any failure the stored profile is left untouched.
// The returned bool reports whether a profile was written.
//
// Refresh and Rebuild calls for the same username run one at a time, so each
// merge starts from the profile the previous one wrote.
func (m *Maintainer) Refresh(ctx context.Context, username, recentInteraction string) (bool, error) {
	release, err := m.locks.acquire(ctx, username)
	if err != nil {
		return false, err
	}
	defer release()

	existing, err := m.store.GetProfile(ctx, username)
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}

	if existing != nil && strings.TrimSpace(existing.Content) != "" {
		merged, err := m.Update(ctx, existing.Content, recentInteraction, username)
		if err != nil {
			return false, err
		}
		return true, m.save(ctx, username, merged)
	}

	if m.history == nil {
		return false, nil
	}
	count, err := m.history.CountByUser(ctx, username)
	if err != nil {
		return false, fmt.Errorf("count history: %w", err)
	}
	if count < m.config.MinHistory {
		m.logger.Debug("not enough history for a profile yet", "username", username, "count", count)
		return false, nil
	}
	return m.summarizeHistory(ctx, username)
}

// Rebuild re-derives username's profile from their recent chat history,
// merging into the existing profile when there is one.
func (m *Maintainer) Rebuild(ctx context.Context, username string) (bool, error) {
	release, err := m.locks.acquire(ctx, username)
	if err != nil {
		return false, err
	}
	defer release()

	existing, err := m.store.GetProfile(ctx, username)
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}
	if existing == nil || strings.TrimSpace(existing.Content) == "" {
		return m.summarizeHistory(ctx, username)
	}

	transcript, err := m.transcript(ctx, username)
	if err != nil || transcript == "" {
		return false, err
	}
	merged, err := m.Update(ctx, existing.Content, transcript, username)
	if err != nil {
		return false, err
	}
	return true, m.save(ctx, username, merged)
}

func (m *Maintainer) summarizeHistory(ctx context.Context, username string) (bool, error) {
	transcript, err := m.transcript(ctx, username)
	if err != nil || transcript == "" {
		return false, err
	}
	summary, err := m.Summarize(ctx, transcript, username)
	if err != nil {
		return false, err
	}
	return true, m.save(ctx, username, summary)
}

// transcript renders the user's recent history oldest first.
func (m *Maintainer) transcript(ctx context.Context, username string) (string, error) {
	if m.history == nil {
		return "", nil
	}
	logs, err := m.history.ListByUser(ctx, username, m.config.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	lines := lo.Map(lo.Reverse(logs), func(log *storage.ChatLog, _ int) string {
		return FormatInteraction(log.Prompt, log.Response)
	})
	return strings.Join(lines, "\n\n"), nil
}

func (m *Maintainer) save(ctx context.Context, username, content string) error {
	if err := m.store.SaveProfile(ctx, username, content); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	m.logger.Info("profile updated", "username", username, "words", len(strings.Fields(content)))
	return nil
}

// FormatInteraction renders one exchange for the profile prompts.
func FormatInteraction(prompt, response string) string {
	return fmt.Sprintf("User: %s\nAssistant: %s", prompt, response)
}

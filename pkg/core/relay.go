package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"

	"github.com/oswaldbot/relay-go/pkg/aggregate"
	"github.com/oswaldbot/relay-go/pkg/embedder"
	ollamaEmbedder "github.com/oswaldbot/relay-go/pkg/embedder/ollama"
	openaiEmbedder "github.com/oswaldbot/relay-go/pkg/embedder/openai"
	"github.com/oswaldbot/relay-go/pkg/llm"
	ollamaLLM "github.com/oswaldbot/relay-go/pkg/llm/ollama"
	openaiLLM "github.com/oswaldbot/relay-go/pkg/llm/openai"
	"github.com/oswaldbot/relay-go/pkg/planner"
	"github.com/oswaldbot/relay-go/pkg/profile"
	postgresProfile "github.com/oswaldbot/relay-go/pkg/profile/postgres"
	sqliteProfile "github.com/oswaldbot/relay-go/pkg/profile/sqlite"
	"github.com/oswaldbot/relay-go/pkg/prompt"
	"github.com/oswaldbot/relay-go/pkg/search"
	"github.com/oswaldbot/relay-go/pkg/storage"
	"github.com/oswaldbot/relay-go/pkg/storage/oceanbase"
	postgresStore "github.com/oswaldbot/relay-go/pkg/storage/postgres"
	sqliteStore "github.com/oswaldbot/relay-go/pkg/storage/sqlite"
)

// Request is one prompt to answer.
type Request struct {
	// Prompt is the user's question, already stripped of chat markup.
	Prompt string

	// Username identifies the asker. Empty disables profiles and persistence.
	Username string

	// Model overrides the configured model for this request.
	Model string

	// TargetSubjects are other users the prompt is about.
	TargetSubjects []string
}

// Answer is the relay's reply to a Request.
type Answer struct {
	Response     string
	Queries      []string
	ContextState aggregate.State
}

// Client is the relay: it plans and runs searches, composes the final prompt,
// generates the answer and records the exchange in the background.
//
// The client is safe for concurrent use.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(config)
//	defer client.Close()
//
//	answer, err := client.Answer(ctx, core.Request{
//	    Prompt:   "What is the capital of Canada?",
//	    Username: "alice",
//	})
type Client struct {
	config *Config
	logger *slog.Logger

	llm      llm.Provider
	embedder embedder.Provider
	store    storage.ChatLogStore
	profiles profile.Store

	aggregator *aggregate.Aggregator
	composer   *prompt.Composer
	maintainer *profile.Maintainer

	// snowflakeNode generates chat-log IDs.
	snowflakeNode *snowflake.Node

	// wg tracks background persistence.
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewClient creates a new relay client.
//
// Components not supplied through options are built from cfg:
//   - generation provider (Ollama or any OpenAI-compatible server)
//   - embedding provider, wrapped so it is built once on first use
//   - chat-log store (SQLite, PostgreSQL or OceanBase)
//   - profile store (SQLite or PostgreSQL) when profiles are enabled
//   - SearXNG search executor
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{config: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = client.closeResources()
		}
	}()

	var err error
	client.llm = o.llm
	if client.llm == nil {
		if client.llm, err = initLLM(cfg.LLM); err != nil {
			return nil, err
		}
	}

	client.embedder = o.embedder
	if client.embedder == nil {
		client.embedder = initEmbedder(cfg.Embedder)
	}

	client.store = o.store
	if client.store == nil {
		if client.store, err = initStorage(cfg.Store, cfg.Embedder.Dimensions); err != nil {
			return nil, err
		}
	}

	if cfg.Profile.Enabled {
		client.profiles = o.profiles
		if client.profiles == nil {
			if client.profiles, err = initProfileStore(cfg, client.store); err != nil {
				return nil, err
			}
		}
		client.maintainer = profile.NewMaintainer(client.llm, client.profiles, client.store, &profile.Config{
			Model:      cfg.LLM.Model,
			MinHistory: cfg.Profile.MinHistory,
			Logger:     logger,
		})
	} else if o.profiles != nil {
		_ = o.profiles.Close()
	}

	executor := o.executor
	if executor == nil {
		executor = search.NewClient(&search.Config{
			BaseURL:    cfg.Search.BaseURL,
			MaxResults: cfg.Search.MaxResults,
			Timeout:    seconds(cfg.Search.TimeoutSeconds, 15),
			Logger:     logger,
		})
	}
	queryPlanner := planner.New(client.llm, &planner.Config{
		Timeout: seconds(cfg.Search.PlannerTimeoutSeconds, 25),
		Logger:  logger,
	})
	client.aggregator = aggregate.New(queryPlanner, executor, &aggregate.Config{
		Sequential: cfg.Search.Sequential,
		Logger:     logger,
	})
	client.composer = prompt.NewComposer(cfg.LLM.Persona)

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewRelayError("NewClient", err)
	}
	client.snowflakeNode = node

	ok = true
	return client, nil
}

// Answer runs the full pipeline for req.
//
// The steps are:
//  1. Plan searches and aggregate their results
//  2. Look up the profiles of the asker and the target subjects
//  3. Compose the final prompt and generate the answer
//  4. Record the exchange in the background
//
// Search and profile failures only degrade the answer. A generation failure
// is returned wrapped in ErrGenerationFailed, with the provider's
// llm.TransportError or llm.ServerError still reachable through errors.As.
func (c *Client) Answer(ctx context.Context, req Request) (*Answer, error) {
	question := strings.TrimSpace(req.Prompt)
	if question == "" {
		return nil, NewRelayError("Answer", fmt.Errorf("%w: prompt is empty", ErrInvalidInput))
	}
	model := req.Model
	if model == "" {
		model = c.config.LLM.Model
	}
	logger := c.logger.With("user", req.Username, "model", model)

	searchContext, queries := c.aggregator.Aggregate(ctx, question, model)
	logger.Info("search context ready", "state", searchContext.State, "queries", len(queries))

	input := prompt.Input{
		Question:      question,
		Context:       searchContext,
		RequesterName: req.Username,
	}
	if req.Username != "" {
		input.RequesterProfile = c.profileOf(ctx, req.Username)
	}
	for _, name := range req.TargetSubjects {
		input.Subjects = append(input.Subjects, prompt.Subject{
			Name:    name,
			Profile: c.profileOf(ctx, name),
		})
	}
	finalPrompt := c.composer.Compose(input)

	genCtx, cancel := context.WithTimeout(ctx, c.config.LLMTimeout())
	defer cancel()

	response, err := c.llm.Generate(genCtx, finalPrompt,
		llm.WithModel(model),
		llm.WithTemperature(c.config.LLM.Temperature),
	)
	if err != nil {
		logger.Error("generation failed", "error", err)
		return nil, NewRelayError("Answer", wrapf(ErrGenerationFailed, err))
	}

	if req.Username != "" {
		c.persist(context.WithoutCancel(ctx), req.Username, question, response)
	}

	return &Answer{
		Response:     response,
		Queries:      queries,
		ContextState: searchContext.State,
	}, nil
}

// Profile returns the stored profile for username, or ErrProfileNotFound.
func (c *Client) Profile(ctx context.Context, username string) (string, error) {
	if c.maintainer == nil {
		return "", NewRelayError("Profile", fmt.Errorf("%w: profiles are disabled", ErrInvalidConfig))
	}
	content, err := c.maintainer.Get(ctx, username)
	if err != nil {
		return "", NewRelayError("Profile", err)
	}
	if content == "" {
		return "", NewRelayError("Profile", ErrProfileNotFound)
	}
	return content, nil
}

// RefreshProfile rebuilds the profile of username from its chat history.
// It reports whether a profile was written.
func (c *Client) RefreshProfile(ctx context.Context, username string) (bool, error) {
	if c.maintainer == nil {
		return false, NewRelayError("RefreshProfile", fmt.Errorf("%w: profiles are disabled", ErrInvalidConfig))
	}
	updated, err := c.maintainer.Rebuild(ctx, username)
	return updated, NewRelayError("RefreshProfile", err)
}

// NewProfileScheduler creates a scheduler that periodically rebuilds every
// known user's profile. It returns nil when profiles are disabled.
func (c *Client) NewProfileScheduler() (*profile.Scheduler, error) {
	if c.maintainer == nil {
		return nil, nil
	}
	return profile.NewScheduler(c.maintainer, c.store, c.config.Profile.Schedule, c.logger)
}

func (c *Client) profileOf(ctx context.Context, username string) string {
	if c.maintainer == nil {
		return ""
	}
	content, err := c.maintainer.Get(ctx, username)
	if err != nil {
		c.logger.Warn("profile lookup failed", "user", username, "error", err)
		return ""
	}
	return content
}

// Wait blocks until all background persistence has finished.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close waits for background work, then closes the store and providers.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
	return c.closeResources()
}

func (c *Client) closeResources() error {
	var errs []error

	if c.profiles != nil {
		if err := c.profiles.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if shared, ok := c.embedder.(*embedder.Shared); ok {
		if err := shared.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	} else if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// initStorage initializes the chat-log store.
func initStorage(cfg StoreConfig, dims int) (storage.ChatLogStore, error) {
	m := settings(cfg.Config)
	switch cfg.Provider {
	case "oceanbase":
		return oceanbase.NewClient(&oceanbase.Config{
			Host:               m.str("host", "127.0.0.1"),
			Port:               m.num("port", 2881),
			User:               m.str("user", "root@sys"),
			Password:           m.str("password", ""),
			DBName:             m.str("db_name", "relay"),
			TableName:          m.str("table_name", ""),
			EmbeddingModelDims: dims,
		})
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:             m.str("db_path", "./data/relay.db"),
			TableName:          m.str("table_name", ""),
			EmbeddingModelDims: dims,
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:               m.str("host", "localhost"),
			Port:               m.num("port", 5432),
			User:               m.str("user", "postgres"),
			Password:           m.str("password", ""),
			DBName:             m.str("db_name", "relay"),
			Schema:             m.str("schema", ""),
			TableName:          m.str("table_name", ""),
			EmbeddingModelDims: dims,
			SSLMode:            m.str("ssl_mode", "disable"),
		})
	default:
		return nil, NewRelayError("initStorage", ErrInvalidConfig)
	}
}

// initProfileStore initializes the profile store. Without an explicit
// provider, a PostgreSQL chat-log store shares its connection pool and every
// other backend keeps profiles in SQLite.
func initProfileStore(cfg *Config, chatLogs storage.ChatLogStore) (profile.Store, error) {
	m := settings(cfg.Profile.Config)
	provider := cfg.Profile.Provider
	if provider == "" {
		provider = "sqlite"
		if cfg.Store.Provider == "postgres" {
			provider = "postgres"
		}
	}

	switch provider {
	case "postgres":
		storeCfg := &postgresProfile.Config{
			Schema:    m.str("schema", settings(cfg.Store.Config).str("schema", "")),
			TableName: m.str("table_name", ""),
		}
		if pg, ok := chatLogs.(*postgresStore.Client); ok && len(cfg.Profile.Config) == 0 {
			storeCfg.DB = pg.DB()
		} else {
			storeCfg.DSN = (&postgresStore.Config{
				Host:     m.str("host", "localhost"),
				Port:     m.num("port", 5432),
				User:     m.str("user", "postgres"),
				Password: m.str("password", ""),
				DBName:   m.str("db_name", "relay"),
				SSLMode:  m.str("ssl_mode", "disable"),
			}).DSN()
		}
		return postgresProfile.NewStore(storeCfg)
	case "sqlite":
		dbPath := m.str("db_path", "")
		if dbPath == "" {
			dbPath = settings(cfg.Store.Config).str("db_path", "./data/relay.db")
			if cfg.Store.Provider != "sqlite" {
				dbPath = "./data/profiles.db"
			}
		}
		return sqliteProfile.NewStore(&sqliteProfile.Config{
			DBPath:    dbPath,
			TableName: m.str("table_name", ""),
		})
	default:
		return nil, NewRelayError("initProfileStore", ErrInvalidConfig)
	}
}

// initLLM initializes the generation provider.
func initLLM(cfg LLMConfig) (llm.Provider, error) {
	timeout := seconds(cfg.TimeoutSeconds, 60)
	switch cfg.Provider {
	case "openai":
		return openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		})
	case "ollama":
		return ollamaLLM.NewClient(&ollamaLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		})
	default:
		return nil, NewRelayError("initLLM", ErrInvalidConfig)
	}
}

// initEmbedder wraps the configured embedding provider so that it is built
// once, on first use.
func initEmbedder(cfg EmbedderConfig) *embedder.Shared {
	dims := cfg.Dimensions
	if dims == 0 {
		dims = 768
	}
	return embedder.NewShared(func() (embedder.Provider, error) {
		switch cfg.Provider {
		case "openai":
			return openaiEmbedder.NewClient(&openaiEmbedder.Config{
				APIKey:     cfg.APIKey,
				Model:      cfg.Model,
				BaseURL:    cfg.BaseURL,
				Dimensions: dims,
			})
		case "ollama":
			return ollamaEmbedder.NewClient(&ollamaEmbedder.Config{
				Model:      cfg.Model,
				BaseURL:    cfg.BaseURL,
				Dimensions: dims,
			})
		default:
			return nil, NewRelayError("initEmbedder", ErrInvalidConfig)
		}
	}, dims)
}

// settings reads provider configuration maps, which come from either Go
// literals or decoded JSON.
type settings map[string]interface{}

func (s settings) str(key, fallback string) string {
	if v, ok := s[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (s settings) num(key string, fallback int) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

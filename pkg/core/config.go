// Package core wires the relay pipeline together: query planning, search
// aggregation, prompt composition, generation and background persistence.
package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultTemperature is the final-answer temperature used when none is configured.
const DefaultTemperature = 0.7

// Config contains the complete configuration for a relay process.
//
// Example:
//
//	config := &core.Config{
//	    LLM: core.LLMConfig{
//	        Provider:    "ollama",
//	        BaseURL:     "http://localhost:11434",
//	        Model:       "joney-bot:latest",
//	        Temperature: core.DefaultTemperature,
//	    },
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "ollama",
//	        Model:      "nomic-embed-text",
//	        Dimensions: 768,
//	    },
//	    Search: core.SearchConfig{BaseURL: "http://localhost:8080"},
//	    Store: core.StoreConfig{
//	        Provider: "sqlite",
//	        Config:   map[string]interface{}{"db_path": "./relay.db"},
//	    },
//	}
type Config struct {
	// LLM contains generation provider configuration.
	LLM LLMConfig `json:"llm"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// Search contains search backend configuration.
	Search SearchConfig `json:"search"`

	// Store contains chat-log store configuration.
	Store StoreConfig `json:"store"`

	// Profile contains profile maintenance configuration.
	Profile ProfileConfig `json:"profile"`

	// Server contains HTTP relay service configuration.
	Server ServerConfig `json:"server"`

	// Bot contains chat adapter configuration.
	Bot BotConfig `json:"bot"`

	// Log contains logging configuration.
	Log LogConfig `json:"log"`
}

// LLMConfig contains configuration for the generation provider.
//
// Supported providers: ollama, openai (any OpenAI-compatible server)
type LLMConfig struct {
	// Provider is the generation provider name (ollama, openai).
	Provider string `json:"provider"`

	// APIKey is the API key (optional for local servers).
	APIKey string `json:"api_key,omitempty"`

	// Model is the default model name.
	Model string `json:"model"`

	// BaseURL is the server address.
	BaseURL string `json:"base_url,omitempty"`

	// TimeoutSeconds bounds a final-answer generation call. Default: 60.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// Temperature is used for final answers as given; 0 is a valid setting.
	// The loaders default it to DefaultTemperature when it is not set.
	Temperature float64 `json:"temperature"`

	// Persona replaces the built-in persona directive when non-empty.
	Persona string `json:"persona,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: ollama, openai
type EmbedderConfig struct {
	// Provider is the embedding provider name (ollama, openai).
	Provider string `json:"provider"`

	// APIKey is the API key (optional for local servers).
	APIKey string `json:"api_key,omitempty"`

	// Model is the embedding model name.
	Model string `json:"model"`

	// BaseURL is the server address.
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors. Default: 768.
	Dimensions int `json:"dimensions,omitempty"`
}

// SearchConfig contains configuration for the search backend.
type SearchConfig struct {
	// BaseURL is the SearXNG instance address.
	BaseURL string `json:"base_url"`

	// MaxResults is the top-N snippets kept per query. Default: 3.
	MaxResults int `json:"max_results,omitempty"`

	// TimeoutSeconds bounds one search query. Default: 15.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// PlannerTimeoutSeconds bounds the query-planning call. Default: 25.
	PlannerTimeoutSeconds int `json:"planner_timeout_seconds,omitempty"`

	// Sequential runs sub-queries one at a time instead of concurrently.
	Sequential bool `json:"sequential,omitempty"`
}

// StoreConfig contains configuration for the chat-log store.
//
// Supported providers: sqlite, postgres, oceanbase
type StoreConfig struct {
	// Provider is the store provider name (sqlite, postgres, oceanbase).
	Provider string `json:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, table_name
	// For PostgreSQL: host, port, user, password, db_name, schema, table_name, ssl_mode
	// For OceanBase: host, port, user, password, db_name, table_name
	Config map[string]interface{} `json:"config"`
}

// ProfileConfig contains configuration for profile maintenance.
type ProfileConfig struct {
	// Enabled turns profile lookup and maintenance on.
	Enabled bool `json:"enabled"`

	// Provider is the profile store provider (sqlite, postgres).
	// Empty follows the chat-log store provider.
	Provider string `json:"provider,omitempty"`

	// Config contains provider-specific configuration, as for StoreConfig.
	Config map[string]interface{} `json:"config,omitempty"`

	// MinHistory is the number of chat logs before a first profile. Default: 5.
	MinHistory int `json:"min_history,omitempty"`

	// Schedule is the cron schedule for periodic rebuilds. Default: nightly.
	Schedule string `json:"schedule,omitempty"`
}

// ServerConfig contains configuration for the HTTP relay service.
type ServerConfig struct {
	// ListenAddr is the address the relay listens on. Default: ":8000".
	ListenAddr string `json:"listen_addr,omitempty"`

	// AllowedOrigins lists CORS origins. Default: all.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

// BotConfig contains configuration for the chat adapter.
type BotConfig struct {
	// SlackBotToken is the bot user OAuth token (xoxb-...).
	SlackBotToken string `json:"slack_bot_token,omitempty"`

	// SlackAppToken is the app-level Socket Mode token (xapp-...).
	SlackAppToken string `json:"slack_app_token,omitempty"`

	// RelayURL is the HTTP relay service address the bot calls.
	RelayURL string `json:"relay_url,omitempty"`

	// Model overrides the relay's default model for bot requests.
	Model string `json:"model,omitempty"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `json:"level,omitempty"`

	// File receives JSON logs in addition to stderr when set.
	File string `json:"file,omitempty"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - LLM_PROVIDER, LLM_MODEL, LLM_API_KEY, LLM_BASE_URL, OLLAMA_HOST_URL, LLM_TIMEOUT
//   - EMBEDDING_PROVIDER, EMBEDDING_MODEL, EMBEDDING_API_KEY, EMBEDDING_BASE_URL, EMBEDDING_DIMS
//   - SEARXNG_URL, SEARCH_MAX_RESULTS, SEARCH_TIMEOUT, SEARCH_SEQUENTIAL
//   - DATABASE_PROVIDER (sqlite, postgres, oceanbase)
//   - SQLITE_PATH; DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SCHEMA;
//     OCEANBASE_HOST, OCEANBASE_PORT, OCEANBASE_USER, OCEANBASE_PASSWORD, OCEANBASE_DATABASE
//   - PROFILE_ENABLED, PROFILE_MIN_HISTORY, PROFILE_REFRESH_SCHEDULE
//   - RELAY_LISTEN_ADDR, RELAY_URL, SLACK_BOT_TOKEN, SLACK_APP_TOKEN
//   - LOG_LEVEL, LOG_FILE
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	ollamaHost := getEnvOrDefault("OLLAMA_HOST_URL", "http://localhost:11434")

	llmProvider := getEnvOrDefault("LLM_PROVIDER", "ollama")
	llmBaseURL := os.Getenv("LLM_BASE_URL")
	if llmBaseURL == "" && llmProvider == "ollama" {
		llmBaseURL = ollamaHost
	}

	embedderProvider := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")
	embedderBaseURL := os.Getenv("EMBEDDING_BASE_URL")
	if embedderBaseURL == "" && embedderProvider == "ollama" {
		embedderBaseURL = ollamaHost
	}
	dims := getEnvInt("EMBEDDING_DIMS", 768)

	storeProvider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")
	storeConfig := storeConfigFromEnv(storeProvider)

	temperature, err := strconv.ParseFloat(getEnvOrDefault("LLM_TEMPERATURE", strconv.FormatFloat(DefaultTemperature, 'f', -1, 64)), 64)
	if err != nil {
		return nil, NewRelayError("LoadConfigFromEnv", fmt.Errorf("%w: LLM_TEMPERATURE: %v", ErrInvalidConfig, err))
	}

	var persona string
	if path := os.Getenv("PERSONA_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewRelayError("LoadConfigFromEnv", err)
		}
		persona = string(data)
	}

	config := &Config{
		LLM: LLMConfig{
			Provider:       llmProvider,
			APIKey:         os.Getenv("LLM_API_KEY"),
			Model:          getEnvOrDefault("LLM_MODEL", "joney-bot:latest"),
			BaseURL:        llmBaseURL,
			TimeoutSeconds: getEnvInt("LLM_TIMEOUT", 60),
			Temperature:    temperature,
			Persona:        persona,
		},
		Embedder: EmbedderConfig{
			Provider:   embedderProvider,
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", "nomic-embed-text"),
			BaseURL:    embedderBaseURL,
			Dimensions: dims,
		},
		Search: SearchConfig{
			BaseURL:               os.Getenv("SEARXNG_URL"),
			MaxResults:            getEnvInt("SEARCH_MAX_RESULTS", 3),
			TimeoutSeconds:        getEnvInt("SEARCH_TIMEOUT", 15),
			PlannerTimeoutSeconds: getEnvInt("PLANNER_TIMEOUT", 25),
			Sequential:            getEnvBool("SEARCH_SEQUENTIAL", false),
		},
		Store: StoreConfig{
			Provider: storeProvider,
			Config:   storeConfig,
		},
		Profile: ProfileConfig{
			Enabled:    getEnvBool("PROFILE_ENABLED", true),
			Provider:   os.Getenv("PROFILE_PROVIDER"),
			MinHistory: getEnvInt("PROFILE_MIN_HISTORY", 5),
			Schedule:   os.Getenv("PROFILE_REFRESH_SCHEDULE"),
		},
		Server: ServerConfig{
			ListenAddr:     getEnvOrDefault("RELAY_LISTEN_ADDR", ":8000"),
			AllowedOrigins: splitList(os.Getenv("RELAY_ALLOWED_ORIGINS")),
		},
		Bot: BotConfig{
			SlackBotToken: os.Getenv("SLACK_BOT_TOKEN"),
			SlackAppToken: os.Getenv("SLACK_APP_TOKEN"),
			RelayURL:      getEnvOrDefault("RELAY_URL", "http://localhost:8000"),
			Model:         os.Getenv("BOT_MODEL"),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
	}

	return config, nil
}

func storeConfigFromEnv(provider string) map[string]interface{} {
	switch provider {
	case "postgres":
		return map[string]interface{}{
			"host":     getEnvOrDefault("DB_HOST", "localhost"),
			"port":     getEnvInt("DB_PORT", 5432),
			"user":     getEnvOrDefault("DB_USER", "postgres"),
			"password": os.Getenv("DB_PASSWORD"),
			"db_name":  getEnvOrDefault("DB_NAME", "relay"),
			"schema":   getEnvOrDefault("DB_SCHEMA", "public"),
			"ssl_mode": getEnvOrDefault("DB_SSLMODE", "disable"),
		}
	case "oceanbase":
		return map[string]interface{}{
			"host":     getEnvOrDefault("OCEANBASE_HOST", "127.0.0.1"),
			"port":     getEnvInt("OCEANBASE_PORT", 2881),
			"user":     getEnvOrDefault("OCEANBASE_USER", "root@sys"),
			"password": os.Getenv("OCEANBASE_PASSWORD"),
			"db_name":  getEnvOrDefault("OCEANBASE_DATABASE", "relay"),
		}
	default:
		return map[string]interface{}{
			"db_path": getEnvOrDefault("SQLITE_PATH", "./data/relay.db"),
		}
	}
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewRelayError("LoadConfigFromJSON", err)
	}

	config := Config{LLM: LLMConfig{Temperature: DefaultTemperature}}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewRelayError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that:
//   - LLM, embedder and store providers are specified and known
//   - the search backend URL is set
//   - the embedding dimension is not negative
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return NewRelayError("Validate", fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	switch c.LLM.Provider {
	case "ollama", "openai":
	case "":
		return invalid("llm provider is required")
	default:
		return invalid("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Embedder.Provider {
	case "ollama", "openai":
	case "":
		return invalid("embedder provider is required")
	default:
		return invalid("unknown embedder provider %q", c.Embedder.Provider)
	}

	switch c.Store.Provider {
	case "sqlite", "postgres", "oceanbase":
	case "":
		return invalid("store provider is required")
	default:
		return invalid("unknown store provider %q", c.Store.Provider)
	}

	if c.Search.BaseURL == "" {
		return invalid("search base URL is required")
	}
	if c.LLM.Temperature < 0 {
		return invalid("llm temperature must not be negative")
	}
	if c.Embedder.Dimensions < 0 {
		return invalid("embedding dimensions must not be negative")
	}
	return nil
}

// LLMTimeout returns the final-answer generation timeout.
func (c *Config) LLMTimeout() time.Duration {
	return seconds(c.LLM.TimeoutSeconds, 60)
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FindEnvFile searches for .env or .env.example files.
//
// The search checks the current directory, then up to 5 parent directories,
// and returns the first .env or .env.example file found.
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}

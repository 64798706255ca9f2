package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oswaldbot/relay-go/pkg/core"
)

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, config *core.Config)
	}{
		{
			name: "ollama with SQLite",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "sqlite",
				"SQLITE_PATH":       "./test.db",
				"LLM_PROVIDER":      "ollama",
				"LLM_MODEL":         "joney-bot:latest",
				"OLLAMA_HOST_URL":   "http://ollama:11434",
				"SEARXNG_URL":       "http://searxng:8080",
			},
			check: func(t *testing.T, config *core.Config) {
				assert.Equal(t, "sqlite", config.Store.Provider)
				assert.Equal(t, "./test.db", config.Store.Config["db_path"])
				assert.Equal(t, "http://ollama:11434", config.LLM.BaseURL)
				assert.Equal(t, "http://ollama:11434", config.Embedder.BaseURL)
				assert.Equal(t, "http://searxng:8080", config.Search.BaseURL)
				assert.Equal(t, 3, config.Search.MaxResults)
				assert.Equal(t, 15, config.Search.TimeoutSeconds)
				assert.NoError(t, config.Validate())
			},
		},
		{
			name: "openai-compatible with PostgreSQL",
			envVars: map[string]string{
				"DATABASE_PROVIDER":  "postgres",
				"DB_HOST":            "db",
				"DB_PORT":            "6543",
				"DB_SCHEMA":          "relay",
				"LLM_PROVIDER":       "openai",
				"LLM_BASE_URL":       "http://llama-server:8080/v1",
				"EMBEDDING_PROVIDER": "openai",
				"EMBEDDING_DIMS":     "1536",
				"SEARXNG_URL":        "http://searxng:8080",
				"SEARCH_SEQUENTIAL":  "true",
			},
			check: func(t *testing.T, config *core.Config) {
				assert.Equal(t, "postgres", config.Store.Provider)
				assert.Equal(t, "db", config.Store.Config["host"])
				assert.Equal(t, 6543, config.Store.Config["port"])
				assert.Equal(t, "relay", config.Store.Config["schema"])
				assert.Equal(t, "http://llama-server:8080/v1", config.LLM.BaseURL)
				assert.Equal(t, "", config.Embedder.BaseURL)
				assert.Equal(t, 1536, config.Embedder.Dimensions)
				assert.True(t, config.Search.Sequential)
			},
		},
		{
			name: "profile and bot settings",
			envVars: map[string]string{
				"PROFILE_ENABLED":          "false",
				"PROFILE_MIN_HISTORY":      "8",
				"PROFILE_REFRESH_SCHEDULE": "@hourly",
				"RELAY_URL":                "http://relay:8000",
				"SLACK_BOT_TOKEN":          "xoxb-test",
				"RELAY_ALLOWED_ORIGINS":    "http://a.example, http://b.example",
			},
			check: func(t *testing.T, config *core.Config) {
				assert.False(t, config.Profile.Enabled)
				assert.Equal(t, 8, config.Profile.MinHistory)
				assert.Equal(t, "@hourly", config.Profile.Schedule)
				assert.Equal(t, "http://relay:8000", config.Bot.RelayURL)
				assert.Equal(t, "xoxb-test", config.Bot.SlackBotToken)
				assert.Equal(t, []string{"http://a.example", "http://b.example"}, config.Server.AllowedOrigins)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			config, err := core.LoadConfigFromEnv()
			require.NoError(t, err)
			require.NotNil(t, config)
			tt.check(t, config)
		})
	}
}

func TestLoadConfigFromEnv_PersonaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.txt")
	require.NoError(t, os.WriteFile(path, []byte("You are a polite librarian."), 0o600))
	t.Setenv("PERSONA_FILE", path)

	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "You are a polite librarian.", config.LLM.Persona)
}

func TestLoadConfigFromEnv_Temperature(t *testing.T) {
	t.Setenv("LLM_TEMPERATURE", "")
	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, core.DefaultTemperature, config.LLM.Temperature)

	t.Setenv("LLM_TEMPERATURE", "0")
	config, err = core.LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Zero(t, config.LLM.Temperature)
}

func TestLoadConfigFromJSON_Temperature(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	config, err := core.LoadConfigFromJSON(write("default.json", `{"llm": {"provider": "ollama"}}`))
	require.NoError(t, err)
	assert.Equal(t, core.DefaultTemperature, config.LLM.Temperature)

	config, err = core.LoadConfigFromJSON(write("zero.json", `{"llm": {"provider": "ollama", "temperature": 0}}`))
	require.NoError(t, err)
	assert.Zero(t, config.LLM.Temperature)
}

func TestLoadConfigFromEnv_BadTemperature(t *testing.T) {
	t.Setenv("LLM_TEMPERATURE", "warm")

	_, err := core.LoadConfigFromEnv()
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestLoadConfigFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"llm": {"provider": "ollama", "model": "llama3"},
		"embedder": {"provider": "ollama", "model": "nomic-embed-text", "dimensions": 768},
		"search": {"base_url": "http://searxng:8080"},
		"store": {"provider": "sqlite", "config": {"db_path": "./relay.db"}},
		"profile": {"enabled": true, "min_history": 3}
	}`), 0o600))

	config, err := core.LoadConfigFromJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, "./relay.db", config.Store.Config["db_path"])
	assert.Equal(t, 3, config.Profile.MinHistory)
	assert.NoError(t, config.Validate())

	_, err = core.LoadConfigFromJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *core.Config {
		return &core.Config{
			LLM:      core.LLMConfig{Provider: "ollama", Model: "llama3"},
			Embedder: core.EmbedderConfig{Provider: "ollama", Dimensions: 768},
			Search:   core.SearchConfig{BaseURL: "http://searxng:8080"},
			Store:    core.StoreConfig{Provider: "sqlite"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *core.Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *core.Config) {}},
		{name: "missing llm provider", mutate: func(c *core.Config) { c.LLM.Provider = "" }, wantErr: true},
		{name: "unknown llm provider", mutate: func(c *core.Config) { c.LLM.Provider = "anthropic" }, wantErr: true},
		{name: "missing embedder provider", mutate: func(c *core.Config) { c.Embedder.Provider = "" }, wantErr: true},
		{name: "unknown store provider", mutate: func(c *core.Config) { c.Store.Provider = "mongo" }, wantErr: true},
		{name: "missing search URL", mutate: func(c *core.Config) { c.Search.BaseURL = "" }, wantErr: true},
		{name: "negative dimensions", mutate: func(c *core.Config) { c.Embedder.Dimensions = -1 }, wantErr: true},
		{name: "zero temperature", mutate: func(c *core.Config) { c.LLM.Temperature = 0 }},
		{name: "negative temperature", mutate: func(c *core.Config) { c.LLM.Temperature = -0.1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oswaldbot/relay-go/pkg/core"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.json")
	body := fmt.Sprintf(`{
		"llm": {"provider": "ollama", "model": "llama3", "base_url": "http://127.0.0.1:1"},
		"embedder": {"provider": "ollama", "model": "nomic-embed-text", "dimensions": 4},
		"search": {"base_url": "http://127.0.0.1:1"},
		"store": {"provider": "sqlite", "config": {"db_path": %q}},
		"profile": {"enabled": true},
		"log": {"level": "error"}
	}`, filepath.Join(dir, "relay.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		configFile, envFile, logLevel = "", "", ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "bot", "ask", "profile"} {
		assert.True(t, names[want], want)
	}
}

func TestAsk_RequiresPrompt(t *testing.T) {
	_, err := execute(t, "ask", "--config", writeConfig(t))
	assert.Error(t, err)
}

func TestProfileShow_NotFound(t *testing.T) {
	_, err := execute(t, "profile", "show", "alice", "--config", writeConfig(t))
	assert.ErrorIs(t, err, core.ErrProfileNotFound)
}

func TestProfileRefresh_NoHistory(t *testing.T) {
	out, err := execute(t, "profile", "refresh", "alice", "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "no chat history for alice")
}

func TestBot_RequiresTokens(t *testing.T) {
	_, err := execute(t, "bot", "--config", writeConfig(t))
	assert.Error(t, err)
}

package ollama_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oswaldbot/relay-go/pkg/embedder"
	"github.com/oswaldbot/relay-go/pkg/embedder/ollama"
	"github.com/oswaldbot/relay-go/pkg/llm"
)

func TestEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		out := make([][]float64, len(req.Input))
		for i := range req.Input {
			out[i] = []float64{float64(i), 0.5, 0.25}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": out})
	}))
	defer server.Close()

	client, err := ollama.NewClient(&ollama.Config{BaseURL: server.URL, Dimensions: 3})
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{"prompt", "response"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{1, 0.5, 0.25}, vectors[1])

	single, err := client.Embed(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Len(t, single, 3)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": [][]float64{{1, 2}}})
	}))
	defer server.Close()

	client, _ := ollama.NewClient(&ollama.Config{BaseURL: server.URL})
	_, err := client.Embed(context.Background(), "prompt")
	assert.ErrorIs(t, err, embedder.ErrDimensionMismatch)
}

func TestEmbed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := ollama.NewClient(&ollama.Config{BaseURL: server.URL})
	_, err := client.Embed(context.Background(), "prompt")
	assert.True(t, llm.IsServer(err))
}

func TestEmbed_TransportErrorOnStalledBody(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"embeddings":[[0.1,`)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, _ := ollama.NewClient(&ollama.Config{BaseURL: server.URL, Timeout: 100 * time.Millisecond})
	_, err := client.Embed(context.Background(), "prompt")
	assert.True(t, llm.IsTransport(err))
}

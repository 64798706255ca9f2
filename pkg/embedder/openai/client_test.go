package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oswaldbot/relay-go/pkg/embedder/openai"
)

func newServer(t *testing.T, data []map[string]any) *openai.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	t.Cleanup(server.Close)

	client, err := openai.NewClient(&openai.Config{APIKey: "local", BaseURL: server.URL + "/v1", Dimensions: 2})
	require.NoError(t, err)
	return client
}

func TestEmbedBatch_OrdersByIndex(t *testing.T) {
	client := newServer(t, []map[string]any{
		{"object": "embedding", "index": 1, "embedding": []float32{0.5, 0.5}},
		{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
	})

	vectors, err := client.EmbedBatch(context.Background(), []string{"prompt", "response"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0.5, 0.5}}, vectors)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	client := newServer(t, []map[string]any{
		{"object": "embedding", "index": 0, "embedding": []float32{1, 0, 0}},
	})

	_, err := client.Embed(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestEmbedBatch_DuplicateIndex(t *testing.T) {
	client := newServer(t, []map[string]any{
		{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
		{"object": "embedding", "index": 0, "embedding": []float32{0, 1}},
	})

	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "unexpected result index")
}

func TestEmbedBatch_NoInput(t *testing.T) {
	client, err := openai.NewClient(&openai.Config{APIKey: "local"})
	require.NoError(t, err)

	_, err = client.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)
}

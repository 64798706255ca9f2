package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oswaldbot/relay-go/pkg/llm"
	"github.com/oswaldbot/relay-go/pkg/llm/openai"
)

func TestGenerate_ChatCompletion(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"search_queries\":[]}"}}]}`)
	}))
	defer server.Close()

	client, err := openai.NewClient(&openai.Config{APIKey: "local", BaseURL: server.URL + "/v1", Model: "base"})
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "hi", llm.WithModel("planner"), llm.WithJSONFormat())
	require.NoError(t, err)
	assert.Equal(t, `{"search_queries":[]}`, text)
	assert.Equal(t, "planner", got["model"])
	assert.Equal(t, map[string]interface{}{"type": "json_object"}, got["response_format"])
}

func TestGenerate_ErrorTaxonomy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"model crashed","type":"server_error"}}`)
	}))
	defer server.Close()

	client, err := openai.NewClient(&openai.Config{BaseURL: server.URL + "/v1", Model: "m"})
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), "hi")
	assert.True(t, llm.IsServer(err))

	server.Close()
	_, err = client.Generate(context.Background(), "hi")
	assert.True(t, llm.IsTransport(err))
}

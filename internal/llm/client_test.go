package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	var gotPrompt string
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		gotPrompt = req.Messages[0].Content

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": "generated answer"}, "finish_reason": "stop"}},
		})
	})

	c := NewClient(srv.URL, "test-key", "test-model")
	answer, err := c.Generate(context.Background(), "what is this document about?")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", answer)
	assert.Equal(t, "what is this document about?", gotPrompt)
}

func TestGenerateBackendError(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	})

	c := NewClient(srv.URL, "test-key", "test-model")
	_, err := c.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-2",
			"object":  "chat.completion",
			"choices": []map[string]any{},
		})
	})

	c := NewClient(srv.URL, "test-key", "test-model")
	_, err := c.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "empty completion")
}

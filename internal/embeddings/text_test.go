package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingPayload struct {
	Object string    `json:"object"`
	Index  int       `json:"index"`
	Vector []float32 `json:"embedding"`
}

func embeddingServer(t *testing.T, vectors [][]float32, failures int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if int(n) <= failures {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
			return
		}
		data := make([]embeddingPayload, len(vectors))
		for i, v := range vectors {
			data[i] = embeddingPayload{Object: "embedding", Index: i, Vector: v}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  "test-model",
			"usage":  map[string]int{"prompt_tokens": 0, "total_tokens": 0},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestEmbedBatch(t *testing.T) {
	srv, calls := embeddingServer(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, 0)
	e := NewTextEmbedder(srv.URL, "test-key", "test-model", 3)

	vectors, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1, 0}, vectors[1])
	assert.EqualValues(t, 1, *calls)
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	srv, calls := embeddingServer(t, nil, 0)
	e := NewTextEmbedder(srv.URL, "test-key", "test-model", 3)

	vectors, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.EqualValues(t, 0, *calls)
}

func TestEmbedQueryRetriesTransientFailure(t *testing.T) {
	srv, calls := embeddingServer(t, [][]float32{{0.5, 0.5, 0}}, 2)
	e := NewTextEmbedder(srv.URL, "test-key", "test-model", 3)

	vec, err := e.EmbedQuery(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5, 0}, vec)
	assert.EqualValues(t, 3, *calls)
}

func TestEmbedQueryGivesUp(t *testing.T) {
	srv, calls := embeddingServer(t, nil, 100)
	e := NewTextEmbedder(srv.URL, "test-key", "test-model", 3)

	_, err := e.EmbedQuery(context.Background(), "query")
	require.ErrorIs(t, err, ErrEmbeddingService)
	assert.EqualValues(t, 3, *calls)
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	srv, calls := embeddingServer(t, [][]float32{{1, 0, 0}}, 0)
	e := NewTextEmbedder(srv.URL, "test-key", "test-model", 3)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, ErrEmbeddingService)
	// A malformed response is not transient, no retry.
	assert.EqualValues(t, 1, *calls)
}

func TestEmbedRejectsDimensionMismatch(t *testing.T) {
	srv, _ := embeddingServer(t, [][]float32{{1, 0}}, 0)
	e := NewTextEmbedder(srv.URL, "test-key", "test-model", 3)

	_, err := e.EmbedQuery(context.Background(), "short vector")
	require.ErrorIs(t, err, ErrEmbeddingService)
	assert.Contains(t, err.Error(), "dimension")
}

func TestDimension(t *testing.T) {
	e := NewTextEmbedder("", "test-key", "", 1536)
	assert.Equal(t, 1536, e.Dimension())
}

package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmbeddingService is returned on model/backend failure. Callers retry at
// the document level: the whole batch is re-embedded, never partially upserted.
var ErrEmbeddingService = errors.New("embedding service error")

const (
	// batchMax bounds the number of inputs in one API request.
	batchMax = 64
	// maxAttempts bounds retries for a single API request.
	maxAttempts = 3
)

// Embedder encodes texts into fixed-dimension vectors. Output order matches
// input order 1:1.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// TextEmbedder calls an OpenAI-compatible embeddings endpoint. Works against
// api.openai.com or any local server speaking the same protocol.
type TextEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewTextEmbedder creates an embedder bound to one model and dimension.
func NewTextEmbedder(baseURL, apiKey, model string, dimensions int) *TextEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &TextEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}
}

// Dimension returns the fixed vector dimension for this embedder.
func (e *TextEmbedder) Dimension() int { return e.dimensions }

// EmbedBatch encodes texts in request-sized batches, preserving input order.
func (e *TextEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchMax {
		end := start + batchMax
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// EmbedQuery encodes a single query string.
func (e *TextEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *TextEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dimensions,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err == nil {
			if len(resp.Data) != len(texts) {
				return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
					ErrEmbeddingService, len(resp.Data), len(texts))
			}
			vectors := make([][]float32, len(resp.Data))
			for i, d := range resp.Data {
				if e.dimensions > 0 && len(d.Embedding) != e.dimensions {
					return nil, fmt.Errorf("%w: embedding dimension %d, expected %d",
						ErrEmbeddingService, len(d.Embedding), e.dimensions)
				}
				vectors[i] = d.Embedding
			}
			return vectors, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, lastErr)
}

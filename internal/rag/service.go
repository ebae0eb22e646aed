package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docuspace/docuspace/internal/documents"
	"github.com/docuspace/docuspace/internal/embeddings"
	"github.com/docuspace/docuspace/internal/llm"
	"github.com/docuspace/docuspace/internal/vector"
)

// ErrResetDisabled is returned when ResetIndex is called without the
// config gate being set. Resetting destroys every vector in the index.
var ErrResetDisabled = errors.New("index reset is disabled")

// Service is the retrieval core: chunking, embedding, vector storage and
// search aggregation behind one explicit context object. Constructed once at
// startup and injected where needed; no package-level state.
type Service struct {
	chunker    *documents.Chunker
	embedder   embeddings.Embedder
	store      vector.Store
	synth      *Synthesizer
	allowReset bool
}

// Options configures a Service.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	AllowReset   bool
}

// New wires the service and binds the index to the embedder's dimension.
func New(ctx context.Context, embedder embeddings.Embedder, store vector.Store, gen llm.Generator, opts Options) (*Service, error) {
	chunker, err := documents.NewChunker(opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("invalid chunking configuration: %w", err)
	}
	if err := store.EnsureIndex(ctx, embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("failed to bind index: %w", err)
	}
	return &Service{
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		synth:      NewSynthesizer(gen),
		allowReset: opts.AllowReset,
	}, nil
}

// DeleteDocument removes every chunk of a document. An empty spaceID deletes
// the document across all spaces. Idempotent: a second call reports 0.
func (s *Service) DeleteDocument(ctx context.Context, filename, spaceID string) (int, error) {
	var spaceIDs []string
	if spaceID != "" {
		spaceIDs = []string{spaceID}
	}
	filter, err := vector.BuildFilter(spaceIDs, filename)
	if err != nil {
		return 0, err
	}
	if filter == nil {
		return 0, fmt.Errorf("%w: filename required", vector.ErrInvalidFilter)
	}

	deleted, err := s.store.DeleteByFilter(ctx, filter)
	if err != nil {
		return deleted, err
	}
	slog.Info("deleted document chunks", "filename", filename, "space_id", spaceID, "deleted", deleted)
	return deleted, nil
}

// DeleteSpace removes every chunk indexed under a space.
func (s *Service) DeleteSpace(ctx context.Context, spaceID string) (int, error) {
	filter, err := vector.BuildFilter([]string{spaceID}, "")
	if err != nil {
		return 0, err
	}
	deleted, err := s.store.DeleteByFilter(ctx, filter)
	if err != nil {
		return deleted, err
	}
	slog.Info("deleted space chunks", "space_id", spaceID, "deleted", deleted)
	return deleted, nil
}

// Stats reports index-wide statistics.
func (s *Service) Stats(ctx context.Context) (vector.Stats, error) {
	return s.store.Stats(ctx)
}

// SpaceStats reports the indexed content of one space.
func (s *Service) SpaceStats(ctx context.Context, spaceID string) (vector.SpaceStats, error) {
	filter, err := vector.BuildFilter([]string{spaceID}, "")
	if err != nil {
		return vector.SpaceStats{}, err
	}
	chunks, err := s.store.Count(ctx, filter)
	if err != nil {
		return vector.SpaceStats{}, err
	}
	docs, err := s.store.ListFilenames(ctx, filter)
	if err != nil {
		return vector.SpaceStats{}, err
	}
	return vector.SpaceStats{
		SpaceID:        spaceID,
		TotalChunks:    chunks,
		TotalDocuments: len(docs),
		Documents:      docs,
	}, nil
}

// DocumentChunkCount reports how many chunks a document has in the index.
// An empty spaceID counts across all spaces.
func (s *Service) DocumentChunkCount(ctx context.Context, filename, spaceID string) (int, error) {
	var spaceIDs []string
	if spaceID != "" {
		spaceIDs = []string{spaceID}
	}
	filter, err := vector.BuildFilter(spaceIDs, filename)
	if err != nil {
		return 0, err
	}
	return s.store.Count(ctx, filter)
}

// ResetIndex deletes every vector. Irreversible and gated: production
// deployments keep AllowReset off.
func (s *Service) ResetIndex(ctx context.Context) error {
	if !s.allowReset {
		return ErrResetDisabled
	}
	slog.Warn("resetting vector index")
	return s.store.Reset(ctx)
}

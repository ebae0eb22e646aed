package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/docuspace/docuspace/internal/documents"
	"github.com/docuspace/docuspace/internal/vector"
)

// upsertAttempts bounds retries of a timed-out upsert. Upsert is keyed by
// chunk id, so re-issuing the whole call cannot duplicate vectors.
const upsertAttempts = 3

// IndexDocument runs the upload pipeline: chunk, embed, upsert. Re-indexing
// an existing (filename, space) replaces its chunks wholesale, so ordinals
// and total counts can never go stale.
func (s *Service) IndexDocument(ctx context.Context, text, filename, spaceID string) error {
	chunks, err := s.chunker.Chunk(text, filename, spaceID)
	if err != nil {
		return err
	}
	if spaceID == "" {
		spaceID = chunks[0].SpaceID
	}

	texts := lo.Map(chunks, func(c documents.Chunk, _ int) string { return c.Text })
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		// Nothing upserted yet: the document retries as a whole.
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]vector.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vector.Record{
			ID:          c.ID,
			Filename:    c.Filename,
			SpaceID:     c.SpaceID,
			Ordinal:     c.Ordinal,
			TotalChunks: c.TotalChunks,
			Text:        c.Text,
			Embedding:   vectors[i],
		}
	}

	// Drop any previous chunks of this document before writing the new
	// pass; a fresh document deletes nothing.
	replaceFilter, err := vector.BuildFilter([]string{spaceID}, filename)
	if err != nil {
		return err
	}
	if _, err := s.store.DeleteByFilter(ctx, replaceFilter); err != nil {
		return err
	}

	if err := s.upsertWithRetry(ctx, records); err != nil {
		return err
	}

	slog.Info("indexed document",
		"filename", filename, "space_id", spaceID, "chunks", len(records))
	return nil
}

// upsertWithRetry re-issues the whole upsert on timeout, bounded. Other
// store errors surface immediately: the caller decides whether to clean up.
func (s *Service) upsertWithRetry(ctx context.Context, records []vector.Record) error {
	var lastErr error
	for attempt := 1; attempt <= upsertAttempts; attempt++ {
		lastErr = s.store.Upsert(ctx, records)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, context.DeadlineExceeded) || ctx.Err() != nil {
			return lastErr
		}
		slog.Warn("upsert timed out, retrying", "attempt", attempt, "chunks", len(records))
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return lastErr
}

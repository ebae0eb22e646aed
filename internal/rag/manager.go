package rag

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/docuspace/docuspace/internal/db"
	"github.com/docuspace/docuspace/internal/documents"
)

// Manager pairs the retrieval core with the relational metadata store:
// uploads create a document record next to the chunks, deletions remove
// both. The two stores are not transactional with each other, so every
// operation deletes chunks before records: a record without chunks is
// recoverable by re-upload, orphaned vectors are not.
type Manager struct {
	svc  *Service
	meta *db.DB
}

func NewManager(svc *Service, meta *db.DB) *Manager {
	return &Manager{svc: svc, meta: meta}
}

// UploadFile extracts text from a file on disk, indexes it into the space
// and records the upload. If the record cannot be written the chunks are
// rolled back so no index state is left unreferenced.
func (m *Manager) UploadFile(ctx context.Context, owner, spaceID, path string) (*db.DocumentRecord, error) {
	text, err := documents.ExtractText(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload: %w", err)
	}
	filename := filepath.Base(path)

	// Re-upload replaces: the old record goes first, the old chunks are
	// replaced inside IndexDocument.
	if existing, err := m.meta.GetDocumentRecord(ctx, owner, spaceID, filename); err != nil {
		return nil, err
	} else if existing != nil {
		if err := m.meta.DeleteDocumentRecord(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	if err := m.svc.IndexDocument(ctx, text, filename, spaceID); err != nil {
		return nil, err
	}

	rec, err := m.meta.CreateDocumentRecord(ctx, &db.DocumentRecord{
		Filename:    filename,
		SpaceID:     spaceID,
		Owner:       owner,
		SizeBytes:   info.Size(),
		ContentType: contentType(filename),
	})
	if err != nil {
		// Keep the stores consistent: drop the chunks we just wrote.
		if _, cleanupErr := m.svc.DeleteDocument(ctx, filename, spaceID); cleanupErr != nil {
			slog.Error("failed to roll back chunks after record failure",
				"filename", filename, "space_id", spaceID, "error", cleanupErr)
		}
		return nil, err
	}
	return rec, nil
}

// DeleteDocument removes a document's chunks and its record. Chunk deletion
// failures abort before the record is touched.
func (m *Manager) DeleteDocument(ctx context.Context, owner, spaceID, filename string) (int, error) {
	deleted, err := m.svc.DeleteDocument(ctx, filename, spaceID)
	if err != nil {
		return deleted, err
	}

	rec, err := m.meta.GetDocumentRecord(ctx, owner, spaceID, filename)
	if err != nil {
		return deleted, err
	}
	if rec != nil {
		if err := m.meta.DeleteDocumentRecord(ctx, rec.ID); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// DeleteSpace cascades: chunks, then document records, then the space row.
func (m *Manager) DeleteSpace(ctx context.Context, owner, spaceID string) (int, error) {
	deleted, err := m.svc.DeleteSpace(ctx, spaceID)
	if err != nil {
		return deleted, err
	}
	if _, err := m.meta.DeleteDocumentRecordsBySpace(ctx, spaceID); err != nil {
		return deleted, err
	}
	if err := m.meta.DeleteSpace(ctx, owner, spaceID); err != nil {
		return deleted, err
	}
	slog.Info("deleted space", "space_id", spaceID, "chunks_deleted", deleted)
	return deleted, nil
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

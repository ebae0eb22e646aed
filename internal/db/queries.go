package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when a uniqueness constraint rejects an insert:
// same space name per owner, or same filename per (owner, space).
var ErrDuplicate = errors.New("record already exists")

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// CreateSpace creates a space with a generated id. Name is unique per owner.
func (db *DB) CreateSpace(ctx context.Context, owner, name, description string) (*Space, error) {
	var sp Space
	err := db.pool.QueryRow(ctx,
		`INSERT INTO spaces (id, owner, name, description)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, owner, name, description, created_at, updated_at`,
		uuid.NewString(), owner, name, description,
	).Scan(&sp.ID, &sp.Owner, &sp.Name, &sp.Description, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create space: %w", mapConstraint(err))
	}
	return &sp, nil
}

// GetSpace retrieves a space owned by owner, or nil when absent.
func (db *DB) GetSpace(ctx context.Context, owner, id string) (*Space, error) {
	var sp Space
	err := db.pool.QueryRow(ctx,
		`SELECT id, owner, name, description, created_at, updated_at
		 FROM spaces WHERE owner = $1 AND id = $2`,
		owner, id,
	).Scan(&sp.ID, &sp.Owner, &sp.Name, &sp.Description, &sp.CreatedAt, &sp.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}
	return &sp, nil
}

// ListSpaces returns every space owned by owner, newest first.
func (db *DB) ListSpaces(ctx context.Context, owner string) ([]*Space, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, owner, name, description, created_at, updated_at
		 FROM spaces WHERE owner = $1 ORDER BY created_at DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []*Space
	for rows.Next() {
		var sp Space
		if err := rows.Scan(&sp.ID, &sp.Owner, &sp.Name, &sp.Description, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, &sp)
	}
	return spaces, rows.Err()
}

// UpdateSpace updates name and description of a space.
func (db *DB) UpdateSpace(ctx context.Context, owner, id, name, description string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE spaces SET name = $3, description = $4, updated_at = NOW()
		 WHERE owner = $1 AND id = $2`,
		owner, id, name, description,
	)
	if err != nil {
		return fmt.Errorf("failed to update space: %w", mapConstraint(err))
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteSpace removes the space row. Chunks and document records must be
// deleted first; callers own that ordering.
func (db *DB) DeleteSpace(ctx context.Context, owner, id string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM spaces WHERE owner = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete space: %w", err)
	}
	return nil
}

// CreateDocumentRecord records an uploaded file's metadata.
func (db *DB) CreateDocumentRecord(ctx context.Context, rec *DocumentRecord) (*DocumentRecord, error) {
	out := *rec
	out.ID = uuid.New()
	err := db.pool.QueryRow(ctx,
		`INSERT INTO documents (id, filename, space_id, owner, size_bytes, content_type)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING uploaded_at`,
		out.ID, out.Filename, out.SpaceID, out.Owner, out.SizeBytes, out.ContentType,
	).Scan(&out.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", mapConstraint(err))
	}
	return &out, nil
}

// GetDocumentRecord retrieves a document record, or nil when absent.
func (db *DB) GetDocumentRecord(ctx context.Context, owner, spaceID, filename string) (*DocumentRecord, error) {
	var rec DocumentRecord
	err := db.pool.QueryRow(ctx,
		`SELECT id, filename, space_id, owner, size_bytes, content_type, uploaded_at
		 FROM documents WHERE owner = $1 AND space_id = $2 AND filename = $3`,
		owner, spaceID, filename,
	).Scan(&rec.ID, &rec.Filename, &rec.SpaceID, &rec.Owner, &rec.SizeBytes, &rec.ContentType, &rec.UploadedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document record: %w", err)
	}
	return &rec, nil
}

// ListDocumentRecords returns every document record in a space, newest first.
func (db *DB) ListDocumentRecords(ctx context.Context, spaceID string) ([]*DocumentRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, filename, space_id, owner, size_bytes, content_type, uploaded_at
		 FROM documents WHERE space_id = $1 ORDER BY uploaded_at DESC`,
		spaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list document records: %w", err)
	}
	defer rows.Close()

	var recs []*DocumentRecord
	for rows.Next() {
		var rec DocumentRecord
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.SpaceID, &rec.Owner, &rec.SizeBytes, &rec.ContentType, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document record: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// DeleteDocumentRecord removes one document record by id.
func (db *DB) DeleteDocumentRecord(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}
	return nil
}

// DeleteDocumentRecordsBySpace removes every document record in a space.
func (db *DB) DeleteDocumentRecordsBySpace(ctx context.Context, spaceID string) (int, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM documents WHERE space_id = $1`, spaceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete document records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

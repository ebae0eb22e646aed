package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Metadata fields understood by filter expressions.
const (
	FieldSpaceID  = "space_id"
	FieldFilename = "filename"
)

const (
	// UpsertBatchSize bounds a single upsert call to the backend.
	UpsertBatchSize = 100
	// ScanPageSize bounds a single page of a filtered id scan.
	ScanPageSize = 1000
	// maxScanPages caps the paginated scan so a backend that never signals
	// exhaustion cannot loop forever.
	maxScanPages = 10000
)

var (
	// ErrDimensionMismatch is returned when an existing index is bound to a
	// different embedding dimension than the one requested.
	ErrDimensionMismatch = errors.New("index dimension mismatch")
	// ErrInvalidFilter is returned for filter expressions the store cannot
	// translate, including an explicit empty space-id set.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrScanExhausted is returned when a paginated scan exceeds its page
	// budget without the backend signalling a short page.
	ErrScanExhausted = errors.New("filtered scan exceeded page budget")
)

// StoreError wraps a backend failure with the operation that produced it.
// Batch is >= 0 when the failure is attributable to a specific upsert batch.
type StoreError struct {
	Op    string
	Batch int
	Err   error
}

func (e *StoreError) Error() string {
	if e.Batch >= 0 {
		return fmt.Sprintf("vector store %s (batch %d): %v", e.Op, e.Batch, e.Err)
	}
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Batch: -1, Err: err}
}

// Record is a chunk plus its embedding, as persisted in the index.
type Record struct {
	ID          uuid.UUID
	Filename    string
	SpaceID     string
	Ordinal     int
	TotalChunks int
	Text        string
	Embedding   []float32
}

// Match is a query hit: chunk metadata plus cosine similarity in [-1, 1].
type Match struct {
	ID          uuid.UUID
	Filename    string
	SpaceID     string
	Ordinal     int
	TotalChunks int
	Text        string
	Score       float64
}

// Stats describes the index as a whole.
type Stats struct {
	TotalVectors  int     `json:"total_vectors"`
	Dimension     int     `json:"dimension"`
	IndexFullness float64 `json:"index_fullness"`
}

// SpaceStats describes the indexed content of a single space.
type SpaceStats struct {
	SpaceID        string   `json:"space_id"`
	TotalChunks    int      `json:"total_chunks"`
	TotalDocuments int      `json:"total_documents"`
	Documents      []string `json:"documents"`
}

// Store is the vector index contract. Production uses the pgvector
// implementation; tests and degraded mode use the in-memory one.
type Store interface {
	// EnsureIndex binds the index to an embedding dimension, creating it if
	// absent. Idempotent; fails with ErrDimensionMismatch if the existing
	// index was created with a different dimension.
	EnsureIndex(ctx context.Context, dimension int) error

	// Upsert writes records by id in batches of UpsertBatchSize. A failure
	// carries the zero-based batch index that did not complete.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to topK matches ranked by cosine similarity,
	// restricted to records matching filter (nil means unrestricted).
	Query(ctx context.Context, embedding []float32, filter Filter, topK int) ([]Match, error)

	// Delete removes records by id. Missing ids are not an error.
	Delete(ctx context.Context, ids []uuid.UUID) error

	// DeleteByFilter removes every record matching filter and reports how
	// many were deleted. Deleting with a filter that matches nothing
	// returns 0 without error.
	DeleteByFilter(ctx context.Context, filter Filter) (int, error)

	// ListFilenames returns the distinct filenames among records matching
	// filter, in no particular order.
	ListFilenames(ctx context.Context, filter Filter) ([]string, error)

	// Count returns the number of records matching filter.
	Count(ctx context.Context, filter Filter) (int, error)

	Stats(ctx context.Context) (Stats, error)

	// Reset removes every record. Irreversible; callers gate this.
	Reset(ctx context.Context) error
}

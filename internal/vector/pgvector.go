package vector

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PgStore is the pgvector-backed Store implementation. The chunks table is
// created on first EnsureIndex with the embedding dimension baked into the
// column type.
type PgStore struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewPgStore wraps an existing connection pool. The pool is shared with the
// metadata store and owned by the caller.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) EnsureIndex(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return storeErr("ensure index", fmt.Errorf("invalid dimension %d", dimension))
	}

	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return storeErr("ensure index", fmt.Errorf("failed to enable pgvector: %w", err))
	}

	var table *string
	if err := s.pool.QueryRow(ctx, `SELECT to_regclass('chunks')::text`).Scan(&table); err != nil {
		return storeErr("ensure index", err)
	}

	if table == nil {
		ddl := fmt.Sprintf(`
			CREATE TABLE chunks (
				id UUID PRIMARY KEY,
				filename TEXT NOT NULL,
				space_id TEXT NOT NULL,
				chunk_ordinal INT NOT NULL,
				total_chunks INT NOT NULL,
				content TEXT NOT NULL,
				embedding vector(%d) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, dimension)
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return storeErr("ensure index", fmt.Errorf("failed to create chunks table: %w", err))
		}
		stmts := []string{
			`CREATE INDEX idx_chunks_space ON chunks (space_id)`,
			`CREATE INDEX idx_chunks_space_filename ON chunks (space_id, filename)`,
			`CREATE INDEX idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops)`,
		}
		for _, stmt := range stmts {
			if _, err := s.pool.Exec(ctx, stmt); err != nil {
				return storeErr("ensure index", err)
			}
		}
		s.dimension = dimension
		return nil
	}

	// Existing table: the vector typmod is the bound dimension.
	var existing int
	err := s.pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'`,
	).Scan(&existing)
	if err != nil {
		return storeErr("ensure index", err)
	}
	if existing != dimension {
		return fmt.Errorf("%w: index bound to %d, embedder produces %d",
			ErrDimensionMismatch, existing, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *PgStore) Upsert(ctx context.Context, records []Record) error {
	for start, batchIdx := 0, 0; start < len(records); start, batchIdx = start+UpsertBatchSize, batchIdx+1 {
		end := start + UpsertBatchSize
		if end > len(records) {
			end = len(records)
		}

		batch := &pgx.Batch{}
		for _, r := range records[start:end] {
			batch.Queue(
				`INSERT INTO chunks (id, filename, space_id, chunk_ordinal, total_chunks, content, embedding)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (id) DO UPDATE SET
					filename = EXCLUDED.filename,
					space_id = EXCLUDED.space_id,
					chunk_ordinal = EXCLUDED.chunk_ordinal,
					total_chunks = EXCLUDED.total_chunks,
					content = EXCLUDED.content,
					embedding = EXCLUDED.embedding`,
				r.ID, r.Filename, r.SpaceID, r.Ordinal, r.TotalChunks, r.Text,
				pgvector.NewVector(r.Embedding),
			)
		}

		br := s.pool.SendBatch(ctx, batch)
		var batchErr error
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil && batchErr == nil {
				batchErr = err
			}
		}
		if err := br.Close(); err != nil && batchErr == nil {
			batchErr = err
		}
		if batchErr != nil {
			return &StoreError{Op: "upsert", Batch: batchIdx, Err: batchErr}
		}
	}
	return nil
}

func (s *PgStore) Query(ctx context.Context, embedding []float32, filter Filter, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	pred, err := toPredicate(filter)
	if err != nil {
		return nil, err
	}

	// pgvector cosine distance: similarity = 1 - (embedding <=> query).
	q := psql.Select("id", "filename", "space_id", "chunk_ordinal", "total_chunks", "content").
		Column(sq.Expr("1 - (embedding <=> ?) AS score", pgvector.NewVector(embedding))).
		From("chunks").
		OrderBy("score DESC").
		Limit(uint64(topK))
	if pred != nil {
		q = q.Where(pred)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, storeErr("query", err)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storeErr("query", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Filename, &m.SpaceID, &m.Ordinal, &m.TotalChunks, &m.Text, &m.Score); err != nil {
			return nil, storeErr("query", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("query", err)
	}
	return out, nil
}

func (s *PgStore) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE id = ANY($1)`, ids); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

// DeleteByFilter scans matching ids in bounded pages, then deletes them in
// batches. Two phases so a backend cap on a single delete cannot bite, and
// so the count reported is exact.
func (s *PgStore) DeleteByFilter(ctx context.Context, filter Filter) (int, error) {
	pred, err := toPredicate(filter)
	if err != nil {
		return 0, err
	}

	var (
		ids    []uuid.UUID
		cursor uuid.UUID
	)
	for page := 0; ; page++ {
		if page >= maxScanPages {
			return 0, storeErr("delete scan", ErrScanExhausted)
		}

		q := psql.Select("id").From("chunks").OrderBy("id").Limit(ScanPageSize)
		if pred != nil {
			q = q.Where(pred)
		}
		if page > 0 {
			q = q.Where(sq.Gt{"id": cursor})
		}
		sql, args, err := q.ToSql()
		if err != nil {
			return 0, storeErr("delete scan", err)
		}

		rows, err := s.pool.Query(ctx, sql, args...)
		if err != nil {
			return 0, storeErr("delete scan", err)
		}
		var pageIDs []uuid.UUID
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return 0, storeErr("delete scan", err)
			}
			pageIDs = append(pageIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return 0, storeErr("delete scan", err)
		}

		ids = append(ids, pageIDs...)
		if len(pageIDs) < ScanPageSize {
			break
		}
		cursor = pageIDs[len(pageIDs)-1]
	}

	deleted := 0
	for start := 0; start < len(ids); start += ScanPageSize {
		end := start + ScanPageSize
		if end > len(ids) {
			end = len(ids)
		}
		tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE id = ANY($1)`, ids[start:end])
		if err != nil {
			return deleted, storeErr("delete", err)
		}
		deleted += int(tag.RowsAffected())
	}
	return deleted, nil
}

func (s *PgStore) ListFilenames(ctx context.Context, filter Filter) ([]string, error) {
	pred, err := toPredicate(filter)
	if err != nil {
		return nil, err
	}
	q := psql.Select("DISTINCT filename").From("chunks")
	if pred != nil {
		q = q.Where(pred)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, storeErr("list filenames", err)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storeErr("list filenames", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storeErr("list filenames", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *PgStore) Count(ctx context.Context, filter Filter) (int, error) {
	pred, err := toPredicate(filter)
	if err != nil {
		return 0, err
	}
	q := psql.Select("COUNT(*)").From("chunks")
	if pred != nil {
		q = q.Where(pred)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, storeErr("count", err)
	}

	var n int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

func (s *PgStore) Stats(ctx context.Context) (Stats, error) {
	total, err := s.Count(ctx, nil)
	if err != nil {
		return Stats{}, err
	}
	// Postgres has no fullness notion; reported as 0 for interface parity.
	return Stats{TotalVectors: total, Dimension: s.dimension, IndexFullness: 0}, nil
}

func (s *PgStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE chunks`); err != nil {
		return storeErr("reset", err)
	}
	return nil
}

// toPredicate translates a Filter into a squirrel predicate. Field names are
// whitelisted so a filter can never smuggle arbitrary SQL.
func toPredicate(f Filter) (sq.Sqlizer, error) {
	switch v := f.(type) {
	case nil:
		return nil, nil
	case Equals:
		col, err := filterColumn(v.Field)
		if err != nil {
			return nil, err
		}
		return sq.Eq{col: v.Value}, nil
	case In:
		col, err := filterColumn(v.Field)
		if err != nil {
			return nil, err
		}
		if len(v.Values) == 0 {
			return nil, fmt.Errorf("%w: empty membership set", ErrInvalidFilter)
		}
		return sq.Eq{col: v.Values}, nil
	case And:
		conj := sq.And{}
		for _, sub := range v {
			p, err := toPredicate(sub)
			if err != nil {
				return nil, err
			}
			if p != nil {
				conj = append(conj, p)
			}
		}
		if len(conj) == 0 {
			return nil, nil
		}
		return conj, nil
	default:
		return nil, fmt.Errorf("%w: unknown filter type %T", ErrInvalidFilter, f)
	}
}

func filterColumn(field string) (string, error) {
	switch field {
	case FieldSpaceID, FieldFilename:
		return field, nil
	default:
		return "", fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, field)
	}
}

package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MemoryStore is a brute-force in-memory Store. It backs tests and degraded
// deployments where no Postgres is reachable; it honors the same contract as
// PgStore, including filter semantics and delete counts.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	records   map[uuid.UUID]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]Record)}
}

func (s *MemoryStore) EnsureIndex(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return storeErr("ensure index", fmt.Errorf("invalid dimension %d", dimension))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return fmt.Errorf("%w: index bound to %d, embedder produces %d",
			ErrDimensionMismatch, s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for start, batchIdx := 0, 0; start < len(records); start, batchIdx = start+UpsertBatchSize, batchIdx+1 {
		end := start + UpsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		for _, r := range records[start:end] {
			if s.dimension != 0 && len(r.Embedding) != s.dimension {
				return &StoreError{Op: "upsert", Batch: batchIdx,
					Err: fmt.Errorf("vector dimension %d, index bound to %d", len(r.Embedding), s.dimension)}
			}
			s.records[r.ID] = r
		}
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, embedding []float32, filter Filter, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Match
	for _, r := range s.records {
		if !matches(filter, r) {
			continue
		}
		out = append(out, Match{
			ID:          r.ID,
			Filename:    r.Filename,
			SpaceID:     r.SpaceID,
			Ordinal:     r.Ordinal,
			TotalChunks: r.TotalChunks,
			Text:        r.Text,
			Score:       cosine(embedding, r.Embedding),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		// Deterministic order for equal scores.
		return out[i].ID.String() < out[j].ID.String()
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *MemoryStore) DeleteByFilter(ctx context.Context, filter Filter) (int, error) {
	if _, err := toPredicate(filter); err != nil {
		// Same filter validation as the SQL path.
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, r := range s.records {
		if matches(filter, r) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) ListFilenames(ctx context.Context, filter Filter) ([]string, error) {
	if _, err := toPredicate(filter); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for _, r := range s.records {
		if matches(filter, r) {
			names = append(names, r.Filename)
		}
	}
	return lo.Uniq(names), nil
}

func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int, error) {
	if _, err := toPredicate(filter); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.records {
		if matches(filter, r) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{TotalVectors: len(s.records), Dimension: s.dimension, IndexFullness: 0}, nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[uuid.UUID]Record)
	return nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

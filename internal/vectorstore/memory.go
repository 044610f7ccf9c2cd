package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/propgen/ragcore/internal/fault"
)

// MemoryStore is an in-memory Store for tests and local development.
// It mirrors the Qdrant store's semantics: cosine scoring, id-based
// overwrite on upsert, metadata match filters.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Record)}
}

// EnsureCollection creates the collection if it does not exist yet.
func (s *MemoryStore) EnsureCollection(_ context.Context, collection string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		s.collections[collection] = make(map[string]Record)
	}
	return nil
}

// Upsert stores or overwrites records keyed by their chunk id.
func (s *MemoryStore) Upsert(_ context.Context, collection string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Record)
		s.collections[collection] = coll
	}
	for _, rec := range records {
		coll[rec.ID] = rec
	}
	return nil
}

// Query returns the top-k records by cosine similarity, best first.
func (s *MemoryStore) Query(_ context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	hits := make([]Hit, 0, len(coll))
	for _, rec := range coll {
		if !matchesAll(rec.Metadata, filter) {
			continue
		}
		hits = append(hits, Hit{
			ID:       rec.ID,
			Text:     rec.Text,
			Score:    cosine(vector, rec.Vector),
			Metadata: rec.Metadata,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteByMetadata removes every record whose metadata key equals value.
func (s *MemoryStore) DeleteByMetadata(_ context.Context, collection, key, value string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	var deleted uint64
	for id, rec := range coll {
		if rec.Metadata[key] == value {
			delete(coll, id)
			deleted++
		}
	}
	return deleted, nil
}

// DropCollection removes the whole collection.
func (s *MemoryStore) DropCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection]; !ok {
		return fmt.Errorf("memory store: collection %q: %w", collection, fault.ErrCollectionNotFound)
	}
	delete(s.collections, collection)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// matchesAll reports whether metadata carries every key/value pair in filter.
func matchesAll(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// cosine computes the cosine similarity of two vectors. Mismatched lengths
// and zero vectors score 0.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

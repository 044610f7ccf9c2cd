// Package vectorstore defines vector storage for embedded chunks and its
// Qdrant-backed implementation. Collections are tenant-scoped: every call
// names the collection it operates on, and a collection is only ever touched
// by requests for its own profile.
package vectorstore

import (
	"context"
)

// Record is one embedded chunk to persist.
type Record struct {
	// ID is the chunk id, "{document_id}_chunk_{index}". Re-upserting the
	// same id overwrites the stored point.
	ID string

	// Text is the chunk content.
	Text string

	// Vector is the document-task embedding of Text.
	Vector []float32

	// Metadata holds provenance: source, file_id, upload_timestamp, degraded.
	Metadata map[string]string
}

// Hit is one retrieved chunk with its similarity score.
type Hit struct {
	// ID is the chunk id of the stored record.
	ID string

	// Text is the chunk content.
	Text string

	// Score is the cosine similarity to the query vector.
	Score float32

	// Metadata holds the record's stored metadata.
	Metadata map[string]string
}

// Store is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type Store interface {
	// EnsureCollection creates the collection if it does not exist yet.
	// dims is the vector size; existing collections are left untouched.
	EnsureCollection(ctx context.Context, collection string, dims int) error

	// Upsert stores or overwrites a batch of records.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Query returns the top-k most similar records to the given vector,
	// best first. filter restricts hits to records whose metadata matches
	// every given key/value pair; nil means no filtering. An empty result
	// is not an error.
	Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Hit, error)

	// DeleteByMetadata removes every record whose metadata key equals value
	// and reports how many records matched.
	DeleteByMetadata(ctx context.Context, collection, key, value string) (uint64, error)

	// DropCollection removes the whole collection. Returns
	// fault.ErrCollectionNotFound when it does not exist.
	DropCollection(ctx context.Context, collection string) error

	// Close releases any resources held by the store.
	Close() error
}

package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/propgen/ragcore/internal/fault"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements Store backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client, shared across requests.
	client *qdrant.Client
}

// NewQdrantStore creates a QdrantStore. Collections are created lazily per
// profile via EnsureCollection, not here.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// EnsureCollection creates the collection if it does not already exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, dims int) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", collection, err)
	}

	return nil
}

// Upsert stores or overwrites a batch of records.
//
// Qdrant point ids must be UUIDs or unsigned integers, so each record's
// chunk id is mapped to a deterministic UUIDv5. The same chunk id always
// maps to the same point, keeping re-upserts idempotent; the original id
// is preserved in the payload under "chunk_id".
func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []Record) error {
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		payload := map[string]interface{}{
			"chunk_id": rec.ID,
			"content":  rec.Text,
		}
		for k, v := range rec.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID(rec.ID)),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Query performs a cosine similarity search and returns the top-k hits.
func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Hit, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         matchFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{
			Score:    r.Score,
			Metadata: make(map[string]string),
		}
		if p := r.Payload; p != nil {
			if v, ok := p["chunk_id"]; ok {
				hit.ID = v.GetStringValue()
			}
			if v, ok := p["content"]; ok {
				hit.Text = v.GetStringValue()
			}
			for k, v := range p {
				if k != "chunk_id" && k != "content" {
					hit.Metadata[k] = v.GetStringValue()
				}
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// DeleteByMetadata removes every record whose payload key equals value and
// reports how many points matched.
func (s *QdrantStore) DeleteByMetadata(ctx context.Context, collection, key, value string) (uint64, error) {
	f := matchFilter(map[string]string{key: value})

	matched, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         f,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(f),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return matched, nil
}

// DropCollection removes the whole collection.
func (s *QdrantStore) DropCollection(ctx context.Context, collection string) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("qdrant: collection %q: %w", collection, fault.ErrCollectionNotFound)
	}

	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("qdrant: failed to delete collection %q: %w", collection, err)
	}

	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Ping checks that the Qdrant server is reachable.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// matchFilter builds a must-match-all payload filter, or nil for no filter.
func matchFilter(kv map[string]string) *qdrant.Filter {
	if len(kv) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(kv))
	for k, v := range kv {
		conditions = append(conditions, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: conditions}
}

// pointUUID derives the stable Qdrant point UUID for a chunk id.
func pointUUID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

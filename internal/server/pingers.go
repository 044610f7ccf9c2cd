package server

import (
	"context"
	"fmt"

	"github.com/propgen/ragcore/internal/history"
	"github.com/propgen/ragcore/internal/vectorstore"
)

// VectorStorePinger probes the vector store backend. It satisfies the Pinger
// interface and is used by GET /api/ready.
type VectorStorePinger struct {
	// store is the vector store to probe.
	store *vectorstore.QdrantStore
}

// NewVectorStorePinger constructs a VectorStorePinger for the given store.
func NewVectorStorePinger(store *vectorstore.QdrantStore) *VectorStorePinger {
	return &VectorStorePinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *VectorStorePinger) Name() string { return "qdrant" }

// Ping calls the Qdrant health check RPC through the store.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *VectorStorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// HistoryPinger probes the conversation history database. It satisfies the
// Pinger interface and is used by GET /api/ready.
//
// History is a soft dependency at query time — the fetcher degrades to an
// empty transcript when the database is down — but /api/ready still reports
// it so operators see the degradation.
type HistoryPinger struct {
	// store is the history store to probe.
	store history.Store
}

// NewHistoryPinger constructs a HistoryPinger for the given store.
func NewHistoryPinger(store history.Store) *HistoryPinger {
	return &HistoryPinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *HistoryPinger) Name() string { return "history" }

// Ping checks that the history database is reachable.
func (p *HistoryPinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

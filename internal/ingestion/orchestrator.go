// Package ingestion drives the document ingestion flow end to end: validate
// the upload, extract markdown from the PDF, chunk, embed with the document
// task type, and upsert into the profile's collection. The upsert is the sole
// mutation; every earlier failure aborts before anything is written.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/propgen/ragcore/internal/chunker"
	"github.com/propgen/ragcore/internal/embedder"
	"github.com/propgen/ragcore/internal/extractor"
	"github.com/propgen/ragcore/internal/fault"
	"github.com/propgen/ragcore/internal/logging"
	"github.com/propgen/ragcore/internal/vectorstore"
)

// Result reports a completed ingestion.
type Result struct {
	// DocumentID is the generated id tagged onto every stored chunk.
	DocumentID string
	// ChunksCreated is the number of chunks stored.
	ChunksCreated int
	// DegradedChunks are the chunk indices whose embedding failed and was
	// stored as a zero vector.
	DegradedChunks []int
}

// Orchestrator ingests uploaded PDFs into a profile's collection.
type Orchestrator struct {
	embedder embedder.Embedder
	store    vectorstore.Store
	opts     chunker.Options

	// extract converts PDF bytes to markdown. Overridable in tests.
	extract func(data []byte) (string, error)
}

// New constructs an Orchestrator.
func New(emb embedder.Embedder, store vectorstore.Store, opts chunker.Options) *Orchestrator {
	return &Orchestrator{
		embedder: emb,
		store:    store,
		opts:     opts,
		extract:  extractor.PDFToMarkdown,
	}
}

// Ingest processes one uploaded PDF for the given profile. filename is the
// original upload name, recorded as each chunk's source.
//
// Chunk ids are "{document_id}_chunk_{index}", so re-upserting the same
// document id overwrites its chunks instead of duplicating them.
func (o *Orchestrator) Ingest(ctx context.Context, profileID, filename string, pdf []byte) (*Result, error) {
	log := logging.FromContext(ctx)

	if profileID == "" {
		return nil, fault.New(fault.KindInput, "ingestion: profile id is required")
	}
	if len(pdf) == 0 {
		return nil, fault.New(fault.KindInput, "ingestion: empty upload")
	}

	markdown, err := o.extract(pdf)
	if err != nil {
		return nil, err
	}

	chunks, err := chunker.Split([]chunker.Document{{Filename: filename, Markdown: markdown}}, o.opts)
	if err != nil {
		return nil, err
	}

	docID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("ingestion: generate document id: %w", err)
	}
	documentID := docID.String()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embedded, err := o.embedder.Embed(ctx, texts, embedder.TaskDocument)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, err, "ingestion: embed chunks")
	}

	degraded := make(map[int]bool, len(embedded.Degraded))
	for _, idx := range embedded.Degraded {
		degraded[idx] = true
	}

	uploadedAt := time.Now().UTC().Format(time.RFC3339)
	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		metadata := map[string]string{
			"source":           c.Source,
			"file_id":          documentID,
			"upload_timestamp": uploadedAt,
		}
		if degraded[i] {
			metadata["degraded"] = "true"
		}
		records[i] = vectorstore.Record{
			ID:       fmt.Sprintf("%s_chunk_%d", documentID, i),
			Text:     c.Text,
			Vector:   embedded.Vectors[i],
			Metadata: metadata,
		}
	}

	if err := o.store.EnsureCollection(ctx, profileID, o.embedder.Dimensions()); err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, err, "ingestion: ensure collection")
	}
	if err := o.store.Upsert(ctx, profileID, records); err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, err, "ingestion: upsert")
	}

	log.Info("ingestion: document stored",
		slog.String("profile_id", profileID),
		slog.String("document_id", documentID),
		slog.String("source", filename),
		slog.Int("chunks", len(records)),
		slog.Int("degraded", len(embedded.Degraded)),
	)

	return &Result{
		DocumentID:     documentID,
		ChunksCreated:  len(records),
		DegradedChunks: embedded.Degraded,
	}, nil
}

// DeleteDocument removes every chunk of the given document from the
// profile's collection and reports how many were removed.
func (o *Orchestrator) DeleteDocument(ctx context.Context, profileID, documentID string) (uint64, error) {
	if profileID == "" || documentID == "" {
		return 0, fault.New(fault.KindInput, "ingestion: profile id and document id are required")
	}
	deleted, err := o.store.DeleteByMetadata(ctx, profileID, "file_id", documentID)
	if err != nil {
		return 0, fault.Wrap(fault.KindUnavailable, err, "ingestion: delete document")
	}
	logging.FromContext(ctx).Info("ingestion: document deleted",
		slog.String("profile_id", profileID),
		slog.String("document_id", documentID),
		slog.Uint64("chunks_removed", deleted),
	)
	return deleted, nil
}

// DropProfile removes the profile's whole collection.
func (o *Orchestrator) DropProfile(ctx context.Context, profileID string) error {
	if profileID == "" {
		return fault.New(fault.KindInput, "ingestion: profile id is required")
	}
	if err := o.store.DropCollection(ctx, profileID); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("ingestion: collection dropped",
		slog.String("profile_id", profileID),
	)
	return nil
}

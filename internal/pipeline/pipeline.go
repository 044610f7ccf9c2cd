// Package pipeline implements retrieval-augmented answering: retrieve the
// top-k chunks for a query from the tenant's collection, assemble a prompt
// from system instructions, conversation transcript, and retrieved context,
// and call the chat-completion model once.
//
// The two stages run strictly in sequence. Retrieval produces an immutable
// record that generation reads; nothing is shared or mutated between them,
// so a request's intermediate state can never be observed half-built.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/propgen/ragcore/internal/embedder"
	"github.com/propgen/ragcore/internal/fault"
	"github.com/propgen/ragcore/internal/history"
	"github.com/propgen/ragcore/internal/logging"
	"github.com/propgen/ragcore/internal/vectorstore"
)

// defaultTopK is the number of chunks retrieved when the request does not
// say otherwise.
const defaultTopK = 6

// Request is one answering request.
type Request struct {
	// Question is the user's query.
	Question string
	// ProfileID is the tenant whose collection and history are used.
	ProfileID string
	// TopK overrides the configured retrieval depth. Zero means the default.
	TopK int
	// Filter restricts retrieval to chunks whose metadata matches every
	// given key/value pair. Nil means no filtering.
	Filter map[string]string
	// SystemPrompt replaces the default system prompt. Missing placeholders
	// are patched in so the rendered prompt is always fully substituted.
	SystemPrompt string
	// HistoryLimit overrides the configured number of prior messages pulled
	// into the transcript. Zero means the configured default.
	HistoryLimit int
}

// SourceChunk is one retrieved chunk returned alongside the answer.
type SourceChunk struct {
	// ID is the chunk id.
	ID string
	// Text is the chunk content.
	Text string
	// Score is the similarity to the query.
	Score float32
	// Metadata is the chunk's stored metadata.
	Metadata map[string]string
}

// Answer is the result of an answering request.
type Answer struct {
	// Text is the model's response.
	Text string
	// SourceChunks are the retrieved chunks, in retrieval order.
	SourceChunks []SourceChunk
	// HistoryUsed reports whether prior conversation turns were injected.
	HistoryUsed bool
}

// retrieval is the immutable record passed from the retrieve stage to the
// generate stage.
type retrieval struct {
	hits        []vectorstore.Hit
	transcript  string
	historyUsed bool
}

// Pipeline answers queries against a tenant's ingested documents.
type Pipeline struct {
	embedder embedder.Embedder
	store    vectorstore.Store
	chat     model.ToolCallingChatModel
	fetcher  *history.Fetcher
	topK     int
}

// New constructs a Pipeline. topK <= 0 selects the default of 6.
func New(emb embedder.Embedder, store vectorstore.Store, chat model.ToolCallingChatModel, fetcher *history.Fetcher, topK int) *Pipeline {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Pipeline{
		embedder: emb,
		store:    store,
		chat:     chat,
		fetcher:  fetcher,
		topK:     topK,
	}
}

// Answer runs retrieve then generate for the request.
func (p *Pipeline) Answer(ctx context.Context, req *Request) (*Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fault.New(fault.KindInput, "pipeline: question is empty")
	}
	if req.ProfileID == "" {
		return nil, fault.New(fault.KindInput, "pipeline: profile id is empty")
	}

	r, err := p.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.generate(ctx, req, r)
}

// retrieve embeds the question and queries the tenant's collection.
// Zero hits is a valid outcome: the model answers from history alone.
func (p *Pipeline) retrieve(ctx context.Context, req *Request) (*retrieval, error) {
	log := logging.FromContext(ctx)

	hist := p.fetcher.Fetch(ctx, req.ProfileID, req.HistoryLimit)

	res, err := p.embedder.Embed(ctx, []string{req.Question}, embedder.TaskQuery)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, err, "pipeline: embed query")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = p.topK
	}

	hits, err := p.store.Query(ctx, req.ProfileID, res.Vectors[0], topK, req.Filter)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, err, "pipeline: query vector store")
	}

	log.Info("pipeline: retrieved chunks",
		slog.String("profile_id", req.ProfileID),
		slog.Int("hits", len(hits)),
		slog.Bool("history_degraded", hist.Degraded),
	)

	return &retrieval{
		hits:        hits,
		transcript:  hist.Transcript,
		historyUsed: !hist.Degraded && len(hist.Messages) > 0,
	}, nil
}

// generate renders the prompt from the retrieval record and calls the chat
// model once. Model errors propagate; there is no retry.
func (p *Pipeline) generate(ctx context.Context, req *Request, r *retrieval) (*Answer, error) {
	log := logging.FromContext(ctx)

	texts := make([]string, 0, len(r.hits))
	sources := make([]SourceChunk, 0, len(r.hits))
	for _, hit := range r.hits {
		texts = append(texts, hit.Text)
		sources = append(sources, SourceChunk{
			ID:       hit.ID,
			Text:     hit.Text,
			Score:    hit.Score,
			Metadata: hit.Metadata,
		})
	}
	docsContent := strings.Join(texts, "\n\n")

	systemPrompt := renderSystemPrompt(normalizeSystemPrompt(req.SystemPrompt), r.transcript, docsContent)

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(req.Question),
	}

	resp, err := p.chat.Generate(ctx, messages)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, err, "pipeline: generate")
	}
	if resp == nil {
		return nil, fmt.Errorf("pipeline: chat model returned nil response")
	}

	log.Info("pipeline: answer generated",
		slog.String("profile_id", req.ProfileID),
		slog.Int("source_chunks", len(sources)),
		slog.Int("answer_chars", len(resp.Content)),
	)

	return &Answer{
		Text:         resp.Content,
		SourceChunks: sources,
		HistoryUsed:  r.historyUsed,
	}, nil
}

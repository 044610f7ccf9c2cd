package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/propgen/ragcore/internal/embedder"
	"github.com/propgen/ragcore/internal/fault"
	"github.com/propgen/ragcore/internal/history"
	"github.com/propgen/ragcore/internal/vectorstore"
)

// stubEmbedder returns a fixed vector for every text.
type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string, _ embedder.TaskType) (*embedder.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	res := &embedder.Result{Vectors: make([][]float32, len(texts))}
	for i := range texts {
		res.Vectors[i] = s.vector
	}
	return res, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vector) }

// stubChat records the messages it was asked to generate from.
type stubChat struct {
	reply    string
	err      error
	lastMsgs []*schema.Message
}

func (s *stubChat) Generate(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	s.lastMsgs = msgs
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.reply, nil), nil
}

func (s *stubChat) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (s *stubChat) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return s, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPipeline wires a pipeline over the in-memory store with one
// pre-ingested chunk for profile "client-a".
func newTestPipeline(t *testing.T, chat *stubChat) (*Pipeline, *vectorstore.MemoryStore) {
	t.Helper()
	store := vectorstore.NewMemoryStore()
	err := store.Upsert(context.Background(), "client-a", []vectorstore.Record{
		{
			ID:       "doc1_chunk_0",
			Text:     "The project fee is ten thousand dollars.",
			Vector:   []float32{1, 0},
			Metadata: map[string]string{"source": "proposal.pdf", "file_id": "doc1"},
		},
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}

	hs, err := history.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = hs.Close() })

	fetcher := history.NewFetcher(hs, 10, testLogger())
	emb := &stubEmbedder{vector: []float32{1, 0}}
	return New(emb, store, chat, fetcher, 0), store
}

func TestPipeline_Answer(t *testing.T) {
	t.Parallel()

	chat := &stubChat{reply: "The fee is $10,000."}
	p, _ := newTestPipeline(t, chat)

	ans, err := p.Answer(context.Background(), &Request{
		Question:  "What is the fee?",
		ProfileID: "client-a",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "The fee is $10,000." {
		t.Errorf("answer = %q", ans.Text)
	}
	if len(ans.SourceChunks) != 1 || ans.SourceChunks[0].ID != "doc1_chunk_0" {
		t.Fatalf("source chunks = %#v", ans.SourceChunks)
	}
	if ans.HistoryUsed {
		t.Error("no history was stored, HistoryUsed should be false")
	}

	// The rendered system prompt carries the chunk text and no leftover
	// placeholder tokens.
	if len(chat.lastMsgs) != 2 {
		t.Fatalf("expected system + user message, got %d", len(chat.lastMsgs))
	}
	sys := chat.lastMsgs[0].Content
	if !strings.Contains(sys, "The project fee is ten thousand dollars.") {
		t.Errorf("system prompt missing retrieved context:\n%s", sys)
	}
	if strings.Contains(sys, "{context}") || strings.Contains(sys, "{conversation_history}") {
		t.Errorf("system prompt has unsubstituted placeholders:\n%s", sys)
	}
	if !strings.Contains(sys, history.EmptyTranscript) {
		t.Errorf("system prompt should carry the empty-history sentinel:\n%s", sys)
	}
	if chat.lastMsgs[1].Content != "What is the fee?" {
		t.Errorf("user message = %q", chat.lastMsgs[1].Content)
	}
}

func TestPipeline_CustomPromptGetsContextAppended(t *testing.T) {
	t.Parallel()

	chat := &stubChat{reply: "ok"}
	p, _ := newTestPipeline(t, chat)

	_, err := p.Answer(context.Background(), &Request{
		Question:     "What is the fee?",
		ProfileID:    "client-a",
		SystemPrompt: "You are a billing specialist.",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	sys := chat.lastMsgs[0].Content
	// Exactly one context block, appended after the custom instructions.
	if got := strings.Count(sys, "Document Context:"); got != 1 {
		t.Errorf("expected exactly one context block, got %d:\n%s", got, sys)
	}
	if !strings.Contains(sys, "You are a billing specialist.") {
		t.Errorf("custom instructions dropped:\n%s", sys)
	}
	if strings.Index(sys, "You are a billing specialist.") > strings.Index(sys, "The project fee is ten thousand dollars.") {
		t.Errorf("context should be appended after the custom prompt:\n%s", sys)
	}
	if strings.Contains(sys, "{context}") || strings.Contains(sys, "{conversation_history}") {
		t.Errorf("unsubstituted placeholders remain:\n%s", sys)
	}
}

func TestPipeline_CustomPromptWithPlaceholdersKeptAsIs(t *testing.T) {
	t.Parallel()

	chat := &stubChat{reply: "ok"}
	p, _ := newTestPipeline(t, chat)

	_, err := p.Answer(context.Background(), &Request{
		Question:     "What is the fee?",
		ProfileID:    "client-a",
		SystemPrompt: "History:\n{conversation_history}\nDocs:\n{context}",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	sys := chat.lastMsgs[0].Content
	if got := strings.Count(sys, "The project fee is ten thousand dollars."); got != 1 {
		t.Errorf("context substituted %d times, want 1:\n%s", got, sys)
	}
	if strings.Contains(sys, "Document Context:") {
		t.Errorf("no extra context block should be added when the placeholder exists:\n%s", sys)
	}
}

func TestPipeline_EmptyCollection(t *testing.T) {
	t.Parallel()

	chat := &stubChat{reply: "I have no documents for that."}
	p, _ := newTestPipeline(t, chat)

	// A profile with no ingested documents still gets an answer.
	ans, err := p.Answer(context.Background(), &Request{
		Question:  "Anything on file?",
		ProfileID: "brand-new-client",
	})
	if err != nil {
		t.Fatalf("Answer on empty collection: %v", err)
	}
	if len(ans.SourceChunks) != 0 {
		t.Errorf("expected no source chunks, got %d", len(ans.SourceChunks))
	}
	if ans.Text == "" {
		t.Error("expected a model answer even with zero hits")
	}
}

func TestPipeline_MetadataFilter(t *testing.T) {
	t.Parallel()

	chat := &stubChat{reply: "ok"}
	p, store := newTestPipeline(t, chat)
	_ = store.Upsert(context.Background(), "client-a", []vectorstore.Record{
		{
			ID:       "doc2_chunk_0",
			Text:     "Timeline is six weeks.",
			Vector:   []float32{1, 0},
			Metadata: map[string]string{"source": "sow.pdf", "file_id": "doc2"},
		},
	})

	ans, err := p.Answer(context.Background(), &Request{
		Question:  "What is the timeline?",
		ProfileID: "client-a",
		Filter:    map[string]string{"file_id": "doc2"},
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(ans.SourceChunks) != 1 || ans.SourceChunks[0].ID != "doc2_chunk_0" {
		t.Fatalf("filter not applied, got %#v", ans.SourceChunks)
	}
}

func TestPipeline_HistoryUsed(t *testing.T) {
	t.Parallel()

	chat := &stubChat{reply: "ok"}
	store := vectorstore.NewMemoryStore()
	hs, err := history.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = hs.Close() })
	_ = hs.Append(context.Background(), history.Message{ProfileID: "client-a", Role: history.RoleUser, Content: "Earlier question"})

	p := New(&stubEmbedder{vector: []float32{1, 0}}, store, chat, history.NewFetcher(hs, 10, testLogger()), 0)
	ans, err := p.Answer(context.Background(), &Request{Question: "Follow-up?", ProfileID: "client-a"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !ans.HistoryUsed {
		t.Error("stored history should set HistoryUsed")
	}
	if !strings.Contains(chat.lastMsgs[0].Content, "USER: Earlier question") {
		t.Errorf("transcript missing from prompt:\n%s", chat.lastMsgs[0].Content)
	}
}

func TestPipeline_InputValidation(t *testing.T) {
	t.Parallel()

	chat := &stubChat{reply: "ok"}
	p, _ := newTestPipeline(t, chat)

	_, err := p.Answer(context.Background(), &Request{Question: "  ", ProfileID: "client-a"})
	if fault.KindOf(err) != fault.KindInput {
		t.Errorf("empty question: kind = %v, want KindInput", fault.KindOf(err))
	}

	_, err = p.Answer(context.Background(), &Request{Question: "q"})
	if fault.KindOf(err) != fault.KindInput {
		t.Errorf("empty profile: kind = %v, want KindInput", fault.KindOf(err))
	}
}

func TestPipeline_ModelErrorPropagates(t *testing.T) {
	t.Parallel()

	chat := &stubChat{err: errors.New("rate limited")}
	p, _ := newTestPipeline(t, chat)

	_, err := p.Answer(context.Background(), &Request{Question: "q", ProfileID: "client-a"})
	if err == nil {
		t.Fatal("expected the model error to propagate")
	}
	if fault.KindOf(err) != fault.KindUnavailable {
		t.Errorf("kind = %v, want KindUnavailable", fault.KindOf(err))
	}
}

func TestNormalizeSystemPrompt_Default(t *testing.T) {
	t.Parallel()

	got := normalizeSystemPrompt("")
	if !strings.Contains(got, "{context}") || !strings.Contains(got, "{conversation_history}") {
		t.Errorf("default prompt must carry both placeholders:\n%s", got)
	}
}

func TestNormalizeSystemPrompt_PrependsHistory(t *testing.T) {
	t.Parallel()

	got := normalizeSystemPrompt("Docs:\n{context}")
	if !strings.HasPrefix(got, "Previous Conversation History:\n{conversation_history}") {
		t.Errorf("history block should be prepended:\n%s", got)
	}
}

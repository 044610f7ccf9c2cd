package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// newTestStore returns an in-memory SQLiteStore that is torn down with the test.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:): %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSQLiteStore_AppendAndRecent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	turns := []struct {
		role    Role
		content string
	}{
		{RoleUser, "What does the proposal cover?"},
		{RoleAssistant, "It covers discovery and design."},
		{RoleUser, "And the payment terms?"},
	}
	for i, turn := range turns {
		err := s.Append(ctx, Message{
			ProfileID: "client-a",
			Role:      turn.role,
			Content:   turn.content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append[%d]: %v", i, err)
		}
	}

	msgs, err := s.Recent(ctx, "client-a", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	// Oldest-first ordering.
	if msgs[0].Content != "What does the proposal cover?" {
		t.Errorf("first message = %q, want the oldest", msgs[0].Content)
	}
	if msgs[2].Content != "And the payment terms?" {
		t.Errorf("last message = %q, want the newest", msgs[2].Content)
	}
	if msgs[1].Role != RoleAssistant {
		t.Errorf("middle role = %q, want assistant", msgs[1].Role)
	}
}

func TestSQLiteStore_RecentLimitKeepsTail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		msg := Message{
			ProfileID: "client-a",
			Role:      RoleUser,
			Content:   strings.Repeat("x", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Append(ctx, msg); err != nil {
			t.Fatalf("Append[%d]: %v", i, err)
		}
	}

	msgs, err := s.Recent(ctx, "client-a", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	// The limit keeps the newest messages, still ordered oldest-first.
	if msgs[0].Content != "xxxx" || msgs[1].Content != "xxxxx" {
		t.Errorf("expected the two newest messages in order, got %q then %q", msgs[0].Content, msgs[1].Content)
	}
}

func TestSQLiteStore_ProfileIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.Append(ctx, Message{ProfileID: "client-a", Role: RoleUser, Content: "a's question"})
	_ = s.Append(ctx, Message{ProfileID: "client-b", Role: RoleUser, Content: "b's question"})

	msgs, err := s.Recent(ctx, "client-a", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "a's question" {
		t.Fatalf("profile a should only see its own messages, got %#v", msgs)
	}
}

func TestSQLiteStore_RecentEmpty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	msgs, err := s.Recent(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
}

func TestFetcher_Transcript(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	_ = s.Append(ctx, Message{ProfileID: "client-a", Role: RoleUser, Content: "Hello", CreatedAt: base})
	_ = s.Append(ctx, Message{ProfileID: "client-a", Role: RoleAssistant, Content: "Hi there", CreatedAt: base.Add(time.Minute)})

	f := NewFetcher(s, 10, testLogger())
	res := f.Fetch(ctx, "client-a", 0)
	if res.Degraded {
		t.Fatalf("unexpected degradation: %s", res.Reason)
	}
	want := "USER: Hello\nASSISTANT: Hi there"
	if res.Transcript != want {
		t.Errorf("transcript = %q, want %q", res.Transcript, want)
	}
}

func TestFetcher_LimitOverride(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	_ = s.Append(ctx, Message{ProfileID: "client-a", Role: RoleUser, Content: "first", CreatedAt: base})
	_ = s.Append(ctx, Message{ProfileID: "client-a", Role: RoleAssistant, Content: "second", CreatedAt: base.Add(time.Minute)})
	_ = s.Append(ctx, Message{ProfileID: "client-a", Role: RoleUser, Content: "third", CreatedAt: base.Add(2 * time.Minute)})

	f := NewFetcher(s, 10, testLogger())
	res := f.Fetch(ctx, "client-a", 2)
	want := "ASSISTANT: second\nUSER: third"
	if res.Transcript != want {
		t.Errorf("transcript = %q, want %q", res.Transcript, want)
	}
}

func TestFetcher_EmptyHistory(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	f := NewFetcher(s, 10, testLogger())
	res := f.Fetch(context.Background(), "new-client", 0)
	if res.Degraded {
		t.Fatalf("empty history is not a degradation: %s", res.Reason)
	}
	if res.Transcript != EmptyTranscript {
		t.Errorf("transcript = %q, want the empty sentinel", res.Transcript)
	}
}

// failingStore always errors on Recent.
type failingStore struct{}

func (failingStore) Append(context.Context, Message) error { return nil }
func (failingStore) Recent(context.Context, string, int) ([]Message, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) Ping(context.Context) error { return nil }
func (failingStore) Close() error               { return nil }

func TestFetcher_StoreFailureDegrades(t *testing.T) {
	t.Parallel()

	f := NewFetcher(failingStore{}, 10, testLogger())
	res := f.Fetch(context.Background(), "client-a", 0)
	if !res.Degraded {
		t.Fatal("store failure should degrade the result, not error")
	}
	if res.Transcript != EmptyTranscript {
		t.Errorf("degraded transcript = %q, want the empty sentinel", res.Transcript)
	}
	if !strings.Contains(res.Reason, "connection refused") {
		t.Errorf("reason should carry the cause, got %q", res.Reason)
	}
}

func TestFetcher_NilStoreDegrades(t *testing.T) {
	t.Parallel()

	f := NewFetcher(nil, 10, testLogger())
	res := f.Fetch(context.Background(), "client-a", 0)
	if !res.Degraded {
		t.Fatal("nil store should degrade the result")
	}
	if res.Transcript != EmptyTranscript {
		t.Errorf("transcript = %q, want the empty sentinel", res.Transcript)
	}
}

func TestFetcher_SystemRoleRenderedVerbatim(t *testing.T) {
	t.Parallel()

	f := NewFetcher(nil, 10, testLogger())
	got := f.transcript([]Message{
		{Role: RoleSystem, Content: "policy note"},
		{Role: RoleUser, Content: "question"},
	})
	want := "SYSTEM: policy note\nUSER: question"
	if got != want {
		t.Errorf("transcript = %q, want %q", got, want)
	}
}

func TestFetcher_UnknownRoleTreatedAsUser(t *testing.T) {
	t.Parallel()

	f := NewFetcher(nil, 10, testLogger())
	got := f.transcript([]Message{{Role: Role("tool"), Content: "odd turn"}})
	if got != "USER: odd turn" {
		t.Errorf("transcript = %q, want unknown role rendered as USER", got)
	}
}

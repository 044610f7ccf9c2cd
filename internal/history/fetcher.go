package history

import (
	"context"
	"log/slog"
	"strings"

	"github.com/propgen/ragcore/internal/budget"
)

// EmptyTranscript is the transcript used when a profile has no prior
// conversation, or when history could not be fetched at all.
const EmptyTranscript = "No previous conversation history available."

// Result is the outcome of a history fetch. History is a best-effort
// input to answering: a fetch failure degrades the result instead of
// failing the query.
type Result struct {
	// Messages are the fetched turns, oldest-first. Nil when Degraded.
	Messages []Message
	// Transcript is the prompt-ready rendering of Messages.
	Transcript string
	// Degraded is true when the store could not be read and the
	// transcript fell back to EmptyTranscript.
	Degraded bool
	// Reason describes the degradation, empty otherwise.
	Reason string
}

// Fetcher reads recent conversation history and renders it for prompting.
type Fetcher struct {
	store Store
	limit int
	log   *slog.Logger
}

// NewFetcher constructs a Fetcher. store may be nil when history is
// disabled; every fetch then degrades cleanly. limit <= 0 means the
// default of 10 messages.
func NewFetcher(store Store, limit int, log *slog.Logger) *Fetcher {
	if limit <= 0 {
		limit = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{store: store, limit: limit, log: log}
}

// Fetch returns the recent conversation for the profile as a transcript.
// limit overrides the configured message count when positive.
// It never returns an error: store failures are reported in the Result so
// a broken history database cannot take down answering.
func (f *Fetcher) Fetch(ctx context.Context, profileID string, limit int) Result {
	if limit <= 0 {
		limit = f.limit
	}
	if f.store == nil {
		return Result{
			Transcript: EmptyTranscript,
			Degraded:   true,
			Reason:     "history store disabled",
		}
	}

	msgs, err := f.store.Recent(ctx, profileID, limit)
	if err != nil {
		f.log.Warn("history: fetch failed, answering without history",
			slog.String("profile_id", profileID),
			slog.String("error", err.Error()),
		)
		return Result{
			Transcript: EmptyTranscript,
			Degraded:   true,
			Reason:     err.Error(),
		}
	}

	return Result{
		Messages:   msgs,
		Transcript: f.transcript(msgs),
	}
}

// transcript renders messages as "ROLE: content" lines, one per turn.
func (f *Fetcher) transcript(msgs []Message) string {
	if len(msgs) == 0 {
		return EmptyTranscript
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		switch role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			f.log.Warn("history: unknown message role, treating as user",
				slog.String("role", string(role)),
			)
			role = RoleUser
		}
		lines = append(lines, strings.ToUpper(string(role))+": "+m.Content)
	}
	// Long-winded turns can blow the prompt budget even within the message
	// limit; drop oldest lines until the transcript fits.
	lines = budget.TrimLines(lines, budget.DefaultMaxTranscriptTokens)
	return strings.Join(lines, "\n")
}

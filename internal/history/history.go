// Package history provides the conversation history store and the soft-fail
// fetcher that renders history into a prompt transcript. Each client profile
// has its own conversation thread; messages are persisted by the API layer
// after every answered query and injected into the LLM context on the next.
package history

import (
	"context"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the end user.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the LLM.
	RoleAssistant Role = "assistant"
	// RoleSystem is an instruction turn. This backend never writes them,
	// but shared databases can hold rows seeded by other services.
	RoleSystem Role = "system"
)

// Message is a single turn in a conversation.
type Message struct {
	// ProfileID identifies the client profile the message belongs to.
	ProfileID string
	// ConversationID groups messages into a conversation thread.
	ConversationID string
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// Store persists and retrieves conversation history keyed by profile.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append persists a single message for the given profile.
	Append(ctx context.Context, msg Message) error
	// Recent returns the most recent n messages for the profile, ordered
	// oldest-first so they read as a chronological transcript.
	// If fewer than n messages exist, all are returned.
	Recent(ctx context.Context, profileID string, n int) ([]Message, error)
	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

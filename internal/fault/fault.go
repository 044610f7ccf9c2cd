// Package fault defines the error taxonomy shared by the RAG core.
// Every error that crosses a package boundary carries a Kind so the HTTP
// layer can map it to the right response class without string matching.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	// KindInternal is the zero value: an unexpected failure inside the core.
	KindInternal Kind = iota

	// KindInput marks caller mistakes: empty file, unreadable PDF, missing
	// identifiers. Never retried, always client-fault class.
	KindInput

	// KindUnavailable marks a backend that is unreachable or unconfigured:
	// embedding backend without credentials, vector store down.
	KindUnavailable

	// KindNotFound marks a missing entity, e.g. dropping a collection that
	// does not exist.
	KindNotFound
)

// Sentinel errors for the conditions the core promises to report distinctly.
var (
	// ErrExtractionEmpty indicates the PDF extractor produced no text.
	ErrExtractionEmpty = New(KindInput, "no text content could be extracted from the document")

	// ErrNoChunks indicates chunking produced zero retrievable units.
	ErrNoChunks = New(KindInput, "unable to chunk the document meaningfully")

	// ErrCollectionNotFound indicates the named vector collection does not exist.
	ErrCollectionNotFound = New(KindNotFound, "collection not found")

	// ErrEmbedderUnconfigured indicates the embedding backend has no credentials.
	ErrEmbedderUnconfigured = New(KindUnavailable, "embedding backend is not configured")
)

// Error is an error with an attached Kind and optional wrapped cause.
type Error struct {
	// kind classifies the error.
	kind Kind
	// msg is the human-readable cause.
	msg string
	// err is the wrapped underlying error, may be nil.
	err error
}

// New constructs a fault with the given kind and message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.err }

// Kind returns the classification of this error.
func (e *Error) Kind() Kind { return e.kind }

// Is reports whether target is the same sentinel. Two faults match when they
// share both kind and message, so wrapped sentinels compare correctly.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind && e.msg == t.msg
}

// KindOf extracts the Kind from err, walking the wrap chain.
// Errors that carry no fault default to KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	return KindInternal
}

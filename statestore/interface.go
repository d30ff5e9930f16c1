// Package statestore keeps diagnostic transcripts of completed turns.
//
// A transcript is a record of what was asked and answered in one server-side
// conversation. It is never used to restore a session: identifiers issued by
// the service are ephemeral.
package statestore

import (
	"context"
	"errors"
	"time"
)

// defaultTTLHours is the default TTL for transcripts (24 hours).
const defaultTTLHours = 24

// defaultListLimit applies when ListOptions.Limit is zero.
const defaultListLimit = 100

// Exchange is one completed turn.
type Exchange struct {
	InvocationID int       `json:"invocation_id"`
	Kind         string    `json:"kind"` // "chat" or "compose"
	Prompt       string    `json:"prompt"`
	Response     string    `json:"response"`
	Suggestions  []string  `json:"suggestions,omitempty"`
	Style        string    `json:"style,omitempty"`
	At           time.Time `json:"at"`
}

// Transcript is every recorded exchange of one conversation, oldest first.
type Transcript struct {
	ConversationID string
	Exchanges      []Exchange
	UpdatedAt      time.Time
}

// ListOptions provides pagination for listing transcripts, newest first.
type ListOptions struct {
	// Limit is the maximum number of conversation IDs to return.
	// If 0, a default limit of 100 is applied.
	Limit int

	// Offset is the number of conversations to skip.
	Offset int
}

// Store persists transcripts.
type Store interface {
	// Append records an exchange, creating the transcript if needed.
	Append(ctx context.Context, conversationID string, ex Exchange) error

	// Load returns the transcript of a conversation.
	// Returns ErrNotFound if nothing was recorded for it.
	Load(ctx context.Context, conversationID string) (*Transcript, error)

	// Delete removes a transcript.
	Delete(ctx context.Context, conversationID string) error

	// List returns conversation IDs ordered by most recent activity.
	List(ctx context.Context, opts ListOptions) ([]string, error)
}

// ErrNotFound is returned when a transcript doesn't exist in the store.
var ErrNotFound = errors.New("transcript not found")

// ErrInvalidID is returned when an empty conversation ID is provided.
var ErrInvalidID = errors.New("invalid conversation ID")

func page(ids []string, opts ListOptions) []string {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if opts.Offset >= len(ids) {
		return []string{}
	}
	ids = ids[max(opts.Offset, 0):]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields.
const (
	// ContextKeyConversationID identifies the server-side conversation.
	ContextKeyConversationID contextKey = "conversation_id"

	// ContextKeyInvocationID is the invocation sequence number of the turn.
	ContextKeyInvocationID contextKey = "invocation_id"

	// ContextKeyTurnKind is "chat" or "compose".
	ContextKeyTurnKind contextKey = "turn_kind"

	// ContextKeyStyle is the conversation style preset.
	ContextKeyStyle contextKey = "style"

	// ContextKeyRequestID identifies the individual turn request.
	ContextKeyRequestID contextKey = "request_id"
)

// allContextKeys lists all context keys extracted by ContextHandler.
var allContextKeys = []contextKey{
	ContextKeyConversationID,
	ContextKeyInvocationID,
	ContextKeyTurnKind,
	ContextKeyStyle,
	ContextKeyRequestID,
}

// LoggingFields holds all standard logging context fields.
type LoggingFields struct {
	ConversationID string
	InvocationID   string
	TurnKind       string
	Style          string
	RequestID      string
}

// WithConversationID returns a new context with the conversation ID set.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyConversationID, id)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, id)
}

// WithLoggingContext returns a new context with multiple logging fields set at once.
// Only non-empty values are set.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	if fields.ConversationID != "" {
		ctx = context.WithValue(ctx, ContextKeyConversationID, fields.ConversationID)
	}
	if fields.InvocationID != "" {
		ctx = context.WithValue(ctx, ContextKeyInvocationID, fields.InvocationID)
	}
	if fields.TurnKind != "" {
		ctx = context.WithValue(ctx, ContextKeyTurnKind, fields.TurnKind)
	}
	if fields.Style != "" {
		ctx = context.WithValue(ctx, ContextKeyStyle, fields.Style)
	}
	if fields.RequestID != "" {
		ctx = context.WithValue(ctx, ContextKeyRequestID, fields.RequestID)
	}
	return ctx
}

// ExtractLoggingFields extracts all logging fields from a context.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	get := func(k contextKey) string {
		s, _ := ctx.Value(k).(string)
		return s
	}
	return LoggingFields{
		ConversationID: get(ContextKeyConversationID),
		InvocationID:   get(ContextKeyInvocationID),
		TurnKind:       get(ContextKeyTurnKind),
		Style:          get(ContextKeyStyle),
		RequestID:      get(ContextKeyRequestID),
	}
}

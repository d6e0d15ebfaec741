package logger

import (
	"context"
	"unicode/utf8"
)

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so handlers and workers set room_id once
// and every log line below them carries it.
type LogFields struct {
	RoomID         *string // Room the request or message belongs to
	SegmentID      *string // Segment created or updated
	Speaker        *string // Speaker label of the utterance
	SourceClientID *string // Client that produced the utterance
	MessageID      *string // Redis stream message ID
	Component      string  // Component name (e.g., "scribe.worker.summary")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.RoomID != nil {
		result.RoomID = new.RoomID
	}
	if new.SegmentID != nil {
		result.SegmentID = new.SegmentID
	}
	if new.Speaker != nil {
		result.Speaker = new.Speaker
	}
	if new.SourceClientID != nil {
		result.SourceClientID = new.SourceClientID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{RoomID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to maxLen runes, appending "..." if truncated.
// Useful for logging utterance text without flooding the log.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

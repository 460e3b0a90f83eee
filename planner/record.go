package planner

import (
	"context"
	"time"
)

// CallRecord summarizes the terminal outcome of one generation run.
type CallRecord struct {
	// UserID is the requesting user, when the context carries one.
	UserID string

	// Model is the model that produced the terminal outcome; empty when
	// no model was reached.
	Model string

	// Attempts is the total invocation count across all models.
	Attempts int

	// Outcome is "success" or "error".
	Outcome string

	// ErrorKind is the classified kind when Outcome is "error".
	ErrorKind string

	// Latency is the wall-clock duration of the whole run.
	Latency time.Duration
}

// CallRecorder persists call records for usage analysis. Implementations
// must be safe for concurrent use; recording is best-effort and never
// fails a generation run.
type CallRecorder interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

type contextKey string

const userIDKey contextKey = "tripweave-user-id"

// WithUserID attaches the requesting user's id to the context so call
// records can be correlated without threading ids through every signature.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom extracts the user id attached by WithUserID, or "".
func UserIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

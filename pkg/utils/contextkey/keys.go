// Package contextkey defines the typed context keys shared across services.
package contextkey

type contextKey string

const (
	// TraceID identifies one request across log lines.
	TraceID contextKey = "trace_id"
	// UserID is the authenticated user's id.
	UserID contextKey = "user_id"
	// SubmissionID tags judge worker log lines with the task being processed.
	SubmissionID contextKey = "submission_id"
)

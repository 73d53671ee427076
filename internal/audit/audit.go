// Package audit keeps a local trail of handled log events, queryable over
// HTTP. It records what the service did with each event; the Bitable row
// remains the canonical per-user record.
package audit

import "time"

// UpsertOp describes how the Bitable write for an event went.
type UpsertOp string

const (
	OpCreate UpsertOp = "create"
	OpUpdate UpsertOp = "update"
	OpError  UpsertOp = "error"
)

// Entry is a single handled log event.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"user_id"`
	Intent     string    `json:"intent"`
	Message    string    `json:"message"`
	PageURL    string    `json:"page_url"`
	Summary    string    `json:"summary"`
	UpsertOp   UpsertOp  `json:"upsert_op"`
	AIResponse string    `json:"ai_response"`
}

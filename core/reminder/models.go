package reminder

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Job statuses. A job is attempted at most once per dispatch run; a
// FAILED job stays FAILED until somebody re-enqueues it.
const (
	StatusPending = "PENDING"
	StatusSent    = "SENT"
	StatusFailed  = "FAILED"
)

var Statuses = []string{StatusPending, StatusSent, StatusFailed}

// Job is a scheduled one-shot outbound-message task tied to a session.
type Job struct {
	ID           string      `json:"id"`
	SessionID    string      `json:"session_id"`
	ScheduledFor time.Time   `json:"scheduled_for"` // UTC
	Status       string      `json:"status"`
	LastError    null.String `json:"last_error"`
	AttemptedAt  null.Time   `json:"attempted_at"`
	CreatedAt    time.Time   `json:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at"` // UTC
}

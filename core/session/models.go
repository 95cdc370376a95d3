package session

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core"
)

// Statuses. A session is created SCHEDULED and moves to exactly one of
// the terminal statuses; there is no re-opening.
const (
	StatusScheduled = "SCHEDULED"
	StatusCompleted = "COMPLETED"
	StatusCanceled  = "CANCELED"
	StatusNoShow    = "NO_SHOW"
)

var Statuses = []string{StatusScheduled, StatusCompleted, StatusCanceled, StatusNoShow}

type Session struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	CreatedBy string `json:"created_by"`
	Status    string `json:"status"`
	Topic     string `json:"topic"`

	ScheduledStartAt time.Time `json:"scheduled_start_at"` // UTC
	ScheduledEndAt   time.Time `json:"scheduled_end_at"`   // UTC
	ActualStartAt    null.Time `json:"actual_start_at"`
	ActualEndAt      null.Time `json:"actual_end_at"`

	MeetingID       null.String `json:"meeting_id"`
	MeetingJoinURL  null.String `json:"meeting_join_url"`
	MeetingStartURL null.String `json:"meeting_start_url"`

	ReminderEnabled   bool        `json:"reminder_enabled"`
	ReminderLeadMins  int         `json:"reminder_lead_mins"`
	ReminderStatus    null.String `json:"reminder_status"`
	ReminderLastError null.String `json:"reminder_last_error"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Duration is the billed duration: the actual window when recorded,
// the scheduled window otherwise.
func (s Session) Duration() time.Duration {
	if s.ActualStartAt.Valid && s.ActualEndAt.Valid {
		return s.ActualEndAt.Time.Sub(s.ActualStartAt.Time)
	}
	return s.ScheduledEndAt.Sub(s.ScheduledStartAt)
}

func (s Session) IsTerminal() bool {
	return s.Status != StatusScheduled
}

// Meeting is the video-meeting metadata attached to a session.
type Meeting struct {
	ID       string
	JoinURL  string
	StartURL string
}

// NewMeeting describes the meeting to schedule with the video provider.
type NewMeeting struct {
	Topic    string
	StartAt  time.Time
	Duration time.Duration
}

// NewSession contains information needed to schedule a new Session.
type NewSession struct {
	StudentID        string    `json:"student_id" validate:"required,uuid4"`
	Topic            string    `json:"topic"`
	ScheduledStartAt time.Time `json:"scheduled_start_at" validate:"required"`
	ScheduledEndAt   time.Time `json:"scheduled_end_at" validate:"required,gtfield=ScheduledStartAt"`
	WithMeeting      bool      `json:"with_meeting"`
	ReminderEnabled  bool      `json:"reminder_enabled"`
	ReminderLeadMins int       `json:"reminder_lead_mins" validate:"omitempty,gt=0"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Topic = core.CleanString(ns.Topic)
	if ns.ReminderLeadMins == 0 {
		ns.ReminderLeadMins = 60
	}
	return validate.Struct(ns)
}

// UpdateSession defines what may be changed on a still-SCHEDULED session.
type UpdateSession struct {
	Topic            *string    `json:"topic"`
	ScheduledStartAt *time.Time `json:"scheduled_start_at"`
	ScheduledEndAt   *time.Time `json:"scheduled_end_at"`
	ReminderEnabled  *bool      `json:"reminder_enabled"`
	ReminderLeadMins *int       `json:"reminder_lead_mins" validate:"omitempty,gt=0"`
}

func (us *UpdateSession) Validate(origSess Session, validate *validator.Validate) error {
	if err := validate.Struct(us); err != nil {
		return err
	}
	start := origSess.ScheduledStartAt
	end := origSess.ScheduledEndAt
	if us.ScheduledStartAt != nil {
		start = *us.ScheduledStartAt
	}
	if us.ScheduledEndAt != nil {
		end = *us.ScheduledEndAt
	}
	if !end.After(start) {
		return core.NewValidationError(nil, core.FieldError{Field: "scheduled_end_at", Error: "must be after scheduled_start_at"})
	}
	return nil
}

// CompleteSession optionally records the actual time window.
type CompleteSession struct {
	ActualStartAt *time.Time `json:"actual_start_at"`
	ActualEndAt   *time.Time `json:"actual_end_at"`
}

func (cs CompleteSession) Validate() error {
	if cs.ActualStartAt != nil && cs.ActualEndAt != nil && !cs.ActualEndAt.After(*cs.ActualStartAt) {
		return core.NewValidationError(nil, core.FieldError{Field: "actual_end_at", Error: "must be after actual_start_at"})
	}
	if (cs.ActualStartAt == nil) != (cs.ActualEndAt == nil) {
		return core.NewValidationError(nil, core.FieldError{Field: "actual_end_at", Error: "both actual times must be provided together"})
	}
	return nil
}

type QueryFilter struct {
	StudentID string    `query:"student_id"`
	Statuses  []string  `query:"status"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.Statuses == nil && qf.From.IsZero() && qf.To.IsZero()
}

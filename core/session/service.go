package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/ledger"
	"github.com/akilisha/darasa/core/student"
	"github.com/akilisha/darasa/core/user"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrInvalidTransition is returned when a terminal session is asked
	// to change status (or a second completion is attempted).
	ErrInvalidTransition = errors.New("session is no longer scheduled")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		FilterSessions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		// TransitionStatus atomically moves a session between statuses,
		// recording actual times; ErrInvalidTransition when the session
		// has already left `from`.
		TransitionStatus(ctx context.Context, id, from, to string, actualStart, actualEnd null.Time) (Session, error)
		// SetReminderOutcome mirrors the latest reminder delivery outcome
		// onto the session for UI display.
		SetReminderOutcome(ctx context.Context, sessionID, status, lastError string) error
		DeleteSessionsByID(ctx context.Context, ids ...string) error
	}

	// MeetingScheduler creates a meeting with the video provider using
	// the given account credentials.
	MeetingScheduler interface {
		ScheduleMeeting(ctx context.Context, creds user.ZoomCredentials, nm NewMeeting) (Meeting, error)
	}

	// ReminderScheduler enqueues/cancels the one-shot reminder jobs tied
	// to a session.
	ReminderScheduler interface {
		ScheduleReminder(ctx context.Context, sessionID string, at time.Time) error
		CancelPendingReminders(ctx context.Context, sessionID string) error
	}

	Service interface {
		Create(ctx context.Context, creator user.User, ns NewSession) (Session, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error)
		GetByID(ctx context.Context, id string) (Session, error)
		Update(ctx context.Context, id string, us UpdateSession) (Session, error)
		// Complete transitions SCHEDULED → COMPLETED and records exactly
		// one SESSION_CHARGE of −(duration_hours × price_per_hour).
		Complete(ctx context.Context, id string, cs CompleteSession) (Session, error)
		Cancel(ctx context.Context, id string) (Session, error)
		MarkNoShow(ctx context.Context, id string) (Session, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		conf      *core.Config
		repo      Repository
		students  student.Service
		entries   ledger.Service
		meetings  MeetingScheduler  // nil disables meeting creation
		reminders ReminderScheduler // nil disables reminders
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	conf *core.Config,
	repo Repository,
	students student.Service,
	entries ledger.Service,
	meetings MeetingScheduler,
	reminders ReminderScheduler,
	logger core.Logger,
) Service {
	return &service{
		conf:      conf,
		repo:      repo,
		students:  students,
		entries:   entries,
		meetings:  meetings,
		reminders: reminders,
		logger:    logger,
	}
}

func (svc *service) Create(ctx context.Context, creator user.User, ns NewSession) (Session, error) {
	std, err := svc.students.GetByID(ctx, ns.StudentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return Session{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return Session{}, errors.Wrap(err, "finding student")
	}

	now := time.Now().UTC()
	sess := Session{
		StudentID:        std.ID,
		CreatedBy:        creator.ID,
		Status:           StatusScheduled,
		Topic:            ns.Topic,
		ScheduledStartAt: ns.ScheduledStartAt.UTC(),
		ScheduledEndAt:   ns.ScheduledEndAt.UTC(),
		ReminderEnabled:  ns.ReminderEnabled,
		ReminderLeadMins: ns.ReminderLeadMins,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// meeting creation degrades gracefully: the session is still
	// scheduled when the video provider is down or unconfigured
	if ns.WithMeeting && svc.meetings != nil {
		creds := creator.Zoom
		if creds.IsZero() {
			creds = user.ZoomCredentials{
				AccountID:    svc.conf.Zoom.AccountID,
				ClientID:     svc.conf.Zoom.ClientID,
				ClientSecret: svc.conf.Zoom.ClientSecret,
			}
		}
		if creds.IsZero() {
			svc.logger.Warn("no video credentials available; scheduling session without a meeting")
		} else {
			topic := sess.Topic
			if topic == "" {
				topic = "Tutoring session with " + std.Name
			}
			meeting, err := svc.meetings.ScheduleMeeting(ctx, creds, NewMeeting{
				Topic:    topic,
				StartAt:  sess.ScheduledStartAt,
				Duration: sess.ScheduledEndAt.Sub(sess.ScheduledStartAt),
			})
			if err != nil {
				svc.logger.Warn("scheduling meeting failed; session created without a meeting link", err)
			} else {
				sess.MeetingID = null.StringFrom(meeting.ID)
				sess.MeetingJoinURL = null.StringFrom(meeting.JoinURL)
				sess.MeetingStartURL = null.StringFrom(meeting.StartURL)
			}
		}
	}

	sess, err = svc.repo.CreateSession(ctx, sess)
	if err != nil {
		return Session{}, err
	}

	if sess.ReminderEnabled && svc.reminders != nil {
		at := sess.ScheduledStartAt.Add(-time.Duration(sess.ReminderLeadMins) * time.Minute)
		if err := svc.reminders.ScheduleReminder(ctx, sess.ID, at); err != nil {
			return sess, errors.Wrap(err, "scheduling reminder")
		}
	}
	return sess, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error) {
	return svc.repo.FilterSessions(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, us UpdateSession) (Session, error) {
	sess, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.IsTerminal() {
		return Session{}, ErrInvalidTransition
	}

	reschedule := false
	if us.Topic != nil {
		sess.Topic = core.CleanString(*us.Topic)
	}
	if us.ScheduledStartAt != nil {
		sess.ScheduledStartAt = us.ScheduledStartAt.UTC()
		reschedule = true
	}
	if us.ScheduledEndAt != nil {
		sess.ScheduledEndAt = us.ScheduledEndAt.UTC()
		reschedule = true
	}
	if us.ReminderEnabled != nil {
		sess.ReminderEnabled = *us.ReminderEnabled
		reschedule = true
	}
	if us.ReminderLeadMins != nil {
		sess.ReminderLeadMins = *us.ReminderLeadMins
		reschedule = true
	}
	sess.UpdatedAt = time.Now().UTC()

	sess, err = svc.repo.UpdateSession(ctx, sess)
	if err != nil {
		return Session{}, err
	}

	if reschedule && svc.reminders != nil {
		if err := svc.reminders.CancelPendingReminders(ctx, sess.ID); err != nil {
			return sess, errors.Wrap(err, "canceling pending reminders")
		}
		if sess.ReminderEnabled {
			at := sess.ScheduledStartAt.Add(-time.Duration(sess.ReminderLeadMins) * time.Minute)
			if err := svc.reminders.ScheduleReminder(ctx, sess.ID, at); err != nil {
				return sess, errors.Wrap(err, "scheduling reminder")
			}
		}
	}
	return sess, nil
}

func (svc *service) Complete(ctx context.Context, id string, cs CompleteSession) (Session, error) {
	var actualStart, actualEnd null.Time
	if cs.ActualStartAt != nil {
		actualStart = null.TimeFrom(cs.ActualStartAt.UTC())
		actualEnd = null.TimeFrom(cs.ActualEndAt.UTC())
	}

	// the conditional transition is what makes a double completion
	// charge-free: only the caller that actually flips the status
	// records the charge
	sess, err := svc.repo.TransitionStatus(ctx, id, StatusScheduled, StatusCompleted, actualStart, actualEnd)
	if err != nil {
		return Session{}, err
	}

	std, err := svc.students.GetByID(ctx, sess.StudentID)
	if err != nil {
		// the status already flipped; log loudly so the missing charge
		// can be reconciled by hand
		svc.logger.Error("session completed but its charge could not be derived",
			err, "session", sess.ID, "student", sess.StudentID)
		return Session{}, errors.Wrap(err, "finding student")
	}

	mins := decimal.NewFromInt(int64(sess.Duration() / time.Minute))
	amount := std.PricePerHour.Mul(mins).Div(decimal.NewFromInt(60)).Round(2).Neg()
	reference := "Session on " + sess.ScheduledStartAt.Format("2006-01-02 15:04")

	if _, err := svc.entries.RecordSessionCharge(ctx, sess.StudentID, sess.ID, amount, reference); err != nil {
		svc.logger.Error("session completed but its charge was not recorded",
			err, "session", sess.ID, "student", sess.StudentID, "amount", amount.String())
		return Session{}, errors.Wrap(err, "recording session charge")
	}

	if svc.reminders != nil {
		if err := svc.reminders.CancelPendingReminders(ctx, sess.ID); err != nil {
			return sess, errors.Wrap(err, "canceling pending reminders")
		}
	}
	return sess, nil
}

func (svc *service) Cancel(ctx context.Context, id string) (Session, error) {
	sess, err := svc.repo.TransitionStatus(ctx, id, StatusScheduled, StatusCanceled, null.Time{}, null.Time{})
	if err != nil {
		return Session{}, err
	}
	if svc.reminders != nil {
		if err := svc.reminders.CancelPendingReminders(ctx, sess.ID); err != nil {
			return sess, errors.Wrap(err, "canceling pending reminders")
		}
	}
	return sess, nil
}

func (svc *service) MarkNoShow(ctx context.Context, id string) (Session, error) {
	return svc.repo.TransitionStatus(ctx, id, StatusScheduled, StatusNoShow, null.Time{}, null.Time{})
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteSessionsByID(ctx, ids...)
}

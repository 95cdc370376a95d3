package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/ledger"
	"github.com/akilisha/darasa/core/session"
	"github.com/akilisha/darasa/core/student"
	"github.com/akilisha/darasa/core/user"
	inmemdb "github.com/akilisha/darasa/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type meetingSchedulerStub struct {
	calls   int
	meeting session.Meeting
	err     error
}

func (m *meetingSchedulerStub) ScheduleMeeting(ctx context.Context, creds user.ZoomCredentials, nm session.NewMeeting) (session.Meeting, error) {
	m.calls++
	if m.err != nil {
		return session.Meeting{}, m.err
	}
	return m.meeting, nil
}

type reminderSchedulerRecorder struct {
	scheduled []time.Time
	canceled  int
}

func (r *reminderSchedulerRecorder) ScheduleReminder(ctx context.Context, sessionID string, at time.Time) error {
	r.scheduled = append(r.scheduled, at)
	return nil
}

func (r *reminderSchedulerRecorder) CancelPendingReminders(ctx context.Context, sessionID string) error {
	r.canceled++
	return nil
}

type fixture struct {
	db        *inmemdb.DB
	sessions  session.Service
	students  student.Service
	entries   ledger.Service
	meetings  *meetingSchedulerStub
	reminders *reminderSchedulerRecorder
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := inmemdb.NewDB()
	conf := &core.Config{}
	stdSvc := student.NewService(inmemdb.NewStudentRepository(db))
	ledgSvc := ledger.NewService(inmemdb.NewEntryRepository(db), nil)
	meetings := &meetingSchedulerStub{
		meeting: session.Meeting{
			ID:       "83921473015",
			JoinURL:  "https://zoom.us/j/83921473015",
			StartURL: "https://zoom.us/s/83921473015",
		},
	}
	reminders := &reminderSchedulerRecorder{}
	sessSvc := session.NewService(
		conf, inmemdb.NewSessionRepository(db), stdSvc, ledgSvc, meetings, reminders, nopLogger{},
	)
	return &fixture{
		db:        db,
		sessions:  sessSvc,
		students:  stdSvc,
		entries:   ledgSvc,
		meetings:  meetings,
		reminders: reminders,
	}
}

func (f *fixture) createStudent(t *testing.T, pricePerHour string) student.Student {
	t.Helper()
	std, err := f.students.Create(context.Background(), student.NewStudent{
		Name:         "Amina Juma",
		Email:        "amina@test.cd",
		Phone:        "+243812345678",
		PricePerHour: decimal.RequireFromString(pricePerHour),
	})
	require.NoError(t, err)
	return std
}

var creator = user.User{ID: "c7069676-52bc-46b3-b748-a25f0b26a85a", Name: "Tutor", Email: "tutor@test.cd"}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC)

	t.Run("unknown student", func(t *testing.T) {
		f := setup(t)
		_, err := f.sessions.Create(ctx, creator, session.NewSession{
			StudentID:        "52fdfc07-2182-454f-963f-5f0f9a621d72",
			ScheduledStartAt: start,
			ScheduledEndAt:   start.Add(time.Hour),
		})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("without meeting", func(t *testing.T) {
		f := setup(t)
		std := f.createStudent(t, "25.00")
		sess, err := f.sessions.Create(ctx, creator, session.NewSession{
			StudentID:        std.ID,
			Topic:            "Algebra II",
			ScheduledStartAt: start,
			ScheduledEndAt:   start.Add(90 * time.Minute),
		})
		require.NoError(t, err)
		require.Equal(t, session.StatusScheduled, sess.Status)
		require.Equal(t, creator.ID, sess.CreatedBy)
		require.False(t, sess.MeetingJoinURL.Valid)
		require.Zero(t, f.meetings.calls)
		require.Empty(t, f.reminders.scheduled)
	})

	t.Run("with meeting (fallback account credentials)", func(t *testing.T) {
		f := setup(t)
		std := f.createStudent(t, "25.00")
		// no creator credentials; only the app-level account is configured
		conf := &core.Config{}
		conf.Zoom.AccountID = "acc123"
		conf.Zoom.ClientID = "client123"
		conf.Zoom.ClientSecret = "secret123"
		svc := session.NewService(
			conf, inmemdb.NewSessionRepository(f.db),
			f.students, f.entries, f.meetings, f.reminders, nopLogger{},
		)
		sess, err := svc.Create(ctx, creator, session.NewSession{
			StudentID:        std.ID,
			ScheduledStartAt: start,
			ScheduledEndAt:   start.Add(time.Hour),
			WithMeeting:      true,
		})
		require.NoError(t, err)
		require.Equal(t, 1, f.meetings.calls)
		require.Equal(t, "https://zoom.us/j/83921473015", sess.MeetingJoinURL.String)
	})

	t.Run("meeting failure still schedules the session", func(t *testing.T) {
		f := setup(t)
		std := f.createStudent(t, "25.00")
		f.meetings.err = errors.New("zoom is down")
		crt := creator
		crt.Zoom = user.ZoomCredentials{AccountID: "acc", ClientID: "id", ClientSecret: "secret"}

		sess, err := f.sessions.Create(ctx, crt, session.NewSession{
			StudentID:        std.ID,
			ScheduledStartAt: start,
			ScheduledEndAt:   start.Add(time.Hour),
			WithMeeting:      true,
		})
		require.NoError(t, err)
		require.Equal(t, session.StatusScheduled, sess.Status)
		require.False(t, sess.MeetingJoinURL.Valid)
	})

	t.Run("reminder scheduled at lead time", func(t *testing.T) {
		f := setup(t)
		std := f.createStudent(t, "25.00")
		sess, err := f.sessions.Create(ctx, creator, session.NewSession{
			StudentID:        std.ID,
			ScheduledStartAt: start,
			ScheduledEndAt:   start.Add(time.Hour),
			ReminderEnabled:  true,
			ReminderLeadMins: 45,
		})
		require.NoError(t, err)
		require.True(t, sess.ReminderEnabled)
		require.Len(t, f.reminders.scheduled, 1)
		require.Equal(t, start.Add(-45*time.Minute), f.reminders.scheduled[0])
	})
}

func TestService_Complete(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC)

	f := setup(t)
	std := f.createStudent(t, "25.00")
	sess, err := f.sessions.Create(ctx, creator, session.NewSession{
		StudentID:        std.ID,
		ScheduledStartAt: start,
		ScheduledEndAt:   start.Add(90 * time.Minute),
		ReminderEnabled:  true,
		ReminderLeadMins: 60,
	})
	require.NoError(t, err)

	completed, err := f.sessions.Complete(ctx, sess.ID, session.CompleteSession{})
	require.NoError(t, err)
	require.Equal(t, session.StatusCompleted, completed.Status)
	require.Equal(t, 1, f.reminders.canceled)

	// 1.5 h at 25.00/h charged as a single negative entry
	entries, err := f.entries.Query(ctx, &ledger.QueryFilter{StudentID: std.ID}, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ledger.EntrySessionCharge, entries[0].Type)
	require.Equal(t, sess.ID, entries[0].SessionID.String)
	require.True(t, entries[0].Amount.Equal(decimal.RequireFromString("-37.50")),
		"amount = %s; want -37.50", entries[0].Amount)

	// a second completion neither flips the status nor double-charges
	_, err = f.sessions.Complete(ctx, sess.ID, session.CompleteSession{})
	require.Equal(t, session.ErrInvalidTransition, errors.Cause(err))

	balance, err := f.entries.Balance(ctx, std.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.RequireFromString("-37.50")), "balance = %s; want -37.50", balance)
}

type errorLogRecorder struct {
	nopLogger
	messages []string
}

func (l *errorLogRecorder) Error(msg string, _ ...interface{}) { l.messages = append(l.messages, msg) }

type failingChargeLedger struct {
	ledger.Service
	err error
}

func (l failingChargeLedger) RecordSessionCharge(ctx context.Context, studentID, sessionID string, amount decimal.Decimal, reference string) (ledger.Entry, error) {
	return ledger.Entry{}, l.err
}

// A charge failure after the status flip leaves the session COMPLETED
// with no entry; the gap must at least be loud enough to reconcile.
func TestService_Complete_chargeFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC)

	f := setup(t)
	std := f.createStudent(t, "25.00")
	sess, err := f.sessions.Create(ctx, creator, session.NewSession{
		StudentID:        std.ID,
		ScheduledStartAt: start,
		ScheduledEndAt:   start.Add(time.Hour),
	})
	require.NoError(t, err)

	logger := &errorLogRecorder{}
	broken := session.NewService(
		&core.Config{}, inmemdb.NewSessionRepository(f.db), f.students,
		failingChargeLedger{Service: f.entries, err: errors.New("db down")}, nil, nil, logger,
	)

	_, err = broken.Complete(ctx, sess.ID, session.CompleteSession{})
	require.Error(t, err)
	require.Len(t, logger.messages, 1)
	require.Contains(t, logger.messages[0], "charge was not recorded")

	// the transition stuck; the missing charge is a manual fix
	refreshed, err := f.sessions.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, session.StatusCompleted, refreshed.Status)

	balance, err := f.entries.Balance(ctx, std.ID)
	require.NoError(t, err)
	require.True(t, balance.IsZero(), "balance = %s; want 0", balance)
}

func TestService_Complete_actualTimes(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC)

	f := setup(t)
	std := f.createStudent(t, "30.00")
	sess, err := f.sessions.Create(ctx, creator, session.NewSession{
		StudentID:        std.ID,
		ScheduledStartAt: start,
		ScheduledEndAt:   start.Add(time.Hour),
	})
	require.NoError(t, err)

	// session ran over: billed on the actual window, not the scheduled one
	actualStart := start.Add(10 * time.Minute)
	actualEnd := start.Add(2 * time.Hour)
	completed, err := f.sessions.Complete(ctx, sess.ID, session.CompleteSession{
		ActualStartAt: &actualStart,
		ActualEndAt:   &actualEnd,
	})
	require.NoError(t, err)
	require.True(t, completed.ActualStartAt.Valid)

	entries, err := f.entries.Query(ctx, &ledger.QueryFilter{StudentID: std.ID}, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Amount.Equal(decimal.RequireFromString("-55.00")),
		"amount = %s; want -55.00", entries[0].Amount)
}

func TestService_CancelAndNoShow(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC)

	f := setup(t)
	std := f.createStudent(t, "25.00")

	newSession := func(t *testing.T) session.Session {
		sess, err := f.sessions.Create(ctx, creator, session.NewSession{
			StudentID:        std.ID,
			ScheduledStartAt: start,
			ScheduledEndAt:   start.Add(time.Hour),
		})
		require.NoError(t, err)
		return sess
	}

	t.Run("cancel", func(t *testing.T) {
		sess := newSession(t)
		canceled, err := f.sessions.Cancel(ctx, sess.ID)
		require.NoError(t, err)
		require.Equal(t, session.StatusCanceled, canceled.Status)

		// no charge for a canceled session
		entries, err := f.entries.Query(ctx, &ledger.QueryFilter{StudentID: std.ID}, nil)
		require.NoError(t, err)
		require.Empty(t, entries)

		// terminal: no completion afterwards
		_, err = f.sessions.Complete(ctx, sess.ID, session.CompleteSession{})
		require.Equal(t, session.ErrInvalidTransition, errors.Cause(err))
	})

	t.Run("no-show", func(t *testing.T) {
		sess := newSession(t)
		marked, err := f.sessions.MarkNoShow(ctx, sess.ID)
		require.NoError(t, err)
		require.Equal(t, session.StatusNoShow, marked.Status)

		_, err = f.sessions.Cancel(ctx, sess.ID)
		require.Equal(t, session.ErrInvalidTransition, errors.Cause(err))
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := f.sessions.Cancel(ctx, "52fdfc07-2182-454f-963f-5f0f9a621d72")
		require.Equal(t, session.ErrNotFound, errors.Cause(err))
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC)

	f := setup(t)
	std := f.createStudent(t, "25.00")
	sess, err := f.sessions.Create(ctx, creator, session.NewSession{
		StudentID:        std.ID,
		ScheduledStartAt: start,
		ScheduledEndAt:   start.Add(time.Hour),
		ReminderEnabled:  true,
		ReminderLeadMins: 60,
	})
	require.NoError(t, err)
	require.Len(t, f.reminders.scheduled, 1)

	// rescheduling replaces the pending reminder
	newStart := start.Add(24 * time.Hour)
	newEnd := newStart.Add(time.Hour)
	updated, err := f.sessions.Update(ctx, sess.ID, session.UpdateSession{
		ScheduledStartAt: &newStart,
		ScheduledEndAt:   &newEnd,
	})
	require.NoError(t, err)
	require.Equal(t, newStart, updated.ScheduledStartAt)
	require.Equal(t, 1, f.reminders.canceled)
	require.Len(t, f.reminders.scheduled, 2)
	require.Equal(t, newStart.Add(-60*time.Minute), f.reminders.scheduled[1])

	// a topic-only change does not touch reminders
	topic := "Geometry"
	updated, err = f.sessions.Update(ctx, sess.ID, session.UpdateSession{Topic: &topic})
	require.NoError(t, err)
	require.Equal(t, "Geometry", updated.Topic)
	require.Equal(t, 1, f.reminders.canceled)
	require.Len(t, f.reminders.scheduled, 2)

	// terminal sessions cannot be edited
	_, err = f.sessions.Cancel(ctx, sess.ID)
	require.NoError(t, err)
	_, err = f.sessions.Update(ctx, sess.ID, session.UpdateSession{Topic: &topic})
	require.Equal(t, session.ErrInvalidTransition, errors.Cause(err))
}

func TestSession_Duration(t *testing.T) {
	start := time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC)
	sess := session.Session{
		ScheduledStartAt: start,
		ScheduledEndAt:   start.Add(time.Hour),
	}
	require.Equal(t, time.Hour, sess.Duration())

	sess.ActualStartAt = null.TimeFrom(start)
	sess.ActualEndAt = null.TimeFrom(start.Add(100 * time.Minute))
	require.Equal(t, 100*time.Minute, sess.Duration())
}

package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/session"
	"github.com/akilisha/darasa/core/student"
	"github.com/akilisha/darasa/core/user"
)

const (
	dispatchLockKey = "darasa:reminder-dispatch"
	dueBatchSize    = 50
)

// mockable
var nowFunc = func() time.Time { return time.Now().UTC() }

// Dispatcher periodically picks up due reminder jobs, claims each one
// and delivers the message. A claimed job is never retried: it ends up
// SENT or FAILED.
type Dispatcher struct {
	conf      *core.Config
	repo      Repository
	sessions  session.Repository
	students  student.Service
	users     user.Service
	messenger Messenger
	locker    Locker // nil disables cross-process locking
	logger    core.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewDispatcher(
	conf *core.Config,
	repo Repository,
	sessions session.Repository,
	students student.Service,
	users user.Service,
	messenger Messenger,
	locker Locker,
	logger core.Logger,
) *Dispatcher {
	return &Dispatcher{
		conf:      conf,
		repo:      repo,
		sessions:  sessions,
		students:  students,
		users:     users,
		messenger: messenger,
		locker:    locker,
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// Start runs the dispatch loop in the background until Stop is called.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(d.conf.Reminders.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-d.stop:
				return
			case <-ticker.C:
				if err := d.Dispatch(context.Background()); err != nil {
					d.logger.Error("dispatching reminders", err)
				}
			}
		}
	}()
}

// Stop halts the dispatch loop and waits for an in-flight run to end.
func (d *Dispatcher) Stop() {
	close(d.stop)
	d.wg.Wait()
}

// Dispatch performs a single run: it claims every due job and attempts
// delivery. Per-job failures are recorded on the job and do not abort
// the run.
func (d *Dispatcher) Dispatch(ctx context.Context) error {
	if d.locker != nil {
		ok, err := d.locker.Lock(ctx, dispatchLockKey, d.conf.Reminders.LockTTL)
		if err != nil {
			return errors.Wrap(err, "acquiring dispatch lock")
		}
		if !ok {
			return nil // another instance is dispatching
		}
		defer func() {
			if err := d.locker.Unlock(ctx, dispatchLockKey); err != nil {
				d.logger.Warn("releasing dispatch lock", err)
			}
		}()
	}

	jobs, err := d.repo.DueJobs(ctx, nowFunc(), dueBatchSize)
	if err != nil {
		return errors.Wrap(err, "finding due reminder jobs")
	}

	for _, job := range jobs {
		claimed, err := d.repo.ClaimJob(ctx, job.ID, nowFunc())
		if err != nil {
			d.logger.Warn(fmt.Sprintf("claiming reminder job %s", job.ID), err)
			continue
		}
		if !claimed {
			continue // raced with another dispatcher
		}
		d.process(ctx, job)
	}
	return nil
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	sess, err := d.sessions.GetSessionByID(ctx, job.SessionID)
	if err != nil {
		d.fail(ctx, job, "", errors.Wrap(err, "finding session"))
		return
	}
	if sess.Status != session.StatusScheduled {
		d.fail(ctx, job, sess.ID, errors.Errorf("session is %s", sess.Status))
		return
	}

	std, err := d.students.GetByID(ctx, sess.StudentID)
	if err != nil {
		d.fail(ctx, job, sess.ID, errors.Wrap(err, "finding student"))
		return
	}
	if std.Phone == "" {
		d.fail(ctx, job, sess.ID, errors.New("student has no phone number"))
		return
	}

	creds, err := d.resolveCredentials(ctx, sess)
	if err != nil {
		d.fail(ctx, job, sess.ID, err)
		return
	}

	if err = d.messenger.SendText(ctx, creds, std.Phone, composeBody(sess, std)); err != nil {
		d.fail(ctx, job, sess.ID, errors.Wrap(err, "sending reminder"))
		return
	}

	if err = d.repo.MarkJobSent(ctx, job.ID); err != nil {
		d.logger.Warn(fmt.Sprintf("marking reminder job %s sent", job.ID), err)
	}
	d.mirror(ctx, sess.ID, StatusSent, "")
}

// resolveCredentials prefers the session creator's stored WhatsApp
// credentials and falls back to the system-wide ones.
func (d *Dispatcher) resolveCredentials(ctx context.Context, sess session.Session) (user.WhatsAppCredentials, error) {
	creator, err := d.users.GetByID(ctx, sess.CreatedBy)
	if err != nil {
		d.logger.Warn(fmt.Sprintf("finding creator of session %s", sess.ID), err)
	} else if !creator.WhatsApp.IsZero() {
		return creator.WhatsApp, nil
	}

	creds := user.WhatsAppCredentials{
		PhoneNumberID: d.conf.WhatsApp.PhoneNumberID,
		Token:         d.conf.WhatsApp.Token,
	}
	if creds.IsZero() {
		return user.WhatsAppCredentials{}, errors.New("no WhatsApp credentials configured")
	}
	return creds, nil
}

// fail records the outcome on the job and, when the session is known,
// mirrors it onto the session. It never retries.
func (d *Dispatcher) fail(ctx context.Context, job Job, sessionID string, cause error) {
	d.logger.Warn(fmt.Sprintf("reminder job %s failed", job.ID), cause)
	if err := d.repo.MarkJobFailed(ctx, job.ID, cause.Error()); err != nil {
		d.logger.Warn(fmt.Sprintf("marking reminder job %s failed", job.ID), err)
	}
	if sessionID != "" {
		d.mirror(ctx, sessionID, StatusFailed, cause.Error())
	}
}

func (d *Dispatcher) mirror(ctx context.Context, sessionID, status, lastError string) {
	if err := d.sessions.SetReminderOutcome(ctx, sessionID, status, lastError); err != nil {
		d.logger.Warn(fmt.Sprintf("recording reminder outcome on session %s", sessionID), err)
	}
}

func composeBody(sess session.Session, std student.Student) string {
	body := fmt.Sprintf(
		"Hi %s! Reminder: your tutoring session starts at %s.",
		std.Name, sess.ScheduledStartAt.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
	)
	if sess.MeetingJoinURL.Valid {
		body += " Join here: " + sess.MeetingJoinURL.String
	}
	return body
}

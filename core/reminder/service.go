package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/akilisha/darasa/core/session"
	"github.com/akilisha/darasa/core/user"
)

// ErrNotFound is returned when a job lookup yields no result.
var ErrNotFound = errors.New("reminder job not found")

type (
	Repository interface {
		CreateJob(ctx context.Context, job Job) (Job, error)
		GetJobByID(ctx context.Context, id string) (Job, error)
		// DueJobs returns at most limit PENDING jobs whose scheduled_for
		// is at or before now, oldest first.
		DueJobs(ctx context.Context, now time.Time, limit int) ([]Job, error)
		// ClaimJob atomically marks a PENDING, never-attempted job as
		// attempted at the given time. It returns false when another
		// dispatcher already claimed the job.
		ClaimJob(ctx context.Context, id string, at time.Time) (bool, error)
		MarkJobSent(ctx context.Context, id string) error
		MarkJobFailed(ctx context.Context, id, lastError string) error
		DeletePendingJobsBySession(ctx context.Context, sessionID string) error
	}

	// Messenger delivers a plain-text message to a phone number using
	// the given WhatsApp Business credentials.
	Messenger interface {
		SendText(ctx context.Context, creds user.WhatsAppCredentials, to, body string) error
	}

	// Locker serializes dispatch runs across processes. Lock returns
	// false without error when the key is already held elsewhere.
	Locker interface {
		Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
		Unlock(ctx context.Context, key string) error
	}

	Service interface {
		session.ReminderScheduler
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) ScheduleReminder(ctx context.Context, sessionID string, at time.Time) error {
	job := Job{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		ScheduledFor: at.UTC(),
		Status:       StatusPending,
	}
	if _, err := svc.repo.CreateJob(ctx, job); err != nil {
		return errors.Wrap(err, "creating reminder job")
	}
	return nil
}

func (svc *service) CancelPendingReminders(ctx context.Context, sessionID string) error {
	return svc.repo.DeletePendingJobsBySession(ctx, sessionID)
}

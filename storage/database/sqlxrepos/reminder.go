package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core/reminder"
)

type reminderJobRow struct {
	ID           string      `db:"id"`
	SessionID    string      `db:"session_id"`
	ScheduledFor time.Time   `db:"scheduled_for"`
	Status       string      `db:"status"`
	LastError    null.String `db:"last_error"`
	AttemptedAt  null.Time   `db:"attempted_at"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

type reminderJobRepository struct {
	db *sqlx.DB
}

var _ reminder.Repository = (*reminderJobRepository)(nil) // interface compliance check

func NewReminderJobRepository(db *sqlx.DB) *reminderJobRepository {
	return &reminderJobRepository{db: db}
}

func (repo reminderJobRepository) toRow(job reminder.Job) reminderJobRow {
	return reminderJobRow{
		ID:           job.ID,
		SessionID:    job.SessionID,
		ScheduledFor: job.ScheduledFor.UTC(),
		Status:       job.Status,
		LastError:    job.LastError,
		AttemptedAt:  job.AttemptedAt,
		CreatedAt:    job.CreatedAt.UTC(),
		UpdatedAt:    job.UpdatedAt.UTC(),
	}
}

func (repo reminderJobRepository) fromRow(row reminderJobRow) reminder.Job {
	return reminder.Job{
		ID:           row.ID,
		SessionID:    row.SessionID,
		ScheduledFor: row.ScheduledFor,
		Status:       row.Status,
		LastError:    row.LastError,
		AttemptedAt:  row.AttemptedAt,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func (repo reminderJobRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return reminder.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo reminderJobRepository) CreateJob(ctx context.Context, job reminder.Job) (reminder.Job, error) {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}
	row := repo.toRow(job)
	const q = `
		INSERT INTO reminder_job (id, session_id, scheduled_for, status, last_error, attempted_at, created_at, updated_at)
		VALUES (:id, :session_id, :scheduled_for, :status, :last_error, :attempted_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return reminder.Job{}, errors.Wrap(err, "inserting reminder job")
	}
	return repo.fromRow(row), nil
}

func (repo reminderJobRepository) GetJobByID(ctx context.Context, id string) (reminder.Job, error) {
	var row reminderJobRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM reminder_job WHERE id = $1`, id); err != nil {
		return reminder.Job{}, repo.trapNoRowsErr(err, "finding reminder job by ID")
	}
	return repo.fromRow(row), nil
}

// DueJobs skips rows that were already claimed (attempted_at set): a
// claim is the single delivery attempt, and a claimed row left PENDING
// by a crash must not occupy a batch slot on every later run.
func (repo reminderJobRepository) DueJobs(ctx context.Context, now time.Time, limit int) ([]reminder.Job, error) {
	const q = `
		SELECT * FROM reminder_job
		WHERE status = $1 AND scheduled_for <= $2 AND attempted_at IS NULL
		ORDER BY scheduled_for ASC
		LIMIT $3`
	var rows []reminderJobRow
	if err := repo.db.SelectContext(ctx, &rows, q, reminder.StatusPending, now.UTC(), limit); err != nil {
		return nil, errors.Wrap(err, "finding due reminder jobs")
	}
	jobs := make([]reminder.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, repo.fromRow(row))
	}
	return jobs, nil
}

// ClaimJob is a conditional update: it succeeds for exactly one caller
// even when concurrent dispatchers race on the same job.
func (repo reminderJobRepository) ClaimJob(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `
		UPDATE reminder_job
		SET attempted_at = $2, updated_at = $2
		WHERE id = $1 AND status = $3 AND attempted_at IS NULL`
	res, err := repo.db.ExecContext(ctx, q, id, at.UTC(), reminder.StatusPending)
	if err != nil {
		return false, errors.Wrap(err, "claiming reminder job")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "claiming reminder job")
	}
	return n == 1, nil
}

func (repo reminderJobRepository) MarkJobSent(ctx context.Context, id string) error {
	const q = `UPDATE reminder_job SET status = $2, last_error = NULL, updated_at = now() WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, q, id, reminder.StatusSent); err != nil {
		return errors.Wrap(err, "marking reminder job sent")
	}
	return nil
}

func (repo reminderJobRepository) MarkJobFailed(ctx context.Context, id, lastError string) error {
	const q = `UPDATE reminder_job SET status = $2, last_error = $3, updated_at = now() WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, q, id, reminder.StatusFailed, lastError); err != nil {
		return errors.Wrap(err, "marking reminder job failed")
	}
	return nil
}

func (repo reminderJobRepository) DeletePendingJobsBySession(ctx context.Context, sessionID string) error {
	const q = `DELETE FROM reminder_job WHERE session_id = $1 AND status = $2`
	if _, err := repo.db.ExecContext(ctx, q, sessionID, reminder.StatusPending); err != nil {
		return errors.Wrap(err, "deleting pending reminder jobs")
	}
	return nil
}

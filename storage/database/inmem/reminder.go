package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core/reminder"
)

type reminderJobRepository struct {
	db *jobTable
}

var _ reminder.Repository = (*reminderJobRepository)(nil)

func NewReminderJobRepository(db *DB) *reminderJobRepository {
	return &reminderJobRepository{db: db.job}
}

func (repo *reminderJobRepository) CreateJob(ctx context.Context, job reminder.Job) (reminder.Job, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}
	repo.db.table[job.ID] = &job
	return job, nil
}

func (repo *reminderJobRepository) GetJobByID(ctx context.Context, id string) (reminder.Job, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if job, ok := repo.db.table[id]; ok {
		return *job, nil
	}
	return reminder.Job{}, reminder.ErrNotFound
}

func (repo *reminderJobRepository) DueJobs(ctx context.Context, now time.Time, limit int) ([]reminder.Job, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	jobs := make([]reminder.Job, 0, len(repo.db.table))
	for _, job := range repo.db.table {
		if job.Status == reminder.StatusPending && !job.AttemptedAt.Valid && !job.ScheduledFor.After(now) {
			jobs = append(jobs, *job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ScheduledFor.Before(jobs[j].ScheduledFor) })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (repo *reminderJobRepository) ClaimJob(ctx context.Context, id string, at time.Time) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	job, ok := repo.db.table[id]
	if !ok {
		return false, reminder.ErrNotFound
	}
	if job.Status != reminder.StatusPending || job.AttemptedAt.Valid {
		return false, nil
	}
	job.AttemptedAt = null.TimeFrom(at.UTC())
	job.UpdatedAt = at.UTC()
	return true, nil
}

func (repo *reminderJobRepository) MarkJobSent(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	job, ok := repo.db.table[id]
	if !ok {
		return reminder.ErrNotFound
	}
	job.Status = reminder.StatusSent
	job.LastError = null.String{}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *reminderJobRepository) MarkJobFailed(ctx context.Context, id, lastError string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	job, ok := repo.db.table[id]
	if !ok {
		return reminder.ErrNotFound
	}
	job.Status = reminder.StatusFailed
	job.LastError = null.StringFrom(lastError)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *reminderJobRepository) DeletePendingJobsBySession(ctx context.Context, sessionID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, job := range repo.db.table {
		if job.SessionID == sessionID && job.Status == reminder.StatusPending {
			delete(repo.db.table, id)
		}
	}
	return nil
}

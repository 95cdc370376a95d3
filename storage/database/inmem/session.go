package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) query() []session.Session {
	sessions := make([]session.Session, 0, len(repo.db.table))
	for _, sess := range repo.db.table {
		sessions = append(sessions, *sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ScheduledStartAt.After(sessions[j].ScheduledStartAt)
	})
	return sessions
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess.ID = uuid.New().String()
	repo.db.table[sess.ID] = &sess
	return sess, nil
}

func (repo *sessionRepository) FilterSessions(ctx context.Context, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := repo.query()
	if filter == nil {
		return sessions, nil
	}

	matches := make([]session.Session, 0, len(sessions))
	for _, sess := range sessions {
		if filter.StudentID != "" && sess.StudentID != filter.StudentID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsString(filter.Statuses, sess.Status) {
			continue
		}
		if !filter.From.IsZero() && sess.ScheduledStartAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && sess.ScheduledStartAt.After(filter.To) {
			continue
		}
		matches = append(matches, sess)
	}
	return matches, nil
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sess, ok := repo.db.table[id]; ok {
		return *sess, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origSess, ok := repo.db.table[sess.ID]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	origSess.Topic = sess.Topic
	origSess.ScheduledStartAt = sess.ScheduledStartAt
	origSess.ScheduledEndAt = sess.ScheduledEndAt
	origSess.MeetingID = sess.MeetingID
	origSess.MeetingJoinURL = sess.MeetingJoinURL
	origSess.MeetingStartURL = sess.MeetingStartURL
	origSess.ReminderEnabled = sess.ReminderEnabled
	origSess.ReminderLeadMins = sess.ReminderLeadMins
	origSess.UpdatedAt = sess.UpdatedAt

	repo.db.table[sess.ID] = origSess
	return *origSess, nil
}

func (repo *sessionRepository) TransitionStatus(ctx context.Context, id, from, to string, actualStart, actualEnd null.Time) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess, ok := repo.db.table[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	if sess.Status != from {
		return session.Session{}, session.ErrInvalidTransition
	}
	sess.Status = to
	if actualStart.Valid {
		sess.ActualStartAt = actualStart
	}
	if actualEnd.Valid {
		sess.ActualEndAt = actualEnd
	}
	sess.UpdatedAt = time.Now().UTC()

	repo.db.table[id] = sess
	return *sess, nil
}

func (repo *sessionRepository) SetReminderOutcome(ctx context.Context, sessionID, status, lastError string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess, ok := repo.db.table[sessionID]
	if !ok {
		return session.ErrNotFound
	}
	sess.ReminderStatus = null.StringFrom(status)
	sess.ReminderLastError = null.NewString(lastError, lastError != "")
	sess.UpdatedAt = time.Now().UTC()

	repo.db.table[sessionID] = sess
	return nil
}

func (repo *sessionRepository) DeleteSessionsByID(ctx context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/session"
)

type sessionRow struct {
	ID                string      `db:"id"`
	StudentID         string      `db:"student_id"`
	CreatedBy         null.String `db:"created_by"`
	Status            string      `db:"status"`
	Topic             null.String `db:"topic"`
	ScheduledStartAt  time.Time   `db:"scheduled_start_at"`
	ScheduledEndAt    time.Time   `db:"scheduled_end_at"`
	ActualStartAt     null.Time   `db:"actual_start_at"`
	ActualEndAt       null.Time   `db:"actual_end_at"`
	MeetingID         null.String `db:"meeting_id"`
	MeetingJoinURL    null.String `db:"meeting_join_url"`
	MeetingStartURL   null.String `db:"meeting_start_url"`
	ReminderEnabled   bool        `db:"reminder_enabled"`
	ReminderLeadMins  int         `db:"reminder_lead_mins"`
	ReminderStatus    null.String `db:"reminder_status"`
	ReminderLastError null.String `db:"reminder_last_error"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) toRow(sess session.Session) sessionRow {
	return sessionRow{
		ID:                sess.ID,
		StudentID:         sess.StudentID,
		CreatedBy:         null.NewString(sess.CreatedBy, sess.CreatedBy != ""),
		Status:            sess.Status,
		Topic:             null.NewString(sess.Topic, sess.Topic != ""),
		ScheduledStartAt:  sess.ScheduledStartAt.UTC(),
		ScheduledEndAt:    sess.ScheduledEndAt.UTC(),
		ActualStartAt:     sess.ActualStartAt,
		ActualEndAt:       sess.ActualEndAt,
		MeetingID:         sess.MeetingID,
		MeetingJoinURL:    sess.MeetingJoinURL,
		MeetingStartURL:   sess.MeetingStartURL,
		ReminderEnabled:   sess.ReminderEnabled,
		ReminderLeadMins:  sess.ReminderLeadMins,
		ReminderStatus:    sess.ReminderStatus,
		ReminderLastError: sess.ReminderLastError,
		CreatedAt:         sess.CreatedAt.UTC(),
		UpdatedAt:         sess.UpdatedAt.UTC(),
	}
}

func (repo sessionRepository) fromRow(row sessionRow) session.Session {
	return session.Session{
		ID:                row.ID,
		StudentID:         row.StudentID,
		CreatedBy:         row.CreatedBy.String,
		Status:            row.Status,
		Topic:             row.Topic.String,
		ScheduledStartAt:  row.ScheduledStartAt,
		ScheduledEndAt:    row.ScheduledEndAt,
		ActualStartAt:     row.ActualStartAt,
		ActualEndAt:       row.ActualEndAt,
		MeetingID:         row.MeetingID,
		MeetingJoinURL:    row.MeetingJoinURL,
		MeetingStartURL:   row.MeetingStartURL,
		ReminderEnabled:   row.ReminderEnabled,
		ReminderLeadMins:  row.ReminderLeadMins,
		ReminderStatus:    row.ReminderStatus,
		ReminderLastError: row.ReminderLastError,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func (repo sessionRepository) fromRows(rows []sessionRow) []session.Session {
	sessions := make([]session.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, repo.fromRow(row))
	}
	return sessions
}

func (repo sessionRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return session.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	sess.ID = uuid.New().String()
	row := repo.toRow(sess)
	const q = `
		INSERT INTO session (id, student_id, created_by, status, topic,
		                     scheduled_start_at, scheduled_end_at, actual_start_at, actual_end_at,
		                     meeting_id, meeting_join_url, meeting_start_url,
		                     reminder_enabled, reminder_lead_mins, reminder_status, reminder_last_error,
		                     created_at, updated_at)
		VALUES (:id, :student_id, :created_by, :status, :topic,
		        :scheduled_start_at, :scheduled_end_at, :actual_start_at, :actual_end_at,
		        :meeting_id, :meeting_join_url, :meeting_start_url,
		        :reminder_enabled, :reminder_lead_mins, :reminder_status, :reminder_last_error,
		        :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return repo.fromRow(row), nil
}

func (repo sessionRepository) FilterSessions(ctx context.Context, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error) {
	q := `SELECT * FROM session`
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.StudentID != "" {
			conds = append(conds, `student_id = ?`)
			args = append(args, filter.StudentID)
		}
		if len(filter.Statuses) > 0 {
			conds = append(conds, `status IN (?)`)
			args = append(args, filter.Statuses)
		}
		if !filter.From.IsZero() {
			conds = append(conds, `scheduled_start_at >= ?`)
			args = append(args, filter.From.UTC())
		}
		if !filter.To.IsZero() {
			conds = append(conds, `scheduled_start_at <= ?`)
			args = append(args, filter.To.UTC())
		}
	}

	q += whereClause(conds) + orderClause(ordering, "scheduled_start_at DESC")

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "filtering sessions")
	}
	var rows []sessionRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering sessions")
	}
	return repo.fromRows(rows), nil
}

func (repo sessionRepository) getRowByID(ctx context.Context, id string) (sessionRow, error) {
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM session WHERE id = $1`, id); err != nil {
		return sessionRow{}, repo.trapNoRowsErr(err, "finding session by ID")
	}
	return row, nil
}

func (repo sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	row, err := repo.getRowByID(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	return repo.fromRow(row), nil
}

func (repo sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	row := repo.toRow(sess)
	const q = `
		UPDATE session
		SET topic = :topic, scheduled_start_at = :scheduled_start_at, scheduled_end_at = :scheduled_end_at,
		    meeting_id = :meeting_id, meeting_join_url = :meeting_join_url, meeting_start_url = :meeting_start_url,
		    reminder_enabled = :reminder_enabled, reminder_lead_mins = :reminder_lead_mins,
		    updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "updating session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.Session{}, session.ErrNotFound
	}
	return repo.GetSessionByID(ctx, sess.ID)
}

func (repo sessionRepository) TransitionStatus(ctx context.Context, id, from, to string, actualStart, actualEnd null.Time) (session.Session, error) {
	const q = `
		UPDATE session
		SET status = $3,
		    actual_start_at = COALESCE($4, actual_start_at),
		    actual_end_at = COALESCE($5, actual_end_at),
		    updated_at = now()
		WHERE id = $1 AND status = $2`
	res, err := repo.db.ExecContext(ctx, q, id, from, to, actualStart, actualEnd)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "transitioning session status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return session.Session{}, errors.Wrap(err, "transitioning session status")
	}
	if n == 0 {
		// either the session is gone or it already left `from`
		if _, err = repo.getRowByID(ctx, id); err != nil {
			return session.Session{}, err
		}
		return session.Session{}, session.ErrInvalidTransition
	}
	return repo.GetSessionByID(ctx, id)
}

func (repo sessionRepository) SetReminderOutcome(ctx context.Context, sessionID, status, lastError string) error {
	const q = `
		UPDATE session
		SET reminder_status = $2, reminder_last_error = NULLIF($3, ''), updated_at = now()
		WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, q, sessionID, status, lastError); err != nil {
		return errors.Wrap(err, "recording reminder outcome")
	}
	return nil
}

func (repo sessionRepository) DeleteSessionsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM session WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting sessions")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting sessions")
	}
	return nil
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/ledger"
)

type entryRow struct {
	ID         string          `db:"id"`
	StudentID  string          `db:"student_id"`
	SessionID  null.String     `db:"session_id"`
	Type       string          `db:"type"`
	Amount     decimal.Decimal `db:"amount"`
	Reference  null.String     `db:"reference"`
	ReceiptURL null.String     `db:"receipt_url"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

type entryRepository struct {
	db *sqlx.DB
}

var _ ledger.Repository = (*entryRepository)(nil) // interface compliance check

func NewEntryRepository(db *sqlx.DB) *entryRepository {
	return &entryRepository{db: db}
}

func (repo entryRepository) toRow(ent ledger.Entry) entryRow {
	return entryRow{
		ID:         ent.ID,
		StudentID:  ent.StudentID,
		SessionID:  ent.SessionID,
		Type:       ent.Type,
		Amount:     ent.Amount,
		Reference:  ent.Reference,
		ReceiptURL: ent.ReceiptURL,
		CreatedAt:  ent.CreatedAt.UTC(),
		UpdatedAt:  ent.UpdatedAt.UTC(),
	}
}

func (repo entryRepository) fromRow(row entryRow) ledger.Entry {
	return ledger.Entry{
		ID:         row.ID,
		StudentID:  row.StudentID,
		SessionID:  row.SessionID,
		Type:       row.Type,
		Amount:     row.Amount,
		Reference:  row.Reference,
		ReceiptURL: row.ReceiptURL,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

func (repo entryRepository) fromRows(rows []entryRow) []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, repo.fromRow(row))
	}
	return entries
}

func (repo entryRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return ledger.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// isUniqueViolation reports whether err is the partial-unique-index
// violation guarding one charge per session.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (repo entryRepository) CreateEntry(ctx context.Context, ent ledger.Entry) (ledger.Entry, error) {
	ent.ID = uuid.New().String()
	row := repo.toRow(ent)
	const q = `
		INSERT INTO ledger_entry (id, student_id, session_id, type, amount, reference, receipt_url, created_at, updated_at)
		VALUES (:id, :student_id, :session_id, :type, :amount, :reference, :receipt_url, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return ledger.Entry{}, ledger.ErrDuplicateCharge
		}
		return ledger.Entry{}, errors.Wrap(err, "inserting ledger entry")
	}
	return repo.fromRow(row), nil
}

func (repo entryRepository) FilterEntries(ctx context.Context, filter *ledger.QueryFilter, ordering []core.DBOrdering) ([]ledger.Entry, error) {
	q := `SELECT * FROM ledger_entry`
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.StudentID != "" {
			conds = append(conds, `student_id = ?`)
			args = append(args, filter.StudentID)
		}
		if len(filter.Types) > 0 {
			conds = append(conds, `type IN (?)`)
			args = append(args, filter.Types)
		}
		if !filter.From.IsZero() {
			conds = append(conds, `created_at >= ?`)
			args = append(args, filter.From.UTC())
		}
		if !filter.To.IsZero() {
			conds = append(conds, `created_at <= ?`)
			args = append(args, filter.To.UTC())
		}
	}

	q += whereClause(conds) + orderClause(ordering, "created_at DESC")

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "filtering ledger entries")
	}
	var rows []entryRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering ledger entries")
	}
	return repo.fromRows(rows), nil
}

func (repo entryRepository) GetEntryByID(ctx context.Context, id string) (ledger.Entry, error) {
	var row entryRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM ledger_entry WHERE id = $1`, id); err != nil {
		return ledger.Entry{}, repo.trapNoRowsErr(err, "finding ledger entry by ID")
	}
	return repo.fromRow(row), nil
}

func (repo entryRepository) UpdateEntry(ctx context.Context, ent ledger.Entry) (ledger.Entry, error) {
	row := repo.toRow(ent)
	const q = `
		UPDATE ledger_entry
		SET type = :type, amount = :amount, reference = :reference, receipt_url = :receipt_url,
		    updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return ledger.Entry{}, errors.Wrap(err, "updating ledger entry")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	return repo.GetEntryByID(ctx, ent.ID)
}

func (repo entryRepository) DeleteEntriesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM ledger_entry WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting ledger entries")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting ledger entries")
	}
	return nil
}

func (repo entryRepository) StudentBalance(ctx context.Context, studentID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	const q = `SELECT COALESCE(SUM(amount), 0) FROM ledger_entry WHERE student_id = $1`
	if err := repo.db.GetContext(ctx, &balance, q, studentID); err != nil {
		return decimal.Zero, errors.Wrap(err, "computing student balance")
	}
	return balance, nil
}

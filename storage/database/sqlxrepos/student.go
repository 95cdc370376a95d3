package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/student"
)

type studentRow struct {
	ID           string          `db:"id"`
	Name         string          `db:"name"`
	Email        null.String     `db:"email"`
	Phone        null.String     `db:"phone"`
	PricePerHour decimal.Decimal `db:"price_per_hour"`
	IsActive     bool            `db:"is_active"`
	Notes        null.String     `db:"notes"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) toRow(std student.Student) studentRow {
	isActive := true
	if std.IsActive != nil {
		isActive = *std.IsActive
	}
	return studentRow{
		ID:           std.ID,
		Name:         std.Name,
		Email:        null.NewString(std.Email, std.Email != ""),
		Phone:        null.NewString(std.Phone, std.Phone != ""),
		PricePerHour: std.PricePerHour,
		IsActive:     isActive,
		Notes:        std.Notes,
		CreatedAt:    std.CreatedAt.UTC(),
		UpdatedAt:    std.UpdatedAt.UTC(),
	}
}

func (repo studentRepository) fromRow(row studentRow) student.Student {
	return student.Student{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email.String,
		Phone:        row.Phone.String,
		PricePerHour: row.PricePerHour,
		IsActive:     &row.IsActive,
		Notes:        row.Notes,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func (repo studentRepository) fromRows(rows []studentRow) []student.Student {
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.fromRow(row))
	}
	return students
}

func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	std.ID = uuid.New().String()
	row := repo.toRow(std)
	const q = `
		INSERT INTO student (id, name, email, phone, price_per_hour, is_active, notes, created_at, updated_at)
		VALUES (:id, :name, :email, :phone, :price_per_hour, :is_active, :notes, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return repo.fromRow(row), nil
}

func (repo studentRepository) FilterStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	q := `SELECT * FROM student`
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			conds = append(conds, `(name ILIKE ? OR email ILIKE ? OR phone ILIKE ?)`)
			args = append(args, val, val, val)
		}
		if filter.IsActive != nil {
			conds = append(conds, `is_active = ?`)
			args = append(args, *filter.IsActive)
		}
	}

	q += whereClause(conds) + orderClause(ordering, "name ASC")

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	return repo.fromRows(rows), nil
}

func (repo studentRepository) getRowByID(ctx context.Context, id string) (studentRow, error) {
	var row studentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM student WHERE id = $1`, id); err != nil {
		return studentRow{}, repo.trapNoRowsErr(err, "finding student by ID")
	}
	return row, nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	row, err := repo.getRowByID(ctx, id)
	if err != nil {
		return student.Student{}, err
	}
	return repo.fromRow(row), nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, std student.Student, isActive *bool) (student.Student, error) {
	// only save set fields
	row, err := repo.getRowByID(ctx, std.ID)
	if err != nil {
		return student.Student{}, err
	}

	if std.Name != "" {
		row.Name = std.Name
	}
	if std.Email != "" {
		row.Email = null.StringFrom(std.Email)
	}
	if std.Phone != "" {
		row.Phone = null.StringFrom(std.Phone)
	}
	if !std.PricePerHour.IsZero() {
		row.PricePerHour = std.PricePerHour
	}
	if std.Notes.Valid {
		row.Notes = std.Notes
	}
	if isActive != nil {
		row.IsActive = *isActive
	}
	row.UpdatedAt = std.UpdatedAt.UTC()

	const q = `
		UPDATE student
		SET name = :name, email = :email, phone = :phone, price_per_hour = :price_per_hour,
		    is_active = :is_active, notes = :notes, updated_at = :updated_at
		WHERE id = :id`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	return repo.fromRow(row), nil
}

func (repo studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM student WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting students")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return nil
}

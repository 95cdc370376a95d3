package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/user"
)

type userRow struct {
	ID                    string         `db:"id"`
	Name                  null.String    `db:"name"`
	Email                 string         `db:"email"`
	Locale                string         `db:"locale"`
	Roles                 pq.StringArray `db:"roles"`
	IsActive              bool           `db:"is_active"`
	Approved              bool           `db:"approved"`
	PasswordHash          []byte         `db:"password_hash"`
	ZoomAccountID         null.String    `db:"zoom_account_id"`
	ZoomClientID          null.String    `db:"zoom_client_id"`
	ZoomClientSecret      null.String    `db:"zoom_client_secret"`
	WhatsAppPhoneNumberID null.String    `db:"whatsapp_phone_number_id"`
	WhatsAppToken         null.String    `db:"whatsapp_token"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
	LastLogin             null.Time      `db:"last_login"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) toRow(usr user.User) userRow {
	isActive := true
	if usr.IsActive != nil {
		isActive = *usr.IsActive
	}
	return userRow{
		ID:                    usr.ID,
		Name:                  null.NewString(usr.Name, usr.Name != ""),
		Email:                 usr.Email,
		Locale:                usr.Locale,
		Roles:                 usr.Roles,
		IsActive:              isActive,
		Approved:              usr.Approved,
		PasswordHash:          usr.PasswordHash,
		ZoomAccountID:         null.NewString(usr.Zoom.AccountID, usr.Zoom.AccountID != ""),
		ZoomClientID:          null.NewString(usr.Zoom.ClientID, usr.Zoom.ClientID != ""),
		ZoomClientSecret:      null.NewString(usr.Zoom.ClientSecret, usr.Zoom.ClientSecret != ""),
		WhatsAppPhoneNumberID: null.NewString(usr.WhatsApp.PhoneNumberID, usr.WhatsApp.PhoneNumberID != ""),
		WhatsAppToken:         null.NewString(usr.WhatsApp.Token, usr.WhatsApp.Token != ""),
		CreatedAt:             usr.CreatedAt.UTC(),
		UpdatedAt:             usr.UpdatedAt.UTC(),
		LastLogin:             null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name.String,
		Email:        row.Email,
		Locale:       row.Locale,
		Roles:        row.Roles,
		IsActive:     &row.IsActive,
		Approved:     row.Approved,
		PasswordHash: row.PasswordHash,
		Zoom: user.ZoomCredentials{
			AccountID:    row.ZoomAccountID.String,
			ClientID:     row.ZoomClientID.String,
			ClientSecret: row.ZoomClientSecret.String,
		},
		WhatsApp: user.WhatsAppCredentials{
			PhoneNumberID: row.WhatsAppPhoneNumberID.String,
			Token:         row.WhatsAppToken.String,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		LastLogin: row.LastLogin.Time,
	}
}

func (repo userRepository) fromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.fromRow(row))
	}
	return users
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	q := `SELECT EXISTS (SELECT 1 FROM "user" WHERE email = ?`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		q += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	q += `)`

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.toRow(usr)
	const q = `
		INSERT INTO "user" (id, name, email, locale, roles, is_active, approved, password_hash,
		                    zoom_account_id, zoom_client_id, zoom_client_secret,
		                    whatsapp_phone_number_id, whatsapp_token, created_at, updated_at, last_login)
		VALUES (:id, :name, :email, :locale, :roles, :is_active, :approved, :password_hash,
		        :zoom_account_id, :zoom_client_id, :zoom_client_secret,
		        :whatsapp_phone_number_id, :whatsapp_token, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := `SELECT * FROM "user"`
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			conds = append(conds, `(name ILIKE ? OR email ILIKE ?)`)
			args = append(args, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roleConds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roleConds = append(roleConds, `EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ?)`)
				args = append(args, role+"%")
			}
			conds = append(conds, "("+joinOr(roleConds)+")")
		}
		if filter.IsActive != nil {
			conds = append(conds, `is_active = ?`)
			args = append(args, *filter.IsActive)
		}
		if filter.Approved != nil {
			conds = append(conds, `approved = ?`)
			args = append(args, *filter.Approved)
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, `created_at >= ?`)
			args = append(args, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, `created_at <= ?`)
			args = append(args, filter.CreatedTo.UTC())
		}
	}

	q += whereClause(conds) + orderClause(ordering, "created_at DESC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return repo.fromRows(rows), nil
}

func (repo userRepository) getRowByID(ctx context.Context, id string) (userRow, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE id = $1`, id); err != nil {
		return userRow{}, repo.trapNoRowsErr(err, "finding user by ID")
	}
	return row, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	row, err := repo.getRowByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE email = $1`, email); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by email")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive, approved *bool) (user.User, error) {
	// only save set fields
	row, err := repo.getRowByID(ctx, usr.ID)
	if err != nil {
		return user.User{}, err
	}

	if usr.Name != "" {
		row.Name = null.StringFrom(usr.Name)
	}
	if usr.Email != "" {
		row.Email = usr.Email
	}
	if usr.Locale != "" {
		row.Locale = usr.Locale
	}
	if usr.Roles != nil {
		row.Roles = usr.Roles
	}
	if usr.PasswordHash != nil {
		row.PasswordHash = usr.PasswordHash
	}
	if !usr.Zoom.IsZero() {
		row.ZoomAccountID = null.StringFrom(usr.Zoom.AccountID)
		row.ZoomClientID = null.StringFrom(usr.Zoom.ClientID)
		row.ZoomClientSecret = null.StringFrom(usr.Zoom.ClientSecret)
	}
	if !usr.WhatsApp.IsZero() {
		row.WhatsAppPhoneNumberID = null.StringFrom(usr.WhatsApp.PhoneNumberID)
		row.WhatsAppToken = null.StringFrom(usr.WhatsApp.Token)
	}
	if isActive != nil {
		row.IsActive = *isActive
	}
	if approved != nil {
		row.Approved = *approved
	}
	if !usr.LastLogin.IsZero() {
		row.LastLogin = null.TimeFrom(usr.LastLogin.UTC())
	}
	row.UpdatedAt = usr.UpdatedAt.UTC()

	const q = `
		UPDATE "user"
		SET name = :name, email = :email, locale = :locale, roles = :roles,
		    is_active = :is_active, approved = :approved, password_hash = :password_hash,
		    zoom_account_id = :zoom_account_id, zoom_client_id = :zoom_client_id,
		    zoom_client_secret = :zoom_client_secret,
		    whatsapp_phone_number_id = :whatsapp_phone_number_id, whatsapp_token = :whatsapp_token,
		    updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting users")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

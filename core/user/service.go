package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/akilisha/darasa/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on User.Name or User.Email.
		FilterUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, usr User, isActive, approved *bool) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	// ApprovalCache caches the admin-set approval flag per user so the
	// client's polling does not hit the database on every round-trip.
	ApprovalCache interface {
		GetApproval(ctx context.Context, userID string) (approved, cached bool, err error)
		SetApproval(ctx context.Context, userID string, approved bool) error
		DeleteApproval(ctx context.Context, userID string) error
	}

	Service interface {
		// Register creates a self-signed-up account; it starts unapproved.
		Register(ctx context.Context, nu NewUser) (User, error)
		// Create creates a pre-approved account with the given roles.
		Create(ctx context.Context, nu NewUser, roles ...string) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) error
		SetLastLogin(ctx context.Context, usr User) (User, error)
		CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error

		// Approve flips the approval flag and invalidates its cache entry.
		Approve(ctx context.Context, id string) (User, error)
		// ApprovalStatus returns the (possibly cached) approval flag.
		ApprovalStatus(ctx context.Context, id string) (bool, error)

		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	service struct {
		conf      *core.Config
		repo      Repository
		mailSvc   core.EmailService
		approvals ApprovalCache // nil disables caching
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService, approvals ApprovalCache) Service {
	initTokenGenerator(conf)
	return &service{
		conf:      conf,
		repo:      repo,
		mailSvc:   mailSvc,
		approvals: approvals,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) create(ctx context.Context, nu NewUser, approved bool, roles []string) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Locale:    nu.Locale,
		Roles:     roles,
		Approved:  approved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Locale == "" {
		usr.Locale = "en"
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	return svc.create(ctx, nu, false /* approved */, TutorRoles)
}

func (svc *service) Create(ctx context.Context, nu NewUser, roles ...string) (User, error) {
	if len(roles) == 0 {
		roles = TutorRoles
	}
	return svc.create(ctx, nu, true /* approved */, roles)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Email:     uu.Email,
		Locale:    uu.Locale,
		Roles:     uu.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Zoom != nil {
		usr.Zoom = uu.Zoom.Credentials()
	}
	if uu.WhatsApp != nil {
		usr.WhatsApp = uu.WhatsApp.Credentials()
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	updated, err := svc.repo.UpdateUser(ctx, usr, uu.IsActive, uu.Approved)
	if err != nil {
		return User{}, err
	}
	if uu.Approved != nil && svc.approvals != nil {
		if err := svc.approvals.DeleteApproval(ctx, id); err != nil {
			return updated, errors.Wrap(err, "invalidating approval cache")
		}
	}
	return updated, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	usr.UpdatedAt = usr.LastLogin
	return svc.repo.UpdateUser(ctx, usr, nil, nil)
}

func (svc *service) Approve(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	approved := true
	usr.UpdatedAt = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr, nil, &approved)
	if err != nil {
		return User{}, err
	}
	if svc.approvals != nil {
		if err := svc.approvals.DeleteApproval(ctx, id); err != nil {
			return usr, errors.Wrap(err, "invalidating approval cache")
		}
	}
	return usr, nil
}

func (svc *service) ApprovalStatus(ctx context.Context, id string) (bool, error) {
	if svc.approvals != nil {
		if approved, cached, err := svc.approvals.GetApproval(ctx, id); err == nil && cached {
			return approved, nil
		}
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return false, err
	}
	if svc.approvals != nil {
		// cache failures are not fatal; the next poll hits the DB again
		_ = svc.approvals.SetApproval(ctx, id, usr.Approved)
	}
	return usr.Approved, nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{
			Name:  usr.Name,
			UID:   EncodeUID(usr),
			Token: makeToken(usr),
		},
	})
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err := verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr, nil, nil)
	return err
}

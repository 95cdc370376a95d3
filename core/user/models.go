package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/akilisha/darasa/core"
)

// Roles
const (
	RoleAdmin = "admin:"
	RoleTutor = "tutor:"
)

var (
	AdminRoles = []string{RoleAdmin}
	TutorRoles = []string{RoleTutor}
	AllRoles   = []string{RoleAdmin, RoleTutor}

	Roles = []Role{
		{Name: "Tutor", Value: RoleTutor},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ZoomCredentials is a user's Zoom Server-to-Server OAuth triple.
type ZoomCredentials struct {
	AccountID    string `json:"account_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
}

func (c ZoomCredentials) IsZero() bool {
	return c.AccountID == "" || c.ClientID == "" || c.ClientSecret == ""
}

// WhatsAppCredentials is a user's WhatsApp Business phone-number-id/token pair.
type WhatsAppCredentials struct {
	PhoneNumberID string `json:"phone_number_id"`
	Token         string `json:"-"`
}

func (c WhatsAppCredentials) IsZero() bool {
	return c.PhoneNumberID == "" || c.Token == ""
}

type User struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Locale       string              `json:"locale"`
	Roles        []string            `json:"roles"`
	IsActive     *bool               `json:"is_active"`
	Approved     bool                `json:"approved"`
	PasswordHash []byte              `json:"-"`
	Zoom         ZoomCredentials     `json:"zoom"`
	WhatsApp     WhatsAppCredentials `json:"whatsapp"`
	CreatedAt    time.Time           `json:"created_at"` // UTC
	UpdatedAt    time.Time           `json:"updated_at"` // UTC
	LastLogin    time.Time           `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsTutor() bool {
	return u.RoleStartsWith(RoleTutor)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Locale          string `json:"locale" validate:"omitempty,bcp47_language_tag"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// ZoomCredentialsInput accepts the full Zoom triple on write. The stored
// model redacts the secret on output, so updates bind through this type
// instead.
type ZoomCredentialsInput struct {
	AccountID    string `json:"account_id" validate:"required"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

func (c ZoomCredentialsInput) Credentials() ZoomCredentials {
	return ZoomCredentials{AccountID: c.AccountID, ClientID: c.ClientID, ClientSecret: c.ClientSecret}
}

// WhatsAppCredentialsInput accepts the phone-number-id/token pair on write.
type WhatsAppCredentialsInput struct {
	PhoneNumberID string `json:"phone_number_id" validate:"required"`
	Token         string `json:"token" validate:"required"`
}

func (c WhatsAppCredentialsInput) Credentials() WhatsAppCredentials {
	return WhatsAppCredentials{PhoneNumberID: c.PhoneNumberID, Token: c.Token}
}

// UpdateUser defines what information may be provided to modify an existing User.
// Credential fields replace the stored pair/triple wholesale when set.
type UpdateUser struct {
	Name            string                    `json:"name"`
	Email           string                    `json:"email" validate:"omitempty,email"`
	Locale          string                    `json:"locale" validate:"omitempty,bcp47_language_tag"`
	IsActive        *bool                     `json:"is_active"`
	Approved        *bool                     `json:"approved"`
	Roles           []string                  `json:"roles"`
	Zoom            *ZoomCredentialsInput     `json:"zoom"`
	WhatsApp        *WhatsAppCredentialsInput `json:"whatsapp"`
	Password        string                    `json:"password" validate:"omitempty,min=8"`
	PasswordConfirm string                    `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if uu.Locale == "" {
		uu.Locale = origUsr.Locale
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	Approved    *bool     `query:"approved"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.Approved == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

package student

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core"
)

type Student struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	PricePerHour decimal.Decimal `json:"price_per_hour"`
	IsActive     *bool           `json:"is_active"`
	Notes        null.String     `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"` // UTC
	UpdatedAt    time.Time       `json:"updated_at"` // UTC
}

func (s *Student) SetActive(active bool) {
	s.IsActive = &active
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name         string          `json:"name" validate:"required"`
	Email        string          `json:"email" validate:"omitempty,email"`
	Phone        string          `json:"phone" validate:"omitempty,phone"`
	PricePerHour decimal.Decimal `json:"price_per_hour" validate:"gt=0"`
	Notes        string          `json:"notes"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
type UpdateStudent struct {
	Name         string           `json:"name"`
	Email        string           `json:"email" validate:"omitempty,email"`
	Phone        string           `json:"phone" validate:"omitempty,phone"`
	PricePerHour *decimal.Decimal `json:"price_per_hour"`
	IsActive     *bool            `json:"is_active"`
	Notes        *string          `json:"notes"`
}

func (us *UpdateStudent) Validate(origStd Student, validate *validator.Validate) error {
	name := core.CleanString(us.Name)
	if name != "" {
		us.Name = name
	} else {
		us.Name = origStd.Name
	}

	email := core.CleanString(us.Email, true /* lower */)
	if email != "" {
		us.Email = email
	} else {
		us.Email = origStd.Email
	}

	phone := core.CleanString(us.Phone)
	if phone != "" {
		us.Phone = phone
	} else {
		us.Phone = origStd.Phone
	}

	if err := validate.Struct(us); err != nil {
		return err
	}
	if us.PricePerHour != nil && !us.PricePerHour.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "price_per_hour", Error: "must be greater than zero"})
	}
	return nil
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

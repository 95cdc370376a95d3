package ledger

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core"
)

// Entry types. Charges are conventionally negative, payments positive.
const (
	EntrySessionCharge       = "SESSION_CHARGE"
	EntryPaymentConfirmation = "PAYMENT_CONFIRMATION"
	EntryAdjustment          = "ADJUSTMENT"
)

var EntryTypes = []string{EntrySessionCharge, EntryPaymentConfirmation, EntryAdjustment}

// Entry is one signed financial transaction attributed to a student.
// Entries are editable; no history is retained.
type Entry struct {
	ID         string          `json:"id"`
	StudentID  string          `json:"student_id"`
	SessionID  null.String     `json:"session_id"` // set on derived session charges
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  null.String     `json:"reference"`
	ReceiptURL null.String     `json:"receipt_url"`
	CreatedAt  time.Time       `json:"created_at"` // UTC
	UpdatedAt  time.Time       `json:"updated_at"` // UTC
}

// NewEntry contains information needed to record a new Entry.
type NewEntry struct {
	StudentID string          `json:"student_id" validate:"required,uuid4"`
	Type      string          `json:"type" validate:"required,oneof=SESSION_CHARGE PAYMENT_CONFIRMATION ADJUSTMENT"`
	Amount    decimal.Decimal `json:"amount" validate:"ne=0"`
	Reference string          `json:"reference"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.Reference = core.CleanString(ne.Reference)
	return validate.Struct(ne)
}

// UpdateEntry defines what information may be provided to modify an existing Entry.
type UpdateEntry struct {
	Type      string           `json:"type" validate:"omitempty,oneof=SESSION_CHARGE PAYMENT_CONFIRMATION ADJUSTMENT"`
	Amount    *decimal.Decimal `json:"amount"`
	Reference *string          `json:"reference"`
}

func (ue *UpdateEntry) Validate(origEnt Entry, validate *validator.Validate) error {
	if ue.Type == "" {
		ue.Type = origEnt.Type
	}
	if err := validate.Struct(ue); err != nil {
		return err
	}
	if ue.Amount != nil && ue.Amount.IsZero() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must not be zero"})
	}
	return nil
}

type QueryFilter struct {
	StudentID string    `query:"student_id"`
	Types     []string  `query:"type"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.Types == nil && qf.From.IsZero() && qf.To.IsZero()
}

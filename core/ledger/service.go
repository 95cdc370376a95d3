package ledger

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/akilisha/darasa/core"
)

var (
	ErrNotFound = errors.New("ledger entry not found")
	// ErrDuplicateCharge is returned when a second SESSION_CHARGE is
	// recorded for the same session.
	ErrDuplicateCharge = errors.New("a charge for this session already exists")
)

type (
	Repository interface {
		CreateEntry(ctx context.Context, ent Entry) (Entry, error)
		FilterEntries(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error)
		GetEntryByID(ctx context.Context, id string) (Entry, error)
		UpdateEntry(ctx context.Context, ent Entry) (Entry, error)
		DeleteEntriesByID(ctx context.Context, ids ...string) error
		// StudentBalance sums the amounts of all of a student's entries
		// in a single aggregate; an unknown student yields zero.
		StudentBalance(ctx context.Context, studentID string) (decimal.Decimal, error)
	}

	// ReceiptStore saves receipt images and returns their public URL.
	ReceiptStore interface {
		SaveReceipt(ctx context.Context, name, contentType string, size int64, r io.Reader) (string, error)
	}

	Service interface {
		Create(ctx context.Context, ne NewEntry) (Entry, error)
		// RecordSessionCharge records the derived charge for a completed
		// session; at most one charge per session is ever recorded.
		RecordSessionCharge(ctx context.Context, studentID, sessionID string, amount decimal.Decimal, reference string) (Entry, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error)
		GetByID(ctx context.Context, id string) (Entry, error)
		Update(ctx context.Context, id string, ue UpdateEntry) (Entry, error)
		Delete(ctx context.Context, ids ...string) error
		Balance(ctx context.Context, studentID string) (decimal.Decimal, error)
		// UploadReceipt validates and stores a receipt image, then persists
		// its public URL on the entry. Validation happens before any
		// storage call.
		UploadReceipt(ctx context.Context, entryID, filename string, size int64, r io.Reader) (Entry, error)
	}

	service struct {
		repo     Repository
		receipts ReceiptStore
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, receipts ReceiptStore) Service {
	return &service{repo: repo, receipts: receipts}
}

func (svc *service) Create(ctx context.Context, ne NewEntry) (Entry, error) {
	now := time.Now().UTC()
	ent := Entry{
		StudentID: ne.StudentID,
		Type:      ne.Type,
		Amount:    ne.Amount,
		Reference: null.NewString(ne.Reference, ne.Reference != ""),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateEntry(ctx, ent)
}

func (svc *service) RecordSessionCharge(ctx context.Context, studentID, sessionID string, amount decimal.Decimal, reference string) (Entry, error) {
	now := time.Now().UTC()
	ent := Entry{
		StudentID: studentID,
		SessionID: null.StringFrom(sessionID),
		Type:      EntrySessionCharge,
		Amount:    amount,
		Reference: null.NewString(reference, reference != ""),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateEntry(ctx, ent)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error) {
	return svc.repo.FilterEntries(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Entry, error) {
	return svc.repo.GetEntryByID(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ue UpdateEntry) (Entry, error) {
	ent, err := svc.repo.GetEntryByID(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	ent.Type = ue.Type
	if ue.Amount != nil {
		ent.Amount = *ue.Amount
	}
	if ue.Reference != nil {
		ent.Reference = null.NewString(*ue.Reference, *ue.Reference != "")
	}
	ent.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEntry(ctx, ent)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteEntriesByID(ctx, ids...)
}

func (svc *service) Balance(ctx context.Context, studentID string) (decimal.Decimal, error) {
	return svc.repo.StudentBalance(ctx, studentID)
}

func (svc *service) UploadReceipt(ctx context.Context, entryID, filename string, size int64, r io.Reader) (Entry, error) {
	ent, err := svc.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Entry{}, errors.Wrap(err, "reading receipt")
	}
	head = head[:n]
	if err := ValidateReceipt(size, head); err != nil {
		return Entry{}, err
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	url, err := svc.receipts.SaveReceipt(ctx, entryID+"-"+filename, http.DetectContentType(head), size, body)
	if err != nil {
		return Entry{}, errors.Wrap(err, "saving receipt")
	}

	ent.ReceiptURL = null.StringFrom(url)
	ent.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEntry(ctx, ent)
}

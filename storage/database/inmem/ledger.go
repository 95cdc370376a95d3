package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/ledger"
)

type entryRepository struct {
	db *entryTable
}

var _ ledger.Repository = (*entryRepository)(nil)

func NewEntryRepository(db *DB) *entryRepository {
	return &entryRepository{db: db.entry}
}

func (repo *entryRepository) query() []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(repo.db.table))
	for _, ent := range repo.db.table {
		entries = append(entries, *ent)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries
}

func (repo *entryRepository) CreateEntry(ctx context.Context, ent ledger.Entry) (ledger.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// one derived charge per session
	if ent.Type == ledger.EntrySessionCharge && ent.SessionID.Valid {
		for _, other := range repo.db.table {
			if other.Type == ledger.EntrySessionCharge && other.SessionID == ent.SessionID {
				return ledger.Entry{}, ledger.ErrDuplicateCharge
			}
		}
	}

	ent.ID = uuid.New().String()
	repo.db.table[ent.ID] = &ent
	return ent, nil
}

func (repo *entryRepository) FilterEntries(ctx context.Context, filter *ledger.QueryFilter, ordering []core.DBOrdering) ([]ledger.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := repo.query()
	if filter == nil {
		return entries, nil
	}

	matches := make([]ledger.Entry, 0, len(entries))
	for _, ent := range entries {
		if filter.StudentID != "" && ent.StudentID != filter.StudentID {
			continue
		}
		if len(filter.Types) > 0 && !containsString(filter.Types, ent.Type) {
			continue
		}
		if !filter.From.IsZero() && ent.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && ent.CreatedAt.After(filter.To) {
			continue
		}
		matches = append(matches, ent)
	}
	return matches, nil
}

func (repo *entryRepository) GetEntryByID(ctx context.Context, id string) (ledger.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ent, ok := repo.db.table[id]; ok {
		return *ent, nil
	}
	return ledger.Entry{}, ledger.ErrNotFound
}

func (repo *entryRepository) UpdateEntry(ctx context.Context, ent ledger.Entry) (ledger.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origEnt, ok := repo.db.table[ent.ID]
	if !ok {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	origEnt.Type = ent.Type
	origEnt.Amount = ent.Amount
	origEnt.Reference = ent.Reference
	origEnt.ReceiptURL = ent.ReceiptURL
	origEnt.UpdatedAt = ent.UpdatedAt

	repo.db.table[ent.ID] = origEnt
	return *origEnt, nil
}

func (repo *entryRepository) DeleteEntriesByID(ctx context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func (repo *entryRepository) StudentBalance(ctx context.Context, studentID string) (decimal.Decimal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	balance := decimal.Zero
	for _, ent := range repo.db.table {
		if ent.StudentID == studentID {
			balance = balance.Add(ent.Amount)
		}
	}
	return balance, nil
}

package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, std := range repo.db.table {
		students = append(students, *std)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students
}

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	std.ID = uuid.New().String()
	repo.db.table[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) FilterStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := repo.query()
	if filter == nil {
		return students, nil
	}

	matches := make([]student.Student, 0, len(students))
	for _, std := range students {
		if filter.Search != "" && !containsFold(filter.Search, std.Name, std.Email, std.Phone) {
			continue
		}
		if filter.IsActive != nil && (std.IsActive == nil || *std.IsActive != *filter.IsActive) {
			continue
		}
		matches = append(matches, std)
	}
	return matches, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if std, ok := repo.db.table[id]; ok {
		return *std, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, std student.Student, isActive *bool) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	origStd, ok := repo.db.table[std.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	if std.Name != "" {
		origStd.Name = std.Name
	}
	if std.Email != "" {
		origStd.Email = std.Email
	}
	if std.Phone != "" {
		origStd.Phone = std.Phone
	}
	if !std.PricePerHour.IsZero() {
		origStd.PricePerHour = std.PricePerHour
	}
	if std.Notes.Valid {
		origStd.Notes = std.Notes
	}
	if isActive != nil {
		origStd.SetActive(*isActive)
	}
	origStd.UpdatedAt = std.UpdatedAt

	repo.db.table[std.ID] = origStd
	return *origStd, nil
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

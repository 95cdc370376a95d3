// Package inmemdb provides map-backed repositories used by tests and
// local development.
package inmemdb

import (
	"sync"

	"github.com/akilisha/darasa/core/ledger"
	"github.com/akilisha/darasa/core/reminder"
	"github.com/akilisha/darasa/core/session"
	"github.com/akilisha/darasa/core/student"
	"github.com/akilisha/darasa/core/user"
)

type (
	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}
	studentTable struct {
		mutex sync.RWMutex
		table map[string]*student.Student
	}
	sessionTable struct {
		mutex sync.RWMutex
		table map[string]*session.Session
	}
	entryTable struct {
		mutex sync.RWMutex
		table map[string]*ledger.Entry
	}
	jobTable struct {
		mutex sync.RWMutex
		table map[string]*reminder.Job
	}
)

type DB struct {
	user    *userTable
	student *studentTable
	session *sessionTable
	entry   *entryTable
	job     *jobTable
}

func NewDB() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		student: &studentTable{table: make(map[string]*student.Student)},
		session: &sessionTable{table: make(map[string]*session.Session)},
		entry:   &entryTable{table: make(map[string]*ledger.Entry)},
		job:     &jobTable{table: make(map[string]*reminder.Job)},
	}
}

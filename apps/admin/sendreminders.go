package main

import (
	"context"

	"github.com/akilisha/darasa/core/reminder"
	"github.com/akilisha/darasa/core/student"
	"github.com/akilisha/darasa/core/user"
	emailsvc "github.com/akilisha/darasa/services/email"
	logsvc "github.com/akilisha/darasa/services/logger"
	whatsappsvc "github.com/akilisha/darasa/services/whatsapp"
	"github.com/akilisha/darasa/storage/cache"
	"github.com/akilisha/darasa/storage/database/sqlxrepos"
)

// sendReminders performs a single dispatch pass over all due reminder
// jobs. Meant for cron setups where the API's background loop is off.
func (cli *commandLine) sendReminders() error {
	client, err := cache.NewClient(cli.conf)
	if err != nil {
		return err
	}
	defer client.Close()

	rollbarLogger := logsvc.NewRollbarLogger(logger, cli.conf)
	rollbarLogger.Enable(!cli.conf.Debug)

	usrSvc := user.NewService(
		cli.conf,
		cli.usrRepo,
		emailsvc.NewConsoleService(cli.conf),
		cache.NewApprovalCache(client, cli.conf),
	)
	stdSvc := student.NewService(sqlxrepos.NewStudentRepository(cli.db))

	dispatcher := reminder.NewDispatcher(
		cli.conf,
		sqlxrepos.NewReminderJobRepository(cli.db),
		sqlxrepos.NewSessionRepository(cli.db),
		stdSvc,
		usrSvc,
		whatsappsvc.NewService(),
		cache.NewRedisLock(client),
		rollbarLogger,
	)
	return dispatcher.Dispatch(context.Background())
}

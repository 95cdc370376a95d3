package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/akilisha/darasa/apps/api/echo"
	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/ledger"
	"github.com/akilisha/darasa/core/reminder"
	"github.com/akilisha/darasa/core/session"
	"github.com/akilisha/darasa/core/student"
	"github.com/akilisha/darasa/core/user"
	emailsvc "github.com/akilisha/darasa/services/email"
	logsvc "github.com/akilisha/darasa/services/logger"
	whatsappsvc "github.com/akilisha/darasa/services/whatsapp"
	zoomsvc "github.com/akilisha/darasa/services/zoom"
	"github.com/akilisha/darasa/storage/cache"
	"github.com/akilisha/darasa/storage/database"
	"github.com/akilisha/darasa/storage/database/sqlxrepos"
	"github.com/akilisha/darasa/storage/object"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig(core.Getwd())

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up redis
	redisClient, err := cache.NewClient(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	defer redisClient.Close()
	approvals := cache.NewApprovalCache(redisClient, conf)
	locker := cache.NewRedisLock(redisClient)

	// set up receipt storage
	receipts, err := object.NewReceiptStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up receipt store: %v", err), err)
	}
	if err = receipts.EnsureBucket(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("ensuring receipt bucket: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrSvc := user.NewService(conf, sqlxrepos.NewUserRepository(db), mailSvc, approvals)
	stdSvc := student.NewService(sqlxrepos.NewStudentRepository(db))
	ledgSvc := ledger.NewService(sqlxrepos.NewEntryRepository(db), receipts)

	remRepo := sqlxrepos.NewReminderJobRepository(db)
	remSvc := reminder.NewService(remRepo)

	sessRepo := sqlxrepos.NewSessionRepository(db)
	sessSvc := session.NewService(conf, sessRepo, stdSvc, ledgSvc, zoomsvc.NewService(), remSvc, logger)

	dispatcher := reminder.NewDispatcher(
		conf, remRepo, sessRepo, stdSvc, usrSvc, whatsappsvc.NewService(), locker, logger,
	)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	dispatcher.Start()
	defer dispatcher.Stop()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			StudentSvc: stdSvc,
			SessionSvc: sessSvc,
			LedgerSvc:  ledgSvc,
			MailSvc:    mailSvc,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

package main

import (
	"log"
	"os"

	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/notification"
	emailsvc "github.com/trezcool/tasktracker/services/email"
	logsvc "github.com/trezcool/tasktracker/services/logger"
	"github.com/trezcool/tasktracker/storage/database"
	sqlxrepos "github.com/trezcool/tasktracker/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewLogger("ADMIN : ", conf)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)

	// set up services
	translator := core.NewTranslator()
	validate := core.NewValidate(translator)
	mailer, err := emailsvc.New(conf, log.New(os.Stdout, "MAIL : ", log.LstdFlags))
	errAndDie(err)
	renderer, err := notification.NewRenderer(validate, conf.Notification.Location(), conf.FrontendBaseURL)
	errAndDie(err)

	repo := sqlxrepos.NewNotificationRepository(db)
	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	dispatcher := notification.NewDispatcher(repo, schoolRepo, mailer, logger, conf)
	svc := notification.NewService(
		repo, schoolRepo,
		notification.NewWindowPolicy(repo, conf.Notification.DedupWindow),
		renderer, dispatcher, logger, conf,
	)

	// start CLI
	cli := commandLine{
		db:         db,
		dispatcher: dispatcher,
		finder:     notification.NewReminderFinder(schoolRepo, svc, dispatcher, logger, conf),
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}

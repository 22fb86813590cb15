package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/tasktracker/apps/api/echo"
	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/notification"
	"github.com/trezcool/tasktracker/core/school"
	emailsvc "github.com/trezcool/tasktracker/services/email"
	logsvc "github.com/trezcool/tasktracker/services/logger"
	"github.com/trezcool/tasktracker/storage/database"
	sqlxrepos "github.com/trezcool/tasktracker/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewLogger("API : ", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewLogger("DB : ", conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
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

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	out := log.New(os.Stdout, "MAIL : ", log.LstdFlags)
	svc, err := emailsvc.New(conf, out)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up email service: %v", err), err)
	}
	return svc
}

func newRenderer(conf *core.Config, validate *validator.Validate, logger core.Logger) *notification.Renderer {
	renderer, err := notification.NewRenderer(validate, conf.Notification.Location(), conf.FrontendBaseURL)
	if err != nil {
		logger.Fatal(fmt.Sprintf("parsing notification templates: %v", err), err)
	}
	return renderer
}

func newDedupPolicy(conf *core.Config, repo notification.Repository) notification.DedupPolicy {
	return notification.NewWindowPolicy(repo, conf.Notification.DedupWindow)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(sqlxrepos.NewSchoolRepository, dig.As(new(school.Repository))))
	must(c.Provide(sqlxrepos.NewNotificationRepository))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidate))
	must(c.Provide(newRenderer))
	must(c.Provide(newDedupPolicy))
	must(c.Provide(notification.NewDispatcher))
	must(c.Provide(notification.NewService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

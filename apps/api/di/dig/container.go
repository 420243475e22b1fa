package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/schoolbond/apps/api/echo"
	"github.com/trezcool/schoolbond/core"
	"github.com/trezcool/schoolbond/core/school"
	"github.com/trezcool/schoolbond/core/survey"
	logsvc "github.com/trezcool/schoolbond/services/logger"
	"github.com/trezcool/schoolbond/storage/database"
	inmemdb "github.com/trezcool/schoolbond/storage/database/inmem"
	sqlxrepos "github.com/trezcool/schoolbond/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are backed by the configured database engine.
type Repositories struct {
	dig.Out
	Schools      school.Repository
	SchoolFinder survey.SchoolFinder
	Survey       survey.Repository
	Closer       DBCloser
}

// DBCloser releases the database connection (a no-op for the memory engine).
type DBCloser func() error

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	dbLogger := loggerParam.Logger

	if conf.Database.Engine == core.EngineMemory {
		dbLogger.Warn("using the in-memory database: data is lost on restart")
		db := inmemdb.Open()
		schools := inmemdb.NewSchoolRepository(db)
		return Repositories{
			Schools:      schools,
			SchoolFinder: schools,
			Survey:       inmemdb.NewSurveyRepository(db),
			Closer:       func() error { return nil },
		}
	}

	db, err := newDB(conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	dbLogger.Info(fmt.Sprintf("connected to %s database", conf.Database.Engine))

	schools := sqlxrepos.NewSchoolRepository(db)
	return Repositories{
		Schools:      schools,
		SchoolFinder: schools,
		Survey:       sqlxrepos.NewSurveyRepository(db),
		Closer:       db.Close,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	SchoolSvc  *school.Service
	SurveySvc  *survey.Service
	Validate   *validator.Validate
	Translator ut.Translator
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		SchoolSvc:  p.SchoolSvc,
		SurveySvc:  p.SurveySvc,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(school.NewService))
	must(c.Provide(survey.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

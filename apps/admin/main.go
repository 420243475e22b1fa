package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolbond/core"
	"github.com/trezcool/schoolbond/core/school"
	logsvc "github.com/trezcool/schoolbond/services/logger"
	"github.com/trezcool/schoolbond/storage/database"
	sqlxrepos "github.com/trezcool/schoolbond/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	cli := commandLine{out: os.Stdout}

	// set up DB (the memory engine has nothing to administer)
	if conf.Database.Engine != core.EngineMemory {
		if err := database.CreateIfNotExist(conf); err != nil {
			logger.Fatal("creating database", err)
		}
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal("opening database", err)
		}

		validate := validator.New()
		_en := en.New()
		translator, _ := ut.New(_en, _en).GetTranslator("en")
		core.InitValidators(validate, translator)

		cli.db = db
		cli.schoolSvc = school.NewService(sqlxrepos.NewSchoolRepository(db), logger, validate, translator, conf)
	}

	// start CLI
	err := cli.run(os.Args)
	if cli.db != nil {
		_ = cli.db.Close()
	}
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}

package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/schoolbond/core"
	"github.com/trezcool/schoolbond/core/school"
	"github.com/trezcool/schoolbond/core/survey"
	"github.com/trezcool/schoolbond/services/logger"
	"github.com/trezcool/schoolbond/storage/database"
)

// OpenSQLiteDB opens a fresh, migrated, in-memory sqlite3 database closed at the end of the test.
func OpenSQLiteDB(t *testing.T) *sqlx.DB {
	conf := &core.Config{Database: core.DatabaseConfig{Engine: core.EngineSQLite, Path: ":memory:"}}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenSQLiteDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("OpenSQLiteDB() failed: %v", err)
	}
	return db
}

func CreateSchool(t *testing.T, repo school.Repository, name string, createdAt ...time.Time) school.School {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	sch, err := repo.CreateSchool(context.Background(), school.School{
		Name:      name,
		District:  name + " District",
		City:      "Springfield",
		State:     "IL",
		CreatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return sch
}

func CreateUser(t *testing.T, repo survey.Repository, schoolID, role, code string, lastAssessment ...time.Time) survey.User {
	usr := survey.User{
		SchoolID:   schoolID,
		Role:       role,
		AccessCode: code,
		CreatedAt:  time.Now().UTC(),
	}
	if len(lastAssessment) > 0 {
		last := lastAssessment[0].UTC()
		usr.LastAssessmentDate = &last
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateQuestion(t *testing.T, repo survey.Repository, role, category string, order int) survey.Question {
	q, err := repo.CreateQuestion(context.Background(), survey.Question{
		Role:     role,
		Category: category,
		Text:     "How valued do you feel?",
		Options: []survey.Option{
			{Value: "very-valued", Label: "Very valued"},
			{Value: "somewhat-valued", Label: "Somewhat valued"},
			{Value: "somewhat-undervalued", Label: "Somewhat undervalued"},
			{Value: "very-undervalued", Label: "Very undervalued"},
		},
		Order: order,
	})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return q
}

func CreateMicroRitual(t *testing.T, repo survey.Repository, title, category string, roles ...string) survey.MicroRitual {
	mr, err := repo.CreateMicroRitual(context.Background(), survey.MicroRitual{
		Title:              title,
		Description:        title + " description",
		Category:           category,
		TargetRelationship: "student-teacher",
		TimeRequired:       "5 minutes",
		ParticipantCount:   "2+",
		Difficulty:         "easy",
		Steps:              []string{"Step one", "Step two"},
		ExpectedOutcome:    "Stronger bonds",
		ApplicableRoles:    roles,
	})
	if err != nil {
		t.Fatalf("CreateMicroRitual() failed: %v", err)
	}
	return mr
}

// NewLogger returns a silent logger that never reports to rollbar.
func NewLogger() *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), &core.Config{Env: "TEST"})
}

// NewValidator returns a validator and translator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	survey.InitValidators(validate, translator)
	return validate, translator
}

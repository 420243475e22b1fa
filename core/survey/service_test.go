package survey_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolbond/core"
	"github.com/trezcool/schoolbond/core/school"
	"github.com/trezcool/schoolbond/core/survey"
	"github.com/trezcool/schoolbond/storage/database/inmem"
	"github.com/trezcool/schoolbond/tests"
)

type fixture struct {
	svc     *survey.Service
	repo    survey.Repository
	schools school.Repository
	school  school.School
}

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	schools := inmemdb.NewSchoolRepository(db)
	repo := inmemdb.NewSurveyRepository(db)
	validate, translator := testutil.NewValidator()
	conf := &core.Config{Survey: core.SurveyConfig{AccessCodeAttempts: 100}}

	return fixture{
		svc:     survey.NewService(repo, schools, testutil.NewLogger(), validate, translator, conf),
		repo:    repo,
		schools: schools,
		school:  testutil.CreateSchool(t, schools, "Lincoln High"),
	}
}

// mockNow freezes survey.NowFunc at `now` until the test ends.
func mockNow(t *testing.T, now time.Time) {
	orig := survey.NowFunc
	survey.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { survey.NowFunc = orig })
}

func fieldErrors(t *testing.T, err error) []core.FieldError {
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want a validation error; got %v", err)
	return vErr.Fields
}

// conflictingRepo reports every generated access code as taken at insert time.
type conflictingRepo struct {
	survey.Repository
	checks  int
	inserts int
}

func (r *conflictingRepo) AccessCodeExists(ctx context.Context, code string) (bool, error) {
	r.checks++
	return r.Repository.AccessCodeExists(ctx, code)
}

func (r *conflictingRepo) CreateUser(context.Context, survey.User) (survey.User, error) {
	r.inserts++
	return survey.User{}, survey.ErrAccessCodeTaken
}

func TestService_RegisterUser_insertConflictsShareAttemptBudget(t *testing.T) {
	f := setup(t)
	repo := &conflictingRepo{Repository: f.repo}
	validate, translator := testutil.NewValidator()
	conf := &core.Config{Survey: core.SurveyConfig{AccessCodeAttempts: 5}}
	svc := survey.NewService(repo, f.schools, testutil.NewLogger(), validate, translator, conf)

	_, err := svc.RegisterUser(context.Background(), survey.NewUser{SchoolID: f.school.ID, Role: survey.RoleStudent})
	assert.Equal(t, survey.ErrAccessCodesExhausted, errors.Cause(err))
	assert.Equal(t, 5, repo.checks)
	assert.Equal(t, 5, repo.inserts)
}

func TestService_RegisterUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	codeFormat := regexp.MustCompile(`^[A-Z0-9]{4}$`)

	usr, err := f.svc.RegisterUser(ctx, survey.NewUser{SchoolID: f.school.ID, Role: " Student "})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, survey.RoleStudent, usr.Role)
	assert.Regexp(t, codeFormat, usr.AccessCode)
	assert.Nil(t, usr.LastAssessmentDate)

	usr, err = f.svc.RegisterUser(ctx, survey.NewUser{SchoolID: f.school.ID, Role: survey.RoleStaff, AccessCode: "ab12"})
	require.NoError(t, err)
	assert.Equal(t, "AB12", usr.AccessCode)

	got, err := f.svc.GetUserByAccessCode(ctx, "ab12")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	_, err = f.svc.RegisterUser(ctx, survey.NewUser{SchoolID: f.school.ID, Role: survey.RoleStaff, AccessCode: "AB12"})
	assert.Equal(t, []core.FieldError{{Field: "accessCode", Error: "access code already in use"}}, fieldErrors(t, err))

	_, err = f.svc.RegisterUser(ctx, survey.NewUser{SchoolID: f.school.ID, Role: "janitor", AccessCode: "A-1"})
	assert.ElementsMatch(t, []core.FieldError{
		{Field: "role", Error: "role must be one of student, staff, administrator or counselor"},
		{Field: "accessCode", Error: "access code must be 4 letters or digits"},
	}, fieldErrors(t, err))

	_, err = f.svc.RegisterUser(ctx, survey.NewUser{SchoolID: "unknown", Role: survey.RoleStaff})
	assert.Equal(t, school.ErrNotFound, errors.Cause(err))
}

func TestService_SubmitAssessment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	mockNow(t, now)

	belonging := testutil.CreateQuestion(t, f.repo, survey.RoleStudent, "Belonging", 1)
	safety := testutil.CreateQuestion(t, f.repo, survey.RoleStudent, "Safety", 2)
	staffQ := testutil.CreateQuestion(t, f.repo, survey.RoleStaff, "Collaboration", 1)
	usr := testutil.CreateUser(t, f.repo, f.school.ID, survey.RoleStudent, "AB12")

	canTake, err := f.svc.CanTakeAssessment(ctx, usr.ID)
	require.NoError(t, err)
	assert.True(t, canTake)

	t.Run("invalid responses store nothing", func(t *testing.T) {
		tests := []struct {
			name      string
			responses []survey.Answer
			want      []core.FieldError
		}{
			{name: "no responses", want: []core.FieldError{{Field: "responses", Error: "this field is required"}}},
			{
				name:      "empty answer",
				responses: []survey.Answer{{QuestionID: belonging.ID, Answer: "very-valued"}, {QuestionID: safety.ID, Answer: " "}},
				want:      []core.FieldError{{Field: "responses[1].answer", Error: "this field is required"}},
			},
			{
				name:      "question of another role",
				responses: []survey.Answer{{QuestionID: staffQ.ID, Answer: "very-valued"}},
				want:      []core.FieldError{{Field: "responses[0].questionId", Error: "unknown question for role student"}},
			},
			{
				name:      "answer outside options",
				responses: []survey.Answer{{QuestionID: belonging.ID, Answer: "always"}},
				want:      []core.FieldError{{Field: "responses[0].answer", Error: "answer is not one of the question options"}},
			},
			{
				name: "question answered twice",
				responses: []survey.Answer{
					{QuestionID: belonging.ID, Answer: "very-valued"},
					{QuestionID: belonging.ID, Answer: "very-undervalued"},
				},
				want: []core.FieldError{{Field: "responses[1].questionId", Error: "question answered more than once"}},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.SubmitAssessment(ctx, survey.NewAssessment{UserID: usr.ID, Responses: tt.responses})
				assert.Equal(t, tt.want, fieldErrors(t, err))
			})
		}

		responses, err := f.svc.ResponsesByUser(ctx, usr.ID)
		require.NoError(t, err)
		assert.Empty(t, responses)
		stored, err := f.svc.GetUser(ctx, usr.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.LastAssessmentDate)
	})

	_, err = f.svc.SubmitAssessment(ctx, survey.NewAssessment{
		UserID:    "unknown",
		Responses: []survey.Answer{{QuestionID: belonging.ID, Answer: "very-valued"}},
	})
	assert.Equal(t, survey.ErrUserNotFound, err)

	res, err := f.svc.SubmitAssessment(ctx, survey.NewAssessment{
		UserID: usr.ID,
		Responses: []survey.Answer{
			{QuestionID: belonging.ID, Answer: "very-valued"},
			{QuestionID: safety.ID, Answer: "somewhat-undervalued"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Assessment submitted successfully", res.Message)
	assert.Equal(t, "AB12", res.AccessCode)
	assert.Equal(t, f.school.ID, res.SchoolScore.SchoolID)
	assert.Equal(t, 70, res.SchoolScore.OverallScore)
	assert.Equal(t, map[string]int{"Belonging": 100, "Safety": 40}, res.SchoolScore.CategoryScores)
	assert.True(t, now.Equal(res.SchoolScore.CalculatedAt))

	usr, err = f.svc.GetUser(ctx, usr.ID)
	require.NoError(t, err)
	require.NotNil(t, usr.LastAssessmentDate)
	assert.True(t, now.Equal(*usr.LastAssessmentDate))

	canTake, err = f.svc.CanTakeAssessment(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, canTake)

	again := survey.NewAssessment{UserID: usr.ID, Responses: []survey.Answer{{QuestionID: belonging.ID, Answer: "very-undervalued"}}}
	mockNow(t, now.Add(survey.CooldownPeriod-time.Minute))
	_, err = f.svc.SubmitAssessment(ctx, again)
	assert.Equal(t, survey.ErrCooldown, err)
	assert.True(t, core.IsForbidden(err))

	mockNow(t, now.Add(survey.CooldownPeriod))
	res, err = f.svc.SubmitAssessment(ctx, again)
	require.NoError(t, err)
	// the first submission is still within the window
	assert.Equal(t, map[string]int{"Belonging": 60, "Safety": 40}, res.SchoolScore.CategoryScores)
	assert.Equal(t, 50, res.SchoolScore.OverallScore)

	responses, err := f.svc.ResponsesByUser(ctx, usr.ID)
	require.NoError(t, err)
	assert.Len(t, responses, 3)

	_, err = f.svc.ResponsesByUser(ctx, "unknown")
	assert.Equal(t, survey.ErrUserNotFound, err)
	_, err = f.svc.CanTakeAssessment(ctx, "unknown")
	assert.Equal(t, survey.ErrUserNotFound, err)
}

func TestService_schoolScores(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	mockNow(t, now)

	// computed on first read
	score, err := f.svc.LatestSchoolScore(ctx, f.school.ID)
	require.NoError(t, err)
	assert.Equal(t, survey.DefaultOverallScore, score.OverallScore)
	assert.Empty(t, score.CategoryScores)

	q := testutil.CreateQuestion(t, f.repo, survey.RoleStudent, "Belonging", 1)
	for _, code := range []string{"AA11", "BB22"} {
		usr := testutil.CreateUser(t, f.repo, f.school.ID, survey.RoleStudent, code)
		_, err = f.svc.SubmitAssessment(ctx, survey.NewAssessment{
			UserID:    usr.ID,
			Responses: []survey.Answer{{QuestionID: q.ID, Answer: "somewhat-valued"}},
		})
		require.NoError(t, err)
	}

	score, err = f.svc.LatestSchoolScore(ctx, f.school.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, score.OverallScore)

	history, err := f.svc.SchoolScoreHistory(ctx, f.school.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Equal(t, score.ID, history[0].ID)

	count, err := f.svc.AssessmentCount(ctx, f.school.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// responses age out of the window
	mockNow(t, now.Add(survey.ScoreWindow+time.Second))
	count, err = f.svc.AssessmentCount(ctx, f.school.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	score, err = f.svc.RecalculateSchoolScore(ctx, f.school.ID)
	require.NoError(t, err)
	assert.Equal(t, survey.DefaultOverallScore, score.OverallScore)

	for _, fn := range []func() error{
		func() error { _, err := f.svc.LatestSchoolScore(ctx, "unknown"); return err },
		func() error { _, err := f.svc.SchoolScoreHistory(ctx, "unknown"); return err },
		func() error { _, err := f.svc.AssessmentCount(ctx, "unknown"); return err },
	} {
		assert.Equal(t, school.ErrNotFound, errors.Cause(fn()))
	}
}

func TestService_microRituals(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	mockNow(t, now)

	notes := testutil.CreateMicroRitual(t, f.repo, "Gratitude notes", "Recognition", survey.RoleStudent, survey.RoleStaff)
	testutil.CreateMicroRitual(t, f.repo, "Walk and talk", "Mindfulness", survey.RoleCounselor)
	usr := testutil.CreateUser(t, f.repo, f.school.ID, survey.RoleStudent, "AB12")

	rituals, err := f.svc.MicroRituals(ctx)
	require.NoError(t, err)
	assert.Len(t, rituals, 2)

	rituals, err = f.svc.MicroRitualsByCategory(ctx, "Recognition")
	require.NoError(t, err)
	assert.Equal(t, []survey.MicroRitual{notes}, rituals)

	rituals, err = f.svc.MicroRitualsByRole(ctx, survey.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, []survey.MicroRitual{notes}, rituals)

	_, err = f.svc.MicroRitualsByRole(ctx, "janitor")
	assert.True(t, core.IsValidationError(err))

	completion, err := f.svc.CompleteMicroRitual(ctx, survey.NewMicroRitualCompletion{UserID: usr.ID, MicroRitualID: notes.ID})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, completion.UserID)
	assert.True(t, now.Equal(completion.CompletedAt))

	history, err := f.svc.SchoolScoreHistory(ctx, f.school.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "completing a ritual recalculates the school score")

	completions, err := f.svc.CompletionsByUser(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, []survey.MicroRitualCompletion{completion}, completions)

	_, err = f.svc.CompleteMicroRitual(ctx, survey.NewMicroRitualCompletion{UserID: usr.ID, MicroRitualID: "unknown"})
	assert.Equal(t, survey.ErrMicroRitualNotFound, err)
	_, err = f.svc.CompleteMicroRitual(ctx, survey.NewMicroRitualCompletion{UserID: "unknown", MicroRitualID: notes.ID})
	assert.Equal(t, survey.ErrUserNotFound, err)

	attempt, err := f.svc.RecordMicroRitualAttempt(ctx, survey.NewMicroRitualAttempt{UserID: usr.ID, AttemptedRituals: " Gratitude notes "})
	require.NoError(t, err)
	assert.Equal(t, "Gratitude notes", attempt.AttemptedRituals)

	attempts, err := f.svc.AttemptsByUser(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, []survey.MicroRitualAttempt{attempt}, attempts)

	_, err = f.svc.RecordMicroRitualAttempt(ctx, survey.NewMicroRitualAttempt{UserID: usr.ID})
	assert.True(t, core.IsValidationError(err))
	_, err = f.svc.AttemptsByUser(ctx, "unknown")
	assert.Equal(t, survey.ErrUserNotFound, err)
	_, err = f.svc.CompletionsByUser(ctx, "unknown")
	assert.Equal(t, survey.ErrUserNotFound, err)
}

func TestService_SeedReferenceData(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SeedReferenceData(ctx))
	require.NoError(t, f.svc.SeedReferenceData(ctx), "seeding twice is a no-op")

	for _, role := range survey.AllRoles {
		questions, err := f.svc.QuestionsByRole(ctx, role)
		require.NoError(t, err)
		assert.Len(t, questions, 5, role)
		for i, q := range questions {
			assert.Equal(t, i+1, q.Order)
		}
	}

	rituals, err := f.svc.MicroRituals(ctx)
	require.NoError(t, err)
	assert.Len(t, rituals, 12)

	_, err = f.svc.QuestionsByRole(ctx, "janitor")
	assert.True(t, core.IsValidationError(err))
}

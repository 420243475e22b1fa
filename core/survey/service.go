package survey

import (
	"context"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolbond/core"
	"github.com/trezcool/schoolbond/core/school"
)

var (
	NowFunc = func() time.Time { return time.Now().UTC() } // mockable

	// errors
	ErrUserNotFound        = core.NewNotFoundError("user")
	ErrQuestionNotFound    = core.NewNotFoundError("question")
	ErrResponseNotFound    = core.NewNotFoundError("response")
	ErrMicroRitualNotFound = core.NewNotFoundError("micro ritual")
	ErrCompletionNotFound  = core.NewNotFoundError("micro ritual completion")
	ErrAttemptNotFound     = core.NewNotFoundError("micro ritual attempt")
	ErrScoreNotFound       = core.NewNotFoundError("school score")
	ErrCooldown            = core.NewForbiddenError(errors.New("must wait 7 days between assessments"))

	assessmentSubmittedMsg = "Assessment submitted successfully"
	accessCodeTakenMsg     = "access code already in use"
)

type (
	Repository interface {
		// CreateUser fails with ErrAccessCodeTaken when usr.AccessCode belongs to another user.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByAccessCode(ctx context.Context, code string) (User, error)
		GetUsersBySchool(ctx context.Context, schoolID string) ([]User, error)
		AccessCodeExists(ctx context.Context, code string) (bool, error)

		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestionByID(ctx context.Context, id string) (Question, error)
		QueryQuestions(ctx context.Context) ([]Question, error)
		// GetQuestionsByRole returns the questions of `role` sorted by Order.
		GetQuestionsByRole(ctx context.Context, role string) ([]Question, error)
		GetQuestionsByIDs(ctx context.Context, ids []string) ([]Question, error)

		// RecordAssessment stores `responses` and sets the user's LastAssessmentDate to `at` as one operation,
		// provided the user never assessed or last assessed at or before `cutoff`; otherwise it fails with
		// ErrCooldown and nothing is stored.
		RecordAssessment(ctx context.Context, userID string, responses []Response, at, cutoff time.Time) ([]Response, error)
		GetResponseByID(ctx context.Context, id string) (Response, error)
		GetResponsesByUser(ctx context.Context, userID string) ([]Response, error)
		// GetRecentResponsesBySchool returns the responses of the school's users submitted at or after `since`.
		GetRecentResponsesBySchool(ctx context.Context, schoolID string, since time.Time) ([]Response, error)
		// CountRecentRespondents counts the school's users with a response submitted at or after `since`.
		CountRecentRespondents(ctx context.Context, schoolID string, since time.Time) (int, error)

		CreateMicroRitual(ctx context.Context, mr MicroRitual) (MicroRitual, error)
		GetMicroRitualByID(ctx context.Context, id string) (MicroRitual, error)
		QueryMicroRituals(ctx context.Context) ([]MicroRitual, error)
		GetMicroRitualsByCategory(ctx context.Context, category string) ([]MicroRitual, error)
		GetMicroRitualsByRole(ctx context.Context, role string) ([]MicroRitual, error)

		CreateMicroRitualCompletion(ctx context.Context, mrc MicroRitualCompletion) (MicroRitualCompletion, error)
		GetMicroRitualCompletionByID(ctx context.Context, id string) (MicroRitualCompletion, error)
		GetMicroRitualCompletionsByUser(ctx context.Context, userID string) ([]MicroRitualCompletion, error)

		CreateMicroRitualAttempt(ctx context.Context, mra MicroRitualAttempt) (MicroRitualAttempt, error)
		GetMicroRitualAttemptByID(ctx context.Context, id string) (MicroRitualAttempt, error)
		GetMicroRitualAttemptsByUser(ctx context.Context, userID string) ([]MicroRitualAttempt, error)

		CreateSchoolScore(ctx context.Context, score SchoolScore) (SchoolScore, error)
		GetSchoolScoreByID(ctx context.Context, id string) (SchoolScore, error)
		// GetLatestSchoolScore fails with ErrScoreNotFound when the school has no snapshot yet.
		GetLatestSchoolScore(ctx context.Context, schoolID string) (SchoolScore, error)
		// GetSchoolScoreHistory returns every snapshot of the school, newest first.
		GetSchoolScoreHistory(ctx context.Context, schoolID string) ([]SchoolScore, error)
	}

	// SchoolFinder looks schools up by id (school.Repository satisfies it).
	SchoolFinder interface {
		GetSchoolByID(ctx context.Context, id string) (school.School, error)
	}

	Service struct {
		repo       Repository
		schools    SchoolFinder
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
		codeGen    CodeGenerator
	}
)

func NewService(
	repo Repository,
	schools SchoolFinder,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	conf *core.Config,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(schools, "schools"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{
		repo:       repo,
		schools:    schools,
		logger:     logger,
		validate:   validate,
		translator: translator,
		codeGen:    NewCodeGenerator(conf.Survey.AccessCodeAttempts),
	}
}

func (svc *Service) checkSchool(ctx context.Context, schoolID string) error {
	if _, err := svc.schools.GetSchoolByID(ctx, schoolID); err != nil {
		return errors.Wrap(err, "finding school")
	}
	return nil
}

// Users

// RegisterUser creates a respondent under an existing school. A supplied access code must be unused;
// otherwise a unique one is generated.
func (svc *Service) RegisterUser(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate, svc.translator); err != nil {
		return User{}, err
	}
	if err := svc.checkSchool(ctx, nu.SchoolID); err != nil {
		return User{}, err
	}

	usr := User{
		SchoolID:  nu.SchoolID,
		Role:      nu.Role,
		CreatedAt: NowFunc(),
	}

	if nu.AccessCode != "" {
		usr.AccessCode = nu.AccessCode
		created, err := svc.repo.CreateUser(ctx, usr)
		if errors.Cause(err) == ErrAccessCodeTaken {
			return User{}, core.NewValidationError(nil, core.FieldError{Field: "accessCode", Error: accessCodeTakenMsg})
		}
		if err != nil {
			return User{}, errors.Wrap(err, "creating user")
		}
		return created, nil
	}
	return svc.createWithGeneratedCode(ctx, usr)
}

// createWithGeneratedCode claims a fresh code within the generator's attempt budget. An insert
// conflict (a concurrent registration took the code after the check) consumes an attempt.
func (svc *Service) createWithGeneratedCode(ctx context.Context, usr User) (User, error) {
	var (
		created  User
		attempts int
	)
	claim := func(ctx context.Context, code string) (bool, error) {
		attempts++
		exists, err := svc.repo.AccessCodeExists(ctx, code)
		if err != nil || exists {
			return exists, err
		}

		usr.AccessCode = code
		created, err = svc.repo.CreateUser(ctx, usr)
		if errors.Cause(err) == ErrAccessCodeTaken {
			svc.logger.Warn(fmt.Sprintf("access code conflict on insert, retrying (attempt %d)", attempts))
			return true, nil
		}
		if err != nil {
			return false, errors.Wrap(err, "creating user")
		}
		return false, nil
	}

	if _, err := svc.codeGen.Generate(ctx, claim); err != nil {
		if err == ErrAccessCodesExhausted {
			svc.logger.Error("access code space exhausted", err)
			return User{}, err
		}
		return User{}, errors.Wrap(err, "generating access code")
	}
	return created, nil
}

func (svc *Service) GetUser(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetUserByAccessCode(ctx context.Context, code string) (User, error) {
	return svc.repo.GetUserByAccessCode(ctx, NormalizeAccessCode(code))
}

// CanTakeAssessment reports whether the user is out of the cooldown period. It never mutates the user.
func (svc *Service) CanTakeAssessment(ctx context.Context, userID string) (bool, error) {
	usr, err := svc.repo.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return CanTakeAssessment(usr.LastAssessmentDate, NowFunc()), nil
}

// Questions

func (svc *Service) QuestionsByRole(ctx context.Context, role string) ([]Question, error) {
	if err := checkRole(role); err != nil {
		return nil, err
	}
	return svc.repo.GetQuestionsByRole(ctx, role)
}

func checkRole(role string) error {
	if !IsValidRole(role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: roleText})
	}
	return nil
}

// Assessments

// SubmitAssessment validates every response, stores them along with the user's new LastAssessmentDate,
// then recalculates the school score. Nothing is stored when any response is invalid.
func (svc *Service) SubmitAssessment(ctx context.Context, na NewAssessment) (AssessmentResult, error) {
	if err := na.Validate(svc.validate, svc.translator); err != nil {
		return AssessmentResult{}, err
	}

	usr, err := svc.repo.GetUserByID(ctx, na.UserID)
	if err != nil {
		return AssessmentResult{}, err
	}

	now := NowFunc()
	if !CanTakeAssessment(usr.LastAssessmentDate, now) {
		return AssessmentResult{}, ErrCooldown
	}

	questions, err := svc.repo.GetQuestionsByRole(ctx, usr.Role)
	if err != nil {
		return AssessmentResult{}, errors.Wrap(err, "fetching questions")
	}
	responses, err := buildResponses(usr, na.Responses, questions, now)
	if err != nil {
		return AssessmentResult{}, err
	}

	if _, err = svc.repo.RecordAssessment(ctx, usr.ID, responses, now, cooldownCutoff(now)); err != nil {
		if errors.Cause(err) == ErrCooldown {
			return AssessmentResult{}, ErrCooldown
		}
		return AssessmentResult{}, errors.Wrap(err, "recording assessment")
	}
	svc.logger.Info(fmt.Sprintf("assessment recorded: user %s, %d responses", usr.ID, len(responses)))

	score, err := svc.RecalculateSchoolScore(ctx, usr.SchoolID)
	if err != nil {
		return AssessmentResult{}, err
	}
	return AssessmentResult{
		Message:     assessmentSubmittedMsg,
		SchoolScore: score,
		AccessCode:  usr.AccessCode,
	}, nil
}

// buildResponses checks that each answer targets a distinct question of the user's role
// and is one of its option values.
func buildResponses(usr User, answers []Answer, questions []Question, now time.Time) ([]Response, error) {
	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var flds []core.FieldError
	seen := make(map[string]bool, len(answers))
	responses := make([]Response, 0, len(answers))
	for i, ans := range answers {
		prefix := fmt.Sprintf("responses[%d].", i)
		q, ok := byID[ans.QuestionID]
		switch {
		case !ok:
			flds = append(flds, core.FieldError{Field: prefix + "questionId", Error: "unknown question for role " + usr.Role})
			continue
		case seen[ans.QuestionID]:
			flds = append(flds, core.FieldError{Field: prefix + "questionId", Error: "question answered more than once"})
			continue
		case !q.HasOption(ans.Answer):
			flds = append(flds, core.FieldError{Field: prefix + "answer", Error: "answer is not one of the question options"})
			continue
		}
		seen[ans.QuestionID] = true
		responses = append(responses, Response{
			UserID:      usr.ID,
			QuestionID:  ans.QuestionID,
			Answer:      ans.Answer,
			SubmittedAt: now,
		})
	}
	if len(flds) > 0 {
		return nil, core.NewValidationError(nil, flds...)
	}
	return responses, nil
}

func (svc *Service) ResponsesByUser(ctx context.Context, userID string) ([]Response, error) {
	if _, err := svc.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return svc.repo.GetResponsesByUser(ctx, userID)
}

// Scores

// RecalculateSchoolScore aggregates the school's responses of the current window and stores a new snapshot.
func (svc *Service) RecalculateSchoolScore(ctx context.Context, schoolID string) (SchoolScore, error) {
	now := NowFunc()
	responses, err := svc.repo.GetRecentResponsesBySchool(ctx, schoolID, WindowStart(now))
	if err != nil {
		return SchoolScore{}, errors.Wrap(err, "fetching recent responses")
	}

	questions := make(map[string]Question)
	if len(responses) > 0 {
		ids := make([]string, 0, len(responses))
		seen := make(map[string]bool)
		for _, resp := range responses {
			if !seen[resp.QuestionID] {
				seen[resp.QuestionID] = true
				ids = append(ids, resp.QuestionID)
			}
		}
		qs, err := svc.repo.GetQuestionsByIDs(ctx, ids)
		if err != nil {
			return SchoolScore{}, errors.Wrap(err, "fetching questions")
		}
		for _, q := range qs {
			questions[q.ID] = q
		}
	}

	snap := Aggregate(responses, questions)
	score, err := svc.repo.CreateSchoolScore(ctx, SchoolScore{
		SchoolID:       schoolID,
		OverallScore:   snap.OverallScore,
		CategoryScores: snap.CategoryScores,
		CalculatedAt:   now,
	})
	if err != nil {
		return SchoolScore{}, errors.Wrap(err, "storing school score")
	}
	svc.logger.Info(fmt.Sprintf("school score recalculated: school %s, overall %d", schoolID, score.OverallScore))
	return score, nil
}

// LatestSchoolScore returns the newest snapshot of the school, computing one when none exists.
func (svc *Service) LatestSchoolScore(ctx context.Context, schoolID string) (SchoolScore, error) {
	if err := svc.checkSchool(ctx, schoolID); err != nil {
		return SchoolScore{}, err
	}
	score, err := svc.repo.GetLatestSchoolScore(ctx, schoolID)
	if errors.Cause(err) == ErrScoreNotFound {
		return svc.RecalculateSchoolScore(ctx, schoolID)
	}
	return score, err
}

func (svc *Service) SchoolScoreHistory(ctx context.Context, schoolID string) ([]SchoolScore, error) {
	if err := svc.checkSchool(ctx, schoolID); err != nil {
		return nil, err
	}
	return svc.repo.GetSchoolScoreHistory(ctx, schoolID)
}

// AssessmentCount counts the school's users who answered within the current score window.
func (svc *Service) AssessmentCount(ctx context.Context, schoolID string) (int, error) {
	if err := svc.checkSchool(ctx, schoolID); err != nil {
		return 0, err
	}
	return svc.repo.CountRecentRespondents(ctx, schoolID, WindowStart(NowFunc()))
}

// Micro rituals

func (svc *Service) MicroRituals(ctx context.Context) ([]MicroRitual, error) {
	return svc.repo.QueryMicroRituals(ctx)
}

func (svc *Service) MicroRitualsByCategory(ctx context.Context, category string) ([]MicroRitual, error) {
	return svc.repo.GetMicroRitualsByCategory(ctx, category)
}

func (svc *Service) MicroRitualsByRole(ctx context.Context, role string) ([]MicroRitual, error) {
	if err := checkRole(role); err != nil {
		return nil, err
	}
	return svc.repo.GetMicroRitualsByRole(ctx, role)
}

// CompleteMicroRitual logs a completion and recalculates the user's school score.
func (svc *Service) CompleteMicroRitual(ctx context.Context, nc NewMicroRitualCompletion) (MicroRitualCompletion, error) {
	if err := nc.Validate(svc.validate, svc.translator); err != nil {
		return MicroRitualCompletion{}, err
	}
	usr, err := svc.repo.GetUserByID(ctx, nc.UserID)
	if err != nil {
		return MicroRitualCompletion{}, err
	}
	if _, err = svc.repo.GetMicroRitualByID(ctx, nc.MicroRitualID); err != nil {
		return MicroRitualCompletion{}, err
	}

	completion, err := svc.repo.CreateMicroRitualCompletion(ctx, MicroRitualCompletion{
		UserID:        usr.ID,
		MicroRitualID: nc.MicroRitualID,
		CompletedAt:   NowFunc(),
	})
	if err != nil {
		return MicroRitualCompletion{}, errors.Wrap(err, "creating micro ritual completion")
	}
	if _, err = svc.RecalculateSchoolScore(ctx, usr.SchoolID); err != nil {
		return MicroRitualCompletion{}, err
	}
	return completion, nil
}

func (svc *Service) CompletionsByUser(ctx context.Context, userID string) ([]MicroRitualCompletion, error) {
	if _, err := svc.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return svc.repo.GetMicroRitualCompletionsByUser(ctx, userID)
}

func (svc *Service) RecordMicroRitualAttempt(ctx context.Context, na NewMicroRitualAttempt) (MicroRitualAttempt, error) {
	if err := na.Validate(svc.validate, svc.translator); err != nil {
		return MicroRitualAttempt{}, err
	}
	if _, err := svc.repo.GetUserByID(ctx, na.UserID); err != nil {
		return MicroRitualAttempt{}, err
	}
	attempt, err := svc.repo.CreateMicroRitualAttempt(ctx, MicroRitualAttempt{
		UserID:           na.UserID,
		AttemptedRituals: na.AttemptedRituals,
		AttemptedAt:      NowFunc(),
	})
	if err != nil {
		return MicroRitualAttempt{}, errors.Wrap(err, "creating micro ritual attempt")
	}
	return attempt, nil
}

func (svc *Service) AttemptsByUser(ctx context.Context, userID string) ([]MicroRitualAttempt, error) {
	if _, err := svc.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return svc.repo.GetMicroRitualAttemptsByUser(ctx, userID)
}

// Reference data

// SeedReferenceData stores the questionnaire and micro-rituals unless they were already stored.
func (svc *Service) SeedReferenceData(ctx context.Context) error {
	questions, err := svc.repo.QueryQuestions(ctx)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if len(questions) == 0 {
		seed, err := SeedQuestions()
		if err != nil {
			return err
		}
		for _, q := range seed {
			if _, err = svc.repo.CreateQuestion(ctx, q); err != nil {
				return errors.Wrap(err, "seeding questions")
			}
		}
		svc.logger.Info(fmt.Sprintf("seeded %d questions", len(seed)))
	}

	rituals, err := svc.repo.QueryMicroRituals(ctx)
	if err != nil {
		return errors.Wrap(err, "querying micro rituals")
	}
	if len(rituals) == 0 {
		seed, err := SeedMicroRituals()
		if err != nil {
			return err
		}
		for _, mr := range seed {
			if _, err = svc.repo.CreateMicroRitual(ctx, mr); err != nil {
				return errors.Wrap(err, "seeding micro rituals")
			}
		}
		svc.logger.Info(fmt.Sprintf("seeded %d micro rituals", len(seed)))
	}
	return nil
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolbond/core/survey"
)

const (
	userColumns       = "id, school_id, role, access_code, last_assessment_date, created_at"
	questionColumns   = "id, role, category, text, options, sort_order"
	responseColumns   = "id, user_id, question_id, answer, submitted_at"
	ritualColumns     = "id, title, description, category, target_relationship, time_required, participant_count, difficulty, steps, expected_outcome, applicable_roles"
	completionColumns = "id, user_id, micro_ritual_id, completed_at"
	attemptColumns    = "id, user_id, attempted_rituals, attempted_at"
	scoreColumns      = "id, school_id, overall_score, category_scores, calculated_at, seq"
)

type (
	userRow struct {
		ID                 string    `db:"id"`
		SchoolID           string    `db:"school_id"`
		Role               string    `db:"role"`
		AccessCode         string    `db:"access_code"`
		LastAssessmentDate null.Time `db:"last_assessment_date"`
		CreatedAt          time.Time `db:"created_at"`
	}
	questionRow struct {
		ID       string  `db:"id"`
		Role     string  `db:"role"`
		Category string  `db:"category"`
		Text     string  `db:"text"`
		Options  options `db:"options"`
		Order    int     `db:"sort_order"`
	}
	responseRow struct {
		ID          string    `db:"id"`
		UserID      string    `db:"user_id"`
		QuestionID  string    `db:"question_id"`
		Answer      string    `db:"answer"`
		SubmittedAt time.Time `db:"submitted_at"`
	}
	ritualRow struct {
		ID                 string     `db:"id"`
		Title              string     `db:"title"`
		Description        string     `db:"description"`
		Category           string     `db:"category"`
		TargetRelationship string     `db:"target_relationship"`
		TimeRequired       string     `db:"time_required"`
		ParticipantCount   string     `db:"participant_count"`
		Difficulty         string     `db:"difficulty"`
		Steps              stringList `db:"steps"`
		ExpectedOutcome    string     `db:"expected_outcome"`
		ApplicableRoles    stringList `db:"applicable_roles"`
	}
	completionRow struct {
		ID            string    `db:"id"`
		UserID        string    `db:"user_id"`
		MicroRitualID string    `db:"micro_ritual_id"`
		CompletedAt   time.Time `db:"completed_at"`
	}
	attemptRow struct {
		ID               string    `db:"id"`
		UserID           string    `db:"user_id"`
		AttemptedRituals string    `db:"attempted_rituals"`
		AttemptedAt      time.Time `db:"attempted_at"`
	}
	scoreRow struct {
		ID             string    `db:"id"`
		SchoolID       string    `db:"school_id"`
		OverallScore   int       `db:"overall_score"`
		CategoryScores scoreMap  `db:"category_scores"`
		CalculatedAt   time.Time `db:"calculated_at"`
		Seq            int64     `db:"seq"`
	}
)

func (row userRow) user() survey.User {
	usr := survey.User{
		ID:         row.ID,
		SchoolID:   row.SchoolID,
		Role:       row.Role,
		AccessCode: row.AccessCode,
		CreatedAt:  row.CreatedAt.UTC(),
	}
	if row.LastAssessmentDate.Valid {
		last := row.LastAssessmentDate.Time.UTC()
		usr.LastAssessmentDate = &last
	}
	return usr
}

func (row questionRow) question() survey.Question {
	opts := []survey.Option(row.Options)
	if opts == nil {
		opts = []survey.Option{}
	}
	return survey.Question{
		ID:       row.ID,
		Role:     row.Role,
		Category: row.Category,
		Text:     row.Text,
		Options:  opts,
		Order:    row.Order,
	}
}

func (row responseRow) response() survey.Response {
	return survey.Response{
		ID:          row.ID,
		UserID:      row.UserID,
		QuestionID:  row.QuestionID,
		Answer:      row.Answer,
		SubmittedAt: row.SubmittedAt.UTC(),
	}
}

func (row ritualRow) ritual() survey.MicroRitual {
	return survey.MicroRitual{
		ID:                 row.ID,
		Title:              row.Title,
		Description:        row.Description,
		Category:           row.Category,
		TargetRelationship: row.TargetRelationship,
		TimeRequired:       row.TimeRequired,
		ParticipantCount:   row.ParticipantCount,
		Difficulty:         row.Difficulty,
		Steps:              append([]string{}, row.Steps...),
		ExpectedOutcome:    row.ExpectedOutcome,
		ApplicableRoles:    append([]string{}, row.ApplicableRoles...),
	}
}

func (row completionRow) completion() survey.MicroRitualCompletion {
	return survey.MicroRitualCompletion{
		ID:            row.ID,
		UserID:        row.UserID,
		MicroRitualID: row.MicroRitualID,
		CompletedAt:   row.CompletedAt.UTC(),
	}
}

func (row attemptRow) attempt() survey.MicroRitualAttempt {
	return survey.MicroRitualAttempt{
		ID:               row.ID,
		UserID:           row.UserID,
		AttemptedRituals: row.AttemptedRituals,
		AttemptedAt:      row.AttemptedAt.UTC(),
	}
}

func (row scoreRow) score() survey.SchoolScore {
	cats := map[string]int(row.CategoryScores)
	if cats == nil {
		cats = map[string]int{}
	}
	return survey.SchoolScore{
		ID:             row.ID,
		SchoolID:       row.SchoolID,
		OverallScore:   row.OverallScore,
		CategoryScores: cats,
		CalculatedAt:   row.CalculatedAt.UTC(),
	}
}

type surveyRepository struct {
	db *sqlx.DB
}

var _ survey.Repository = (*surveyRepository)(nil) // interface compliance check

func NewSurveyRepository(db *sqlx.DB) *surveyRepository {
	return &surveyRepository{db: db}
}

// get scans the single row selected by `query` into dest, mapping no rows to notFound.
func (repo *surveyRepository) get(ctx context.Context, dest interface{}, notFound error, query string, args ...interface{}) error {
	if err := repo.db.GetContext(ctx, dest, repo.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound
		}
		return errors.Wrap(err, "selecting row")
	}
	return nil
}

func (repo *surveyRepository) selectRows(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := repo.db.SelectContext(ctx, dest, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "selecting rows")
	}
	return nil
}

// Users

func (repo *surveyRepository) CreateUser(ctx context.Context, usr survey.User) (survey.User, error) {
	usr.ID = newID()
	usr.CreatedAt = dbTime(usr.CreatedAt)
	row := userRow{
		ID:         usr.ID,
		SchoolID:   usr.SchoolID,
		Role:       usr.Role,
		AccessCode: usr.AccessCode,
		CreatedAt:  usr.CreatedAt,
	}
	if usr.LastAssessmentDate != nil {
		last := dbTime(*usr.LastAssessmentDate)
		row.LastAssessmentDate = null.TimeFrom(last)
		usr.LastAssessmentDate = &last
	}

	q := "INSERT INTO users (" + userColumns + ") VALUES (:id, :school_id, :role, :access_code, :last_assessment_date, :created_at)"
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return survey.User{}, survey.ErrAccessCodeTaken
		}
		return survey.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *surveyRepository) GetUserByID(ctx context.Context, id string) (survey.User, error) {
	var row userRow
	if err := repo.get(ctx, &row, survey.ErrUserNotFound, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
		return survey.User{}, err
	}
	return row.user(), nil
}

func (repo *surveyRepository) GetUserByAccessCode(ctx context.Context, code string) (survey.User, error) {
	var row userRow
	if err := repo.get(ctx, &row, survey.ErrUserNotFound, "SELECT "+userColumns+" FROM users WHERE access_code = ?", code); err != nil {
		return survey.User{}, err
	}
	return row.user(), nil
}

func (repo *surveyRepository) GetUsersBySchool(ctx context.Context, schoolID string) ([]survey.User, error) {
	var rows []userRow
	q := "SELECT " + userColumns + " FROM users WHERE school_id = ? ORDER BY created_at, id"
	if err := repo.selectRows(ctx, &rows, q, schoolID); err != nil {
		return nil, err
	}
	users := make([]survey.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo *surveyRepository) AccessCodeExists(ctx context.Context, code string) (bool, error) {
	var found bool
	q := repo.db.Rebind("SELECT EXISTS(SELECT 1 FROM users WHERE access_code = ?)")
	if err := repo.db.GetContext(ctx, &found, q, code); err != nil {
		return false, errors.Wrap(err, "checking access code")
	}
	return found, nil
}

// Questions

func (repo *surveyRepository) CreateQuestion(ctx context.Context, q survey.Question) (survey.Question, error) {
	q.ID = newID()
	stmt := "INSERT INTO questions (" + questionColumns + ") VALUES (:id, :role, :category, :text, :options, :sort_order)"
	row := questionRow{
		ID:       q.ID,
		Role:     q.Role,
		Category: q.Category,
		Text:     q.Text,
		Options:  options(q.Options),
		Order:    q.Order,
	}
	if _, err := repo.db.NamedExecContext(ctx, stmt, row); err != nil {
		return survey.Question{}, errors.Wrap(err, "inserting question")
	}
	return row.question(), nil
}

func (repo *surveyRepository) GetQuestionByID(ctx context.Context, id string) (survey.Question, error) {
	var row questionRow
	if err := repo.get(ctx, &row, survey.ErrQuestionNotFound, "SELECT "+questionColumns+" FROM questions WHERE id = ?", id); err != nil {
		return survey.Question{}, err
	}
	return row.question(), nil
}

func (repo *surveyRepository) selectQuestions(ctx context.Context, where string, args ...interface{}) ([]survey.Question, error) {
	var rows []questionRow
	q := "SELECT " + questionColumns + " FROM questions"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY role, sort_order, id"
	if err := repo.selectRows(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	questions := make([]survey.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.question())
	}
	return questions, nil
}

func (repo *surveyRepository) QueryQuestions(ctx context.Context) ([]survey.Question, error) {
	return repo.selectQuestions(ctx, "")
}

func (repo *surveyRepository) GetQuestionsByRole(ctx context.Context, role string) ([]survey.Question, error) {
	return repo.selectQuestions(ctx, "role = ?", role)
}

func (repo *surveyRepository) GetQuestionsByIDs(ctx context.Context, ids []string) ([]survey.Question, error) {
	if len(ids) == 0 {
		return []survey.Question{}, nil
	}
	where, args, err := sqlx.In("id IN (?)", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building question ids filter")
	}
	return repo.selectQuestions(ctx, where, args...)
}

// Responses

func (repo *surveyRepository) RecordAssessment(
	ctx context.Context,
	userID string,
	responses []survey.Response,
	at, cutoff time.Time,
) (stored []survey.Response, err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "starting transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(
		ctx,
		tx.Rebind("UPDATE users SET last_assessment_date = ? WHERE id = ? AND (last_assessment_date IS NULL OR last_assessment_date <= ?)"),
		dbTime(at), userID, dbTime(cutoff),
	)
	if err != nil {
		return nil, errors.Wrap(err, "updating last assessment date")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "updating last assessment date")
	}
	if n == 0 {
		var found bool
		if err = tx.GetContext(ctx, &found, tx.Rebind("SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)"), userID); err != nil {
			return nil, errors.Wrap(err, "checking user")
		}
		if !found {
			err = survey.ErrUserNotFound
		} else {
			err = survey.ErrCooldown
		}
		return nil, err
	}

	q := "INSERT INTO responses (" + responseColumns + ") VALUES (:id, :user_id, :question_id, :answer, :submitted_at)"
	stored = make([]survey.Response, 0, len(responses))
	for _, resp := range responses {
		row := responseRow{
			ID:          newID(),
			UserID:      userID,
			QuestionID:  resp.QuestionID,
			Answer:      resp.Answer,
			SubmittedAt: dbTime(resp.SubmittedAt),
		}
		if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
			return nil, errors.Wrap(err, "inserting response")
		}
		stored = append(stored, row.response())
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing assessment")
	}
	return stored, nil
}

func (repo *surveyRepository) GetResponseByID(ctx context.Context, id string) (survey.Response, error) {
	var row responseRow
	if err := repo.get(ctx, &row, survey.ErrResponseNotFound, "SELECT "+responseColumns+" FROM responses WHERE id = ?", id); err != nil {
		return survey.Response{}, err
	}
	return row.response(), nil
}

func (repo *surveyRepository) selectResponses(ctx context.Context, query string, args ...interface{}) ([]survey.Response, error) {
	var rows []responseRow
	if err := repo.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	responses := make([]survey.Response, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, row.response())
	}
	return responses, nil
}

func (repo *surveyRepository) GetResponsesByUser(ctx context.Context, userID string) ([]survey.Response, error) {
	q := "SELECT " + responseColumns + " FROM responses WHERE user_id = ? ORDER BY submitted_at, id"
	return repo.selectResponses(ctx, q, userID)
}

func (repo *surveyRepository) GetRecentResponsesBySchool(ctx context.Context, schoolID string, since time.Time) ([]survey.Response, error) {
	q := "SELECT r.id, r.user_id, r.question_id, r.answer, r.submitted_at FROM responses r" +
		" JOIN users u ON u.id = r.user_id" +
		" WHERE u.school_id = ? AND r.submitted_at >= ?" +
		" ORDER BY r.submitted_at, r.id"
	return repo.selectResponses(ctx, q, schoolID, dbTime(since))
}

func (repo *surveyRepository) CountRecentRespondents(ctx context.Context, schoolID string, since time.Time) (int, error) {
	var count int
	q := "SELECT COUNT(DISTINCT r.user_id) FROM responses r" +
		" JOIN users u ON u.id = r.user_id" +
		" WHERE u.school_id = ? AND r.submitted_at >= ?"
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(q), schoolID, dbTime(since)); err != nil {
		return 0, errors.Wrap(err, "counting respondents")
	}
	return count, nil
}

// Micro rituals

func (repo *surveyRepository) CreateMicroRitual(ctx context.Context, mr survey.MicroRitual) (survey.MicroRitual, error) {
	row := ritualRow{
		ID:                 newID(),
		Title:              mr.Title,
		Description:        mr.Description,
		Category:           mr.Category,
		TargetRelationship: mr.TargetRelationship,
		TimeRequired:       mr.TimeRequired,
		ParticipantCount:   mr.ParticipantCount,
		Difficulty:         mr.Difficulty,
		Steps:              stringList(mr.Steps),
		ExpectedOutcome:    mr.ExpectedOutcome,
		ApplicableRoles:    stringList(mr.ApplicableRoles),
	}
	q := "INSERT INTO micro_rituals (" + ritualColumns + ") VALUES (:id, :title, :description, :category," +
		" :target_relationship, :time_required, :participant_count, :difficulty, :steps, :expected_outcome, :applicable_roles)"
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return survey.MicroRitual{}, errors.Wrap(err, "inserting micro ritual")
	}
	return row.ritual(), nil
}

func (repo *surveyRepository) GetMicroRitualByID(ctx context.Context, id string) (survey.MicroRitual, error) {
	var row ritualRow
	if err := repo.get(ctx, &row, survey.ErrMicroRitualNotFound, "SELECT "+ritualColumns+" FROM micro_rituals WHERE id = ?", id); err != nil {
		return survey.MicroRitual{}, err
	}
	return row.ritual(), nil
}

func (repo *surveyRepository) selectRituals(ctx context.Context, where string, args ...interface{}) ([]survey.MicroRitual, error) {
	var rows []ritualRow
	q := "SELECT " + ritualColumns + " FROM micro_rituals"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY title, id"
	if err := repo.selectRows(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	rituals := make([]survey.MicroRitual, 0, len(rows))
	for _, row := range rows {
		rituals = append(rituals, row.ritual())
	}
	return rituals, nil
}

func (repo *surveyRepository) QueryMicroRituals(ctx context.Context) ([]survey.MicroRitual, error) {
	return repo.selectRituals(ctx, "")
}

func (repo *surveyRepository) GetMicroRitualsByCategory(ctx context.Context, category string) ([]survey.MicroRitual, error) {
	return repo.selectRituals(ctx, "category = ?", category)
}

// GetMicroRitualsByRole filters in Go: applicable_roles is a JSON encoded list.
func (repo *surveyRepository) GetMicroRitualsByRole(ctx context.Context, role string) ([]survey.MicroRitual, error) {
	rituals, err := repo.selectRituals(ctx, "")
	if err != nil {
		return nil, err
	}
	matching := make([]survey.MicroRitual, 0, len(rituals))
	for _, mr := range rituals {
		if mr.AppliesTo(role) {
			matching = append(matching, mr)
		}
	}
	return matching, nil
}

// Micro ritual completions

func (repo *surveyRepository) CreateMicroRitualCompletion(
	ctx context.Context,
	mrc survey.MicroRitualCompletion,
) (survey.MicroRitualCompletion, error) {
	row := completionRow{
		ID:            newID(),
		UserID:        mrc.UserID,
		MicroRitualID: mrc.MicroRitualID,
		CompletedAt:   dbTime(mrc.CompletedAt),
	}
	q := "INSERT INTO micro_ritual_completions (" + completionColumns + ") VALUES (:id, :user_id, :micro_ritual_id, :completed_at)"
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return survey.MicroRitualCompletion{}, errors.Wrap(err, "inserting micro ritual completion")
	}
	return row.completion(), nil
}

func (repo *surveyRepository) GetMicroRitualCompletionByID(ctx context.Context, id string) (survey.MicroRitualCompletion, error) {
	var row completionRow
	q := "SELECT " + completionColumns + " FROM micro_ritual_completions WHERE id = ?"
	if err := repo.get(ctx, &row, survey.ErrCompletionNotFound, q, id); err != nil {
		return survey.MicroRitualCompletion{}, err
	}
	return row.completion(), nil
}

func (repo *surveyRepository) GetMicroRitualCompletionsByUser(ctx context.Context, userID string) ([]survey.MicroRitualCompletion, error) {
	var rows []completionRow
	q := "SELECT " + completionColumns + " FROM micro_ritual_completions WHERE user_id = ? ORDER BY completed_at, id"
	if err := repo.selectRows(ctx, &rows, q, userID); err != nil {
		return nil, err
	}
	completions := make([]survey.MicroRitualCompletion, 0, len(rows))
	for _, row := range rows {
		completions = append(completions, row.completion())
	}
	return completions, nil
}

// Micro ritual attempts

func (repo *surveyRepository) CreateMicroRitualAttempt(ctx context.Context, mra survey.MicroRitualAttempt) (survey.MicroRitualAttempt, error) {
	row := attemptRow{
		ID:               newID(),
		UserID:           mra.UserID,
		AttemptedRituals: mra.AttemptedRituals,
		AttemptedAt:      dbTime(mra.AttemptedAt),
	}
	q := "INSERT INTO micro_ritual_attempts (" + attemptColumns + ") VALUES (:id, :user_id, :attempted_rituals, :attempted_at)"
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return survey.MicroRitualAttempt{}, errors.Wrap(err, "inserting micro ritual attempt")
	}
	return row.attempt(), nil
}

func (repo *surveyRepository) GetMicroRitualAttemptByID(ctx context.Context, id string) (survey.MicroRitualAttempt, error) {
	var row attemptRow
	q := "SELECT " + attemptColumns + " FROM micro_ritual_attempts WHERE id = ?"
	if err := repo.get(ctx, &row, survey.ErrAttemptNotFound, q, id); err != nil {
		return survey.MicroRitualAttempt{}, err
	}
	return row.attempt(), nil
}

func (repo *surveyRepository) GetMicroRitualAttemptsByUser(ctx context.Context, userID string) ([]survey.MicroRitualAttempt, error) {
	var rows []attemptRow
	q := "SELECT " + attemptColumns + " FROM micro_ritual_attempts WHERE user_id = ? ORDER BY attempted_at, id"
	if err := repo.selectRows(ctx, &rows, q, userID); err != nil {
		return nil, err
	}
	attempts := make([]survey.MicroRitualAttempt, 0, len(rows))
	for _, row := range rows {
		attempts = append(attempts, row.attempt())
	}
	return attempts, nil
}

// School scores

// scoreInsertAttempts bounds retries when concurrent inserts race for the same seq.
const scoreInsertAttempts = 3

func (repo *surveyRepository) CreateSchoolScore(ctx context.Context, score survey.SchoolScore) (survey.SchoolScore, error) {
	row := scoreRow{
		ID:             newID(),
		SchoolID:       score.SchoolID,
		OverallScore:   score.OverallScore,
		CategoryScores: scoreMap(score.CategoryScores),
		CalculatedAt:   dbTime(score.CalculatedAt),
	}
	var err error
	for i := 0; i < scoreInsertAttempts; i++ {
		if err = repo.insertScore(ctx, &row); !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return survey.SchoolScore{}, errors.Wrap(err, "inserting school score")
	}

	created := row.score()
	cats := make(map[string]int, len(created.CategoryScores))
	for k, v := range created.CategoryScores {
		cats[k] = v
	}
	created.CategoryScores = cats
	return created, nil
}

// insertScore stores row with the next per-school seq, which orders snapshots
// sharing a calculated_at by insertion.
func (repo *surveyRepository) insertScore(ctx context.Context, row *scoreRow) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &row.Seq, tx.Rebind("SELECT COALESCE(MAX(seq), 0) + 1 FROM school_scores WHERE school_id = ?"), row.SchoolID); err != nil {
		return errors.Wrap(err, "selecting next score seq")
	}
	q := "INSERT INTO school_scores (" + scoreColumns + ") VALUES (:id, :school_id, :overall_score, :category_scores, :calculated_at, :seq)"
	if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
		return err
	}
	return tx.Commit()
}

func (repo *surveyRepository) GetSchoolScoreByID(ctx context.Context, id string) (survey.SchoolScore, error) {
	var row scoreRow
	if err := repo.get(ctx, &row, survey.ErrScoreNotFound, "SELECT "+scoreColumns+" FROM school_scores WHERE id = ?", id); err != nil {
		return survey.SchoolScore{}, err
	}
	return row.score(), nil
}

func (repo *surveyRepository) GetLatestSchoolScore(ctx context.Context, schoolID string) (survey.SchoolScore, error) {
	var row scoreRow
	q := "SELECT " + scoreColumns + " FROM school_scores WHERE school_id = ? ORDER BY calculated_at DESC, seq DESC LIMIT 1"
	if err := repo.get(ctx, &row, survey.ErrScoreNotFound, q, schoolID); err != nil {
		return survey.SchoolScore{}, err
	}
	return row.score(), nil
}

func (repo *surveyRepository) GetSchoolScoreHistory(ctx context.Context, schoolID string) ([]survey.SchoolScore, error) {
	var rows []scoreRow
	q := "SELECT " + scoreColumns + " FROM school_scores WHERE school_id = ? ORDER BY calculated_at DESC, seq DESC"
	if err := repo.selectRows(ctx, &rows, q, schoolID); err != nil {
		return nil, err
	}
	scores := make([]survey.SchoolScore, 0, len(rows))
	for _, row := range rows {
		scores = append(scores, row.score())
	}
	return scores, nil
}

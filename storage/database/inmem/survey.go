package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/schoolbond/core/survey"
)

type (
	userRow struct {
		seq int64
		survey.User
	}
	questionRow struct {
		seq int64
		survey.Question
	}
	responseRow struct {
		seq int64
		survey.Response
	}
	ritualRow struct {
		seq int64
		survey.MicroRitual
	}
	completionRow struct {
		seq int64
		survey.MicroRitualCompletion
	}
	attemptRow struct {
		seq int64
		survey.MicroRitualAttempt
	}
	scoreRow struct {
		seq int64
		survey.SchoolScore
	}
)

type surveyRepository struct {
	db *DB
}

var _ survey.Repository = (*surveyRepository)(nil) // interface compliance check

func NewSurveyRepository(db *DB) *surveyRepository {
	return &surveyRepository{db: db}
}

// copies: rows never share slices, maps or pointers with callers

func copyUser(usr survey.User) survey.User {
	if usr.LastAssessmentDate != nil {
		last := *usr.LastAssessmentDate
		usr.LastAssessmentDate = &last
	}
	return usr
}

func copyQuestion(q survey.Question) survey.Question {
	q.Options = append([]survey.Option(nil), q.Options...)
	return q
}

func copyRitual(mr survey.MicroRitual) survey.MicroRitual {
	mr.Steps = append([]string(nil), mr.Steps...)
	mr.ApplicableRoles = append([]string(nil), mr.ApplicableRoles...)
	return mr
}

func copyScore(score survey.SchoolScore) survey.SchoolScore {
	cats := make(map[string]int, len(score.CategoryScores))
	for k, v := range score.CategoryScores {
		cats[k] = v
	}
	score.CategoryScores = cats
	return score
}

// Users

func (repo *surveyRepository) CreateUser(_ context.Context, usr survey.User) (survey.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, row := range repo.db.users {
		if row.AccessCode == usr.AccessCode {
			return survey.User{}, survey.ErrAccessCodeTaken
		}
	}

	var seq int64
	usr.ID, seq = repo.db.nextKey()
	usr.CreatedAt = usr.CreatedAt.UTC()
	usr = copyUser(usr)
	repo.db.users[usr.ID] = &userRow{seq: seq, User: usr}
	return copyUser(usr), nil
}

func (repo *surveyRepository) GetUserByID(_ context.Context, id string) (survey.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.users[id]; ok {
		return copyUser(row.User), nil
	}
	return survey.User{}, survey.ErrUserNotFound
}

func (repo *surveyRepository) GetUserByAccessCode(_ context.Context, code string) (survey.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, row := range repo.db.users {
		if row.AccessCode == code {
			return copyUser(row.User), nil
		}
	}
	return survey.User{}, survey.ErrUserNotFound
}

func (repo *surveyRepository) GetUsersBySchool(_ context.Context, schoolID string) ([]survey.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]*userRow, 0)
	for _, row := range repo.db.users {
		if row.SchoolID == schoolID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	users := make([]survey.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, copyUser(row.User))
	}
	return users, nil
}

func (repo *surveyRepository) AccessCodeExists(_ context.Context, code string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, row := range repo.db.users {
		if row.AccessCode == code {
			return true, nil
		}
	}
	return false, nil
}

// Questions

func (repo *surveyRepository) CreateQuestion(_ context.Context, q survey.Question) (survey.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var seq int64
	q.ID, seq = repo.db.nextKey()
	q = copyQuestion(q)
	repo.db.questions[q.ID] = &questionRow{seq: seq, Question: q}
	return copyQuestion(q), nil
}

func (repo *surveyRepository) GetQuestionByID(_ context.Context, id string) (survey.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.questions[id]; ok {
		return copyQuestion(row.Question), nil
	}
	return survey.Question{}, survey.ErrQuestionNotFound
}

// filterQuestions returns the matching questions sorted by role, order then insertion.
func (repo *surveyRepository) filterQuestions(match func(q survey.Question) bool) []survey.Question {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]*questionRow, 0)
	for _, row := range repo.db.questions {
		if match(row.Question) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Role != rows[j].Role {
			return rows[i].Role < rows[j].Role
		}
		if rows[i].Order != rows[j].Order {
			return rows[i].Order < rows[j].Order
		}
		return rows[i].seq < rows[j].seq
	})

	questions := make([]survey.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, copyQuestion(row.Question))
	}
	return questions
}

func (repo *surveyRepository) QueryQuestions(_ context.Context) ([]survey.Question, error) {
	return repo.filterQuestions(func(survey.Question) bool { return true }), nil
}

func (repo *surveyRepository) GetQuestionsByRole(_ context.Context, role string) ([]survey.Question, error) {
	return repo.filterQuestions(func(q survey.Question) bool { return q.Role == role }), nil
}

func (repo *surveyRepository) GetQuestionsByIDs(_ context.Context, ids []string) ([]survey.Question, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return repo.filterQuestions(func(q survey.Question) bool { return wanted[q.ID] }), nil
}

// Responses

func (repo *surveyRepository) RecordAssessment(
	_ context.Context,
	userID string,
	responses []survey.Response,
	at, cutoff time.Time,
) ([]survey.Response, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.users[userID]
	if !ok {
		return nil, survey.ErrUserNotFound
	}
	if last := usr.LastAssessmentDate; last != nil && last.After(cutoff) {
		return nil, survey.ErrCooldown
	}

	stored := make([]survey.Response, 0, len(responses))
	for _, resp := range responses {
		var seq int64
		resp.ID, seq = repo.db.nextKey()
		resp.UserID = userID
		resp.SubmittedAt = resp.SubmittedAt.UTC()
		repo.db.responses[resp.ID] = &responseRow{seq: seq, Response: resp}
		stored = append(stored, resp)
	}
	at = at.UTC()
	usr.LastAssessmentDate = &at
	return stored, nil
}

func (repo *surveyRepository) GetResponseByID(_ context.Context, id string) (survey.Response, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.responses[id]; ok {
		return row.Response, nil
	}
	return survey.Response{}, survey.ErrResponseNotFound
}

// filterResponses returns the matching responses by submission then insertion order. The lock must be held.
func (repo *surveyRepository) filterResponses(match func(r survey.Response) bool) []survey.Response {
	rows := make([]*responseRow, 0)
	for _, row := range repo.db.responses {
		if match(row.Response) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].SubmittedAt.Equal(rows[j].SubmittedAt) {
			return rows[i].SubmittedAt.Before(rows[j].SubmittedAt)
		}
		return rows[i].seq < rows[j].seq
	})

	responses := make([]survey.Response, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, row.Response)
	}
	return responses
}

func (repo *surveyRepository) GetResponsesByUser(_ context.Context, userID string) ([]survey.Response, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.filterResponses(func(r survey.Response) bool { return r.UserID == userID }), nil
}

// schoolUserIDs returns the ids of the school's users. The lock must be held.
func (repo *surveyRepository) schoolUserIDs(schoolID string) map[string]bool {
	ids := make(map[string]bool)
	for id, usr := range repo.db.users {
		if usr.SchoolID == schoolID {
			ids[id] = true
		}
	}
	return ids
}

func (repo *surveyRepository) GetRecentResponsesBySchool(_ context.Context, schoolID string, since time.Time) ([]survey.Response, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	userIDs := repo.schoolUserIDs(schoolID)
	return repo.filterResponses(func(r survey.Response) bool {
		return userIDs[r.UserID] && !r.SubmittedAt.Before(since)
	}), nil
}

func (repo *surveyRepository) CountRecentRespondents(_ context.Context, schoolID string, since time.Time) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	userIDs := repo.schoolUserIDs(schoolID)
	respondents := make(map[string]bool)
	for _, row := range repo.db.responses {
		if userIDs[row.UserID] && !row.SubmittedAt.Before(since) {
			respondents[row.UserID] = true
		}
	}
	return len(respondents), nil
}

// Micro rituals

func (repo *surveyRepository) CreateMicroRitual(_ context.Context, mr survey.MicroRitual) (survey.MicroRitual, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var seq int64
	mr.ID, seq = repo.db.nextKey()
	mr = copyRitual(mr)
	repo.db.rituals[mr.ID] = &ritualRow{seq: seq, MicroRitual: mr}
	return copyRitual(mr), nil
}

func (repo *surveyRepository) GetMicroRitualByID(_ context.Context, id string) (survey.MicroRitual, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.rituals[id]; ok {
		return copyRitual(row.MicroRitual), nil
	}
	return survey.MicroRitual{}, survey.ErrMicroRitualNotFound
}

func (repo *surveyRepository) filterRituals(match func(mr survey.MicroRitual) bool) []survey.MicroRitual {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]*ritualRow, 0)
	for _, row := range repo.db.rituals {
		if match(row.MicroRitual) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	rituals := make([]survey.MicroRitual, 0, len(rows))
	for _, row := range rows {
		rituals = append(rituals, copyRitual(row.MicroRitual))
	}
	return rituals
}

func (repo *surveyRepository) QueryMicroRituals(_ context.Context) ([]survey.MicroRitual, error) {
	return repo.filterRituals(func(survey.MicroRitual) bool { return true }), nil
}

func (repo *surveyRepository) GetMicroRitualsByCategory(_ context.Context, category string) ([]survey.MicroRitual, error) {
	return repo.filterRituals(func(mr survey.MicroRitual) bool { return mr.Category == category }), nil
}

func (repo *surveyRepository) GetMicroRitualsByRole(_ context.Context, role string) ([]survey.MicroRitual, error) {
	return repo.filterRituals(func(mr survey.MicroRitual) bool { return mr.AppliesTo(role) }), nil
}

// Micro ritual completions

func (repo *surveyRepository) CreateMicroRitualCompletion(
	_ context.Context,
	mrc survey.MicroRitualCompletion,
) (survey.MicroRitualCompletion, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var seq int64
	mrc.ID, seq = repo.db.nextKey()
	mrc.CompletedAt = mrc.CompletedAt.UTC()
	repo.db.completions[mrc.ID] = &completionRow{seq: seq, MicroRitualCompletion: mrc}
	return mrc, nil
}

func (repo *surveyRepository) GetMicroRitualCompletionByID(_ context.Context, id string) (survey.MicroRitualCompletion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.completions[id]; ok {
		return row.MicroRitualCompletion, nil
	}
	return survey.MicroRitualCompletion{}, survey.ErrCompletionNotFound
}

func (repo *surveyRepository) GetMicroRitualCompletionsByUser(_ context.Context, userID string) ([]survey.MicroRitualCompletion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]*completionRow, 0)
	for _, row := range repo.db.completions {
		if row.UserID == userID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	completions := make([]survey.MicroRitualCompletion, 0, len(rows))
	for _, row := range rows {
		completions = append(completions, row.MicroRitualCompletion)
	}
	return completions, nil
}

// Micro ritual attempts

func (repo *surveyRepository) CreateMicroRitualAttempt(_ context.Context, mra survey.MicroRitualAttempt) (survey.MicroRitualAttempt, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var seq int64
	mra.ID, seq = repo.db.nextKey()
	mra.AttemptedAt = mra.AttemptedAt.UTC()
	repo.db.attempts[mra.ID] = &attemptRow{seq: seq, MicroRitualAttempt: mra}
	return mra, nil
}

func (repo *surveyRepository) GetMicroRitualAttemptByID(_ context.Context, id string) (survey.MicroRitualAttempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.attempts[id]; ok {
		return row.MicroRitualAttempt, nil
	}
	return survey.MicroRitualAttempt{}, survey.ErrAttemptNotFound
}

func (repo *surveyRepository) GetMicroRitualAttemptsByUser(_ context.Context, userID string) ([]survey.MicroRitualAttempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]*attemptRow, 0)
	for _, row := range repo.db.attempts {
		if row.UserID == userID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	attempts := make([]survey.MicroRitualAttempt, 0, len(rows))
	for _, row := range rows {
		attempts = append(attempts, row.MicroRitualAttempt)
	}
	return attempts, nil
}

// School scores

func (repo *surveyRepository) CreateSchoolScore(_ context.Context, score survey.SchoolScore) (survey.SchoolScore, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var seq int64
	score.ID, seq = repo.db.nextKey()
	score.CalculatedAt = score.CalculatedAt.UTC()
	score = copyScore(score)
	repo.db.scores[score.ID] = &scoreRow{seq: seq, SchoolScore: score}
	return copyScore(score), nil
}

func (repo *surveyRepository) GetSchoolScoreByID(_ context.Context, id string) (survey.SchoolScore, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.scores[id]; ok {
		return copyScore(row.SchoolScore), nil
	}
	return survey.SchoolScore{}, survey.ErrScoreNotFound
}

// schoolScores returns the school's snapshots, newest first. The lock must be held.
func (repo *surveyRepository) schoolScores(schoolID string) []*scoreRow {
	rows := make([]*scoreRow, 0)
	for _, row := range repo.db.scores {
		if row.SchoolID == schoolID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CalculatedAt.Equal(rows[j].CalculatedAt) {
			return rows[i].CalculatedAt.After(rows[j].CalculatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	return rows
}

func (repo *surveyRepository) GetLatestSchoolScore(_ context.Context, schoolID string) (survey.SchoolScore, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := repo.schoolScores(schoolID)
	if len(rows) == 0 {
		return survey.SchoolScore{}, survey.ErrScoreNotFound
	}
	return copyScore(rows[0].SchoolScore), nil
}

func (repo *surveyRepository) GetSchoolScoreHistory(_ context.Context, schoolID string) ([]survey.SchoolScore, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := repo.schoolScores(schoolID)
	scores := make([]survey.SchoolScore, 0, len(rows))
	for _, row := range rows {
		scores = append(scores, copyScore(row.SchoolScore))
	}
	return scores, nil
}

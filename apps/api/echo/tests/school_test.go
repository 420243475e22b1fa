package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolbond/core/school"
	"github.com/trezcool/schoolbond/core/survey"
	"github.com/trezcool/schoolbond/tests"
)

func Test_health(t *testing.T) {
	f := setup(t)

	req, rec := newRequest(http.MethodGet, "/api/health")
	f.app.ServeHTTP(rec, req)

	var resp struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	unmarshal(t, rec, &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
}

func Test_schoolApi_register(t *testing.T) {
	f := setup(t)
	lincoln := testutil.CreateSchool(t, f.schoolRepo, "Lincoln High")

	newSchool := func(name, district, city, state string) []byte {
		return marchallObj(t, school.NewSchool{Name: name, District: district, City: city, State: state})
	}

	tests := []httpTest{
		{name: "Missing fields", body: newSchool("Roosevelt", "", "Springfield", "IL"), wantCode: http.StatusBadRequest},
		{name: "Blank name", body: newSchool("   ", "D", "Springfield", "IL"), wantCode: http.StatusBadRequest},
		{name: "Malformed body", body: []byte(`{"name": 42`), wantCode: http.StatusBadRequest},
		{
			name: "Existing school (case-insensitive)", body: newSchool("  lincoln HIGH ", "Other", "Other", "CA"),
			wantData: marchallObj(t, map[string]interface{}{"school": lincoln, "isNew": false}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/schools"
	}
	runTests(t, f.app, tests)

	t.Run("New school", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/schools", newSchool("Roosevelt Elementary", "Roosevelt District", "Springfield", "IL"))
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			School school.School `json:"school"`
			IsNew  bool          `json:"isNew"`
		}
		unmarshal(t, rec, &resp)
		assert.True(t, resp.IsNew)
		assert.NotEmpty(t, resp.School.ID)
		assert.Equal(t, "Roosevelt Elementary", resp.School.Name)

		stored, err := f.schoolRepo.GetSchoolByID(context.Background(), resp.School.ID)
		require.NoError(t, err)
		assert.Equal(t, "Roosevelt District", stored.District)
	})
}

func Test_schoolApi_searchAndRetrieve(t *testing.T) {
	f := setup(t)
	lincolnHigh := testutil.CreateSchool(t, f.schoolRepo, "Lincoln High")
	lincoln := testutil.CreateSchool(t, f.schoolRepo, "Lincoln")
	testutil.CreateSchool(t, f.schoolRepo, "Washington Middle")

	runTests(t, f.app, []httpTest{
		{name: "search (empty query)", path: "/api/schools/search?q=", wantData: marchallList(t)},
		{name: "search (unknown)", path: "/api/schools/search?q=zzz", wantData: marchallList(t)},
		{name: "search (ranked by similarity)", path: "/api/schools/search?q=lincoln", wantData: marchallList(t, lincoln, lincolnHigh)},
		{name: "retrieve (unknown)", path: "/api/schools/nope", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "school not found"})},
		{name: "retrieve", path: "/api/schools/" + lincoln.ID, wantData: marchallObj(t, lincoln)},
	})
}

func Test_schoolApi_scores(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, f.schoolRepo, "Lincoln High")
	other := testutil.CreateSchool(t, f.schoolRepo, "Washington Middle")

	now := time.Now().UTC()
	older, err := f.surveyRepo.CreateSchoolScore(ctx, survey.SchoolScore{
		SchoolID: sch.ID, OverallScore: 40, CategoryScores: map[string]int{"belonging": 40}, CalculatedAt: now.Add(-2 * time.Hour),
	})
	require.NoError(t, err)
	latest, err := f.surveyRepo.CreateSchoolScore(ctx, survey.SchoolScore{
		SchoolID: sch.ID, OverallScore: 70, CategoryScores: map[string]int{"belonging": 70}, CalculatedAt: now.Add(-1 * time.Hour),
	})
	require.NoError(t, err)

	q := testutil.CreateQuestion(t, f.surveyRepo, survey.RoleStudent, "belonging", 1)
	usr := testutil.CreateUser(t, f.surveyRepo, sch.ID, survey.RoleStudent, "AB12")
	_, err = f.surveyRepo.RecordAssessment(ctx, usr.ID, []survey.Response{
		{UserID: usr.ID, QuestionID: q.ID, Answer: "very-valued", SubmittedAt: now},
	}, now, now.Add(-7*24*time.Hour))
	require.NoError(t, err)

	runTests(t, f.app, []httpTest{
		{name: "score (unknown school)", path: "/api/schools/nope/score", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "school not found"})},
		{name: "score (latest)", path: "/api/schools/" + sch.ID + "/score", wantData: marchallObj(t, latest)},
		{name: "history (unknown school)", path: "/api/schools/nope/score-history", wantCode: http.StatusNotFound},
		{name: "history (newest first)", path: "/api/schools/" + sch.ID + "/score-history", wantData: marchallList(t, latest, older)},
		{name: "history (empty)", path: "/api/schools/" + other.ID + "/score-history", wantData: marchallList(t)},
		{name: "count (unknown school)", path: "/api/schools/nope/assessment-count", wantCode: http.StatusNotFound},
		{name: "count", path: "/api/schools/" + sch.ID + "/assessment-count", wantData: []byte(`{"assessmentCount": 1}`)},
		{name: "count (none)", path: "/api/schools/" + other.ID + "/assessment-count", wantData: []byte(`{"assessmentCount": 0}`)},
	})

	t.Run("score is computed when none exists", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/schools/"+other.ID+"/score")
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var score survey.SchoolScore
		unmarshal(t, rec, &score)
		assert.Equal(t, other.ID, score.SchoolID)
		assert.Equal(t, 50, score.OverallScore)
	})
}

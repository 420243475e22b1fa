package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/schoolbond/core/school"
	"github.com/trezcool/schoolbond/core/survey"
	"github.com/trezcool/schoolbond/tests"
)

func Test_adminApi_authenticate(t *testing.T) {
	f := setup(t)

	auth := func(code string) []byte { return marchallObj(t, map[string]string{"accessCode": code}) }
	invalid := marchallObj(t, httpErr{Error: "invalid access code"})

	tests := []httpTest{
		{name: "wrong code", body: auth("1234"), wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "empty code", body: auth(""), wantCode: http.StatusUnauthorized, wantData: invalid},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/admin/auth"
	}
	runTests(t, f.app, tests)

	t.Run("valid code", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/admin/auth", auth(adminCode))
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Authenticated bool   `json:"authenticated"`
			Token         string `json:"token"`
		}
		unmarshal(t, rec, &resp)
		assert.True(t, resp.Authenticated)
		require.NotEmpty(t, resp.Token)

		// the issued token opens the admin routes
		req, rec = newAuthRequest(http.MethodGet, "/api/admin/schools", resp.Token)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("hashed code", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("9999"), bcrypt.MinCost)
		require.NoError(t, err)
		f.conf.Admin.AccessCodeHash = string(hash)
		t.Cleanup(func() { f.conf.Admin.AccessCodeHash = "" })

		req, rec := newRequest(http.MethodPost, "/api/admin/auth", auth(adminCode))
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req, rec = newRequest(http.MethodPost, "/api/admin/auth", auth("9999"))
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_adminApi_schools(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()
	washington := testutil.CreateSchool(t, f.schoolRepo, "Washington Middle", now.Add(-2*time.Hour))
	adams := testutil.CreateSchool(t, f.schoolRepo, "adams elementary", now.Add(-1*time.Hour))
	lincoln := testutil.CreateSchool(t, f.schoolRepo, "Lincoln High", now)
	usr := testutil.CreateUser(t, f.surveyRepo, lincoln.ID, survey.RoleStudent, "AB12")

	token := getAdminToken(t, f.conf)
	name := "Lincoln High School"
	renamed := lincoln
	renamed.Name = name

	runTests(t, f.app, []httpTest{
		{name: "Auth required", path: "/api/admin/schools", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Invalid token", path: "/api/admin/schools", token: "lol", wantCode: http.StatusUnauthorized},
		{name: "list (name, case-insensitive)", path: "/api/admin/schools", token: token, wantData: marchallList(t, adams, lincoln, washington)},
		{name: "list (-created_at)", path: "/api/admin/schools?ordering=-created_at", token: token, wantData: marchallList(t, lincoln, adams, washington)},
		{name: "list (unknown field)", path: "/api/admin/schools?ordering=lol", token: token, wantCode: http.StatusBadRequest},
		{
			name: "create (invalid)", method: http.MethodPost, path: "/api/admin/schools", token: token,
			body: marchallObj(t, school.NewSchool{Name: "Jefferson"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "update (unknown)", method: http.MethodPut, path: "/api/admin/schools/nope", token: token,
			body: marchallObj(t, map[string]string{"name": name}), wantCode: http.StatusNotFound,
		},
		{
			name: "update (blank name)", method: http.MethodPut, path: "/api/admin/schools/" + lincoln.ID, token: token,
			body: marchallObj(t, map[string]string{"name": " "}), wantCode: http.StatusBadRequest,
		},
		{
			name: "update", method: http.MethodPut, path: "/api/admin/schools/" + lincoln.ID, token: token,
			body: marchallObj(t, map[string]string{"name": name}), wantData: marchallObj(t, renamed),
		},
		{name: "delete (unknown)", method: http.MethodDelete, path: "/api/admin/schools/nope", token: token, wantCode: http.StatusNotFound},
		{
			name: "delete", method: http.MethodDelete, path: "/api/admin/schools/" + lincoln.ID, token: token,
			wantData: []byte(`{"message": "School deleted successfully"}`),
		},
	})

	// deleting a school removes its users
	_, err := f.surveyRepo.GetUserByID(ctx, usr.ID)
	assert.Equal(t, survey.ErrUserNotFound, err)

	t.Run("create", func(t *testing.T) {
		body := marchallObj(t, school.NewSchool{Name: "Adams Elementary", District: "D1", City: "Salem", State: "OR"})
		req, rec := newAuthRequest(http.MethodPost, "/api/admin/schools", token, body)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		// the admin flow does not dedupe by name
		var created school.School
		unmarshal(t, rec, &created)
		assert.NotEqual(t, adams.ID, created.ID)
		assert.Equal(t, "Adams Elementary", created.Name)
	})
}

func Test_adminApi_bulkUpload(t *testing.T) {
	f := setup(t)
	token := getAdminToken(t, f.conf)
	invalid := marchallObj(t, httpErr{Error: "invalid data format"})

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized},
		{name: "schools missing", token: token, body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: invalid},
		{name: "schools not a list", token: token, body: []byte(`{"schools": "lol"}`), wantCode: http.StatusBadRequest, wantData: invalid},
		{name: "empty batch", token: token, body: []byte(`{"schools": []}`), wantData: []byte(`{"results": []}`)},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/admin/schools/bulk-upload"
	}
	runTests(t, f.app, tests)

	t.Run("partial failures", func(t *testing.T) {
		body := []byte(`{"schools": [
			{"name": "Adams", "district": "D1", "city": "Salem", "state": "OR"},
			{"name": "Broken", "district": "D2"},
			{"name": "Carver", "district": "D3", "city": "Austin", "state": "TX"}
		]}`)
		req, rec := newAuthRequest(http.MethodPost, "/api/admin/schools/bulk-upload", token, body)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Results []struct {
				Success bool             `json:"success"`
				Error   string           `json:"error"`
				Data    school.NewSchool `json:"data"`
			} `json:"results"`
		}
		unmarshal(t, rec, &resp)
		require.Len(t, resp.Results, 3)
		assert.True(t, resp.Results[0].Success)
		assert.False(t, resp.Results[1].Success)
		assert.NotEmpty(t, resp.Results[1].Error)
		assert.Equal(t, "Broken", resp.Results[1].Data.Name)
		assert.True(t, resp.Results[2].Success)

		schools, err := f.schoolRepo.QuerySchools(context.Background(), nil)
		require.NoError(t, err)
		assert.Len(t, schools, 2)
	})

	t.Run("malformed rows", func(t *testing.T) {
		body := []byte(`{"schools": [
			{"name": "Dewey", "district": "D4", "city": "Boston", "state": "MA"},
			"not-a-school",
			{"name": 42, "district": "D5", "city": "Reno", "state": "NV"}
		]}`)
		req, rec := newAuthRequest(http.MethodPost, "/api/admin/schools/bulk-upload", token, body)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Results []struct {
				Success bool            `json:"success"`
				Error   string          `json:"error"`
				Data    json.RawMessage `json:"data"`
			} `json:"results"`
		}
		unmarshal(t, rec, &resp)
		require.Len(t, resp.Results, 3)
		assert.True(t, resp.Results[0].Success)
		assert.False(t, resp.Results[1].Success)
		assert.Equal(t, "invalid data format", resp.Results[1].Error)
		assert.JSONEq(t, `"not-a-school"`, string(resp.Results[1].Data))
		assert.False(t, resp.Results[2].Success)
		assert.Equal(t, "invalid data format", resp.Results[2].Error)
		assert.JSONEq(t, `{"name": 42, "district": "D5", "city": "Reno", "state": "NV"}`, string(resp.Results[2].Data))

		schools, err := f.schoolRepo.QuerySchools(context.Background(), nil)
		require.NoError(t, err)
		assert.Len(t, schools, 3)
	})
}

func Test_adminApi_importCSV(t *testing.T) {
	f := setup(t)
	token := getAdminToken(t, f.conf)
	csvDoc := "name,district,city,state\nAdams,D1,Salem,OR\n,D2,Austin,TX\n"

	countSuccesses := func(t *testing.T, rec *httptest.ResponseRecorder) int {
		var resp struct {
			Results []school.BulkResult `json:"results"`
		}
		unmarshal(t, rec, &resp)
		var n int
		for _, res := range resp.Results {
			if res.Success {
				n++
			}
		}
		return n
	}

	t.Run("bad header", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/admin/schools/import", token, []byte("foo,bar\n1,2\n"))
		req.Header.Set("Content-Type", "text/csv")
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("raw body", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/admin/schools/import", token, []byte(csvDoc))
		req.Header.Set("Content-Type", "text/csv")
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 1, countSuccesses(t, rec))
	})

	t.Run("multipart file", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", "schools.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(csvDoc))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req, rec := newAuthRequest(http.MethodPost, "/api/admin/schools/import", token, body.Bytes())
		req.Header.Set("Content-Type", mw.FormDataContentType())
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 1, countSuccesses(t, rec))
	})
}

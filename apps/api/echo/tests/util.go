package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/schoolbond/apps/api/echo"
	"github.com/trezcool/schoolbond/core"
	"github.com/trezcool/schoolbond/core/school"
	"github.com/trezcool/schoolbond/core/survey"
	"github.com/trezcool/schoolbond/storage/database/inmem"
	"github.com/trezcool/schoolbond/tests"
)

const adminCode = "6056"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	app        *Server
	conf       *core.Config
	schoolRepo school.Repository
	surveyRepo survey.Repository
}

func setup(t *testing.T) fixture {
	conf := &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "SchoolBond",
		SecretKey: "test-secret-key",
		Server: core.ServerConfig{
			DisableReqLogs:     true,
			JWTExpirationDelta: time.Hour,
		},
		Admin:  core.AdminConfig{AccessCode: adminCode},
		Survey: core.SurveyConfig{SearchLimit: 10, AccessCodeAttempts: 100},
	}

	// set up DB & repos
	db := inmemdb.Open()
	schoolRepo := inmemdb.NewSchoolRepository(db)
	surveyRepo := inmemdb.NewSurveyRepository(db)

	// set up services
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidator()
	schoolSvc := school.NewService(schoolRepo, logger, validate, translator, conf)
	surveySvc := survey.NewService(surveyRepo, schoolRepo, logger, validate, translator, conf)

	// set up server
	app := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		SchoolSvc:  schoolSvc,
		SurveySvc:  surveySvc,
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = app.Close() })

	return fixture{app: app, conf: conf, schoolRepo: schoolRepo, surveyRepo: surveyRepo}
}

type httpErr struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte // nil: only the status code is checked
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getAdminToken(t *testing.T, conf *core.Config) string {
	token, err := GenerateAdminToken(conf)
	if err != nil {
		t.Fatalf("getAdminToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, app *Server, tests []httpTest) {
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

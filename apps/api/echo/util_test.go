package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/tasktracker/apps/api/echo"
	"github.com/trezcool/tasktracker/core"
	"github.com/trezcool/tasktracker/core/notification"
	"github.com/trezcool/tasktracker/core/school"
	emailsvc "github.com/trezcool/tasktracker/services/email"
	sqlxrepos "github.com/trezcool/tasktracker/storage/database/sqlx"
	"github.com/trezcool/tasktracker/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	conf       *core.Config
	app        *echoapi.Server
	schoolRepo testutil.SchoolStore
	repo       notification.Repository
	mailer     *emailsvc.ServiceMock
}

func setup(t *testing.T) *env {
	t.Helper()

	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	translator := core.NewTranslator()
	validate := core.NewValidate(translator)

	// set up DB & repos
	db := testutil.PrepareDB(t)
	e := &env{
		conf:       conf,
		schoolRepo: sqlxrepos.NewSchoolRepository(db),
		repo:       sqlxrepos.NewNotificationRepository(db),
		mailer:     emailsvc.NewServiceMock(),
	}

	// set up services
	renderer, err := notification.NewRenderer(validate, conf.Notification.Location(), conf.FrontendBaseURL)
	require.NoError(t, err)
	dispatcher := notification.NewDispatcher(e.repo, e.schoolRepo, e.mailer, logger, conf)
	svc := notification.NewService(
		e.repo, e.schoolRepo,
		notification.NewWindowPolicy(e.repo, conf.Notification.DedupWindow),
		renderer, dispatcher, logger, conf,
	)

	// set up server
	e.app = echoapi.NewServer(conf, logger, validate, translator, svc, e.schoolRepo, echoapi.Options{DisableReqLogs: true})
	return e
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
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

func (e *env) do(t *testing.T, method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	t.Helper()

	req, rec := newAuthRequest(method, path, token, data...)
	e.app.ServeHTTP(rec, req)
	return rec
}

func (e *env) getToken(t *testing.T, usr school.User) string {
	t.Helper()

	token, err := echoapi.GenerateToken(e.conf, echoapi.GetUserClaims(e.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
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

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	assert.Equal(t, tt.wantCode, rec.Code)
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode(%s) failed: %v", rec.Body.String(), err)
	}
}

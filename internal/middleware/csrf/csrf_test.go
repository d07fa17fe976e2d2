package csrf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lisakugler/grocery-store/internal/models"
	"github.com/lisakugler/grocery-store/internal/session"
)

func newTestManager(t *testing.T) *session.Manager {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Session{}))
	return session.NewManager(db, []byte("test-secret"))
}

func doPost(t *testing.T, m *session.Manager, sess *models.Session, form url.Values) error {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/grocerystore/newcategory", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(session.ContextKey, sess)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	return Middleware(m, Config{})(next)(c)
}

func TestMissingStateRejected(t *testing.T) {
	m := newTestManager(t)
	sess := &models.Session{ID: "s-1"}
	require.NoError(t, m.DB.Create(sess).Error)

	err := doPost(t, m, sess, url.Values{})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
	require.Equal(t, "Invalid state parameter.", he.Message)
}

func TestWrongStateRejected(t *testing.T) {
	m := newTestManager(t)
	sess := &models.Session{ID: "s-1"}
	require.NoError(t, m.DB.Create(sess).Error)

	_, err := m.IssueState(context.Background(), sess)
	require.NoError(t, err)

	err = doPost(t, m, sess, url.Values{"state": {"forged"}})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestValidStatePassesOnce(t *testing.T) {
	m := newTestManager(t)
	sess := &models.Session{ID: "s-1"}
	require.NoError(t, m.DB.Create(sess).Error)

	state, err := m.IssueState(context.Background(), sess)
	require.NoError(t, err)

	require.NoError(t, doPost(t, m, sess, url.Values{"state": {state}}))

	// the token was consumed, a replay must fail
	err = doPost(t, m, sess, url.Values{"state": {state}})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestStateReadFromQuery(t *testing.T) {
	m := newTestManager(t)
	sess := &models.Session{ID: "s-1"}
	require.NoError(t, m.DB.Create(sess).Error)

	state, err := m.IssueState(context.Background(), sess)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/gconnect?state="+url.QueryEscape(state), strings.NewReader("auth-code"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(session.ContextKey, sess)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	require.NoError(t, Middleware(m, Config{})(next)(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetRequestsSkipped(t *testing.T) {
	m := newTestManager(t)
	sess := &models.Session{ID: "s-1"}
	require.NoError(t, m.DB.Create(sess).Error)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/grocerystore", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(session.ContextKey, sess)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	require.NoError(t, Middleware(m, Config{})(next)(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lisakugler/grocery-store/internal/models"
	"github.com/lisakugler/grocery-store/internal/session"
	"github.com/lisakugler/grocery-store/internal/upload"
	"github.com/lisakugler/grocery-store/internal/view"
)

type testEnv struct {
	T        *testing.T
	E        *echo.Echo
	DB       *gorm.DB
	Sessions *session.Manager
	Uploads  *upload.Store
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
		return nil
	}

	if err := db.AutoMigrate(&models.User{}, &models.Category{}, &models.Product{}, &models.Session{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := initTestDB(t)

	e := echo.New()
	renderer, err := view.New()
	require.NoError(t, err)
	e.Renderer = renderer

	uploads, err := upload.NewStore(t.TempDir())
	require.NoError(t, err)

	return &testEnv{
		T:        t,
		E:        e,
		DB:       db,
		Sessions: session.NewManager(db, []byte("test-secret")),
		Uploads:  uploads,
	}
}

func (env *testEnv) newUser(name, email string) models.User {
	user := models.User{Name: name, Email: email}
	require.NoError(env.T, env.DB.Create(&user).Error)
	return user
}

func (env *testEnv) newSession(user *models.User) *models.Session {
	sess := &models.Session{ID: uuid.NewString(), CreatedAt: time.Now()}
	if user != nil {
		sess.UserID = user.ID
		sess.Username = user.Name
		sess.Email = user.Email
	}
	require.NoError(env.T, env.DB.Create(sess).Error)
	return sess
}

func (env *testEnv) doFormRequest(method, path string, form url.Values, sess *models.Session) (*httptest.ResponseRecorder, echo.Context) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if sess != nil {
		c.Set(session.ContextKey, sess)
	}
	return rec, c
}

func (env *testEnv) doMultipartRequest(path string, fields map[string]string, fileField, fileName string, sess *models.Session) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(env.T, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		require.NoError(env.T, err)
		_, err = part.Write([]byte("not a real image"))
		require.NoError(env.T, err)
	}
	require.NoError(env.T, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if sess != nil {
		c.Set(session.ContextKey, sess)
	}
	return rec, c
}

func requireHTTPError(t *testing.T, err error, status int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	require.Equal(t, status, he.Code)
}

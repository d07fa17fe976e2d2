package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/lisakugler/grocery-store/internal/models"
)

const (
	CookieName = "session"
	ContextKey = "sess"
)

// Manager owns the server-side session rows. The cookie only carries a
// signed token with the session id, everything else lives in the database.
type Manager struct {
	DB     *gorm.DB
	Secret []byte
	TTL    time.Duration
}

func NewManager(db *gorm.DB, secret []byte) *Manager {
	return &Manager{DB: db, Secret: secret, TTL: 24 * time.Hour}
}

func CreateCookie(name string, value string, path string, expTime time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}

	return cookie
}

// Middleware resolves the session cookie into a session row and stores it
// on the echo context. A missing, invalid or expired cookie yields a fresh
// anonymous session.
func (m *Manager) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var sess *models.Session
		if cookie, err := c.Cookie(CookieName); err == nil {
			if sid, err := m.parseToken(cookie.Value); err == nil {
				var stored models.Session
				if err := m.DB.WithContext(ctx).First(&stored, "id = ?", sid).Error; err == nil {
					sess = &stored
				}
			}
		}

		if sess == nil {
			created, err := m.create(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "cannot create session")
			}
			sess = created

			token, err := m.signToken(sess.ID)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "cannot sign session token")
			}
			c.SetCookie(CreateCookie(CookieName, token, "/", time.Now().Add(m.TTL)))
		}

		c.Set(ContextKey, sess)
		return next(c)
	}
}

// FromEcho returns the session attached by Middleware, or nil outside of it.
func FromEcho(c echo.Context) *models.Session {
	if v, ok := c.Get(ContextKey).(*models.Session); ok {
		return v
	}
	return nil
}

func IsLoggedIn(sess *models.Session) bool {
	return sess != nil && sess.Username != ""
}

func (m *Manager) Save(ctx context.Context, sess *models.Session) error {
	return m.DB.WithContext(ctx).Save(sess).Error
}

// ClearIdentity drops every identity-related field but keeps the session
// row itself, so the anonymous session survives logout.
func (m *Manager) ClearIdentity(ctx context.Context, sess *models.Session) error {
	sess.UserID = 0
	sess.Username = ""
	sess.Email = ""
	sess.Picture = ""
	sess.Provider = ""
	sess.ExtUserID = ""
	sess.ProviderToken = ""
	return m.Save(ctx, sess)
}

// IssueState sets a fresh one-time anti-forgery token on the session and
// returns it for embedding in the next rendered form.
func (m *Manager) IssueState(ctx context.Context, sess *models.Session) (string, error) {
	token, err := newToken(32)
	if err != nil {
		return "", err
	}
	sess.State = token
	if err := m.Save(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeState returns the stored anti-forgery token and clears it, so a
// token can only validate a single state-changing request.
func (m *Manager) ConsumeState(ctx context.Context, sess *models.Session) (string, error) {
	token := sess.State
	sess.State = ""
	if err := m.Save(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

func (m *Manager) SetFlash(ctx context.Context, sess *models.Session, msg string) error {
	sess.Flash = msg
	return m.Save(ctx, sess)
}

func (m *Manager) PopFlash(ctx context.Context, sess *models.Session) (string, error) {
	msg := sess.Flash
	if msg == "" {
		return "", nil
	}
	sess.Flash = ""
	return msg, m.Save(ctx, sess)
}

func (m *Manager) SetRedirect(ctx context.Context, sess *models.Session, target string) error {
	sess.RedirectTo = target
	return m.Save(ctx, sess)
}

func (m *Manager) PopRedirect(ctx context.Context, sess *models.Session) (string, error) {
	target := sess.RedirectTo
	if target == "" {
		return "", nil
	}
	sess.RedirectTo = ""
	return target, m.Save(ctx, sess)
}

func (m *Manager) create(ctx context.Context) (*models.Session, error) {
	sess := &models.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	if err := m.DB.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("session: cannot create row: %w", err)
	}
	return sess, nil
}

func (m *Manager) signToken(sid string) (string, error) {
	claims := jwt.MapClaims{
		"sid": sid,
		"exp": time.Now().Add(m.TTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.Secret)
}

func (m *Manager) parseToken(raw string) (string, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signature method: %v", t.Header["alg"])
		}
		return m.Secret, nil
	})
	if err != nil || !t.Valid {
		return "", fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("cannot parse claims")
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("session token missing sid")
	}
	return sid, nil
}

func newToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/lisakugler/grocery-store/internal/logging"
	"github.com/lisakugler/grocery-store/internal/models"
	"github.com/lisakugler/grocery-store/internal/mykafka"
	"github.com/lisakugler/grocery-store/internal/oauth"
	"github.com/lisakugler/grocery-store/internal/session"
)

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *session.Manager
	Google   *oauth.Google
	Facebook *oauth.Facebook
	Producer *mykafka.Producer
}

// GoogleConnect handles the login callback: the request body carries the
// one-time authorization code produced by the sign-in button.
func (h *AuthHandler) GoogleConnect(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.gconnect")

	sess := session.FromEcho(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "no session")
	}

	code, err := io.ReadAll(c.Request().Body)
	if err != nil || len(code) == 0 {
		l.Warn("gconnect_failed", "status", 401, "reason", "missing authorization code")
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization code")
	}

	ident, err := h.Google.Exchange(ctx, string(code))
	if err != nil {
		return authErrorResponse(l, "gconnect_failed", err)
	}

	if sess.Provider == "google" && sess.ExtUserID == ident.ExtUserID {
		l.Info("gconnect_already_connected")
		return c.JSON(http.StatusOK, "Current user is already connected.")
	}

	return h.completeLogin(c, sess, "google", ident)
}

// FacebookConnect handles the login callback with the short-lived client
// token in the request body.
func (h *AuthHandler) FacebookConnect(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.fbconnect")

	sess := session.FromEcho(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "no session")
	}

	shortToken, err := io.ReadAll(c.Request().Body)
	if err != nil || len(shortToken) == 0 {
		l.Warn("fbconnect_failed", "status", 401, "reason", "missing access token")
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	ident, err := h.Facebook.Exchange(ctx, string(shortToken))
	if err != nil {
		return authErrorResponse(l, "fbconnect_failed", err)
	}

	if sess.Provider == "facebook" && sess.ExtUserID == ident.ExtUserID {
		l.Info("fbconnect_already_connected")
		return c.JSON(http.StatusOK, "Current user is already connected.")
	}

	return h.completeLogin(c, sess, "facebook", ident)
}

// Logout dispatches to the connected provider's disconnect flow. The
// session is only cleared once the provider confirmed the revocation.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	sess := session.FromEcho(c)
	if sess == nil || sess.Provider == "" {
		l.Warn("logout_failed", "status", 401, "reason", "current user not connected")
		return echo.NewHTTPError(http.StatusUnauthorized, "Current user not connected.")
	}

	var err error
	switch sess.Provider {
	case "google":
		err = h.Google.Revoke(ctx, sess.ProviderToken)
	case "facebook":
		err = h.Facebook.Revoke(ctx, sess.ExtUserID, sess.ProviderToken)
	default:
		err = fmt.Errorf("unknown provider %q", sess.Provider)
	}
	if err != nil {
		l.Warn("logout_failed", "status", 400, "reason", "revoke failed", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to revoke token for given user.")
	}

	userID := sess.UserID
	if err := h.Sessions.ClearIdentity(ctx, sess); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot clear session", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot clear session")
	}
	if err := h.Sessions.SetFlash(ctx, sess, "Logged out successfully!"); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot save session", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save session")
	}

	publish(c, h.Producer, fmt.Sprint(userID), map[string]any{
		"type":   "user_logged_out",
		"userID": userID,
	})

	l.Info("logout_success")
	return c.Redirect(http.StatusFound, "/grocerystore")
}

// completeLogin resolves the verified identity to a local user, creating
// one on first login, and stores the identity in the session. Name and
// picture of an existing user are deliberately not refreshed.
func (h *AuthHandler) completeLogin(c echo.Context, sess *models.Session, provider string, ident *oauth.Identity) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login", "provider", provider)

	username := ident.Name
	if username == "" {
		username = ident.Email
	}

	var user models.User
	err := h.DB.WithContext(ctx).Where("email = ?", ident.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Name:    username,
			Email:   ident.Email,
			Picture: ident.Picture,
		}
		if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
			l.Error("login_failed", "status", 500, "reason", "cannot create user", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot create user")
		}
	} else if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot look up user", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot look up user")
	}

	sess.UserID = user.ID
	sess.Username = username
	sess.Email = ident.Email
	sess.Picture = ident.Picture
	sess.Provider = provider
	sess.ExtUserID = ident.ExtUserID
	sess.ProviderToken = ident.Token
	if err := h.Sessions.Save(ctx, sess); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot save session", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save session")
	}
	if err := h.Sessions.SetFlash(ctx, sess, "Welcome, "+username+"!"); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot save session", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save session")
	}

	publish(c, h.Producer, ident.Email, map[string]any{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"provider": provider,
	})

	l.Info("login_success", "userID", user.ID)
	return c.HTML(http.StatusOK, welcomeFragment(username, ident.Picture))
}

func welcomeFragment(username, picture string) string {
	output := "<h2>Welcome!</h2>"
	output += "<h3>" + username + "</h3>"
	output += `<img src="` + picture + `" style="width: 100px; height: 100px; border-radius: 150px;">`
	return output
}

func authErrorResponse(l *slog.Logger, event string, err error) error {
	var ae *oauth.AuthError
	if errors.As(err, &ae) {
		l.Warn(event, "status", ae.Status, "reason", ae.Message, "error", err)
		return echo.NewHTTPError(ae.Status, ae.Message)
	}
	l.Warn(event, "status", 401, "reason", "authentication failed", "error", err)
	return echo.NewHTTPError(http.StatusUnauthorized, "authentication failed")
}

package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lisakugler/grocery-store/internal/session"
)

// RequireLogin redirects anonymous callers to the login page and remembers
// the originally requested path so the flow can resume after a successful
// login.
func RequireLogin(m *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := session.FromEcho(c)
			if session.IsLoggedIn(sess) {
				return next(c)
			}

			if sess != nil {
				if err := m.SetRedirect(c.Request().Context(), sess, c.Request().URL.Path); err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "cannot save session")
				}
			}
			return c.Redirect(http.StatusFound, "/login")
		}
	}
}

package csrf

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lisakugler/grocery-store/internal/session"
)

type Config struct {
	FormField string
	SkipPaths []string
}

func DefaultConfig() Config {
	return Config{
		FormField: "state",
	}
}

// Middleware enforces the per-session one-time anti-forgery token on every
// state-changing request. The token is read from the form first, then the
// query string, and is consumed on use. Must run after the session
// middleware.
func Middleware(m *session.Manager, cfg Config) echo.MiddlewareFunc {
	if cfg.FormField == "" {
		cfg.FormField = DefaultConfig().FormField
	}

	skip := map[string]struct{}{}
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if req.Method == http.MethodGet || req.Method == http.MethodHead || req.Method == http.MethodOptions {
				return next(c)
			}
			if _, ok := skip[req.URL.Path]; ok {
				return next(c)
			}

			sess := session.FromEcho(c)
			if sess == nil {
				return echo.NewHTTPError(http.StatusForbidden, "Invalid state parameter.")
			}

			token, err := m.ConsumeState(req.Context(), sess)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "cannot read session state")
			}

			provided := c.FormValue(cfg.FormField)
			if provided == "" {
				provided = c.QueryParam(cfg.FormField)
			}

			if !secureCompare(token, provided) {
				return echo.NewHTTPError(http.StatusForbidden, "Invalid state parameter.")
			}

			return next(c)
		}
	}
}

func secureCompare(a, b string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

package httpapi

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"vpnmarket/internal/apperr"
	"vpnmarket/internal/auth"
	"vpnmarket/internal/logging"
)

const (
	ctxUserID = "user_id"
	ctxEmail  = "user_email"
)

// AuthMiddleware guards routes behind a valid bearer access token.
type AuthMiddleware struct {
	Tokens *auth.TokenManager
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return apperr.Unauthenticated("Access token is required")
		}

		claims, err := m.Tokens.VerifyAccessToken(raw)
		if err != nil {
			return apperr.Unauthenticated("Invalid or expired token")
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return apperr.Unauthenticated("Invalid or expired token")
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxEmail, claims.Email)
		return next(c)
	}
}

// UserID returns the authenticated user id set by RequireAuth.
func UserID(c echo.Context) uuid.UUID {
	id, _ := c.Get(ctxUserID).(uuid.UUID)
	return id
}

// RequestLogger attaches a request-scoped logger to the request context.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			l := base.With("method", req.Method, "path", req.URL.Path, "remote", c.RealIP())
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))
			return next(c)
		}
	}
}

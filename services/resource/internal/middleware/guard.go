// Package middleware holds the remote authorization guard: every protected
// request costs one blocking round trip to the identity service. Transport
// failures fail closed as unauthenticated.
package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"identityhub/pkg/authrpc"
	"identityhub/pkg/logging"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

const validateTimeout = 5 * time.Second

type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken string) (*authrpc.TokenResponse, error)
}

type Guard struct {
	Auth TokenValidator
}

func NewGuard(auth TokenValidator) *Guard {
	return &Guard{Auth: auth}
}

func (g *Guard) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := BearerToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), validateTimeout)
		defer cancel()

		res, err := g.Auth.ValidateToken(ctx, token)
		if err != nil {
			logging.FromContext(c.Request().Context()).Warn("token_validation_unreachable", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		if !res.IsValid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		c.Set(CtxUserID, res.UserID)
		c.Set(CtxRole, res.Role)

		return next(c)
	}
}

// RequireRole runs after RequireAuth: identity first, role second.
func RequireRole(required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing role")
			}
			if len(required) > 0 && !slices.Contains(required, role) {
				return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights to see this page")
			}
			return next(c)
		}
	}
}

// BearerToken extracts the credential from the Authorization header;
// anything but the Bearer scheme is treated as absent.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return ""
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

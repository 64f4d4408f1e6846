package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"identityhub/pkg/logging"
	"identityhub/services/resource/internal/middleware"
	"identityhub/services/resource/internal/service"
)

type UserHTTP struct {
	Svc *service.UserService
}

func (h *UserHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_register")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Register(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid username or password format")
		case errors.Is(err, service.ErrUserExists):
			return echo.NewHTTPError(http.StatusConflict, "user already exists")
		default:
			l.Error("register_failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "register failed")
		}
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *UserHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_login")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrUnauthorized):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
		default:
			l.Error("login_failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
	})
}

func (h *UserHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	accessToken, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired refresh token")
		}
		logging.FromContext(ctx).Error("refresh_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "refresh failed")
	}

	return c.JSON(http.StatusOK, echo.Map{"accessToken": accessToken})
}

func (h *UserHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_logout")

	token := middleware.BearerToken(c.Request())
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing access token")
	}

	userID, err := h.Svc.Logout(ctx, token)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
		l.Error("logout_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
	}

	l.Info("logout_successful", "user_id", userID)
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHTTP) ModifyPassword(c echo.Context) error {
	ctx := c.Request().Context()

	token := middleware.BearerToken(c.Request())
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing access token")
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing password")
	}

	if err := h.Svc.ModifyPassword(ctx, token, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid password format")
		case errors.Is(err, service.ErrUnauthorized):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		default:
			logging.FromContext(ctx).Error("modify_password_failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "password update failed")
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// Me answers from the identity the guard attached plus the local mirror.
func (h *UserHTTP) Me(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(uint)
	role, _ := c.Get(middleware.CtxRole).(string)

	user, err := h.Svc.Repo.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user_id":  user.UserID,
		"username": user.Username,
		"role":     role,
	})
}

func (h *UserHTTP) ListUsers(c echo.Context) error {
	users, err := h.Svc.Repo.ListUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list users")
	}
	return c.JSON(http.StatusOK, users)
}

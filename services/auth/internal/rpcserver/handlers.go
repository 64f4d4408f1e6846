// Package rpcserver is the wire boundary of the identity service. Handlers
// are thin adapters from authrpc messages to the service layer and collapse
// every failure into a falsy response body with a 200 status: error detail
// stays in the logs, never on the wire.
package rpcserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"identityhub/pkg/authrpc"
	"identityhub/pkg/logging"
	"identityhub/services/auth/internal/service"
)

type Handler struct {
	Svc *service.AuthService
}

func (h *Handler) ValidateToken(c echo.Context) error {
	var req authrpc.TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusOK, authrpc.TokenResponse{})
	}

	userID, role, ok := h.Svc.Validate(req.AccessToken)
	if !ok {
		return c.JSON(http.StatusOK, authrpc.TokenResponse{})
	}

	return c.JSON(http.StatusOK, authrpc.TokenResponse{
		IsValid: true,
		UserID:  userID,
		Role:    role,
	})
}

func (h *Handler) RegisterUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("rpc", "register_user")

	var req authrpc.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("bad_request", "error", err)
		return c.JSON(http.StatusOK, authrpc.UserResponse{})
	}

	user, err := h.Svc.Register(ctx, req.Username, req.Password)
	if err != nil {
		l.Warn("register_rejected", "error", err)
		return c.JSON(http.StatusOK, authrpc.UserResponse{})
	}

	return c.JSON(http.StatusOK, authrpc.UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
}

func (h *Handler) LoginUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("rpc", "login_user")

	var req authrpc.LoginUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("bad_request", "error", err)
		return c.JSON(http.StatusOK, authrpc.LoginUserResponse{})
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		// invalid credentials and internal failures look identical here
		l.Warn("login_rejected", "error", err)
		return c.JSON(http.StatusOK, authrpc.LoginUserResponse{})
	}

	return c.JSON(http.StatusOK, authrpc.LoginUserResponse{
		IsValid:      true,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	})
}

func (h *Handler) RefreshAccessToken(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("rpc", "refresh_access_token")

	var req authrpc.RefreshTokenRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("bad_request", "error", err)
		return c.JSON(http.StatusOK, authrpc.RefreshTokenResponse{})
	}

	accessToken, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		l.Warn("refresh_rejected", "error", err)
		return c.JSON(http.StatusOK, authrpc.RefreshTokenResponse{})
	}

	return c.JSON(http.StatusOK, authrpc.RefreshTokenResponse{
		IsValid:     true,
		AccessToken: accessToken,
	})
}

func (h *Handler) LogoutUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("rpc", "logout_user")

	var req authrpc.TokenRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("bad_request", "error", err)
		return c.JSON(http.StatusOK, authrpc.TokenResponse{})
	}

	userID, role, err := h.Svc.Logout(ctx, req.AccessToken)
	if err != nil {
		l.Warn("logout_rejected", "error", err)
		return c.JSON(http.StatusOK, authrpc.TokenResponse{})
	}

	return c.JSON(http.StatusOK, authrpc.TokenResponse{
		IsValid: true,
		UserID:  userID,
		Role:    role,
	})
}

func (h *Handler) ModifyPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("rpc", "modify_password")

	var req authrpc.ModifyPasswordRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("bad_request", "error", err)
		return c.JSON(http.StatusOK, authrpc.ModifyPasswordResponse{})
	}

	if err := h.Svc.ModifyPassword(ctx, req.AccessToken, req.Password); err != nil {
		l.Warn("modify_password_rejected", "error", err)
		return c.JSON(http.StatusOK, authrpc.ModifyPasswordResponse{})
	}

	return c.JSON(http.StatusOK, authrpc.ModifyPasswordResponse{
		IsValid: true,
		Status:  "password updated",
	})
}

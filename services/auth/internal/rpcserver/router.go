package rpcserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"identityhub/pkg/authrpc"
)

func Register(e *echo.Echo, h *Handler) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.POST(authrpc.PathValidateToken, h.ValidateToken)
	e.POST(authrpc.PathRegisterUser, h.RegisterUser)
	e.POST(authrpc.PathLoginUser, h.LoginUser)
	e.POST(authrpc.PathRefreshAccessToken, h.RefreshAccessToken)
	e.POST(authrpc.PathLogoutUser, h.LogoutUser)
	e.POST(authrpc.PathModifyPassword, h.ModifyPassword)
}

package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"identityhub/services/resource/internal/middleware"
)

type Deps struct {
	UserHandler *UserHTTP
	Guard       *middleware.Guard
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.POST("/users/register", d.UserHandler.Register)
	e.POST("/users/login", d.UserHandler.Login)
	e.POST("/users/refresh", d.UserHandler.Refresh)
	e.POST("/users/logout", d.UserHandler.Logout)
	e.PATCH("/users/modify", d.UserHandler.ModifyPassword)

	private := e.Group("", d.Guard.RequireAuth)
	private.GET("/users/me", d.UserHandler.Me)

	admin := e.Group("/admin", d.Guard.RequireAuth, middleware.RequireRole("admin"))
	admin.GET("/users", d.UserHandler.ListUsers)
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"

	"identityhub/pkg/authclient"
	"identityhub/pkg/db"
	"identityhub/pkg/logging"
	"identityhub/services/resource/internal/config"
	"identityhub/services/resource/internal/httpserver"
	"identityhub/services/resource/internal/middleware"
	"identityhub/services/resource/internal/models"
	"identityhub/services/resource/internal/repo"
	"identityhub/services/resource/internal/service"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gormDB, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := gormDB.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	authClient := authclient.NewClient(cfg.AuthRPCURL)

	userHTTP := &httpserver.UserHTTP{
		Svc: &service.UserService{
			Repo: &repo.GormRepo{DB: gormDB},
			Auth: authClient,
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	httpserver.Register(e, &httpserver.Deps{
		UserHandler: userHTTP,
		Guard:       middleware.NewGuard(authClient),
	})

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}

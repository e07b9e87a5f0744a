package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brieferhq/briefer/config"
	"github.com/brieferhq/briefer/internal/agent/core"
	"github.com/brieferhq/briefer/internal/agent/telemetry"
	"github.com/brieferhq/briefer/internal/store"
	"github.com/brieferhq/briefer/internal/task"
)

// Run wires the full service and blocks serving HTTP until the listener
// fails or the context is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Shared dependencies (top-level DI)
	if cfg.Storage.Backend == "postgres" {
		dsn, err := cfg.Storage.Postgres.DSN()
		if err != nil {
			return err
		}
		if err := store.Migrate("file://migrations", dsn, "up", 0); err != nil {
			baseLogger.Printf("migrations skipped: %v", err)
		}
	}
	taskStore, err := store.New(ctx, cfg.Storage, nil)
	if err != nil {
		return err
	}
	defer taskStore.Close()

	tel := telemetry.New(cfg.Telemetry)
	pipeline, err := core.BuildPipeline(ctx, cfg, tel, nil)
	if err != nil {
		return err
	}

	manager := task.NewManager(pipeline.Orchestrator, pipeline.Deep, taskStore, cfg.Tasks, tel, nil)

	sweeper, err := task.NewSweeper(taskStore, cfg.Tasks.SweepCron, cfg.Tasks.Retention, nil)
	if err != nil {
		return err
	}
	sweeper.Start(ctx)

	api := e.Group("/v1/agent")
	if cfg.Server.JWTSecret != "" {
		api.Use(AuthMiddleware([]byte(cfg.Server.JWTSecret)))
	}
	handler := &TasksHandler{
		Orchestrator: pipeline.Orchestrator,
		Manager:      manager,
		Deep:         pipeline.Deep,
		Logger:       log.New(log.Writer(), "[API] ", log.LstdFlags),
	}
	handler.Register(api)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

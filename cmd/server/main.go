package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/observation-tools/observation-tools/internal/auth"
	"github.com/observation-tools/observation-tools/internal/config"
	"github.com/observation-tools/observation-tools/internal/middleware"
	"github.com/observation-tools/observation-tools/model"
)

const appVersion = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.IsProduction() {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	if cfg.Sentry.Enabled {
		release := cfg.Sentry.Release
		if release == "" {
			release = "observation-tools@" + appVersion
		}
		environment := cfg.Sentry.Environment
		if environment == "" {
			environment = cfg.Server.Env
		}
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      environment,
			Release:          release,
			Debug:            cfg.Sentry.Debug,
			SampleRate:       cfg.Sentry.SampleRate,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Error("failed to initialize Sentry", zap.Error(err))
		} else {
			logger.Info("Sentry initialized", zap.String("environment", environment))
			defer sentry.Flush(5 * time.Second)
		}
	}

	deps, err := initDependencies(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	if cfg.Auth.APISecret != "" && cfg.Auth.PrintAPIKey {
		key, err := auth.GenerateKey(cfg.Auth.APISecret)
		if err != nil {
			logger.Fatal("failed to generate API key", zap.Error(err))
		}
		logger.Info("generated API key", zap.String("api_key", key))
	}

	app := fiber.New(fiber.Config{
		AppName:               "Observation Tools",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		BodyLimit:             model.MaxBlobSize,
		StreamRequestBody:     true,
		DisableStartupMessage: cfg.IsProduction(),
		ErrorHandler:          errorHandler(logger),
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(middleware.Recover(logger))
	app.Use(middleware.Metrics())
	app.Use(middleware.CSRF())

	registerRoutes(app, cfg, deps)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("starting server",
			zap.String("addr", addr),
			zap.String("data_dir", cfg.Data.Dir))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
}

// errorHandler converts unhandled fiber errors into {"error": ...} JSON.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		if code >= 500 {
			logger.Error("request error",
				zap.Int("status", code),
				zap.String("error", err.Error()),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
			)
			sentry.CaptureException(err)
		}

		return c.Status(code).JSON(model.ErrorResponse{Error: message})
	}
}

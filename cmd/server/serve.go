package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"eav-backend/internal/config"
	"eav-backend/internal/engine"
	"eav-backend/internal/logger"
	"eav-backend/internal/metrics"
	"eav-backend/internal/session"
	"eav-backend/internal/store"
)

func serve(ctx context.Context, v *viper.Viper, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load config
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	// 2. Build logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	defer log.Sync() //nolint:errcheck
	log.Info("config loaded",
		zap.Int("port", cfg.Server.Port),
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("auto_connect", cfg.Database.AutoConnect))

	// 3. Validate schema names
	tables := store.TablesFromConfig(cfg.Schema)
	if err := tables.Validate(); err != nil {
		return errors.Wrap(err, "schema config")
	}

	// 4. Metrics
	var mx *metrics.Metrics
	if cfg.Metrics.Enabled {
		mx = metrics.New()
	}

	// 5. Session manager, optionally connected at startup
	sessions := session.NewManager(cfg.Database, tables, log, session.WithMetrics(mx))
	defer sessions.Close()
	if cfg.Database.AutoConnect {
		if _, err := sessions.ConnectConfigured(ctx); err != nil {
			log.Warn("auto connect failed, waiting for /connect", zap.Error(err))
		}
	}

	// 6. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          engine.ErrorHandler(log),
		DisableStartupMessage: true,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(engine.RequestID())
	app.Use(engine.RequestLogger(log))
	if mx != nil {
		app.Use(mx.Middleware())
		// 7. Metrics endpoint
		app.Get("/metrics", adaptor.HTTPHandler(mx.Handler()))
	}

	// 8. EAV routes
	engine.RegisterRoutes(app, engine.NewHandler(sessions, log))

	// 9. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

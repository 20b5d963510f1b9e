package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ivms/internal/app"
	"ivms/internal/config"
	"ivms/internal/handler"
	"ivms/internal/logger"
	"ivms/internal/router"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var checks []handler.Check
	if a.ML != nil {
		checks = append(checks, handler.Check{Name: "ml_service", Run: a.ML.Health})
	}
	if a.Redis != nil {
		checks = append(checks, handler.Check{Name: "redis", Run: func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}})
	}
	healthH := handler.NewHealthHandler(a.DB, zl.Named("health"), checks...)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Setup(healthH, zl.Named("http")),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Worker().Start(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		zl.Info("server: listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var listenErr error
	select {
	case <-ctx.Done():
		zl.Info("server: shutdown signal received")
	case listenErr = <-serveErr:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("server: http shutdown", zap.Error(err))
	}

	wg.Wait()
	if listenErr != nil {
		return fmt.Errorf("server failed: %w", listenErr)
	}
	zl.Info("server: stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"momo-intent-backend/internal/app"
	"momo-intent-backend/internal/config"
	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/server"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always happens.
func run() int {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()
	cfg.LogWarnings()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Errorf("failed to load inference service: %v", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warnf("close: %v", err)
		}
	}()

	s, err := server.NewServer(a.Service, server.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Health:        a.Health,
	})
	if err != nil {
		logger.Errorf("failed to create server: %v", err)
		return 1
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("momo server listening", "addr", srv.Addr, "variant", a.Service.Variant(), "run_id", a.Checkpoint.RunID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Errorf("server stopped: %v", err)
			return 1
		}
	case <-ctx.Done():
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("graceful shutdown failed: %v", err)
			return 1
		}
	}
	return 0
}

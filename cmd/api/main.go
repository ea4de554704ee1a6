package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"futsal/internal/api"
	"futsal/internal/config"
	"futsal/internal/logger"
	"futsal/internal/validation"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Проверяем, нужно ли запустить валидацию
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		runValidation(cfg)
		return
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           http.TimeoutHandler(server.GetRouter(), cfg.RequestTimeout, `{"error":"request timeout"}`),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Get().Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var pprofSrv *http.Server
	if cfg.PprofEnabled {
		pprofSrv = &http.Server{
			Addr:              "localhost:" + cfg.PprofPort,
			Handler:           http.DefaultServeMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Get().Info("Starting pprof server", "port", cfg.PprofPort)
			if err := pprofSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Get().Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if pprofSrv != nil {
			_ = pprofSrv.Shutdown(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Get().Error("Server stopped with error", "error", err)
	}

	if err := server.Cleanup(); err != nil {
		logger.Get().Error("Error during cleanup", "error", err)
	}

	logger.Get().Info("Server stopped")
}

func runValidation(cfg *config.Config) {
	baseURL := os.Getenv("VALIDATE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Port
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	validator := validation.NewSmokeValidator(baseURL, os.Getenv("SMOKE_USER"), os.Getenv("SMOKE_PASSWORD"), 1)
	if err := validator.ValidateAll(ctx); err != nil {
		logger.Fatal("Валидация не пройдена", "error", err)
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spacesedan/reelscore/config"
	"github.com/spacesedan/reelscore/internal/app"
	"github.com/spacesedan/reelscore/internal/logging"
	"github.com/spacesedan/reelscore/internal/server"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("[Main] Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	srv := server.NewServer(server.Deps{
		Reviews:      a.Reviews,
		Engine:       a.Engine,
		CacheHealthy: a.CacheHealthy,
	})

	if err := srv.Run(ctx, cfg.HTTPAddr); err != nil {
		slog.Error("[Main] Server stopped with error", slog.String("error", err.Error()))
		a.Close()
		os.Exit(1)
	}
	slog.Info("[Main] Server stopped")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"quizroom/config"
	"quizroom/internal/app"
	"quizroom/internal/logger"
	"syscall"
)

func main() {
	cfg := config.Load()
	log := logger.New("quizroom", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}
	defer a.Close(context.Background())

	log.WithFields(a.Fields()).Info("quizroom ready")
	log.Info("Endpoints:")
	log.Info("  WS   /v1/ws")
	log.Info("  GET  /v1/time")
	log.Info("  GET  /v1/rooms/{roomId}")
	log.Info("  GET  /v1/rooms/{roomId}/leaderboard")
	log.Info("  GET  /health, /metrics")

	if err := a.Run(ctx); err != nil {
		log.WithError(err).Error("server stopped with error")
		a.Close(context.Background())
		os.Exit(1)
	}
	log.Info("Server exited")
}

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/akvora/backend/config"
	"github.com/akvora/backend/internal/worker"
	"github.com/akvora/backend/pkg/queue"
	redisclient "github.com/akvora/backend/pkg/redis"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisConn, err := redisclient.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	defer func() { _ = redisConn.Close() }()

	var sender worker.Sender
	if cfg.Email.SMTPHost != "" {
		sender = worker.NewSMTPSender(cfg.Email)
		logger.Info("smtp sender configured", zap.String("host", cfg.Email.SMTPHost))
	} else {
		sender = worker.NewLogSender(logger)
		logger.Warn("SMTP_HOST not set, emails will be logged only")
	}

	w := worker.New(queue.NewQueue(redisConn.Client, logger), sender, logger)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}

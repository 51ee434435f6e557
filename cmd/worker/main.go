package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sekolahku/sekolahku/internal/app"
	"github.com/sekolahku/sekolahku/internal/approval"
	"github.com/sekolahku/sekolahku/internal/platform/cache"
	"github.com/sekolahku/sekolahku/internal/platform/db"
	"github.com/sekolahku/sekolahku/internal/shared"
	"github.com/sekolahku/sekolahku/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	mailer := jobs.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)

	// The sweep only needs the repository side of the approval module.
	approvalRepo := approval.NewRepository(pool)
	auditStore := shared.NewAuditStore(pool)
	approvalService := approval.NewService(approvalRepo, nil, nil, nil, nil, auditStore, logger, approval.Config{
		TokenTTL:     cfg.ApprovalTokenTTL,
		IssueLimit:   cfg.ApprovalIssueLimit,
		IssueWindow:  time.Hour,
		VerifyLimit:  cfg.ApprovalVerifyLimit,
		VerifyWindow: time.Minute,
		Retention:    cfg.ApprovalUsedRetention,
	})

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: jobs.NewSendEmailHandler(mailer, logger)},
			{Type: jobs.TaskTypeApprovalCleanup, Handler: jobs.NewApprovalCleanupHandler(approvalService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: jobs.NewApprovalCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

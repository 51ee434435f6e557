package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sekolahku/sekolahku/internal/admins"
	"github.com/sekolahku/sekolahku/internal/app"
	"github.com/sekolahku/sekolahku/internal/approval"
	"github.com/sekolahku/sekolahku/internal/audit"
	"github.com/sekolahku/sekolahku/internal/auth"
	"github.com/sekolahku/sekolahku/internal/perms"
	"github.com/sekolahku/sekolahku/internal/platform/cache"
	"github.com/sekolahku/sekolahku/internal/platform/db"
	"github.com/sekolahku/sekolahku/internal/schools"
	"github.com/sekolahku/sekolahku/internal/shared"
	"github.com/sekolahku/sekolahku/internal/tenant"
	"github.com/sekolahku/sekolahku/jobs"
)

// contactDirectory adapts the admins repository to the approval module's
// contact lookup.
type contactDirectory struct {
	repo *admins.Repository
}

func (d contactDirectory) AdminContact(ctx context.Context, schoolID, adminID string) (*approval.Contact, error) {
	admin, err := d.repo.GetInSchool(ctx, schoolID, adminID)
	if err != nil {
		return nil, err
	}
	return &approval.Contact{Email: admin.Email, Name: admin.Name}, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "sekolahku_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditStore := shared.NewAuditStore(dbpool)
	limiter := shared.NewRedisRateLimiter(redisClient, "ratelimit")

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewEmailNotifier(jobClient, logger)

	permsRepo := perms.NewRepository(dbpool)
	permsService := perms.NewService(permsRepo, auditStore, notifier, logger)
	if err := permsService.EnsureCatalog(ctx); err != nil {
		logger.Error("seed permission catalog", slog.Any("error", err))
		os.Exit(1)
	}
	permsHandler := perms.NewHandler(logger, permsService)
	permsGuard := perms.Middleware{Service: permsService, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, permsService, sessionManager, csrfManager)

	adminsRepo := admins.NewRepository(dbpool)
	adminsHandler := admins.NewHandler(logger, adminsRepo)

	schoolsRepo := schools.NewRepository(dbpool)
	schoolsHandler := schools.NewHandler(logger, schoolsRepo)

	approvalRepo := approval.NewRepository(dbpool)
	approvalService := approval.NewService(
		approvalRepo,
		contactDirectory{repo: adminsRepo},
		schoolsRepo,
		notifier,
		limiter,
		auditStore,
		logger,
		approval.Config{
			TokenTTL:     cfg.ApprovalTokenTTL,
			IssueLimit:   cfg.ApprovalIssueLimit,
			IssueWindow:  time.Hour,
			VerifyLimit:  cfg.ApprovalVerifyLimit,
			VerifyWindow: time.Minute,
			Retention:    cfg.ApprovalUsedRetention,
		},
	)
	approvalHandler := approval.NewHandler(logger, approvalService, schoolsRepo)

	auditHandler := audit.NewHandler(logger, auditStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AuthHandler:     authHandler,
		PermsHandler:    permsHandler,
		AdminsHandler:   adminsHandler,
		SchoolsHandler:  schoolsHandler,
		ApprovalHandler: approvalHandler,
		AuditHandler:    auditHandler,
		JobsHandler:     jobsHandler,
		PermsGuard:      permsGuard,
		TenantResolver:  tenant.Middleware{Logger: logger},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

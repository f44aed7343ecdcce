package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/bugsage-dev/bugsage/internal/api/http"
	"github.com/bugsage-dev/bugsage/internal/api/http/handlers"
	"github.com/bugsage-dev/bugsage/internal/auth"
	"github.com/bugsage-dev/bugsage/internal/events"
	"github.com/bugsage-dev/bugsage/internal/observability"
	"github.com/bugsage-dev/bugsage/internal/persistence"
	"github.com/bugsage-dev/bugsage/internal/repository"
	"github.com/bugsage-dev/bugsage/internal/service"
	"github.com/bugsage-dev/bugsage/internal/worker"
)

const (
	shutdownTimeout = 10 * time.Second
	// multipart overhead on top of the largest accepted upload
	bodyLimitSlack = 1 << 20
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, logger := rt.cfg, rt.logger

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, rt.pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger, metrics)

	pool := rt.pg.Pool
	bugRepo := repository.NewBugRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)

	sessions := auth.NewSessionManager(
		auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL()),
		auth.NewRedisSessionStore(redis.Client),
	)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo: userRepo,
		Sessions: sessions,
		Logger:   logger,
	})
	bugService := service.NewBugService(service.BugDependencies{
		BugRepo:        bugRepo,
		CommentRepo:    repository.NewCommentRepository(pool),
		AttachmentRepo: attachmentRepo,
		HistoryRepo:    repository.NewBugHistoryRepository(pool),
		ProjectRepo:    repository.NewProjectRepository(pool),
		UserRepo:       userRepo,
		Transactor:     repository.NewTransactor(pool),
		Dispatcher:     dispatcher,
		Config:         cfg.Bugs,
		Logger:         logger,
	})
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(pool), dispatcher, logger)
	worker.StartNotificationWorker(notificationService, logger)

	reportService := service.NewReportService(service.ReportDependencies{
		ReportRepo: repository.NewReportRepository(pool),
		BugRepo:    bugRepo,
		Cache:      persistence.NewJSONCache(redis.Client, "bugsage:reports:"),
		CacheTTL:   cfg.Reports.CacheTTL(),
		Logger:     logger,
	})

	app := httptransport.NewApp(httptransport.AppOptions{
		Name:           cfg.App.Name,
		BodyLimit:      int(cfg.Uploads.MaxBytes) + bodyLimitSlack,
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        metrics,
	}, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": rt.pg,
			"redis":    redis,
		}),
		Auth: handlers.NewAuthHandler(authService, handlers.CookieSettings{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
		}),
		Bugs:        handlers.NewBugsHandler(bugService),
		Attachments: handlers.NewAttachmentsHandler(service.NewAttachmentService(attachmentRepo, bugRepo, cfg.Uploads, logger)),
		Admin: handlers.NewAdminHandler(
			service.NewProjectService(repository.NewProjectRepository(pool), logger),
			service.NewUserService(userRepo, logger),
		),
		Dashboard:      handlers.NewDashboardHandler(reportService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: auth.NewAuthMiddleware(sessions, cfg.Auth.CookieName),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

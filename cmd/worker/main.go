package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-studio/internal/database"
	"github.com/hugh/go-studio/internal/notify"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/project"
	"github.com/hugh/go-studio/internal/reports"
	"github.com/hugh/go-studio/internal/search"
	"github.com/hugh/go-studio/internal/worker"
	"github.com/hugh/go-studio/pkg/config"
	"github.com/hugh/go-studio/pkg/queue"
	"github.com/hugh/go-studio/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting studio worker")

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var indexer search.Indexer
	if cfg.Search.Enabled() {
		indexer = search.NewTypesenseIndexer(cfg.Search.URL, cfg.Search.APIKey, util.Component(logger, "search"))
	} else {
		logger.Warn("TYPESENSE_URL not set, search indexing disabled")
		indexer = search.NewNopIndexer(util.Component(logger, "search"))
	}

	ensureCtx, cancelEnsure := context.WithTimeout(context.Background(), 30*time.Second)
	if err := indexer.EnsureCollections(ensureCtx); err != nil {
		logger.Error("failed to prepare search collections", "error", err)
	}
	cancelEnsure()

	var mailer notify.Mailer
	if cfg.Mail.SendGridKey != "" {
		mailer = notify.NewSendGridMailer(cfg.Mail.SendGridKey, cfg.Mail.FromName, cfg.Mail.FromEmail, util.Component(logger, "mail"))
	} else {
		logger.Warn("SENDGRID_API_KEY not set, mail is only logged")
		mailer = notify.NewLogMailer(util.Component(logger, "mail"))
	}

	// Starter copies start unindexed, so the worker's project service queues nothing.
	projects := project.NewService(db, policy.NewEvaluator(db), nil, util.Component(logger, "project"))

	handler := worker.NewHandler(
		db,
		projects,
		indexer,
		reports.NewService(db, util.Component(logger, "reports")),
		mailer,
		worker.Options{
			FrontendURL: cfg.Server.FrontendURL,
			Recipients:  notify.ParseRecipients(cfg.Reports.Recipients),
		},
		util.Component(logger, "worker"),
	)

	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	srv := queue.NewServer(&cfg.Redis, 10)

	scheduler := queue.NewScheduler(&cfg.Redis)
	entryID, err := worker.RegisterSchedules(scheduler, cfg.Reports.UsageCron)
	if err != nil {
		logger.Error("failed to register usage report schedule", "cron", cfg.Reports.UsageCron, "error", err)
		os.Exit(1)
	}
	next, _ := util.NextCronTime(cfg.Reports.UsageCron, time.Now())
	logger.Info("usage report scheduled", "cron", cfg.Reports.UsageCron, "entry", entryID, "next_run", next)

	if err := scheduler.Start(); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	<-ctx.Done()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}

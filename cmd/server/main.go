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
	"github.com/hugh/go-studio/internal/api"
	"github.com/hugh/go-studio/internal/auth"
	"github.com/hugh/go-studio/internal/database"
	"github.com/hugh/go-studio/internal/lrs"
	"github.com/hugh/go-studio/internal/organization"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/project"
	"github.com/hugh/go-studio/internal/publish"
	"github.com/hugh/go-studio/internal/publish/classroom"
	"github.com/hugh/go-studio/internal/tasks"
	"github.com/hugh/go-studio/internal/team"
	"github.com/hugh/go-studio/pkg/config"
	"github.com/hugh/go-studio/pkg/crypto"
	"github.com/hugh/go-studio/pkg/queue"
	"github.com/hugh/go-studio/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
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

	logger.Info("starting studio server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, background jobs disabled", "error", err)
		redisClient = nil
	}

	// A nil *asynq.Client must not reach the Enqueuer interface.
	var asynqClient *asynq.Client
	var enqueuer tasks.Enqueuer
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		enqueuer = asynqClient
	}
	dispatcher := tasks.NewDispatcher(enqueuer, util.Component(logger, "tasks"))

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - LMS tokens will be unreadable after restart")
	}

	authz := policy.NewEvaluator(db)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, dispatcher, util.Component(logger, "auth"))
	organizations := organization.NewService(db, authz, util.Component(logger, "organization"))
	teams := team.NewService(db, authz, dispatcher, util.Component(logger, "team"))
	projects := project.NewService(db, authz, dispatcher, util.Component(logger, "project"))

	var googleOAuth *oauth2.Config
	if cfg.Google.ClientID != "" {
		googleOAuth = classroom.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	}
	publisher := publish.NewService(db, projects, authz, encryptor, publish.Config{
		Timeout:     cfg.Publish.Timeout(),
		FrontendURL: cfg.Server.FrontendURL,
	}, googleOAuth, util.Component(logger, "publish"))

	var recorder lrs.Recorder
	if cfg.LRS.Enabled() {
		recorder = lrs.NewClient(cfg.LRS.Endpoint, cfg.LRS.Username, cfg.LRS.Password, cfg.Publish.Timeout(), util.Component(logger, "lrs"))
	} else {
		logger.Warn("LRS_ENDPOINT not set, xAPI statements are only logged")
		recorder = lrs.NewLogRecorder(util.Component(logger, "lrs"))
	}

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		Policy:         authz,
		Organizations:  organizations,
		Teams:          teams,
		Projects:       projects,
		Publisher:      publisher,
		Recorder:       recorder,
		Statements:     lrs.NewBuilder(cfg.Server.FrontendURL),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Publish.Timeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}

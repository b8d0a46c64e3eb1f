package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zapdispatch/zapdispatch/internal/api"
	"github.com/zapdispatch/zapdispatch/internal/assets"
	"github.com/zapdispatch/zapdispatch/internal/cache"
	"github.com/zapdispatch/zapdispatch/internal/config"
	"github.com/zapdispatch/zapdispatch/internal/evolution"
	"github.com/zapdispatch/zapdispatch/internal/logging"
	"github.com/zapdispatch/zapdispatch/internal/repo"
	"github.com/zapdispatch/zapdispatch/internal/runner"
	"github.com/zapdispatch/zapdispatch/internal/session"
)

func main() {
	_ = godotenv.Load()

	logger := logging.New(os.Getenv("DEBUG") == "true")
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadAll()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		logger.Fatal("failed to open postgres", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("failed to ping postgres", zap.Error(err))
	}

	migration, err := repo.Migrate(db)
	if err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}
	logger.Info("database ready",
		zap.Uint("schema_version", migration.Version),
		zap.Bool("changed", migration.Changed),
	)

	messages := repo.NewPostgresMessageRepo(db)
	blocked := repo.NewPostgresBlacklistRepo(db)
	configs := repo.NewPostgresConfigRepo(db)
	lists := repo.NewPostgresSavedListRepo(db)

	var (
		redisCache   *cache.RedisCache
		recorder     runner.SentRecorder
		lease        runner.RunLease
		sessionCache cache.SessionCache
	)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to ping redis", zap.Error(err))
		}
		redisCache = cache.NewRedisCache(rdb, cfg.Redis.TTL)
		recorder = redisCache
		lease = redisCache
		sessionCache = redisCache
	}

	gateway := evolution.NewClient(cfg.Evolution.BaseURL, cfg.Evolution.APIKey, cfg.Evolution.Timeout)
	sessions := session.NewController(gateway, logger)
	store := assets.NewStore(cfg.Assets.Dir, cfg.Assets.PublicBase, cfg.Assets.SigningKey, cfg.Assets.URLTTL)

	run := runner.New(
		messages, blocked, configs,
		gateway, sessions, store,
		recorder, lease,
		runner.DefaultOptions(),
		logger,
	)

	handler := api.NewHandler(
		run, messages, blocked, configs, lists,
		gateway, store, sessionCache, cfg.Pace, logger,
	)
	router := api.Router(handler, cfg.Auth.JWTSecret, cfg.Server.CORSOrigins)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweeper := assets.NewSweeper(messages, store, cfg.Assets.RetentionAge, cfg.Assets.SweepEvery, logger)
	go sweeper.Run(sweepCtx)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

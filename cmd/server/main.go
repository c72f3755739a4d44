package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movieclub/internal/account"
	"github.com/Clark-Hu/movieclub/internal/auth"
	"github.com/Clark-Hu/movieclub/internal/config"
	"github.com/Clark-Hu/movieclub/internal/events"
	httpserver "github.com/Clark-Hu/movieclub/internal/http"
	"github.com/Clark-Hu/movieclub/internal/logging"
	"github.com/Clark-Hu/movieclub/internal/repository"
	"github.com/Clark-Hu/movieclub/internal/review"
	"github.com/Clark-Hu/movieclub/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer st.Close()

	if cfg.MigrateOnStart {
		if err := st.Migrate(dbCtx); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
	}

	sessions := newSessionStore(ctx, cfg, logger)
	publisher := newPublisher(cfg, logger)
	defer func() { _ = publisher.Close() }()

	repo := repository.New(st)
	server := httpserver.New(httpserver.Deps{
		Config: cfg,
		Store:  st,
		Repo:   repo,
		Reviews: review.NewService(st, repo, review.Options{
			MaxAttempts: cfg.ReviewMaxAttempts,
			LockTimeout: time.Duration(cfg.ReviewLockTimeoutMS) * time.Millisecond,
			Logger:      logger,
			Publisher:   publisher,
		}),
		Accounts: account.NewService(repo.Users, cfg.BcryptCost, logger),
		Auth:     auth.NewAuthenticator(cfg.JWTSecret, time.Duration(cfg.SessionTTLMinutes)*time.Minute, sessions),
		Logger:   logger,
	})

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("graceful shutdown error", zap.Error(err))
	}
}

// newSessionStore prefers Redis and falls back to process memory, which does
// not survive restarts or span replicas.
func newSessionStore(ctx context.Context, cfg config.Config, logger *zap.Logger) auth.SessionStore {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, keeping sessions in memory")
		return auth.NewMemorySessions()
	}
	client, err := auth.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, keeping sessions in memory", zap.Error(err))
		return auth.NewMemorySessions()
	}
	return auth.NewRedisSessions(client)
}

func newPublisher(cfg config.Config, logger *zap.Logger) events.Publisher {
	if cfg.RabbitMQURL == "" {
		return events.NopPublisher{}
	}
	pub, err := events.DialAMQP(cfg.RabbitMQURL, logger.Named("events"))
	if err != nil {
		logger.Warn("rabbitmq unavailable, review events disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	return pub
}

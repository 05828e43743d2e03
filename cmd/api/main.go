package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/example/money-transfer/internal/api"
	"github.com/example/money-transfer/internal/archive"
	"github.com/example/money-transfer/internal/config"
	"github.com/example/money-transfer/internal/lock"
	"github.com/example/money-transfer/internal/security"
	"github.com/example/money-transfer/internal/storage"
	"github.com/example/money-transfer/internal/transfer"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	allowlist, err := security.ParseCIDRAllowlist(cfg.TrustedCIDRs)
	if err != nil {
		logger.Error("invalid TRUSTED_CIDRS", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := storage.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	if !cfg.Production() {
		if err := storage.SeedSampleAccounts(ctx, store, logger); err != nil {
			logger.Error("failed to seed sample accounts", "error", err)
			os.Exit(1)
		}
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	locker := lock.NewRedisLocker(redisClient, lock.Options{
		Expiry: cfg.LockExpiry,
	})

	recorder, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		logger.Error("failed to open transfer archive", "error", err)
		os.Exit(1)
	}
	defer recorder.Close()

	executor := transfer.NewExecutor(transfer.Dependencies{
		Store:    store,
		Locker:   locker,
		Recorder: recorder,
		Logger:   logger,
	}, transfer.Config{
		LockTimeout: cfg.LockTimeout,
		MinAmount:   cfg.MinAmount,
		MaxAmount:   cfg.MaxAmount,
	})

	rateLimiter := &security.RedisTokenBucket{
		Redis:      redisClient,
		Prefix:     "transfer_api",
		Capacity:   cfg.RateLimitCapacity,
		RefillRate: cfg.RateLimitRefill,
	}

	router, err := api.NewRouter(api.Dependencies{
		Logger:   logger,
		Engine:   executor,
		Accounts: store,
		Ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return redisClient.Ping(ctx).Err()
		},
		RateLimiter:  rateLimiter,
		IPAllowlist:  allowlist,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("transfer api listening", "addr", cfg.ListenAddr, "env", cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

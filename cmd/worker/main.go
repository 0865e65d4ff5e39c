package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"

	"github.com/bazar-commerce/backend-bazar/internal/config"
	"github.com/bazar-commerce/backend-bazar/internal/lock"
	"github.com/bazar-commerce/backend-bazar/internal/obs"
	"github.com/bazar-commerce/backend-bazar/internal/order"
	"github.com/bazar-commerce/backend-bazar/internal/store"
	"github.com/bazar-commerce/backend-bazar/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "bazar")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL, "bazar-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	locker := lock.Locker{R: rdb}
	sweeper := &sweep.Sweeper{
		Orders: &order.PGStore{Pool: pool},
		After:  cfg.SweepAfter,
	}

	asynqRedis := asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Username: redisOpts.Username,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(sweep.TaskExpireStaleOrders, func(taskCtx context.Context, task *asynq.Task) error {
		err := locker.WithLock(taskCtx, "lock:orders:sweep", cfg.SweepInterval, func(lockCtx context.Context) error {
			return sweeper.Handle(logger.WithContext(lockCtx), task)
		})
		if errors.Is(err, lock.ErrNotAcquired) {
			logger.Debug().Msg("sweep already running on another instance, skipping")
			return nil
		}
		return err
	})

	srv := asynq.NewServer(asynqRedis, asynq.Config{
		Concurrency: 2,
	})
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}

	scheduler := asynq.NewScheduler(asynqRedis, &asynq.SchedulerOpts{})
	spec := fmt.Sprintf("@every %s", cfg.SweepInterval.Truncate(time.Second))
	if _, err := scheduler.Register(spec, sweep.NewTask()); err != nil {
		logger.Fatal().Err(err).Msg("register sweep schedule")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}

	logger.Info().Str("interval", cfg.SweepInterval.String()).Msg("worker started")
	<-ctx.Done()

	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

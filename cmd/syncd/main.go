package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"channel_sync/internal/adapters/channels"
	"channel_sync/internal/adapters/fx"
	"channel_sync/internal/adapters/observability"
	"channel_sync/internal/adapters/redisx"
	"channel_sync/internal/app"
	"channel_sync/internal/shared"
	mysqlrepo "channel_sync/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.Serve()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Int("workers", cfg.Workers).
		Int("lease_batch", cfg.LeaseBatch).
		Int("fanout", cfg.PerHotelFanout).
		Msg("syncd starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.NewWithLease(db, cfg.LeaseWindow)
	cache := redisx.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	fxc, err := fx.New(cfg.FXBase, cfg.FXKey, cfg.FXRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("fx client init failed")
	}

	cfgs := app.NewConfigService(repo, cache, fxc, nil)
	maps := app.NewMappingService(repo, cache)
	health := app.NewHealthService(repo, cfgs)
	registry := channels.Default()

	host, _ := os.Hostname()
	disp := app.NewDispatcher(repo, cfgs, maps, health, registry, app.DispatcherConfig{
		Workers:    cfg.Workers,
		LeaseBatch: cfg.LeaseBatch,
		Fanout:     cfg.PerHotelFanout,
		WorkerID:   host,
		IdleSleep:  cfg.IdleSleep,
	})

	locker := cache.Locker()
	go promoteLoop(ctx, repo, locker, time.Duration(cfg.RetryScanSec)*time.Second)
	go reapLoop(ctx, repo, locker, cfg.RetentionDays)

	if err := disp.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("dispatcher failed")
	}
	log.Info().Msg("syncd stopped")
}

// promoteLoop moves due retryable events back into the pending set. The
// distributed lock keeps the scan single-flight across syncd replicas.
func promoteLoop(ctx context.Context, repo *mysqlrepo.Repo, locker *redislock.Client, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		lock, err := locker.Obtain(ctx, "lock:retry-scan", every, nil)
		if err != nil {
			if !errors.Is(err, redislock.ErrNotObtained) && ctx.Err() == nil {
				log.Warn().Err(err).Msg("retry-scan lock failed")
			}
			continue
		}
		n, err := repo.PromoteRetryable(ctx, 1000)
		if err != nil {
			log.Warn().Err(err).Msg("retry promotion failed")
		} else if n > 0 {
			log.Info().Int64("events", n).Msg("retryable events promoted")
		}
		_ = lock.Release(ctx)
	}
}

// reapLoop deletes terminal events past the retention window, once an hour.
func reapLoop(ctx context.Context, repo *mysqlrepo.Repo, locker *redislock.Client, retentionDays int) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		lock, err := locker.Obtain(ctx, "lock:event-reap", 10*time.Minute, nil)
		if err != nil {
			if !errors.Is(err, redislock.ErrNotObtained) && ctx.Err() == nil {
				log.Warn().Err(err).Msg("reap lock failed")
			}
			continue
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
		n, err := repo.Reap(ctx, cutoff)
		if err != nil {
			log.Warn().Err(err).Msg("event reap failed")
		} else if n > 0 {
			log.Info().Int64("events", n).Time("cutoff", cutoff).Msg("terminal events reaped")
		}
		_ = lock.Release(ctx)
	}
}

package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"channel_sync/internal/adapters/channels"
	"channel_sync/internal/adapters/fx"
	server "channel_sync/internal/adapters/http_server"
	"channel_sync/internal/adapters/observability"
	"channel_sync/internal/adapters/redisx"
	"channel_sync/internal/app"
	"channel_sync/internal/shared"
	mysqlrepo "channel_sync/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisx.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	fxc, err := fx.New(cfg.FXBase, cfg.FXKey, cfg.FXRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("fx client init failed")
	}

	cfgs := app.NewConfigService(repo, cache, fxc, nil)
	maps := app.NewMappingService(repo, cache)
	health := app.NewHealthService(repo, cfgs)
	producer := app.NewProducer(repo, cfg.SubmitPerSec, cfg.SubmitBurst)
	admin := app.NewAdminService(repo, producer)
	registry := channels.Default()

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Producer: producer,
		Admin:    admin,
		Cfgs:     cfgs,
		Maps:     maps,
		Health:   health,
		Adapters: registry,
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

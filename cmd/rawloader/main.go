package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"tg-medinsights/internal/adapters/repo"
	"tg-medinsights/internal/infra/config"
	"tg-medinsights/internal/infra/db"
	applog "tg-medinsights/internal/infra/log"
	"tg-medinsights/internal/infra/metrics"
	rawloadusecase "tg-medinsights/internal/usecase/rawload"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	if err := cfg.RequireDB(); err != nil {
		logger.Fatal().Err(err).Msg("rawloader: missing database credentials")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("rawloader: no database connection")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("rawloader: schema setup failed")
	}

	service := rawloadusecase.NewService(store, logger.With().Str("component", "rawload").Logger())
	inserted, err := service.Load(ctx, cfg.MessagesDir())
	if err != nil {
		logger.Fatal().Err(err).Int("inserted", inserted).Msg("rawloader: load failed")
	}
	logger.Info().Int("inserted", inserted).Msg("rawloader: done")
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-medinsights/internal/adapters/httpapi"
	"tg-medinsights/internal/adapters/repo"
	"tg-medinsights/internal/domain"
	"tg-medinsights/internal/infra/cache"
	"tg-medinsights/internal/infra/config"
	"tg-medinsights/internal/infra/db"
	"tg-medinsights/internal/infra/httpserver"
	applog "tg-medinsights/internal/infra/log"
	"tg-medinsights/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	if err := cfg.RequireDB(); err != nil {
		logger.Fatal().Err(err).Msg("api: missing database credentials")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: no database connection")
	}
	defer pool.Close()

	var reportCache domain.Cache
	if cfg.RedisAddr != "" {
		reportCache = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	server := httpserver.NewServer(logger.With().Str("component", "http").Logger())
	handlers := httpapi.NewHandlers(repo.NewPostgres(pool), reportCache, logger.With().Str("component", "api").Logger())
	handlers.Register(server.Router)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api: graceful shutdown failed")
		}
	}()

	if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Fatal().Err(err).Msg("api: server stopped")
	}
	logger.Info().Msg("api: stopped")
}

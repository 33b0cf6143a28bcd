package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tg-medinsights/internal/adapters/mtproto"
	"tg-medinsights/internal/adapters/staging"
	"tg-medinsights/internal/infra/config"
	applog "tg-medinsights/internal/infra/log"
	"tg-medinsights/internal/infra/metrics"
	scrapeusecase "tg-medinsights/internal/usecase/scrape"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	if err := cfg.RequireTelegram(); err != nil {
		logger.Fatal().Err(err).Msg("scraper: missing Telegram credentials")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	writer := staging.NewWriter(cfg.MessagesDir(), cfg.ImagesDir())
	connector := mtproto.NewConnector(mtproto.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		SessionFile: cfg.Telegram.SessionFile,
		MaxMessages: cfg.Data.MaxMessages,
	}, writer, logger.With().Str("component", "mtproto").Logger())

	service := scrapeusecase.NewService(connector, logger.With().Str("component", "scrape").Logger())
	stats, err := service.Run(ctx, cfg.Telegram.Channels, time.Now().UTC())
	if err != nil {
		logger.Fatal().Err(err).Msg("scraper: run failed")
	}
	logger.Info().
		Int("channels", stats.Channels).
		Int("messages", stats.Messages).
		Int("media", stats.Media).
		Msg("scraper: done")
}

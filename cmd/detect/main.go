package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"tg-medinsights/internal/adapters/repo"
	visionadapter "tg-medinsights/internal/adapters/vision"
	"tg-medinsights/internal/infra/config"
	"tg-medinsights/internal/infra/db"
	applog "tg-medinsights/internal/infra/log"
	"tg-medinsights/internal/infra/metrics"
	enrichusecase "tg-medinsights/internal/usecase/enrich"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	if err := cfg.RequireDB(); err != nil {
		logger.Fatal().Err(err).Msg("detect: missing database credentials")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("detect: no database connection")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("detect: schema setup failed")
	}

	detector, err := visionadapter.NewDetector(ctx, cfg.Vision.CredentialsFile, cfg.Vision.MaxResults, logger.With().Str("component", "vision").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("detect: detector setup failed")
	}
	defer detector.Close()

	service := enrichusecase.NewService(detector, logger.With().Str("component", "enrich").Logger())
	records, err := service.Analyze(ctx, cfg.ImagesDir())
	if err != nil {
		logger.Fatal().Err(err).Msg("detect: analysis failed")
	}
	if len(records) == 0 {
		logger.Info().Msg("detect: nothing to load")
		return
	}

	exportPath, err := enrichusecase.ExportCSV(cfg.ProcessedDir(), records)
	if err != nil {
		logger.Fatal().Err(err).Msg("detect: export failed")
	}
	logger.Info().Str("path", exportPath).Int("records", len(records)).Msg("detect: record set exported")

	if err := store.BulkInsertDetections(ctx, records); err != nil {
		logger.Fatal().Err(err).Msg("detect: bulk load failed")
	}
	logger.Info().Int("records", len(records)).Msg("detect: done")
}

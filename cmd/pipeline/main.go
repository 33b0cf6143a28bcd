package main

import (
	"context"
	"errors"
	"time"

	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tg-medinsights/internal/adapters/mtproto"
	"tg-medinsights/internal/adapters/notify"
	"tg-medinsights/internal/adapters/repo"
	"tg-medinsights/internal/adapters/staging"
	visionadapter "tg-medinsights/internal/adapters/vision"
	"tg-medinsights/internal/domain"
	"tg-medinsights/internal/infra/config"
	"tg-medinsights/internal/infra/db"
	applog "tg-medinsights/internal/infra/log"
	"tg-medinsights/internal/infra/metrics"
	"tg-medinsights/internal/infra/queue"
	enrichusecase "tg-medinsights/internal/usecase/enrich"
	rawloadusecase "tg-medinsights/internal/usecase/rawload"
	scrapeusecase "tg-medinsights/internal/usecase/scrape"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	if err := cfg.RequireDB(); err != nil {
		logger.Fatal().Err(err).Msg("pipeline: missing database credentials")
	}
	if err := cfg.RequireTelegram(); err != nil {
		logger.Fatal().Err(err).Msg("pipeline: missing Telegram credentials")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline: no database connection")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("pipeline: schema setup failed")
	}

	jobs, err := queue.FromConfig(cfg.Queue.Backend, cfg.RedisAddr, cfg.RabbitURL, cfg.Queue.Key)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline: queue setup failed")
	}

	detector, err := visionadapter.NewDetector(ctx, cfg.Vision.CredentialsFile, cfg.Vision.MaxResults, logger.With().Str("component", "vision").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline: detector setup failed")
	}
	defer detector.Close()

	notifier, err := notify.NewTelegram(cfg.Bot.Token, cfg.Bot.AdminChatID, logger.With().Str("component", "notify").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline: notifier setup failed")
	}

	writer := staging.NewWriter(cfg.MessagesDir(), cfg.ImagesDir())
	connector := mtproto.NewConnector(mtproto.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		SessionFile: cfg.Telegram.SessionFile,
		MaxMessages: cfg.Data.MaxMessages,
	}, writer, logger.With().Str("component", "mtproto").Logger())

	worker := &pipelineWorker{
		cfg:      cfg,
		log:      logger,
		jobs:     jobs,
		scrape:   scrapeusecase.NewService(connector, logger.With().Str("component", "scrape").Logger()),
		rawload:  rawloadusecase.NewService(store, logger.With().Str("component", "rawload").Logger()),
		enrich:   enrichusecase.NewService(detector, logger.With().Str("component", "enrich").Logger()),
		store:    store,
		notifier: notifier,
	}

	logger.Info().Msg("pipeline: worker started")
	worker.Run(ctx)
	logger.Info().Msg("pipeline: worker stopped")
}

type pipelineWorker struct {
	cfg      config.AppConfig
	log      zerolog.Logger
	jobs     domain.PipelineQueue
	scrape   *scrapeusecase.Service
	rawload  *rawloadusecase.Service
	enrich   *enrichusecase.Service
	store    *repo.Postgres
	notifier *notify.TelegramNotifier
}

func (w *pipelineWorker) Run(ctx context.Context) {
	for {
		job, err := w.jobs.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("pipeline: queue read failed")
			time.Sleep(time.Second)
			continue
		}
		w.runJob(ctx, job)
	}
}

// runJob executes the stages for one pipeline job: scrape first, then the
// raw-load and enrichment branches concurrently (both depend only on the
// staged tree). A failed stage is recorded and surfaced; retries, if any,
// belong to the operator.
func (w *pipelineWorker) runJob(ctx context.Context, job domain.PipelineJob) {
	jobLog := w.log.With().Str("job_id", job.ID).Str("cause", string(job.Cause)).Logger()
	jobLog.Info().Str("date", job.Date.Format("2006-01-02")).Msg("pipeline: job started")

	stats, err := w.scrape.Run(ctx, w.cfg.Telegram.Channels, job.Date)
	if err != nil {
		jobLog.Error().Err(err).Msg("pipeline: scrape stage failed")
		w.notifier.StageFailed("scrape", err)
		return
	}

	var (
		inserted   int
		detections int
	)
	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		n, err := w.rawload.Load(groupCtx, w.cfg.MessagesDir())
		metrics.ObserveStage("rawload", start, err)
		if err != nil {
			w.notifier.StageFailed("rawload", err)
			return err
		}
		inserted = n
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		records, err := w.enrich.Analyze(groupCtx, w.cfg.ImagesDir())
		if err == nil && len(records) > 0 {
			if _, exportErr := enrichusecase.ExportCSV(w.cfg.ProcessedDir(), records); exportErr != nil {
				jobLog.Warn().Err(exportErr).Msg("pipeline: detection export failed")
			}
			err = w.store.BulkInsertDetections(groupCtx, records)
		}
		metrics.ObserveStage("enrich", start, err)
		if err != nil {
			w.notifier.StageFailed("enrich", err)
			return err
		}
		detections = len(records)
		return nil
	})
	if err := g.Wait(); err != nil {
		jobLog.Error().Err(err).Msg("pipeline: job failed")
		return
	}

	jobLog.Info().
		Int("messages", stats.Messages).
		Int("inserted", inserted).
		Int("detections", detections).
		Msg("pipeline: job finished")
	w.notifier.PipelineFinished(job, stats, inserted, detections)
}

package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	MessagesScraped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_messages_total",
		Help: "Messages staged per channel",
	}, []string{"channel"})

	MediaDownloaded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_media_total",
		Help: "Media files downloaded per channel",
	}, []string{"channel"})

	ScrapeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_errors_total",
		Help: "Non-fatal errors during scraping",
	})

	RawRowsInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rawload_rows_inserted_total",
		Help: "New rows inserted into the raw store",
	})

	RawRowsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rawload_rows_skipped_total",
		Help: "Staged documents skipped as duplicates",
	})

	DetectionsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrich_detections_total",
		Help: "Detection records emitted by the enrichment runner",
	})

	ImagesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrich_images_failed_total",
		Help: "Images skipped because detection failed",
	})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Wall time of each pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage", "status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Duration of outbound network requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "status"})
)

// MustRegister registers the pipeline metrics.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		MessagesScraped,
		MediaDownloaded,
		ScrapeErrors,
		RawRowsInserted,
		RawRowsSkipped,
		DetectionsEmitted,
		ImagesFailed,
		StageDuration,
		NetworkRequestDuration,
	)
}

// ObserveNetworkRequest records one outbound request.
func ObserveNetworkRequest(component, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	NetworkRequestDuration.WithLabelValues(component, operation, status).Observe(time.Since(start).Seconds())
}

// ObserveStage records one pipeline stage run.
func ObserveStage(stage string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StageDuration.WithLabelValues(stage, status).Observe(time.Since(start).Seconds())
}

// StartServer runs the HTTP server with the /metrics endpoint.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

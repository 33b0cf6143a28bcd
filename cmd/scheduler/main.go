package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"tg-medinsights/internal/domain"
	"tg-medinsights/internal/infra/config"
	applog "tg-medinsights/internal/infra/log"
	"tg-medinsights/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	jobs, err := queue.FromConfig(cfg.Queue.Backend, cfg.RedisAddr, cfg.RabbitURL, cfg.Queue.Key)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: queue setup failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Int("hour", cfg.Data.ScheduleHour).Msg("scheduler: started")
	for {
		next := nextRun(time.Now().UTC(), cfg.Data.ScheduleHour)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info().Msg("scheduler: stopped")
			return
		case <-timer.C:
		}

		job := domain.PipelineJob{
			ID:          uuid.NewString(),
			Date:        next.Truncate(24 * time.Hour),
			Cause:       domain.PipelineCauseSchedule,
			RequestedAt: time.Now().UTC(),
		}
		if err := jobs.Enqueue(ctx, job); err != nil {
			logger.Error().Err(err).Str("job_id", job.ID).Msg("scheduler: enqueue failed")
			continue
		}
		logger.Info().Str("job_id", job.ID).Str("date", job.Date.Format("2006-01-02")).Msg("scheduler: pipeline job enqueued")
	}
}

// nextRun returns the next occurrence of the scheduled hour, strictly after
// now.
func nextRun(now time.Time, hour int) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !run.After(now) {
		run = run.Add(24 * time.Hour)
	}
	return run
}

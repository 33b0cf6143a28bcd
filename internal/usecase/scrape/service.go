package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tg-medinsights/internal/domain"
	"tg-medinsights/internal/infra/metrics"
)

// ErrNoChannels is returned when the run has nothing to scrape.
var ErrNoChannels = errors.New("scrape: no channels configured")

// Service runs the scrape stage.
type Service struct {
	scraper domain.ChannelScraper
	log     zerolog.Logger
}

// NewService creates the scrape stage service.
func NewService(scraper domain.ChannelScraper, log zerolog.Logger) *Service {
	return &Service{scraper: scraper, log: log}
}

// Run scrapes every configured channel for the given date. The date fixes
// the staging partition; messages land under {date}/{channel}/{id}.
func (s *Service) Run(ctx context.Context, channels []string, scrapeDate time.Time) (domain.ScrapeStats, error) {
	if len(channels) == 0 {
		return domain.ScrapeStats{}, ErrNoChannels
	}

	s.log.Info().Int("channels", len(channels)).Str("date", scrapeDate.Format("2006-01-02")).Msg("scrape: starting")
	start := time.Now()
	stats, err := s.scraper.Scrape(ctx, channels, scrapeDate)
	metrics.ObserveStage("scrape", start, err)
	if err != nil {
		return stats, err
	}
	s.log.Info().
		Int("channels", stats.Channels).
		Int("messages", stats.Messages).
		Int("media", stats.Media).
		Msg("scrape: finished")
	return stats, nil
}

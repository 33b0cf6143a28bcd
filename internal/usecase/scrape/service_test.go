package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-medinsights/internal/domain"
)

type stubScraper struct {
	stats       domain.ScrapeStats
	err         error
	gotChannels []string
	gotDate     time.Time
	called      bool
}

func (s *stubScraper) Scrape(_ context.Context, channels []string, scrapeDate time.Time) (domain.ScrapeStats, error) {
	s.called = true
	s.gotChannels = channels
	s.gotDate = scrapeDate
	return s.stats, s.err
}

func TestRunRejectsEmptyChannelList(t *testing.T) {
	scraper := &stubScraper{}
	service := NewService(scraper, zerolog.Nop())

	_, err := service.Run(context.Background(), nil, time.Now())
	if !errors.Is(err, ErrNoChannels) {
		t.Fatalf("expected ErrNoChannels, got %v", err)
	}
	if scraper.called {
		t.Fatalf("scraper must not be invoked without channels")
	}
}

func TestRunPassesThrough(t *testing.T) {
	scraper := &stubScraper{stats: domain.ScrapeStats{Channels: 2, Messages: 40, Media: 7}}
	service := NewService(scraper, zerolog.Nop())

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	stats, err := service.Run(context.Background(), []string{"medchannel", "pharma_news"}, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Messages != 40 || stats.Media != 7 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(scraper.gotChannels) != 2 || !scraper.gotDate.Equal(date) {
		t.Fatalf("scraper received wrong arguments: %v %v", scraper.gotChannels, scraper.gotDate)
	}
}

func TestRunPropagatesScraperFailure(t *testing.T) {
	wantErr := errors.New("not authorized")
	scraper := &stubScraper{err: wantErr}
	service := NewService(scraper, zerolog.Nop())

	_, err := service.Run(context.Background(), []string{"medchannel"}, time.Now())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected scraper error propagated, got %v", err)
	}
}

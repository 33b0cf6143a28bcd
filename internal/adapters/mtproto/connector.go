package mtproto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"tg-medinsights/internal/domain"
	"tg-medinsights/internal/infra/metrics"
)

// ErrNotAuthorized is returned when the session file does not hold an
// authorized session. This aborts the run before any channel is touched.
var ErrNotAuthorized = errors.New("mtproto: session is not authorized")

const historyBatchSize = 100

// Config carries the MTProto credentials and limits.
type Config struct {
	APIID       int
	APIHash     string
	SessionFile string
	// MaxMessages bounds the per-channel history depth; 0 means the full
	// history.
	MaxMessages int
}

// Connector scrapes channel histories through gotd and hands every message
// to the staging sink.
type Connector struct {
	cfg  Config
	sink domain.MessageSink
	log  zerolog.Logger
}

// NewConnector creates the source connector.
func NewConnector(cfg Config, sink domain.MessageSink, log zerolog.Logger) *Connector {
	return &Connector{cfg: cfg, sink: sink, log: log}
}

// Scrape authenticates once from the session file and processes every
// channel in order. Channel-level failures are logged and skipped; an
// unauthorized session is fatal.
func (c *Connector) Scrape(ctx context.Context, channels []string, scrapeDate time.Time) (domain.ScrapeStats, error) {
	client := telegram.NewClient(c.cfg.APIID, c.cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.cfg.SessionFile},
	})

	var stats domain.ScrapeStats
	err := client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return ErrNotAuthorized
		}

		api := client.API()
		dl := downloader.NewDownloader()
		for _, alias := range channels {
			messages, media, err := c.scrapeChannel(ctx, api, dl, alias, scrapeDate)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				metrics.ScrapeErrors.Inc()
				c.log.Error().Err(err).Str("channel", alias).Msg("scraper: channel failed, continuing")
				continue
			}
			stats.Channels++
			stats.Messages += messages
			stats.Media += media
			c.log.Info().Str("channel", alias).Int("messages", messages).Int("media", media).Msg("scraper: channel finished")
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, nil
}

func (c *Connector) scrapeChannel(ctx context.Context, api *tg.Client, dl *downloader.Downloader, alias string, scrapeDate time.Time) (int, int, error) {
	channel, err := resolveChannel(ctx, api, alias)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve %s: %w", alias, err)
	}
	channelName := channelStorageName(channel)
	peer := &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}

	var (
		messages int
		media    int
		offsetID int
	)
	for {
		limit := historyBatchSize
		if c.cfg.MaxMessages > 0 {
			remaining := c.cfg.MaxMessages - messages
			if remaining <= 0 {
				break
			}
			if remaining < limit {
				limit = remaining
			}
		}

		start := time.Now()
		res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    limit,
		})
		metrics.ObserveNetworkRequest("telegram", "messages_get_history", start, err)
		if err != nil {
			return messages, media, fmt.Errorf("get history: %w", err)
		}
		modified, ok := res.AsModified()
		if !ok {
			break
		}
		batch := modified.GetMessages()
		if len(batch) == 0 {
			break
		}

		minID := offsetID
		for _, raw := range batch {
			msg, ok := raw.(*tg.Message)
			if !ok {
				continue
			}
			if minID == 0 || msg.ID < minID {
				minID = msg.ID
			}
			downloaded := c.stageMessage(ctx, api, dl, msg, channel.ID, channelName, scrapeDate)
			messages++
			if downloaded {
				media++
			}
			metrics.MessagesScraped.WithLabelValues(channelName).Inc()
		}
		if minID == offsetID || minID == 0 {
			break
		}
		offsetID = minID
	}
	return messages, media, nil
}

// stageMessage builds the ScrapedMessage, downloads image media when
// present, and writes the document. Media failures leave the file fields
// null; the message is staged regardless. Reports whether media was
// downloaded.
func (c *Connector) stageMessage(ctx context.Context, api *tg.Client, dl *downloader.Downloader, msg *tg.Message, channelID int64, channelName string, scrapeDate time.Time) bool {
	scraped := domain.ScrapedMessage{
		ID:          int64(msg.ID),
		Date:        time.Unix(int64(msg.Date), 0).UTC(),
		Message:     msg.Message,
		ChannelID:   channelID,
		ChannelName: channelName,
	}
	if views, ok := msg.GetViews(); ok {
		scraped.Views = &views
	}

	downloaded := false
	if m, ok := msg.GetMedia(); ok {
		scraped.HasMedia = true
		scraped.MediaType = classifyMedia(m)
		if loc, ext, ok := imageLocation(m); ok {
			name, path, err := c.sink.MediaPath(scrapeDate, channelName, scraped.ID, scraped.MediaType, ext)
			if err == nil {
				start := time.Now()
				_, err = dl.Download(api, loc).ToPath(ctx, path)
				metrics.ObserveNetworkRequest("telegram", "download_media", start, err)
			}
			if err != nil {
				metrics.ScrapeErrors.Inc()
				c.log.Warn().Err(err).Str("channel", channelName).Int64("message", scraped.ID).Msg("scraper: media download failed")
			} else {
				scraped.FileName = &name
				scraped.FilePath = &path
				downloaded = true
				metrics.MediaDownloaded.WithLabelValues(channelName).Inc()
			}
		}
	}

	if err := c.sink.WriteMessage(scraped, scrapeDate); err != nil {
		metrics.ScrapeErrors.Inc()
		c.log.Warn().Err(err).Str("channel", channelName).Int64("message", scraped.ID).Msg("scraper: staging write failed")
	}
	return downloaded
}

func resolveChannel(ctx context.Context, api *tg.Client, alias string) (*tg.Channel, error) {
	username := NormalizeAlias(alias)
	if username == "" {
		return nil, fmt.Errorf("empty channel alias %q", alias)
	}
	start := time.Now()
	peer, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	metrics.ObserveNetworkRequest("telegram", "resolve_username", start, err)
	if err != nil {
		return nil, err
	}
	for _, chat := range peer.Chats {
		if channel, ok := chat.(*tg.Channel); ok {
			return channel, nil
		}
	}
	return nil, fmt.Errorf("%s does not resolve to a channel", username)
}

var _ domain.ChannelScraper = (*Connector)(nil)

package notify

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-medinsights/internal/domain"
	"tg-medinsights/internal/infra/metrics"
)

// TelegramNotifier reports pipeline outcomes to an ops chat. A nil
// notifier is valid and silently drops everything, so callers never need
// to branch on configuration.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegram creates the notifier, or nil when no token is configured.
func NewTelegram(token string, chatID int64, log zerolog.Logger) (*TelegramNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, log: log}, nil
}

// StageFailed reports a failed pipeline stage.
func (n *TelegramNotifier) StageFailed(stage string, err error) {
	if n == nil {
		return
	}
	n.send(fmt.Sprintf("pipeline stage %q failed: %v", stage, err))
}

// PipelineFinished reports a completed run.
func (n *TelegramNotifier) PipelineFinished(job domain.PipelineJob, stats domain.ScrapeStats, inserted, detections int) {
	if n == nil {
		return
	}
	n.send(fmt.Sprintf(
		"pipeline %s (%s) finished: %d channels, %d messages staged, %d media, %d raw rows inserted, %d detections",
		job.ID, job.Date.Format("2006-01-02"), stats.Channels, stats.Messages, stats.Media, inserted, detections,
	))
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	start := time.Now()
	_, err := n.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", start, err)
	if err != nil {
		n.log.Error().Err(err).Msg("notify: failed to send message")
	}
}

var _ domain.Notifier = (*TelegramNotifier)(nil)

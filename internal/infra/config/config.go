package config

import (
	"errors"
	"log"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig carries every setting the pipeline binaries need. It is built
// once at process start and passed down by parameter.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		APIID       int    `envconfig:"TG_API_ID"`
		APIHash     string `envconfig:"TG_API_HASH"`
		Phone       string `envconfig:"TG_PHONE"`
		SessionFile string `envconfig:"TG_SESSION_FILE" default:"telegram_scraper_session.json"`
		// Channels is the comma-separated list of channel aliases or
		// t.me URLs to scrape.
		Channels []string `envconfig:"TG_CHANNELS"`
	} `envconfig:""`

	Bot struct {
		Token       string `envconfig:"TG_BOT_TOKEN"`
		AdminChatID int64  `envconfig:"TG_ADMIN_CHAT_ID"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Queue struct {
		// Backend selects "redis" or "rabbitmq".
		Backend string `envconfig:"PIPELINE_QUEUE_BACKEND" default:"redis"`
		Key     string `envconfig:"PIPELINE_QUEUE_KEY" default:"pipeline_jobs"`
	} `envconfig:""`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Data struct {
		Dir          string `envconfig:"DATA_DIR" default:"data"`
		MaxMessages  int    `envconfig:"SCRAPE_MAX_MESSAGES" default:"0"`
		ScheduleHour int    `envconfig:"PIPELINE_HOUR" default:"2"`
	} `envconfig:""`

	Vision struct {
		CredentialsFile string `envconfig:"VISION_CREDENTIALS_FILE"`
		MaxResults      int    `envconfig:"VISION_MAX_RESULTS" default:"20"`
	} `envconfig:""`
}

// MessagesDir is the staging root for message documents.
func (c AppConfig) MessagesDir() string {
	return filepath.Join(c.Data.Dir, "raw", "telegram_messages")
}

// ImagesDir is the staging root for media files.
func (c AppConfig) ImagesDir() string {
	return filepath.Join(c.Data.Dir, "raw", "telegram_images")
}

// ProcessedDir holds exported detection record sets.
func (c AppConfig) ProcessedDir() string {
	return filepath.Join(c.Data.Dir, "processed")
}

// RequireDB fails when database credentials are absent. Every stage that
// touches Postgres calls this first.
func (c AppConfig) RequireDB() error {
	if c.PGDSN == "" {
		return errors.New("PG_DSN is not set")
	}
	return nil
}

// RequireTelegram fails when MTProto credentials are absent. Only the
// scraper stage needs them.
func (c AppConfig) RequireTelegram() error {
	if c.Telegram.APIID == 0 || c.Telegram.APIHash == "" {
		return errors.New("TG_API_ID and TG_API_HASH are not set")
	}
	return nil
}

// Load reads the configuration from the environment.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

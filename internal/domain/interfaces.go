package domain

import (
	"context"
	"time"
)

// ChannelScraper pulls a channel's history and hands messages to a sink.
type ChannelScraper interface {
	// Scrape authenticates once, then processes every channel in order.
	// A channel that cannot be resolved is logged and skipped; an
	// authorization failure aborts before any channel is touched.
	Scrape(ctx context.Context, channels []string, scrapeDate time.Time) (ScrapeStats, error)
}

// MessageSink receives scraped messages and allocates media paths. The
// staging writer is the production implementation.
type MessageSink interface {
	// WriteMessage persists one message document under the
	// (date, channel, id) partition, overwriting any previous document
	// for the same key.
	WriteMessage(msg ScrapedMessage, scrapeDate time.Time) error
	// MediaPath creates the media partition directory and returns the
	// file name and absolute path for the message's media blob.
	MediaPath(scrapeDate time.Time, channel string, msgID int64, kind MediaKind, ext string) (name, path string, err error)
}

// RawStore persists staged documents. The select-then-insert dedup is not
// serializable: callers must guarantee a single active loader run.
type RawStore interface {
	// InsertDateBatch inserts the documents for one scrape date inside a
	// single transaction, skipping documents whose
	// (message id, channel, date) tuple already exists. Returns the
	// number of newly inserted rows.
	InsertDateBatch(ctx context.Context, scrapeDate time.Time, docs []RawDocument) (int, error)
}

// ObjectDetector is the opaque detection model: image path in, detected
// (class, confidence) list out.
type ObjectDetector interface {
	Detect(ctx context.Context, imagePath string) ([]Detection, error)
}

// DetectionStore bulk-loads detection records all-or-nothing.
type DetectionStore interface {
	BulkInsertDetections(ctx context.Context, records []DetectionRecord) error
}

// InsightsRepo serves the read-only analytical endpoints.
type InsightsRepo interface {
	TopKeywords(ctx context.Context, keywords []string, limit int) ([]KeywordCount, error)
	ChannelActivity(ctx context.Context, channelName string) ([]ChannelActivity, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]MessageHit, error)
	DetectionsForMessage(ctx context.Context, messageID string) ([]DetectionRecord, error)
}

// Cache is a simple TTL byte cache for report responses.
type Cache interface {
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}

// Notifier reports pipeline stage outcomes to an operator.
type Notifier interface {
	StageFailed(stage string, err error)
	PipelineFinished(job PipelineJob, stats ScrapeStats, inserted int, detections int)
}

package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-medinsights/internal/domain"
)

// Postgres implements the store interfaces on pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.RawStore       = (*Postgres)(nil)
	_ domain.DetectionStore = (*Postgres)(nil)
	_ domain.InsightsRepo   = (*Postgres)(nil)
)

// NewPostgres creates the database adapter.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the raw and detections tables when absent. Schema
// migration tooling is out of scope; this mirrors what the warehouse
// transform expects to find.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS raw_telegram_messages (
			id BIGSERIAL PRIMARY KEY,
			message_data JSONB,
			channel_name VARCHAR(255),
			scraped_date DATE,
			ingestion_timestamp TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS image_detections (
			message_id VARCHAR(64) NOT NULL,
			detected_object_class TEXT NOT NULL,
			confidence_score DOUBLE PRECISION NOT NULL,
			detection_timestamp TIMESTAMPTZ NOT NULL,
			source_message_id BIGINT
		)`,
	}
	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InsertDateBatch inserts one scrape date's documents in a single
// transaction, skipping documents that already exist for their
// (message id, channel, date) tuple. The check-then-insert pair is not
// serializable; a single active loader run is a documented precondition.
func (p *Postgres) InsertDateBatch(ctx context.Context, scrapeDate time.Time, docs []domain.RawDocument) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, doc := range docs {
		var exists int
		err := tx.QueryRow(ctx, `
SELECT 1 FROM raw_telegram_messages
WHERE (message_data->>'id')::BIGINT = $1
  AND channel_name = $2
  AND scraped_date = $3
`, doc.MessageID, doc.ChannelName, scrapeDate).Scan(&exists)
		switch {
		case err == nil:
			continue
		case errors.Is(err, pgx.ErrNoRows):
			// Not present yet.
		default:
			return 0, fmt.Errorf("check message %d: %w", doc.MessageID, err)
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO raw_telegram_messages (message_data, channel_name, scraped_date)
VALUES ($1, $2, $3)
`, doc.Payload, doc.ChannelName, scrapeDate); err != nil {
			return 0, fmt.Errorf("insert message %d: %w", doc.MessageID, err)
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit date %s: %w", scrapeDate.Format("2006-01-02"), err)
	}
	return inserted, nil
}

// BulkInsertDetections loads the record set through the Postgres COPY
// protocol inside one transaction. Any row failure rolls back the whole
// batch; detections have no natural sub-batch boundary.
func (p *Postgres) BulkInsertDetections(ctx context.Context, records []domain.DetectionRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"image_detections"},
		[]string{"message_id", "detected_object_class", "confidence_score", "detection_timestamp", "source_message_id"},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			var sourceID any
			if r.SourceMessageID != 0 {
				sourceID = r.SourceMessageID
			}
			return []any{r.MessageID, r.DetectedClass, r.Confidence, r.DetectedAt, sourceID}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy detections: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit detections: %w", err)
	}
	return nil
}

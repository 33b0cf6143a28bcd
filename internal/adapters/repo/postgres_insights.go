package repo

import (
	"context"
	"fmt"
	"sort"

	"tg-medinsights/internal/domain"
)

// The report queries read the raw store this repository owns; the dbt-built
// warehouse marts belong to the external transform job.

// TopKeywords counts message-body occurrences for each tracked keyword and
// returns the most frequent ones.
func (p *Postgres) TopKeywords(ctx context.Context, keywords []string, limit int) ([]domain.KeywordCount, error) {
	results := make([]domain.KeywordCount, 0, len(keywords))
	for _, keyword := range keywords {
		var count int64
		err := p.pool.QueryRow(ctx, `
SELECT count(*) FROM raw_telegram_messages
WHERE message_data->>'message' ILIKE '%' || $1 || '%'
`, keyword).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("count keyword %q: %w", keyword, err)
		}
		if count > 0 {
			results = append(results, domain.KeywordCount{Keyword: keyword, Count: count})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Count > results[j].Count })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ChannelActivity returns daily message counts and view totals for one
// channel.
func (p *Postgres) ChannelActivity(ctx context.Context, channelName string) ([]domain.ChannelActivity, error) {
	rows, err := p.pool.Query(ctx, `
SELECT scraped_date,
       count(*),
       COALESCE(sum((message_data->>'views')::BIGINT), 0)
FROM raw_telegram_messages
WHERE channel_name = $1
GROUP BY scraped_date
ORDER BY scraped_date
`, channelName)
	if err != nil {
		return nil, fmt.Errorf("channel activity: %w", err)
	}
	defer rows.Close()

	var activity []domain.ChannelActivity
	for rows.Next() {
		var row domain.ChannelActivity
		if err := rows.Scan(&row.Date, &row.MessageCount, &row.TotalViews); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		activity = append(activity, row)
	}
	return activity, rows.Err()
}

// SearchMessages finds messages containing the query, newest first.
func (p *Postgres) SearchMessages(ctx context.Context, query string, limit int) ([]domain.MessageHit, error) {
	rows, err := p.pool.Query(ctx, `
SELECT message_data->>'id',
       channel_name,
       COALESCE(message_data->>'message', ''),
       COALESCE((message_data->>'views')::BIGINT, 0),
       (message_data->>'date')::TIMESTAMPTZ
FROM raw_telegram_messages
WHERE message_data->>'message' ILIKE '%' || $1 || '%'
ORDER BY (message_data->>'date')::TIMESTAMPTZ DESC
LIMIT $2
`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	var hits []domain.MessageHit
	for rows.Next() {
		var hit domain.MessageHit
		if err := rows.Scan(&hit.MessageID, &hit.ChannelName, &hit.Text, &hit.Views, &hit.PostedAt); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// DetectionsForMessage returns the detections recorded for one derived
// message id.
func (p *Postgres) DetectionsForMessage(ctx context.Context, messageID string) ([]domain.DetectionRecord, error) {
	rows, err := p.pool.Query(ctx, `
SELECT message_id,
       COALESCE(source_message_id, 0),
       detected_object_class,
       confidence_score,
       detection_timestamp
FROM image_detections
WHERE message_id = $1
ORDER BY confidence_score DESC
`, messageID)
	if err != nil {
		return nil, fmt.Errorf("detections for message: %w", err)
	}
	defer rows.Close()

	var records []domain.DetectionRecord
	for rows.Next() {
		var r domain.DetectionRecord
		if err := rows.Scan(&r.MessageID, &r.SourceMessageID, &r.DetectedClass, &r.Confidence, &r.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan detection row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

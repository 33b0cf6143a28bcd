package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-medinsights/internal/domain"
)

// RedisPipelineQueue implements the pipeline job queue on Redis lists.
type RedisPipelineQueue struct {
	client *redis.Client
	key    string
}

// NewRedisPipelineQueue creates a queue under the given key.
func NewRedisPipelineQueue(client *redis.Client, key string) *RedisPipelineQueue {
	return &RedisPipelineQueue{client: client, key: key}
}

// Enqueue publishes a job.
func (q *RedisPipelineQueue) Enqueue(ctx context.Context, job domain.PipelineJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop blocks until a job arrives.
func (q *RedisPipelineQueue) Pop(ctx context.Context) (domain.PipelineJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.PipelineJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.PipelineJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.PipelineJob{}, err
		}
		if len(res) != 2 {
			return domain.PipelineJob{}, errors.New("redis queue: unexpected response")
		}
		var job domain.PipelineJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.PipelineJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}

var _ domain.PipelineQueue = (*RedisPipelineQueue)(nil)

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tg-medinsights/internal/domain"
	"tg-medinsights/internal/infra/metrics"
)

// RabbitPipelineQueue implements the pipeline job queue over AMQP.
type RabbitPipelineQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

// NewRabbitPipelineQueue connects and declares the durable queue.
func NewRabbitPipelineQueue(amqpURL, queue string) (*RabbitPipelineQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitPipelineQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Close releases the connection.
func (q *RabbitPipelineQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}

// Enqueue publishes a job as a persistent message.
func (q *RabbitPipelineQueue) Enqueue(ctx context.Context, job domain.PipelineJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop blocks until a job arrives and acknowledges it.
func (q *RabbitPipelineQueue) Pop(ctx context.Context) (domain.PipelineJob, error) {
	if q.deliveries == nil {
		deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.PipelineJob{}, fmt.Errorf("consume: %w", err)
		}
		q.deliveries = deliveries
	}
	for {
		select {
		case <-ctx.Done():
			return domain.PipelineJob{}, ctx.Err()
		case delivery, ok := <-q.deliveries:
			if !ok {
				return domain.PipelineJob{}, errors.New("rabbitmq queue: consumer channel closed")
			}
			var job domain.PipelineJob
			if err := json.Unmarshal(delivery.Body, &job); err != nil {
				_ = delivery.Nack(false, false)
				return domain.PipelineJob{}, fmt.Errorf("decode job: %w", err)
			}
			if err := delivery.Ack(false); err != nil {
				return domain.PipelineJob{}, fmt.Errorf("ack job: %w", err)
			}
			return job, nil
		}
	}
}

var _ domain.PipelineQueue = (*RabbitPipelineQueue)(nil)

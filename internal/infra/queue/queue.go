package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"tg-medinsights/internal/domain"
)

// FromConfig builds the configured pipeline queue backend.
func FromConfig(backend, redisAddr, rabbitURL, key string) (domain.PipelineQueue, error) {
	switch backend {
	case "redis", "":
		if redisAddr == "" {
			return nil, fmt.Errorf("redis queue selected but REDIS_ADDR is not set")
		}
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		return NewRedisPipelineQueue(client, key), nil
	case "rabbitmq":
		return NewRabbitPipelineQueue(rabbitURL, key)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", backend)
	}
}

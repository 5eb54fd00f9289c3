package queue

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"school_grading/backend/internal/metrics"
	"school_grading/backend/internal/shared"
)

const (
	pollTimeout = 5 * time.Second
	// pause after a Redis failure before polling again
	errorBackoff = time.Second
)

type Consumer struct {
	client  *redis.Client
	queue   string
	dlq     string
	backoff time.Duration
	log     zerolog.Logger
}

// MessageHandler processes one raw job. Errors send the job to the DLQ.
type MessageHandler func(ctx context.Context, data []byte) error

func NewConsumer(redisClient *RedisClient) *Consumer {
	return &Consumer{
		client:  redisClient.Client(),
		queue:   redisClient.cfg.RankQueue,
		dlq:     redisClient.DLQ(),
		backoff: errorBackoff,
		log:     shared.Logger("queue"),
	}
}

// Consume blocks on the rank queue until ctx is cancelled
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := c.client.BRPop(ctx, pollTimeout, c.queue).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue // poll timeout or shutting down
			}
			c.log.Error().Err(err).Str("queue", c.queue).Dur("retry_in", c.backoff).Msg("failed to consume message")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		if depth, err := c.client.LLen(ctx, c.queue).Result(); err == nil {
			metrics.QueueDepth.Set(float64(depth))
		}

		message := []byte(result[1])
		if err := handler(ctx, message); err != nil {
			c.log.Error().Err(err).Str("queue", c.queue).Msg("failed to process message")
			c.DeadLetter(ctx, message)
		}
	}
}

// DeadLetter moves a message to the DLQ. Handlers that finish a job
// asynchronously call it themselves.
func (c *Consumer) DeadLetter(ctx context.Context, message []byte) {
	// the job may fail because ctx was cancelled; keep it anyway
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pollTimeout)
	defer cancel()
	if err := c.client.LPush(pushCtx, c.dlq, message).Err(); err != nil {
		c.log.Error().Err(err).Str("dlq", c.dlq).Msg("failed to move message to DLQ")
	}
}

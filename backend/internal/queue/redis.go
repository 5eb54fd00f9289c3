// Package queue carries cohort ranking jobs from the API to the rank-worker
// over Redis lists.
package queue

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"school_grading/backend/internal/shared"
)

// RedisClient wraps the go-redis client together with the queue names
type RedisClient struct {
	client *redis.Client
	cfg    shared.RedisConfig
}

// NewRedisClient connects and pings Redis
func NewRedisClient(cfg shared.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, "failed to ping Redis")
	}

	return &RedisClient{client: rdb, cfg: cfg}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// DLQ is the dead-letter list of the rank queue
func (r *RedisClient) DLQ() string {
	return r.cfg.RankQueue + r.cfg.DLQSuffix
}

// Depth returns the number of pending jobs
func (r *RedisClient) Depth(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.cfg.RankQueue).Result()
}

package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"school_grading/backend/internal/shared"
)

// RankJob asks the worker to rank a whole (class, year) cohort
type RankJob struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id" validate:"required"`
	Year        string    `json:"year" validate:"required,yearname"`
	RequestedBy string    `json:"requested_by,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Decode parses and validates a queued job
func Decode(data []byte) (RankJob, error) {
	var job RankJob
	if err := json.Unmarshal(data, &job); err != nil {
		return job, shared.Invalidf("malformed rank job: %v", err)
	}
	if err := shared.ValidateStruct(job); err != nil {
		return job, err
	}
	return job, nil
}

type Producer struct {
	client *redis.Client
	queue  string
}

func NewProducer(redisClient *RedisClient) *Producer {
	return &Producer{client: redisClient.Client(), queue: redisClient.cfg.RankQueue}
}

// EnqueueRankJob validates the job, stamps its id and time and pushes it
func (p *Producer) EnqueueRankJob(ctx context.Context, job RankJob) (RankJob, error) {
	if err := shared.ValidateStruct(job); err != nil {
		return job, err
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.EnqueuedAt = time.Now().UTC()

	data, err := json.Marshal(job)
	if err != nil {
		return job, err
	}
	if err := p.client.LPush(ctx, p.queue, data).Err(); err != nil {
		return job, errors.Wrapf(err, "enqueue rank job for class %s", job.ClassID)
	}
	return job, nil
}

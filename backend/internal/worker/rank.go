package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"school_grading/backend/internal/metrics"
	"school_grading/backend/internal/queue"
	"school_grading/backend/internal/ranking"
	"school_grading/backend/internal/shared"
)

// CohortRanker is the part of ranking.Engine the worker needs
type CohortRanker interface {
	RankCohort(ctx context.Context, classID, year string) (*ranking.CohortRanks, error)
}

// RankProcessor turns queued messages into cohort ranking jobs on the pool
type RankProcessor struct {
	ranker     CohortRanker
	pool       *WorkerPool
	deadLetter func(ctx context.Context, message []byte)
	log        zerolog.Logger
}

// NewRankProcessor wires a ranker to a pool. deadLetter receives the raw
// message of every job that fails after it was accepted.
func NewRankProcessor(ranker CohortRanker, pool *WorkerPool, deadLetter func(ctx context.Context, message []byte)) *RankProcessor {
	return &RankProcessor{ranker: ranker, pool: pool, deadLetter: deadLetter, log: shared.Logger("rank-worker")}
}

// Handle is a queue.MessageHandler. Malformed messages fail here and go to
// the DLQ through the consumer; valid jobs run on the pool.
func (p *RankProcessor) Handle(ctx context.Context, data []byte) error {
	job, err := queue.Decode(data)
	if err != nil {
		metrics.RankJobs.WithLabelValues("invalid").Inc()
		return err
	}

	message := append([]byte(nil), data...)
	return p.pool.Submit(ctx, func(ctx context.Context) error {
		err := p.Run(ctx, job)
		if err != nil && p.deadLetter != nil {
			p.deadLetter(ctx, message)
		}
		return err
	})
}

// Run ranks one cohort
func (p *RankProcessor) Run(ctx context.Context, job queue.RankJob) error {
	start := time.Now()
	out, err := p.ranker.RankCohort(ctx, job.ClassID, job.Year)
	metrics.RankJobs.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Str("class_id", job.ClassID).Str("year", job.Year).Msg("rank job failed")
		return err
	}

	p.log.Info().
		Str("job_id", job.ID).
		Str("class_id", job.ClassID).
		Str("year", job.Year).
		Int("records", out.Records).
		Dur("took", time.Since(start)).
		Msg("rank job done")
	return nil
}

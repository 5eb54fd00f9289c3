// Package worker runs queued cohort ranking jobs on a fixed pool of
// goroutines.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"school_grading/backend/internal/shared"
)

// Job is one unit of work run by the pool
type Job func(ctx context.Context) error

type WorkerPool struct {
	workerCount int
	jobChan     chan Job
	wg          sync.WaitGroup
	log         zerolog.Logger
}

func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &WorkerPool{
		workerCount: workerCount,
		jobChan:     make(chan Job, workerCount*2),
		log:         shared.Logger("worker"),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	wp.log.Info().Int("worker_count", wp.workerCount).Msg("starting worker pool")

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop closes the job channel and waits for queued jobs to drain. Submit
// must not be called after Stop.
func (wp *WorkerPool) Stop() {
	wp.log.Info().Msg("stopping worker pool")
	close(wp.jobChan)
	wp.wg.Wait()
	wp.log.Info().Msg("worker pool stopped")
}

// Submit queues a job, blocking while the buffer is full. It fails only
// when ctx is done first.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	select {
	case wp.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	log := wp.log.With().Int("worker_id", id).Logger()
	log.Debug().Msg("worker started")

	for job := range wp.jobChan {
		if err := job(ctx); err != nil {
			log.Error().Err(err).Msg("job execution failed")
		}
	}
	log.Debug().Msg("worker stopping due to closed job channel")
}

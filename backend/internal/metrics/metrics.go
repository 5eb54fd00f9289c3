// Package metrics holds the Prometheus collectors of the grading binaries
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	MarkUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grading_mark_updates_total",
		Help: "Mark updates applied to academic year records",
	}, []string{"kind", "result"})

	RankingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grading_ranking_duration_seconds",
		Help:    "Time to rank and persist a cohort",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"scope"})

	RankedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grading_ranked_records_total",
		Help: "Records persisted by ranking runs",
	}, []string{"scope", "result"})

	Assignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grading_assignments_total",
		Help: "Per-student outcomes of class assignment",
	}, []string{"mode", "outcome"})

	RankJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grading_rank_jobs_total",
		Help: "Ranking jobs handled by the worker",
	}, []string{"result"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grading_rank_queue_depth",
		Help: "Pending ranking jobs last observed on the queue",
	})
)

// ObserveRanking records the duration of a ranking run started at start
func ObserveRanking(scope string, start time.Time) {
	RankingDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
}

// Result maps an error to a result label
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

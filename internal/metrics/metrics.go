// Package metrics exposes the Prometheus counters and gauges spec.md §6
// names, built with promauto the way the teacher's sibling services in
// the pack wire client_golang: package-level collectors registered once
// at import time, read by the gateway's /metrics handler.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/optimus-oj/judger/internal/broker"
	"github.com/optimus-oj/judger/internal/model"
)

var (
	// JobsSubmittedTotal counts every job accepted by POST /execute,
	// regardless of its eventual outcome, labeled by language.
	JobsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optimus_jobs_submitted_total",
		Help: "Total number of jobs accepted for execution.",
	}, []string{"language"})

	// JobsCompletedTotal counts jobs whose overall status reached
	// Completed (every test passed). Kept as a separate counter from
	// JobsFailedTotal rather than one counter with a status label, so a
	// dashboard's top-line success rate is a single division with no
	// label-matching query.
	JobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optimus_jobs_completed_total",
		Help: "Total number of jobs that completed with every test passing.",
	})

	// JobsFailedTotal counts jobs whose overall status reached Failed or
	// TimedOut.
	JobsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optimus_jobs_failed_total",
		Help: "Total number of jobs that finished with at least one non-passing test, or timed out.",
	})

	// QueueDepth reports the number of jobs waiting in each language's
	// queue, refreshed on every /metrics scrape rather than pushed, since
	// the gateway has no standing subscription to queue mutations.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "optimus_queue_depth",
		Help: "Number of jobs currently queued, per language.",
	}, []string{"language"})
)

// RecordSubmission increments the submitted counter for a job's language.
func RecordSubmission(language model.Language) {
	JobsSubmittedTotal.WithLabelValues(string(language)).Inc()
}

// RecordOutcome increments the appropriate terminal-status counter for a
// finished job.
func RecordOutcome(status model.JobStatus) {
	switch status {
	case model.JobCompleted:
		JobsCompletedTotal.Inc()
	case model.JobFailed, model.JobTimedOut:
		JobsFailedTotal.Inc()
	}
}

// RefreshQueueDepths polls the broker for every known language's queue
// length and updates the QueueDepth gauge vector. Called from the
// /metrics handler immediately before the Prometheus registry is
// rendered, so depth never drifts stale between scrapes.
func RefreshQueueDepths(ctx context.Context, br *broker.Broker, logger *zap.Logger) {
	for _, lang := range model.AllLanguages() {
		depth, err := br.QueueDepth(ctx, string(lang))
		if err != nil {
			logger.Warn("failed to refresh queue depth metric", zap.String("language", string(lang)), zap.Error(err))
			continue
		}
		QueueDepth.WithLabelValues(string(lang)).Set(float64(depth))
	}
}

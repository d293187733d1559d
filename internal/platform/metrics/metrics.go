// Package metrics registers the Prometheus instruments for the submission
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SubmissionsTotal   *prometheus.CounterVec
	SubmissionDuration prometheus.Histogram
	ChainErrorsTotal   prometheus.Counter
	EditsBlockedTotal  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verifactu_submissions_total",
			Help: "Submission outcomes by record category and final state.",
		}, []string{"category", "state"}),
		SubmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "verifactu_submission_duration_seconds",
			Help:    "Wall time of the build-chain-submit pipeline.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		ChainErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "verifactu_chain_integrity_errors_total",
			Help: "Chain link attempts that found a corrupt lane head.",
		}),
		EditsBlockedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "verifactu_edits_blocked_total",
			Help: "Invoice edits blocked by the register equivalence check.",
		}),
	}
}

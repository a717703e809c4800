// Package observability holds the Prometheus metrics and error reporting shared by the jobs.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "garmin_to_notion"

var (
	recordsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Upstream records handled, grouped by job and outcome.",
	}, []string{"job", "outcome"})

	indexRowsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "index_rows_total",
		Help:      "Sink rows read while building lookup indexes.",
	}, []string{"job"})

	runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "duration_seconds",
		Help:      "Wall time of each job run.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	}, []string{"job", "status"})

	lastSuccessGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful run per job.",
	}, []string{"job"})
)

func init() {
	prometheus.MustRegister(recordsCounter, indexRowsCounter, runDuration, lastSuccessGauge)
}

// RecordOutcome counts one upstream record.
func RecordOutcome(job, outcome string) {
	recordsCounter.WithLabelValues(job, outcome).Inc()
}

// RecordIndexRows counts rows read into an index.
func RecordIndexRows(job string, rows int) {
	if rows <= 0 {
		return
	}
	indexRowsCounter.WithLabelValues(job).Add(float64(rows))
}

// ObserveRun records the duration of a run started at started and, when err is nil, moves the
// job's success watermark.
func ObserveRun(job string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	runDuration.WithLabelValues(job, status).Observe(time.Since(started).Seconds())
	if err == nil {
		lastSuccessGauge.WithLabelValues(job).Set(float64(time.Now().Unix()))
	}
}

// Push sends the default registry to a Pushgateway under the given job name. An empty url is a
// no-op.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, namespace).
		Grouping("job_name", job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

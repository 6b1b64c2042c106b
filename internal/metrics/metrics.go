package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
// Process names are deliberately not used as label values: an open host
// runs an unbounded set of executables and would blow up cardinality.
var (
	regOK atomic.Bool

	samples = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "procwatch",
			Subsystem: "monitor",
			Name:      "samples_total",
			Help:      "Number of completed sampling ticks.",
		},
	)
	snapshotErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "procwatch",
			Subsystem: "monitor",
			Name:      "snapshot_errors_total",
			Help:      "Number of sampling ticks skipped because process enumeration failed.",
		},
	)
	lifecycleStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "procwatch",
			Subsystem: "lifecycle",
			Name:      "starts_total",
			Help:      "Number of detected process starts.",
		},
	)
	lifecycleEnds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "procwatch",
			Subsystem: "lifecycle",
			Name:      "ends_total",
			Help:      "Number of detected process ends (completed lifespans).",
		},
	)
	openIntervals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "procwatch",
			Subsystem: "lifecycle",
			Name:      "open_intervals",
			Help:      "Processes currently believed to be running.",
		},
	)
	historyRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "procwatch",
			Subsystem: "history",
			Name:      "records",
			Help:      "Completed lifespans held in the history log (persisted and pending).",
		},
	)
	flushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procwatch",
			Subsystem: "history",
			Name:      "flushes_total",
			Help:      "Number of flush attempts by result.",
		}, []string{"result"},
	)
	flushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "procwatch",
			Subsystem: "history",
			Name:      "flush_duration_seconds",
			Help:      "Observed duration of history flushes.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{samples, snapshotErrors, lifecycleStarts, lifecycleEnds, openIntervals, historyRecords, flushes, flushDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncSample() {
	if regOK.Load() {
		samples.Inc()
	}
}
func IncSnapshotError() {
	if regOK.Load() {
		snapshotErrors.Inc()
	}
}
func AddStarts(n int) {
	if regOK.Load() && n > 0 {
		lifecycleStarts.Add(float64(n))
	}
}
func AddEnds(n int) {
	if regOK.Load() && n > 0 {
		lifecycleEnds.Add(float64(n))
	}
}
func SetOpenIntervals(n int) {
	if regOK.Load() {
		openIntervals.Set(float64(n))
	}
}
func SetHistoryRecords(n int) {
	if regOK.Load() {
		historyRecords.Set(float64(n))
	}
}
func IncFlush(ok bool) {
	if regOK.Load() {
		result := "success"
		if !ok {
			result = "failure"
		}
		flushes.WithLabelValues(result).Inc()
	}
}
func ObserveFlushDuration(seconds float64) {
	if regOK.Load() {
		flushDuration.Observe(seconds)
	}
}

// Package metrics records how long basil spends locating page objects and
// waiting on conditions.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every basil collector. It is separate from the default
// registry so embedding programs keep control of their own.
var Registry = prometheus.NewRegistry()

var (
	pageObjectInit = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basil_page_object_init_seconds",
			Help:    "Time spent initializing page objects, by phase",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		},
		[]string{"page", "phase"}, // phase: "token", "elements"
	)
	waitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basil_wait_seconds",
			Help:    "Time spent polling wait conditions",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"outcome"}, // "satisfied", "timeout", "error"
	)
	waitTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basil_wait_timeouts_total",
			Help: "Wait conditions that timed out",
		},
		[]string{"condition"},
	)
	locateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basil_locate_total",
			Help: "Element lookups sent to the driver",
		},
		[]string{"strategy"},
	)

	waitedNanos atomic.Int64
)

func init() {
	Registry.MustRegister(pageObjectInit)
	Registry.MustRegister(waitDuration)
	Registry.MustRegister(waitTimeouts)
	Registry.MustRegister(locateTotal)
}

// ObservePageObject records one initialization phase of a page object.
func ObservePageObject(page, phase string, d time.Duration) {
	pageObjectInit.WithLabelValues(page, phase).Observe(d.Seconds())
}

// Wait outcomes.
const (
	OutcomeSatisfied = "satisfied"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

// ObserveWait records a finished wait and adds it to the total waited time.
func ObserveWait(condition, outcome string, d time.Duration) {
	waitDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if outcome == OutcomeTimeout {
		waitTimeouts.WithLabelValues(condition).Inc()
	}
	waitedNanos.Add(int64(d))
}

// ObserveLocate counts a driver lookup.
func ObserveLocate(strategy string) {
	locateTotal.WithLabelValues(strategy).Inc()
}

// TotalWaited returns the time spent in waits since the last reset.
func TotalWaited() time.Duration {
	return time.Duration(waitedNanos.Load())
}

// ResetTotalWaited zeroes the waited time and returns the previous value.
func ResetTotalWaited() time.Duration {
	return time.Duration(waitedNanos.Swap(0))
}

// Handler serves the basil registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

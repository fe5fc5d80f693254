// Package metrics provides Prometheus instrumentation for tankobon.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/five82/tankobon/internal/polling"
)

// Poller state metrics, labelled by controller name.
var (
	PollInterval = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tankobon_poll_interval_seconds",
		Help: "Interval currently governing the poll timer.",
	}, []string{"poller"})

	PollConsecutiveErrors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tankobon_poll_consecutive_errors",
		Help: "Number of back-to-back failed polls.",
	}, []string{"poller"})

	PollingActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tankobon_polling_active",
		Help: "1 while the poll timer is armed.",
	}, []string{"poller"})

	PollingPaused = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tankobon_polling_paused",
		Help: "1 while polling is enabled but stopped, e.g. by the circuit breaker.",
	}, []string{"poller"})
)

// Fetch metrics.
var (
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tankobon_fetch_total",
		Help: "Total number of fetches by outcome.",
	}, []string{"poller", "result"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tankobon_fetch_duration_seconds",
		Help:    "Fetch duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"poller"})
)

// Source is a controller whose state can be observed.
type Source interface {
	Name() string
	Subscribe() (<-chan polling.State, func())
}

// Observe records a controller state.
func Observe(name string, s polling.State) {
	PollInterval.WithLabelValues(name).Set(s.CurrentInterval.Seconds())
	PollConsecutiveErrors.WithLabelValues(name).Set(float64(s.ConsecutiveErrors))
	PollingActive.WithLabelValues(name).Set(boolGauge(s.IsPolling))
	PollingPaused.WithLabelValues(name).Set(boolGauge(s.IsPaused()))
}

// RecordFetch records one fetch outcome. Cancelled fetches are counted
// separately from failures.
func RecordFetch(name string, started time.Time, err error) {
	FetchDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
	FetchTotal.WithLabelValues(name, result(err)).Inc()
}

// Bind mirrors every state published by src into the gauges until ctx is
// done or src is closed.
func Bind(ctx context.Context, src Source) {
	states, cancel := src.Subscribe()
	defer cancel()
	name := src.Name()
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			Observe(name, s)
		}
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

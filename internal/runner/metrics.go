package runner

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the batch runner.
type Metrics struct {
	GroupsTotal  *prometheus.CounterVec
	ItemsTotal   *prometheus.CounterVec
	ItemDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers Prometheus metrics for the runner.
//
// Registration happens once per process; later calls return the same
// instance.
//
// Metrics:
//   - runner_groups_total{mode} - Count of barrier groups executed
//   - runner_items_total{mode,result} - Count of items executed by result
//   - runner_item_duration_seconds{mode} - Histogram of item execution times
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			GroupsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "runner_groups_total",
					Help: "Total number of barrier groups executed",
				},
				[]string{"mode"}, // "parallel" or "sequence"
			),

			ItemsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "runner_items_total",
					Help: "Total number of items executed",
				},
				[]string{"mode", "result"}, // result: "success" or "failure"
			),

			ItemDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "runner_item_duration_seconds",
					Help:    "Duration of item execution in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
				},
				[]string{"mode"},
			),
		}
	})

	return globalMetrics
}

func (m *Metrics) recordGroup(mode string) {
	if m == nil {
		return
	}
	m.GroupsTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) recordItem(mode string, failed bool, seconds float64) {
	if m == nil {
		return
	}
	result := "success"
	if failed {
		result = "failure"
	}
	m.ItemsTotal.WithLabelValues(mode, result).Inc()
	m.ItemDuration.WithLabelValues(mode).Observe(seconds)
}

package scheduler

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the scheduler cycle metrics.
type Metrics struct {
	CyclesTotal   *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec
	InvoicesTotal *prometheus.CounterVec
	LockFailures  prometheus.Counter
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// DefaultMetrics registers the scheduler metrics on the default registry once.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetrics constructs the metrics and registers them when registerer is set.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicewallet_scheduler_cycles_total",
				Help: "Scheduler network cycles by kind and outcome",
			},
			[]string{"kind", "network", "outcome"},
		),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoicewallet_scheduler_cycle_duration_seconds",
			Help:    "Scheduler network cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		InvoicesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicewallet_invoices_total",
				Help: "Invoices moved by the scheduler by disposition",
			},
			[]string{"network", "disposition"},
		),
		LockFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoicewallet_scheduler_lock_failures_total",
			Help: "Cycle lock acquisitions that failed with an error",
		}),
	}
	if registerer != nil {
		registerer.MustRegister(
			m.CyclesTotal,
			m.CycleDuration,
			m.InvoicesTotal,
			m.LockFailures,
		)
	}
	return m
}

func (m *Metrics) observeCycle(kind, network, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(kind, network, outcome).Inc()
	m.CycleDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) addInvoices(network, disposition string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.InvoicesTotal.WithLabelValues(network, disposition).Add(float64(count))
}

func (m *Metrics) lockFailed() {
	if m == nil {
		return
	}
	m.LockFailures.Inc()
}

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/cachesim/mem/cache"
)

// Metrics holds the Prometheus metrics exported by the monitor.
type Metrics struct {
	Accesses     *prometheus.CounterVec
	Transactions *prometheus.CounterVec
	MissRate     *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	accesses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cachesim_accesses_total",
		Help: "Replayed accesses by classification",
	}, []string{"simulator", "classification"})

	transactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cachesim_transactions_total",
		Help: "Memory transactions issued by the cache",
	}, []string{"simulator", "kind"})

	missRate := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cachesim_miss_rate_percent",
		Help: "Miss rate at the end of the last run",
	}, []string{"simulator"})

	reg.MustRegister(accesses, transactions, missRate)

	return &Metrics{
		Accesses:     accesses,
		Transactions: transactions,
		MissRate:     missRate,
	}
}

// ObserveAccess counts one classified access.
func (m *Metrics) ObserveAccess(simulator string, e cache.AccessEvent) {
	m.Accesses.
		WithLabelValues(simulator, e.Classification.String()).
		Inc()

	if e.Classification.IsMiss() {
		m.Transactions.WithLabelValues(simulator, "read").Inc()
	}

	if e.Writeback {
		m.Transactions.WithLabelValues(simulator, "write").Inc()
	}
}

// ObserveRunEnd records the final counters of a run.
func (m *Metrics) ObserveRunEnd(simulator string, s cache.Stats) {
	m.MissRate.WithLabelValues(simulator).Set(s.MissRate())
}

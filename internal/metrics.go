package internal

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks migration throughput. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Tables        *prometheus.CounterVec
	Rows          prometheus.Counter
	Batches       prometheus.Counter
	TableDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Tables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catmigrate",
			Name:      "tables_total",
			Help:      "Tables migrated, by final status.",
		}, []string{"status"}),
		Rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catmigrate",
			Name:      "rows_copied_total",
			Help:      "Rows inserted and committed into target tables.",
		}),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catmigrate",
			Name:      "batches_committed_total",
			Help:      "Batches committed into target tables.",
		}),
		TableDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "catmigrate",
			Name:      "table_duration_seconds",
			Help:      "Wall time spent migrating one table.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Tables, m.Rows, m.Batches, m.TableDuration)
	}
	return m
}

func (m *Metrics) ObserveBatch(rows int) {
	if m == nil {
		return
	}
	m.Batches.Inc()
	m.Rows.Add(float64(rows))
}

func (m *Metrics) ObserveTable(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Tables.WithLabelValues(status).Inc()
	m.TableDuration.Observe(d.Seconds())
}

package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the aggregation counters. A single Metrics value can be
// shared by aggregators feeding the same logical result.
type Metrics struct {
	batches      prometheus.Counter
	records      prometheus.Counter
	recordErrors prometheus.Counter
	distinctKeys prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aggregate_batches_total",
			Help: "Number of batches folded into the running totals.",
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aggregate_records_total",
			Help: "Number of records folded into the running totals.",
		}),
		recordErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aggregate_record_errors_total",
			Help: "Number of malformed records rejected during folding.",
		}),
		distinctKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aggregate_distinct_keys",
			Help: "Number of distinct keys in the running totals.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.batches, m.records, m.recordErrors, m.distinctKeys)
	}
	return m
}

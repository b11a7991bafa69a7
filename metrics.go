package tabula

import "github.com/prometheus/client_golang/prometheus"

var OpsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tabula",
	Subsystem: "doc",
	Name:      "ops_applied_total",
	Help:      "Ops applied to replicas, local and remote, by op type",
}, []string{"op"})

var BatchFlushes = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "tabula",
	Subsystem: "doc",
	Name:      "batch_flushes_total",
	Help:      "Write batches committed to the store",
})

var ListRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "tabula",
	Subsystem: "doc",
	Name:      "list_rebuilds_total",
	Help:      "List indexes loaded from the store on a cache miss",
})

var SnapshotBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "tabula",
	Subsystem: "doc",
	Name:      "snapshot_bytes",
	Help:      "Snapshot sizes by mode and direction",
	Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 10),
}, []string{"mode", "dir"})

// Metrics lists the package collectors for registration.
func Metrics() []prometheus.Collector {
	return []prometheus.Collector{OpsApplied, BatchFlushes, ListRebuilds, SnapshotBytes}
}

package table

import "github.com/prometheus/client_golang/prometheus"

var ImportSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "tabula",
	Subsystem: "table",
	Name:      "import_seconds",
	Help:      "Time to import a whole table, by schema",
	Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
}, []string{"schema"})

var CellsImported = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tabula",
	Subsystem: "table",
	Name:      "cells_imported_total",
	Help:      "Cells written by imports, by schema",
}, []string{"schema"})

func Metrics() []prometheus.Collector {
	return []prometheus.Collector{ImportSeconds, CellsImported}
}

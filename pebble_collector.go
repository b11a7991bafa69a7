package tabula

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

// PebbleCollector exports store internals of one replica.
type PebbleCollector struct {
	db *pebble.DB

	compactionCount         *prometheus.Desc
	compactionEstimatedDebt *prometheus.Desc
	compactionInProgress    *prometheus.Desc

	memtableSize  *prometheus.Desc
	memtableCount *prometheus.Desc

	walFiles        *prometheus.Desc
	walSize         *prometheus.Desc
	walBytesIn      *prometheus.Desc
	walBytesWritten *prometheus.Desc
}

func NewPebbleCollector(d *Doc) *PebbleCollector {
	labels := prometheus.Labels{"replica": d.Name()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("tabula_pebble_"+name, help, nil, labels)
	}
	return &PebbleCollector{
		db: d.Database(),

		compactionCount:         desc("compaction_count_total", "Total number of compactions performed"),
		compactionEstimatedDebt: desc("compaction_estimated_debt_bytes", "Estimated number of bytes that need to be compacted to reach a stable state"),
		compactionInProgress:    desc("compaction_in_progress_bytes", "Bytes being compacted right now"),

		memtableSize:  desc("memtable_size_bytes", "Bytes allocated by memtables"),
		memtableCount: desc("memtable_count", "Number of memtables"),

		walFiles:        desc("wal_files", "Number of live WAL files"),
		walSize:         desc("wal_size_bytes", "Size of live WAL data in bytes"),
		walBytesIn:      desc("wal_bytes_in_total", "Total logical bytes written to the WAL"),
		walBytesWritten: desc("wal_bytes_written_total", "Total physical bytes written to the WAL"),
	}
}

func (pc *PebbleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.compactionCount
	ch <- pc.compactionEstimatedDebt
	ch <- pc.compactionInProgress

	ch <- pc.memtableSize
	ch <- pc.memtableCount

	ch <- pc.walFiles
	ch <- pc.walSize
	ch <- pc.walBytesIn
	ch <- pc.walBytesWritten
}

func (pc *PebbleCollector) Collect(ch chan<- prometheus.Metric) {
	metrics := pc.db.Metrics()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}

	counter(pc.compactionCount, float64(metrics.Compact.Count))
	gauge(pc.compactionEstimatedDebt, float64(metrics.Compact.EstimatedDebt))
	gauge(pc.compactionInProgress, float64(metrics.Compact.InProgressBytes))

	gauge(pc.memtableSize, float64(metrics.MemTable.Size))
	gauge(pc.memtableCount, float64(metrics.MemTable.Count))

	gauge(pc.walFiles, float64(metrics.WAL.Files))
	gauge(pc.walSize, float64(metrics.WAL.Size))
	counter(pc.walBytesIn, float64(metrics.WAL.BytesIn))
	counter(pc.walBytesWritten, float64(metrics.WAL.BytesWritten))
}

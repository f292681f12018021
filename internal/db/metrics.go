package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Vacuum results.
const (
	vacuumDone    = "done"
	vacuumSkipped = "skipped"
	vacuumFailed  = "failed"
)

var (
	maintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_ledger_maintenance_runs_total",
			Help: "Ledger maintenance runs by outcome",
		},
		[]string{"outcome"},
	)

	maintenanceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "solindexor_ledger_maintenance_duration_seconds",
			Help:    "Duration of a ledger maintenance run including retention and compaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	maintenanceLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solindexor_ledger_maintenance_last_run_timestamp",
			Help: "Unix timestamp of the last ledger maintenance run",
		},
	)

	supersededRowsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solindexor_ledger_superseded_rows_pruned_total",
			Help: "Superseded ledger rows removed by retention",
		},
	)

	ledgerFreePages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solindexor_ledger_free_pages",
			Help: "Free pages in the ledger database before the last compaction",
		},
	)

	ledgerBytesReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solindexor_ledger_reclaimed_bytes_total",
			Help: "Bytes returned to the filesystem by ledger compaction",
		},
	)

	ledgerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solindexor_ledger_size_bytes",
			Help: "Size of the ledger database including WAL and shared memory files",
		},
	)

	vacuums = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_ledger_vacuums_total",
			Help: "Ledger VACUUM decisions by result",
		},
		[]string{"result"},
	)

	walCheckpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_ledger_wal_checkpoints_total",
			Help: "Ledger WAL checkpoints by mode",
		},
		[]string{"mode"},
	)

	walFramesPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solindexor_ledger_wal_frames_pending",
			Help: "WAL frames the last checkpoint could not move because of concurrent readers",
		},
	)
)

func observeMaintenanceRun(run MaintenanceStats, err error, took time.Duration, size int64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	maintenanceRuns.WithLabelValues(outcome).Inc()
	maintenanceDuration.Observe(took.Seconds())
	maintenanceLastRun.Set(float64(time.Now().UTC().Unix()))

	supersededRowsPruned.Add(float64(run.LastPruned))
	ledgerFreePages.Set(float64(run.LastFreePages))
	ledgerBytesReclaimed.Add(float64(run.LastReclaimed))
	ledgerSize.Set(float64(size))
}

func observeVacuum(result string) {
	vacuums.WithLabelValues(result).Inc()
}

func observeCheckpoint(mode string, pending int) {
	walCheckpoints.WithLabelValues(mode).Inc()
	walFramesPending.Set(float64(pending))
}

package reorg

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reorgLastDetected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solindexor_reorg_last_detected_timestamp",
			Help: "Unix timestamp of last reorg detection",
		},
		[]string{"program"},
	)

	reorgFromSlot = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solindexor_reorg_ancestor_slot",
			Help: "Common ancestor slot of the last repaired reorg",
		},
		[]string{"program"},
	)

	checkpointsPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_reorg_checkpoints_pruned_total",
			Help: "Total number of finalized checkpoints pruned",
		},
		[]string{"program"},
	)
)

func reorgDetectedLog(program string, ancestorSlot uint64) {
	reorgLastDetected.WithLabelValues(program).Set(float64(time.Now().UTC().Unix()))
	reorgFromSlot.WithLabelValues(program).Set(float64(ancestorSlot))
}

func checkpointsPrunedAdd(program string, n int64) {
	checkpointsPruned.WithLabelValues(program).Add(float64(n))
}

package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	finalizedSlot = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solindexor_finalized_slot",
			Help: "The current finalized slot reported by the upstream",
		},
	)

	blockCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_block_cache_lookups_total",
			Help: "Block ref cache lookups by result",
		},
		[]string{"result"},
	)
)

func FinalizedSlotSet(slot uint64) {
	finalizedSlot.Set(float64(slot))
}

func blockCacheHitInc() {
	blockCacheLookups.WithLabelValues("hit").Inc()
}

func blockCacheMissInc() {
	blockCacheLookups.WithLabelValues("miss").Inc()
}

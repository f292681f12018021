package rpc

import (
	"errors"
	"time"

	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded for an upstream call.
const (
	outcomeOK        = "ok"
	outcomeNotFound  = "not_found"
	outcomeTransport = "transport"
	outcomeRPC       = "rpc"
)

var (
	rpcCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_rpc_calls_total",
			Help: "Upstream Solana RPC calls by method, commitment and outcome",
		},
		[]string{"method", "commitment", "outcome"},
	)

	rpcAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_rpc_transport_retries_total",
			Help: "Upstream Solana RPC attempts repeated after a transport error",
		},
		[]string{"method"},
	)

	rpcLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solindexor_rpc_call_duration_seconds",
			Help:    "Duration of upstream Solana RPC calls including transport retries",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "commitment"},
	)

	rpcBatchEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "solindexor_rpc_batch_entries",
			Help:    "Transactions requested per getTransaction batch",
			Buckets: prometheus.LinearBuckets(5, 5, 10),
		},
	)

	rpcBatchMissing = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solindexor_rpc_batch_missing_total",
			Help: "Batched transactions that were not visible yet at the requested commitment",
		},
	)
)

// callObserver records one logical upstream call.
type callObserver struct {
	method     string
	commitment string
	start      time.Time
	attempts   int
}

func observeCall(method, commitment string) *callObserver {
	return &callObserver{method: method, commitment: commitment, start: time.Now()}
}

// attempt is called before every try of the call.
func (o *callObserver) attempt() {
	o.attempts++
	if o.attempts > 1 {
		rpcAttempts.WithLabelValues(o.method).Inc()
	}
}

func (o *callObserver) done(err error) {
	rpcLatency.WithLabelValues(o.method, o.commitment).Observe(time.Since(o.start).Seconds())
	rpcCalls.WithLabelValues(o.method, o.commitment, callOutcome(err)).Inc()
}

func callOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, types.ErrNotFound):
		return outcomeNotFound
	case isTransportError(err):
		return outcomeTransport
	default:
		return outcomeRPC
	}
}

func observeBatch(requested, missing int) {
	rpcBatchEntries.Observe(float64(requested))
	rpcBatchMissing.Add(float64(missing))
}

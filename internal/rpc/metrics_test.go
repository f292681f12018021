package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	pkgrpc "github.com/goran-ethernal/SolanaIndexor/pkg/rpc"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_LabelledByMethodAndCommitment(t *testing.T) {
	srv := newTestServer(t, map[string]methodHandler{
		"getSlot": func([]any) (any, *jsonRPCError) { return 7, nil },
		"getBlock": func([]any) (any, *jsonRPCError) {
			return nil, &jsonRPCError{Code: codeSlotSkipped, Message: "Slot 9 was skipped"}
		},
	})
	client := newTestClient(t, srv.URL)

	finalizedOK := rpcCalls.WithLabelValues("getSlot", "finalized", outcomeOK)
	processedOK := rpcCalls.WithLabelValues("getSlot", "processed", outcomeOK)
	notFound := rpcCalls.WithLabelValues("getBlock", "confirmed", outcomeNotFound)

	beforeFinalized := testutil.ToFloat64(finalizedOK)
	beforeProcessed := testutil.ToFloat64(processedOK)
	beforeNotFound := testutil.ToFloat64(notFound)

	_, err := client.GetSlot(context.Background(), pkgrpc.CommitmentFinalized)
	require.NoError(t, err)
	_, err = client.GetSlot(context.Background(), pkgrpc.CommitmentFinalized)
	require.NoError(t, err)
	_, err = client.GetSlot(context.Background(), pkgrpc.CommitmentProcessed)
	require.NoError(t, err)

	_, err = client.GetBlockRef(context.Background(), 9)
	require.ErrorIs(t, err, types.ErrNotFound)

	require.InDelta(t, beforeFinalized+2, testutil.ToFloat64(finalizedOK), 0)
	require.InDelta(t, beforeProcessed+1, testutil.ToFloat64(processedOK), 0)
	require.InDelta(t, beforeNotFound+1, testutil.ToFloat64(notFound), 0)
}

func TestMetrics_TransportRetriesAndOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL)

	retries := rpcAttempts.WithLabelValues("getTransaction")
	failed := rpcCalls.WithLabelValues("getTransaction", "confirmed", outcomeTransport)
	beforeRetries := testutil.ToFloat64(retries)
	beforeFailed := testutil.ToFloat64(failed)

	_, err := client.GetTransaction(context.Background(), solana.Signature{1})
	require.Error(t, err)

	// three attempts, two of them repeated
	require.InDelta(t, beforeRetries+2, testutil.ToFloat64(retries), 0)
	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failed), 0)
}

func TestMetrics_BatchCountsMissingTransactions(t *testing.T) {
	tt := buildTestTx(t)

	srv := newTestServer(t, map[string]methodHandler{
		"getTransaction": func(params []any) (any, *jsonRPCError) {
			if params[0] == tt.sig.String() {
				return tt.result(false), nil
			}
			return nil, nil
		},
	})
	client := newTestClient(t, srv.URL)

	before := testutil.ToFloat64(rpcBatchMissing)

	txs, err := client.BatchGetTransactions(context.Background(),
		[]solana.Signature{tt.sig, {4}, {5}})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.NotNil(t, txs[0])

	require.InDelta(t, before+2, testutil.ToFloat64(rpcBatchMissing), 0)
}

func TestCallOutcome(t *testing.T) {
	require.Equal(t, outcomeOK, callOutcome(nil))
	require.Equal(t, outcomeNotFound, callOutcome(types.ErrNotFound))
	require.Equal(t, outcomeTransport, callOutcome(&types.TransportError{Err: context.DeadlineExceeded}))
	require.Equal(t, outcomeRPC, callOutcome(errors.New("invalid params")))
}

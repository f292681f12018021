package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goran-ethernal/SolanaIndexor/internal/lock"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/testutil"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestPoller(h *testutil.Harness, maxPages int) *Poller {
	return New(h.Program, Config{
		Interval:        10 * time.Millisecond,
		MaxPagesPerTick: maxPages,
		PrefetchSize:    2,
		Retry:           h.Retry,
	}, h.Fetcher, h.Store, h.Processor, h.Locker, nil, logger.NewNopLogger())
}

func TestPoller_ProcessesOldestFirstAndAdvancesCursor(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	p := newTestPoller(h, 10)
	ctx := context.Background()

	t1 := h.Chain.AppendBlock(10, h.Deposit(t, 1))[0]
	t2 := h.Chain.AppendBlock(11, h.Deposit(t, 2))[0]

	require.NoError(t, p.Tick(ctx))

	calls := h.Recorder.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, t1, calls[0].Signature)
	require.Equal(t, t2, calls[1].Signature)

	require.Equal(t, types.StatusCommitted, h.Status(t, t1))
	require.Equal(t, types.StatusCommitted, h.Status(t, t2))

	cursor := h.Cursor(t)
	require.Equal(t, t2, cursor.Signature)
	require.Equal(t, uint64(11), cursor.Slot)

	// a restarted poller sees nothing new
	restarted := newTestPoller(h, 10)
	require.NoError(t, restarted.Tick(ctx))
	require.Len(t, h.Recorder.Calls(), 2)

	// re-observing T1 and T2 invokes nothing
	for _, info := range []types.SignatureInfo{{Signature: t1, Slot: 10}, {Signature: t2, Slot: 11}} {
		_, err := h.Processor.Process(ctx, info)
		require.NoError(t, err)
	}
	require.Len(t, h.Recorder.Calls(), 2)
}

func TestPoller_OrderAcrossPages(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{PageSize: 2})
	p := newTestPoller(h, 10)

	var expected []testutil.Delivery
	for slot := uint64(20); slot < 27; slot++ {
		sigs := h.Chain.AppendBlock(slot, h.Deposit(t, slot, slot+1), h.Deposit(t, slot))
		expected = append(expected,
			testutil.Delivery{Signature: sigs[0], Slot: slot, Kind: testutil.KindDeposit, Index: 0},
			testutil.Delivery{Signature: sigs[0], Slot: slot, Kind: testutil.KindDeposit, Index: 1},
			testutil.Delivery{Signature: sigs[1], Slot: slot, Kind: testutil.KindDeposit, Index: 0},
		)
	}

	require.NoError(t, p.Tick(context.Background()))
	require.Equal(t, expected, h.Recorder.Calls())
}

func TestPoller_MaxPagesPerTickContinuesListing(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{PageSize: 2})
	p := newTestPoller(h, 1)
	ctx := context.Background()

	for slot := uint64(1); slot <= 5; slot++ {
		h.Chain.AppendBlock(slot, h.Deposit(t, slot))
	}

	// two full pages are listed before the cursor is reached
	require.NoError(t, p.Tick(ctx))
	require.Empty(t, h.Recorder.Calls())
	require.NoError(t, p.Tick(ctx))
	require.Empty(t, h.Recorder.Calls())

	require.NoError(t, p.Tick(ctx))
	calls := h.Recorder.Calls()
	require.Len(t, calls, 5)
	for i, c := range calls {
		require.Equal(t, uint64(i+1), c.Slot)
	}
	require.Equal(t, uint64(5), h.Cursor(t).Slot)
}

func TestPoller_HandlerFailureStallsAtSignature(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	p := newTestPoller(h, 10)
	ctx := context.Background()

	t1 := h.Chain.AppendBlock(10, h.Deposit(t, 1))[0]
	t2 := h.Chain.AppendBlock(11, h.Deposit(t, 2))[0]
	t3 := h.Chain.AppendBlock(12, h.Deposit(t, 3))[0]

	failing := true
	h.Recorder.FailOn = func(e types.DecodedEvent) error {
		if failing && e.Signature == t2 {
			return errors.New("database down")
		}
		return nil
	}

	err := p.Tick(ctx)
	var handlerErr *types.HandlerError
	require.ErrorAs(t, err, &handlerErr)
	require.Equal(t, t2, handlerErr.Signature)

	require.Equal(t, t1, h.Cursor(t).Signature)
	require.Equal(t, types.StatusFailed, h.Status(t, t2))

	// still stalled on the next tick
	require.Error(t, p.Tick(ctx))
	require.Equal(t, t1, h.Cursor(t).Signature)

	failing = false
	require.NoError(t, p.Tick(ctx))
	require.Equal(t, t3, h.Cursor(t).Signature)
	require.Equal(t, 1, h.Recorder.CallsFor(t2))
	require.Equal(t, 1, h.Recorder.CallsFor(t3))
}

func TestPoller_RetriesTransactionNotVisibleYet(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	p := newTestPoller(h, 10)
	ctx := context.Background()

	t1 := h.Chain.AppendBlock(10, h.Deposit(t, 1))[0]
	h.Chain.HideFor(t1, 2)

	require.NoError(t, p.Tick(ctx))
	require.Equal(t, 1, h.Recorder.CallsFor(t1))
}

func TestPoller_GivesUpAfterMaxAttempts(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	p := newTestPoller(h, 10)
	ctx := context.Background()

	t1 := h.Chain.AppendBlock(10, h.Deposit(t, 1))[0]
	h.Chain.HideFor(t1, 100)

	err := p.Tick(ctx)
	require.ErrorIs(t, err, types.ErrNotFound)
	require.True(t, h.Cursor(t).IsEmpty())
	require.Empty(t, h.Recorder.Calls())
}

func TestPoller_FailedTransactionIsCommittedWithoutEvents(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	p := newTestPoller(h, 10)

	failedTx := h.Deposit(t, 1)
	failedTx.Failed = true
	sig := h.Chain.AppendBlock(10, failedTx)[0]

	require.NoError(t, p.Tick(context.Background()))
	require.Empty(t, h.Recorder.Calls())
	require.Equal(t, types.StatusCommitted, h.Status(t, sig))
	require.Equal(t, sig, h.Cursor(t).Signature)
}

func TestPoller_Baseline(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	p := newTestPoller(h, 10)
	ctx := context.Background()

	h.Chain.AppendBlock(10, h.Deposit(t, 1))
	old := h.Chain.AppendBlock(11, h.Deposit(t, 2))[0]

	cursor, err := p.Baseline(ctx)
	require.NoError(t, err)
	require.Equal(t, old, cursor.Signature)

	fresh := h.Chain.AppendBlock(12, h.Deposit(t, 3))[0]

	// an advanced cursor is never moved by Baseline
	again, err := p.Baseline(ctx)
	require.NoError(t, err)
	require.Equal(t, old, again.Signature)

	require.NoError(t, p.Tick(ctx))
	calls := h.Recorder.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, fresh, calls[0].Signature)
}

func TestPoller_BaselineWithoutHistory(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	p := newTestPoller(h, 10)

	cursor, err := p.Baseline(context.Background())
	require.NoError(t, err)
	require.True(t, cursor.IsEmpty())
}

func TestPoller_ReorgRewindsAndRedelivers(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	p := newTestPoller(h, 10)
	ctx := context.Background()

	t1 := h.Chain.AppendBlock(10, h.Deposit(t, 1))[0]
	t2 := h.Chain.AppendBlock(11, h.Deposit(t, 2))[0]
	require.NoError(t, p.Tick(ctx))

	// slot 11 is replaced by a block carrying T2'
	h.Chain.Reorg(11)
	t2b := h.Chain.AppendBlock(11, h.Deposit(t, 20))[0]

	err := p.Tick(ctx)
	var reorgErr *types.ReorgDetectedError
	require.ErrorAs(t, err, &reorgErr)
	require.Equal(t, uint64(10), reorgErr.Ancestor.Slot)

	// the cursor is back at the ancestor
	cursor := h.Cursor(t)
	require.Equal(t, t1, cursor.Signature)
	require.Equal(t, uint64(10), cursor.Slot)
	require.Equal(t, types.StatusSuperseded, h.Status(t, t2))
	require.Equal(t, []uint64{11}, h.Recorder.Reorgs())

	require.NoError(t, p.Tick(ctx))

	require.Equal(t, 1, h.Recorder.CallsFor(t1))
	require.Equal(t, 1, h.Recorder.CallsFor(t2))
	require.Equal(t, 1, h.Recorder.CallsFor(t2b))
	require.Equal(t, t2b, h.Cursor(t).Signature)
}

func TestPoller_RewindWithoutCommittedAncestor(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	p := newTestPoller(h, 10)
	ctx := context.Background()

	below := h.Chain.AppendBlock(10, h.Deposit(t, 1))[0]
	dropped := h.Chain.AppendBlock(11, h.Deposit(t, 2))[0]

	// checkpoints exist for both slots, but nothing was committed: the cursor was baselined at slot 11
	for _, slot := range []uint64{10, 11} {
		ref, err := h.Chain.GetBlockRef(ctx, slot)
		require.NoError(t, err)
		require.NoError(t, h.Detector.Check(ctx, ref))
	}

	_, err := h.Store.SaveCursor(ctx, types.SignatureCursor{ProgramID: h.Program, Signature: dropped, Slot: 11})
	require.NoError(t, err)

	h.Chain.Reorg(11)
	replaced := h.Chain.AppendBlock(11, h.Deposit(t, 20))[0]
	newer := h.Chain.AppendBlock(12, h.Deposit(t, 3))[0]

	err = p.Tick(ctx)
	var reorgErr *types.ReorgDetectedError
	require.ErrorAs(t, err, &reorgErr)
	require.Equal(t, uint64(10), reorgErr.Ancestor.Slot)

	// no committed signature at or below the ancestor: the cursor keeps only the slot
	cursor := h.Cursor(t)
	require.True(t, cursor.IsEmpty())
	require.Equal(t, uint64(10), cursor.Slot)
	require.Greater(t, cursor.Version, uint64(1))

	require.NoError(t, p.Tick(ctx))

	require.Zero(t, h.Recorder.CallsFor(below))
	require.Equal(t, 1, h.Recorder.CallsFor(replaced))
	require.Equal(t, 1, h.Recorder.CallsFor(newer))

	cursor = h.Cursor(t)
	require.Equal(t, newer, cursor.Signature)
	require.Equal(t, uint64(12), cursor.Slot)
}

func TestPoller_RunStopsOnFatalError(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	fatal := errors.New("fatal")

	h.Chain.AppendBlock(10, h.Deposit(t, 1))
	h.Recorder.FailOn = func(types.DecodedEvent) error { return errors.New("boom") }

	p := New(h.Program, Config{Interval: time.Millisecond, MaxPagesPerTick: 1, Retry: h.Retry},
		h.Fetcher, h.Store, h.Processor, h.Locker,
		func(_ context.Context, err error) error {
			var handlerErr *types.HandlerError
			if errors.As(err, &handlerErr) {
				return fatal
			}
			return nil
		}, logger.NewNopLogger())

	require.ErrorIs(t, p.Run(context.Background()), fatal)
}

func TestPoller_RunHonoursCancellationAndNudge(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	p := New(h.Program, Config{Interval: time.Hour, MaxPagesPerTick: 1, Retry: h.Retry},
		h.Fetcher, h.Store, h.Processor, h.Locker, nil, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	sig := h.Chain.AppendBlock(10, h.Deposit(t, 1))[0]
	p.Nudge()
	p.Nudge()

	require.Eventually(t, func() bool { return h.Recorder.CallsFor(sig) == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

// expiringLocker hands out leases that are already lost.
type expiringLocker struct {
	lock.Locker
}

func (l expiringLocker) Lock(ctx context.Context, program string) (context.Context, func(), error) {
	_, unlock, err := l.Locker.Lock(ctx, program)
	if err != nil {
		return nil, nil, err
	}

	held, cancel := context.WithCancelCause(ctx)
	cancel(lock.ErrLeaseLost)

	return held, unlock, nil
}

func TestPoller_LostLeaseStopsTick(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	ctx := context.Background()

	var reported []error
	p := New(h.Program, Config{Interval: time.Hour, MaxPagesPerTick: 1, Retry: h.Retry},
		h.Fetcher, h.Store, h.Processor, expiringLocker{Locker: h.Locker},
		func(_ context.Context, err error) error {
			reported = append(reported, err)
			return nil
		}, logger.NewNopLogger())

	sig := h.Chain.AppendBlock(10, h.Deposit(t, 1))[0]

	require.NoError(t, p.runTick(ctx))
	require.Empty(t, reported)
	require.Zero(t, h.Recorder.CallsFor(sig))
	require.True(t, h.Cursor(t).Signature.IsZero())

	// the lock is free again, the next holder delivers
	p.locker = h.Locker
	require.NoError(t, p.runTick(ctx))
	require.Equal(t, 1, h.Recorder.CallsFor(sig))
	require.Equal(t, sig, h.Cursor(t).Signature)
}

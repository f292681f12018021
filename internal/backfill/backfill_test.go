package backfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/testutil"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestEngine(h *testutil.Harness) *Engine {
	return New(h.Program, h.Fetcher, h.Store, h.Processor, h.Locker, h.Retry, logger.NewNopLogger())
}

func appendDeposits(t *testing.T, h *testutil.Harness, from, to uint64) []solana.Signature {
	t.Helper()

	var sigs []solana.Signature
	for slot := from; slot <= to; slot++ {
		sigs = append(sigs, h.Chain.AppendBlock(slot, h.Deposit(t, slot))...)
	}

	return sigs
}

func TestEngine_RunDeliversRangeOldestFirst(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{PageSize: 2})
	e := newTestEngine(h)
	ctx := context.Background()

	appendDeposits(t, h, 1, 8)

	progress, err := e.Run(ctx, Range{FromSlot: 3, ToSlot: 6})
	require.NoError(t, err)
	require.Equal(t, types.BackfillDone, progress.Status)
	require.Equal(t, uint64(4), progress.Processed)
	require.Equal(t, uint64(6), progress.LastSlot)

	calls := h.Recorder.Calls()
	require.Len(t, calls, 4)
	for i, c := range calls {
		require.Equal(t, uint64(i+3), c.Slot)
	}

	// backfill never moves the live cursor
	require.True(t, h.Cursor(t).IsEmpty())

	stored, err := h.Store.GetBackfillProgress(ctx, progress.ID)
	require.NoError(t, err)
	require.Equal(t, types.BackfillDone, stored.Status)
	require.Equal(t, progress.LastSignature, stored.LastSignature)
}

func TestEngine_RerunOfProcessedRangeInvokesNothing(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	e := newTestEngine(h)
	ctx := context.Background()

	appendDeposits(t, h, 1, 5)

	_, err := e.Run(ctx, Range{FromSlot: 1, ToSlot: 5})
	require.NoError(t, err)
	require.Len(t, h.Recorder.Calls(), 5)

	progress, err := e.Run(ctx, Range{FromSlot: 1, ToSlot: 5})
	require.NoError(t, err)
	require.Equal(t, types.BackfillDone, progress.Status)
	require.Equal(t, uint64(5), progress.Processed)
	require.Len(t, h.Recorder.Calls(), 5)

	// an overlapping range only delivers the new part
	appendDeposits(t, h, 6, 7)

	_, err = e.Run(ctx, Range{FromSlot: 4})
	require.NoError(t, err)
	require.Len(t, h.Recorder.Calls(), 7)
}

func TestEngine_RerunAfterLedgerRetentionInvokesNothing(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	e := newTestEngine(h)
	ctx := context.Background()

	appendDeposits(t, h, 1, 3)

	_, err := e.Run(ctx, Range{FromSlot: 1, ToSlot: 3})
	require.NoError(t, err)
	require.Len(t, h.Recorder.Calls(), 3)

	pruned, err := h.Store.PruneSuperseded(ctx, time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)
	require.Zero(t, pruned)

	_, err = e.Run(ctx, Range{FromSlot: 1, ToSlot: 3})
	require.NoError(t, err)
	require.Len(t, h.Recorder.Calls(), 3)
}

func TestEngine_ResumesAfterLastSignature(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	e := newTestEngine(h)
	ctx := context.Background()

	sigs := appendDeposits(t, h, 1, 4)

	failing := true
	h.Recorder.FailOn = func(ev types.DecodedEvent) error {
		if failing && ev.Signature == sigs[2] {
			return errors.New("handler down")
		}
		return nil
	}

	progress, err := e.Run(ctx, Range{FromSlot: 1, ToSlot: 4})
	var handlerErr *types.HandlerError
	require.ErrorAs(t, err, &handlerErr)
	require.Equal(t, types.BackfillRunning, progress.Status)
	require.Equal(t, sigs[1], progress.LastSignature)
	require.Equal(t, uint64(2), progress.Processed)

	failing = false

	progress, err = e.Run(ctx, Range{FromSlot: 1, ToSlot: 4})
	require.NoError(t, err)
	require.Equal(t, types.BackfillDone, progress.Status)
	require.Equal(t, uint64(4), progress.Processed)

	for _, sig := range sigs {
		require.Equal(t, 1, h.Recorder.CallsFor(sig))
	}
}

func TestEngine_ResumeFinishesRunningRanges(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	e := newTestEngine(h)
	ctx := context.Background()

	sigs := appendDeposits(t, h, 1, 3)

	require.NoError(t, h.Store.SaveBackfillProgress(ctx, types.BackfillProgress{
		ID:            types.BackfillRangeID(h.Program, 1, 3),
		ProgramID:     h.Program,
		FromSlot:      1,
		ToSlot:        3,
		LastSignature: sigs[0],
		LastSlot:      1,
		Processed:     1,
		Status:        types.BackfillRunning,
	}))

	require.NoError(t, e.Resume(ctx))

	require.Equal(t, 0, h.Recorder.CallsFor(sigs[0]))
	require.Equal(t, 1, h.Recorder.CallsFor(sigs[1]))
	require.Equal(t, 1, h.Recorder.CallsFor(sigs[2]))

	ranges, err := h.Store.ListBackfillProgress(ctx, h.Program)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	require.Equal(t, types.BackfillDone, ranges[0].Status)
}

func TestEngine_ResumeKeepsFailedRangeRunning(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	e := newTestEngine(h)
	ctx := context.Background()

	sigs := appendDeposits(t, h, 1, 6)

	for _, r := range [][2]uint64{{1, 3}, {4, 6}} {
		require.NoError(t, h.Store.SaveBackfillProgress(ctx, types.BackfillProgress{
			ID:        types.BackfillRangeID(h.Program, r[0], r[1]),
			ProgramID: h.Program,
			FromSlot:  r[0],
			ToSlot:    r[1],
			Status:    types.BackfillRunning,
		}))
	}

	h.Recorder.FailOn = func(ev types.DecodedEvent) error {
		if ev.Signature == sigs[1] {
			return errors.New("handler down")
		}
		return nil
	}

	// the failing range does not keep the next one from finishing
	err := e.Resume(ctx)
	var handlerErr *types.HandlerError
	require.ErrorAs(t, err, &handlerErr)
	require.False(t, types.IsFatal(err))

	first, err := h.Store.GetBackfillProgress(ctx, types.BackfillRangeID(h.Program, 1, 3))
	require.NoError(t, err)
	require.Equal(t, types.BackfillRunning, first.Status)
	require.Equal(t, sigs[0], first.LastSignature)

	second, err := h.Store.GetBackfillProgress(ctx, types.BackfillRangeID(h.Program, 4, 6))
	require.NoError(t, err)
	require.Equal(t, types.BackfillDone, second.Status)

	h.Recorder.FailOn = nil
	require.NoError(t, e.Resume(ctx))

	for _, sig := range sigs {
		require.Equal(t, 1, h.Recorder.CallsFor(sig))
	}
}

func TestEngine_SeedHistoryStopsAtCursor(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	e := newTestEngine(h)
	ctx := context.Background()

	// nothing to seed without a cursor
	progress, err := e.SeedHistory(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, progress.ID)

	sigs := appendDeposits(t, h, 1, 6)

	_, err = h.Store.SaveCursor(ctx, types.SignatureCursor{ProgramID: h.Program, Signature: sigs[3], Slot: 4})
	require.NoError(t, err)

	progress, err = e.SeedHistory(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, types.BackfillDone, progress.Status)

	calls := h.Recorder.Calls()
	require.Len(t, calls, 3)
	require.Equal(t, uint64(2), calls[0].Slot)
	require.Equal(t, uint64(4), calls[2].Slot)
}

func TestEngine_InvalidRange(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	e := newTestEngine(h)

	_, err := e.Run(context.Background(), Range{FromSlot: 5, ToSlot: 4})
	require.Error(t, err)
}

func TestEngine_CancelledContext(t *testing.T) {
	h := testutil.NewHarness(t, testutil.HarnessConfig{})
	e := newTestEngine(h)

	appendDeposits(t, h, 1, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, Range{FromSlot: 1})
	require.Error(t, err)
	require.Empty(t, h.Recorder.Calls())
}

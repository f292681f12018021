package store

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/pkg/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"github.com/stretchr/testify/require"
)

// storeFactory returns an empty, migrated store.
type storeFactory func(t *testing.T) store.Store

func runLedgerTests(t *testing.T, newStore storeFactory) {
	t.Run("unseen signature", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetDeliveryStatus(context.Background(), randomSignature())
		require.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("pending then committed then duplicate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()
		sig := randomSignature()

		res, err := s.InsertPending(ctx, program, sig, 10)
		require.NoError(t, err)
		require.Equal(t, store.InsertedPending, res)

		rec, err := s.GetDeliveryStatus(ctx, sig)
		require.NoError(t, err)
		require.Equal(t, types.StatusPending, rec.Status)
		require.Equal(t, program, rec.ProgramID)
		require.Equal(t, uint64(10), rec.Slot)
		require.Equal(t, 1, rec.Attempts)

		require.NoError(t, s.Commit(ctx, sig, nil))

		rec, err = s.GetDeliveryStatus(ctx, sig)
		require.NoError(t, err)
		require.Equal(t, types.StatusCommitted, rec.Status)
		require.NotZero(t, rec.CommittedAt)

		res, err = s.InsertPending(ctx, program, sig, 10)
		require.NoError(t, err)
		require.Equal(t, store.AlreadyCommitted, res)
	})

	t.Run("pending conflict", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()
		sig := randomSignature()

		_, err := s.InsertPending(ctx, program, sig, 10)
		require.NoError(t, err)

		_, err = s.InsertPending(ctx, program, sig, 10)
		require.ErrorIs(t, err, types.ErrLedgerConflict)
	})

	t.Run("failed is revived with attempt count", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()
		sig := randomSignature()

		_, err := s.InsertPending(ctx, program, sig, 10)
		require.NoError(t, err)
		require.NoError(t, s.MarkFailed(ctx, sig, "handler exploded"))

		rec, err := s.GetDeliveryStatus(ctx, sig)
		require.NoError(t, err)
		require.Equal(t, types.StatusFailed, rec.Status)
		require.Equal(t, "handler exploded", rec.LastError)

		res, err := s.InsertPending(ctx, program, sig, 10)
		require.NoError(t, err)
		require.Equal(t, store.InsertedPending, res)

		rec, err = s.GetDeliveryStatus(ctx, sig)
		require.NoError(t, err)
		require.Equal(t, types.StatusPending, rec.Status)
		require.Equal(t, 2, rec.Attempts)
	})

	t.Run("commit requires pending", func(t *testing.T) {
		s := newStore(t)

		require.Error(t, s.Commit(context.Background(), randomSignature(), nil))
	})

	t.Run("reset pending", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()
		other := solana.NewWallet().PublicKey()

		stale := randomSignature()
		_, err := s.InsertPending(ctx, program, stale, 10)
		require.NoError(t, err)

		foreign := randomSignature()
		_, err = s.InsertPending(ctx, other, foreign, 10)
		require.NoError(t, err)

		n, err := s.ResetPending(ctx, program)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		rec, err := s.GetDeliveryStatus(ctx, stale)
		require.NoError(t, err)
		require.Equal(t, types.StatusFailed, rec.Status)

		rec, err = s.GetDeliveryStatus(ctx, foreign)
		require.NoError(t, err)
		require.Equal(t, types.StatusPending, rec.Status)
	})

	t.Run("invalidate range", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()

		sigs := make([]solana.Signature, 4)
		for i := range sigs {
			sigs[i] = randomSignature()
			_, err := s.InsertPending(ctx, program, sigs[i], uint64(10*(i+1)))
			require.NoError(t, err)
			require.NoError(t, s.Commit(ctx, sigs[i], nil))
		}

		n, err := s.InvalidateRange(ctx, program, 20)
		require.NoError(t, err)
		require.Equal(t, int64(2), n)

		for i, sig := range sigs {
			rec, err := s.GetDeliveryStatus(ctx, sig)
			require.NoError(t, err)
			if rec.Slot > 20 {
				require.Equal(t, types.StatusSuperseded, rec.Status, "sig %d", i)
			} else {
				require.Equal(t, types.StatusCommitted, rec.Status, "sig %d", i)
			}
		}

		// superseded counts as unseen
		res, err := s.InsertPending(ctx, program, sigs[3], 40)
		require.NoError(t, err)
		require.Equal(t, store.InsertedPending, res)

		stats, err := s.Stats(ctx, program)
		require.NoError(t, err)
		require.Equal(t, int64(2), stats.Committed)
		require.Equal(t, int64(1), stats.Superseded)
		require.Equal(t, int64(1), stats.Pending)
	})
}

func runCursorTests(t *testing.T, newStore storeFactory) {
	t.Run("empty cursor", func(t *testing.T) {
		s := newStore(t)
		program := solana.NewWallet().PublicKey()

		c, err := s.LoadCursor(context.Background(), program)
		require.NoError(t, err)
		require.True(t, c.IsEmpty())
		require.Equal(t, program, c.ProgramID)
		require.Zero(t, c.Version)
	})

	t.Run("save and advance", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()

		c, err := s.LoadCursor(ctx, program)
		require.NoError(t, err)

		c.Signature = randomSignature()
		c.Slot = 100
		c.BlockHash = randomHash()

		saved, err := s.SaveCursor(ctx, c)
		require.NoError(t, err)
		require.Equal(t, uint64(1), saved.Version)

		loaded, err := s.LoadCursor(ctx, program)
		require.NoError(t, err)
		require.Equal(t, c.Signature, loaded.Signature)
		require.Equal(t, c.BlockHash, loaded.BlockHash)
		require.Equal(t, uint64(100), loaded.Slot)
		require.Equal(t, uint64(1), loaded.Version)

		loaded.Slot = 101
		saved, err = s.SaveCursor(ctx, loaded)
		require.NoError(t, err)
		require.Equal(t, uint64(2), saved.Version)
	})

	t.Run("lost race", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()

		first, err := s.LoadCursor(ctx, program)
		require.NoError(t, err)
		second := first

		first.Slot = 1
		_, err = s.SaveCursor(ctx, first)
		require.NoError(t, err)

		second.Slot = 2
		_, err = s.SaveCursor(ctx, second)
		require.ErrorIs(t, err, types.ErrCursorConflict)

		stale, err := s.LoadCursor(ctx, program)
		require.NoError(t, err)

		stale.Slot = 3
		_, err = s.SaveCursor(ctx, stale)
		require.NoError(t, err)

		stale.Slot = 4
		_, err = s.SaveCursor(ctx, stale)
		require.ErrorIs(t, err, types.ErrCursorConflict)
	})
}

func checkpointAt(program solana.PublicKey, slot uint64) types.ReorgCheckpoint {
	return types.ReorgCheckpoint{
		ProgramID:  program,
		Slot:       slot,
		BlockHash:  randomHash(),
		ParentSlot: slot - 1,
		ParentHash: randomHash(),
	}
}

func runCheckpointTests(t *testing.T, newStore storeFactory) {
	t.Run("empty chain", func(t *testing.T) {
		s := newStore(t)
		program := solana.NewWallet().PublicKey()

		_, err := s.LatestCheckpoint(context.Background(), program)
		require.ErrorIs(t, err, types.ErrNotFound)

		_, err = s.GetCheckpoint(context.Background(), program, 5)
		require.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("append list and prune", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()

		var appended []types.ReorgCheckpoint
		for _, slot := range []uint64{10, 11, 13, 14, 20} {
			cp := checkpointAt(program, slot)
			appended = append(appended, cp)
			require.NoError(t, s.AppendCheckpoint(ctx, cp))
		}

		latest, err := s.LatestCheckpoint(ctx, program)
		require.NoError(t, err)
		require.Equal(t, appended[4], latest)

		got, err := s.GetCheckpoint(ctx, program, 13)
		require.NoError(t, err)
		require.Equal(t, appended[2], got)

		list, err := s.Checkpoints(ctx, program, 3)
		require.NoError(t, err)
		require.Len(t, list, 3)
		require.Equal(t, []uint64{20, 14, 13}, []uint64{list[0].Slot, list[1].Slot, list[2].Slot})

		// re-append overwrites
		replaced := checkpointAt(program, 20)
		require.NoError(t, s.AppendCheckpoint(ctx, replaced))
		latest, err = s.LatestCheckpoint(ctx, program)
		require.NoError(t, err)
		require.Equal(t, replaced.BlockHash, latest.BlockHash)

		n, err := s.PruneCheckpoints(ctx, program, 13)
		require.NoError(t, err)
		require.Equal(t, int64(2), n)

		list, err = s.Checkpoints(ctx, program, 10)
		require.NoError(t, err)
		require.Equal(t, []uint64{20, 14, 13}, []uint64{list[0].Slot, list[1].Slot, list[2].Slot})
	})

	t.Run("prune keeps newest finalized", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()

		require.NoError(t, s.AppendCheckpoint(ctx, checkpointAt(program, 10)))
		require.NoError(t, s.AppendCheckpoint(ctx, checkpointAt(program, 11)))

		n, err := s.PruneCheckpoints(ctx, program, 100)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		latest, err := s.LatestCheckpoint(ctx, program)
		require.NoError(t, err)
		require.Equal(t, uint64(11), latest.Slot)
	})
}

func runRepairTests(t *testing.T, newStore storeFactory) {
	t.Run("rewinds to newest committed at or below ancestor", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()

		var sigs []solana.Signature
		for _, slot := range []uint64{10, 12, 14, 16} {
			sig := randomSignature()
			sigs = append(sigs, sig)

			_, err := s.InsertPending(ctx, program, sig, slot)
			require.NoError(t, err)
			require.NoError(t, s.Commit(ctx, sig, nil))
			require.NoError(t, s.AppendCheckpoint(ctx, checkpointAt(program, slot)))
		}

		cursor, err := s.LoadCursor(ctx, program)
		require.NoError(t, err)
		cursor.Signature = sigs[3]
		cursor.Slot = 16
		_, err = s.SaveCursor(ctx, cursor)
		require.NoError(t, err)

		ancestor, err := s.GetCheckpoint(ctx, program, 12)
		require.NoError(t, err)

		rolledBack := false
		rewound, err := s.RepairReorg(ctx, program, ancestor, func(ctx context.Context) error {
			rolledBack = true
			return nil
		})
		require.NoError(t, err)
		require.True(t, rolledBack)
		require.Equal(t, sigs[1], rewound.Signature)
		require.Equal(t, uint64(12), rewound.Slot)
		require.Equal(t, ancestor.BlockHash, rewound.BlockHash)
		require.Equal(t, uint64(2), rewound.Version)

		for i, sig := range sigs {
			rec, err := s.GetDeliveryStatus(ctx, sig)
			require.NoError(t, err)
			if i < 2 {
				require.Equal(t, types.StatusCommitted, rec.Status)
			} else {
				require.Equal(t, types.StatusSuperseded, rec.Status)
			}
		}

		latest, err := s.LatestCheckpoint(ctx, program)
		require.NoError(t, err)
		require.Equal(t, uint64(12), latest.Slot)
	})

	t.Run("rollback failure leaves state untouched", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()

		sig := randomSignature()
		_, err := s.InsertPending(ctx, program, sig, 20)
		require.NoError(t, err)
		require.NoError(t, s.Commit(ctx, sig, nil))
		require.NoError(t, s.AppendCheckpoint(ctx, checkpointAt(program, 10)))
		require.NoError(t, s.AppendCheckpoint(ctx, checkpointAt(program, 20)))

		ancestor, err := s.GetCheckpoint(ctx, program, 10)
		require.NoError(t, err)

		_, err = s.RepairReorg(ctx, program, ancestor, func(ctx context.Context) error {
			return context.DeadlineExceeded
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)

		rec, err := s.GetDeliveryStatus(ctx, sig)
		require.NoError(t, err)
		require.Equal(t, types.StatusCommitted, rec.Status)

		latest, err := s.LatestCheckpoint(ctx, program)
		require.NoError(t, err)
		require.Equal(t, uint64(20), latest.Slot)
	})

	t.Run("no committed rows below ancestor", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		program := solana.NewWallet().PublicKey()

		sig := randomSignature()
		_, err := s.InsertPending(ctx, program, sig, 20)
		require.NoError(t, err)
		require.NoError(t, s.Commit(ctx, sig, nil))
		require.NoError(t, s.AppendCheckpoint(ctx, checkpointAt(program, 15)))

		cursor, err := s.LoadCursor(ctx, program)
		require.NoError(t, err)
		cursor.Signature = sig
		cursor.Slot = 20
		_, err = s.SaveCursor(ctx, cursor)
		require.NoError(t, err)

		ancestor, err := s.GetCheckpoint(ctx, program, 15)
		require.NoError(t, err)

		rewound, err := s.RepairReorg(ctx, program, ancestor, nil)
		require.NoError(t, err)
		require.True(t, rewound.IsEmpty())
		require.Equal(t, uint64(15), rewound.Slot)
	})
}

func runBackfillTests(t *testing.T, newStore storeFactory) {
	s := newStore(t)
	ctx := context.Background()
	program := solana.NewWallet().PublicKey()

	id := types.BackfillRangeID(program, 10, 20)

	_, err := s.GetBackfillProgress(ctx, id)
	require.ErrorIs(t, err, types.ErrNotFound)

	p := types.BackfillProgress{
		ID:        id,
		ProgramID: program,
		FromSlot:  10,
		ToSlot:    20,
		Status:    types.BackfillRunning,
	}
	require.NoError(t, s.SaveBackfillProgress(ctx, p))

	p.LastSignature = randomSignature()
	p.LastSlot = 15
	p.Processed = 3
	require.NoError(t, s.SaveBackfillProgress(ctx, p))

	got, err := s.GetBackfillProgress(ctx, id)
	require.NoError(t, err)
	require.Equal(t, p.LastSignature, got.LastSignature)
	require.Equal(t, uint64(15), got.LastSlot)
	require.Equal(t, uint64(3), got.Processed)
	require.Equal(t, types.BackfillRunning, got.Status)
	require.NotZero(t, got.UpdatedAt)

	other := types.BackfillProgress{
		ID:        types.BackfillRangeID(program, 1, 5),
		ProgramID: program,
		FromSlot:  1,
		ToSlot:    5,
		Status:    types.BackfillDone,
	}
	require.NoError(t, s.SaveBackfillProgress(ctx, other))

	list, err := s.ListBackfillProgress(ctx, program)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, other.ID, list[0].ID)
	require.Equal(t, id, list[1].ID)
}

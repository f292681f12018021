package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/pkg/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

func addStatusCount(stats *store.Stats, status types.DeliveryStatus, count int64) {
	switch status {
	case types.StatusCommitted:
		stats.Committed = count
	case types.StatusPending:
		stats.Pending = count
	case types.StatusFailed:
		stats.Failed = count
	case types.StatusSuperseded:
		stats.Superseded = count
	}
}

// completeStats fills the cursor and checkpoint part of the stats.
func completeStats(ctx context.Context, s store.Store, program solana.PublicKey,
	stats store.Stats) (store.Stats, error) {
	cursor, err := s.LoadCursor(ctx, program)
	if err != nil {
		return store.Stats{}, err
	}
	stats.Cursor = cursor

	cp, err := s.LatestCheckpoint(ctx, program)
	switch {
	case errors.Is(err, types.ErrNotFound):
	case err != nil:
		return store.Stats{}, fmt.Errorf("failed to get latest checkpoint: %w", err)
	default:
		stats.Checkpoint = &cp
	}

	return stats, nil
}

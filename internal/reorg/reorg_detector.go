package reorg

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/metrics"
	"github.com/goran-ethernal/SolanaIndexor/pkg/rpc"
	"github.com/goran-ethernal/SolanaIndexor/pkg/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// BlockSource reads block ancestry straight from the upstream, bypassing any cache.
type BlockSource interface {
	GetBlockRef(ctx context.Context, slot uint64) (types.BlockRef, error)
	GetSlot(ctx context.Context, commitment rpc.Commitment) (uint64, error)
}

// Rollback removes decoded effects of events with slot >= fromSlot.
// It runs inside the repair transaction.
type Rollback interface {
	HandleReorg(ctx context.Context, program solana.PublicKey, fromSlot uint64) error
}

// Config contains configuration for the Detector.
type Config struct {
	// MaxLookbackDepth is the number of checkpoints walked back to find a common ancestor
	MaxLookbackDepth int

	// PruneFinalized removes checkpoints the upstream reports as finalized
	PruneFinalized bool
}

// Detector keeps the checkpoint chain of one program and repairs local state when the
// observed chain diverges from it.
type Detector struct {
	program  solana.PublicKey
	cfg      Config
	store    store.Checkpoints
	blocks   BlockSource
	rollback Rollback
	log      *logger.Logger
}

// NewDetector creates a Detector. rollback may be nil.
func NewDetector(
	program solana.PublicKey,
	cfg Config,
	checkpoints store.Checkpoints,
	blocks BlockSource,
	rollback Rollback,
	log *logger.Logger,
) *Detector {
	if cfg.MaxLookbackDepth <= 0 {
		cfg.MaxLookbackDepth = 1
	}

	metrics.ComponentHealthSet(common.ComponentReorgDetector, true)

	return &Detector{
		program:  program,
		cfg:      cfg,
		store:    checkpoints,
		blocks:   blocks,
		rollback: rollback,
		log:      log,
	}
}

// Check compares an observed block with the checkpoint chain.
// A block extending the chain is appended. A divergence is repaired and reported as
// *types.ReorgDetectedError. *types.ReorgDepthExceededError means nothing was changed.
func (d *Detector) Check(ctx context.Context, observed types.BlockRef) error {
	latest, err := d.store.LatestCheckpoint(ctx, d.program)
	if errors.Is(err, types.ErrNotFound) {
		return d.append(ctx, observed)
	}
	if err != nil {
		return fmt.Errorf("failed to load latest checkpoint: %w", err)
	}

	switch {
	case observed.Slot == latest.Slot:
		if observed.Hash == latest.BlockHash {
			return nil
		}
		return d.repair(ctx, observed, latest)

	case observed.Slot < latest.Slot:
		stored, err := d.store.GetCheckpoint(ctx, d.program, observed.Slot)
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load checkpoint at slot %d: %w", observed.Slot, err)
		}
		if stored.BlockHash == observed.Hash {
			return nil
		}
		return d.repair(ctx, observed, stored)

	case observed.ParentSlot == latest.Slot:
		if observed.ParentHash != latest.BlockHash {
			return d.repair(ctx, observed, latest)
		}
		return d.append(ctx, observed)

	case observed.ParentSlot > latest.Slot:
		// blocks between the checkpoint and the observed one were never seen
		canonical, err := d.isCanonical(ctx, latest)
		if err != nil {
			return err
		}
		if !canonical {
			return d.repair(ctx, observed, latest)
		}
		return d.append(ctx, observed)

	default:
		// the observed block skips over the checkpoint, so the checkpoint left the chain
		return d.repair(ctx, observed, latest)
	}
}

// PruneFinalized removes checkpoints at or below the finalized slot.
func (d *Detector) PruneFinalized(ctx context.Context) error {
	if !d.cfg.PruneFinalized {
		return nil
	}

	finalized, err := d.blocks.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("failed to get finalized slot: %w", err)
	}

	pruned, err := d.store.PruneCheckpoints(ctx, d.program, finalized)
	if err != nil {
		return fmt.Errorf("failed to prune finalized checkpoints: %w", err)
	}

	if pruned > 0 {
		checkpointsPrunedAdd(d.program.String(), pruned)
		d.log.Debugf("pruned %d finalized checkpoints up to slot %d", pruned, finalized)
	}

	return nil
}

func (d *Detector) append(ctx context.Context, ref types.BlockRef) error {
	if err := d.store.AppendCheckpoint(ctx, types.ReorgCheckpoint{
		ProgramID:  d.program,
		Slot:       ref.Slot,
		BlockHash:  ref.Hash,
		ParentSlot: ref.ParentSlot,
		ParentHash: ref.ParentHash,
	}); err != nil {
		return fmt.Errorf("failed to append checkpoint at slot %d: %w", ref.Slot, err)
	}

	return nil
}

// isCanonical re-reads the checkpoint's slot upstream. A skipped slot is not canonical.
func (d *Detector) isCanonical(ctx context.Context, cp types.ReorgCheckpoint) (bool, error) {
	ref, err := d.blocks.GetBlockRef(ctx, cp.Slot)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to re-read block at slot %d: %w", cp.Slot, err)
	}

	return ref.Hash == cp.BlockHash, nil
}

// findAncestor walks the checkpoint chain newest first and returns the first checkpoint that is
// still canonical together with the number of abandoned checkpoints above it.
func (d *Detector) findAncestor(ctx context.Context) (types.ReorgCheckpoint, int, bool, error) {
	checkpoints, err := d.store.Checkpoints(ctx, d.program, d.cfg.MaxLookbackDepth)
	if err != nil {
		return types.ReorgCheckpoint{}, 0, false, fmt.Errorf("failed to load checkpoints: %w", err)
	}

	for i, cp := range checkpoints {
		canonical, err := d.isCanonical(ctx, cp)
		if err != nil {
			return types.ReorgCheckpoint{}, 0, false, err
		}
		if canonical {
			return cp, i, true, nil
		}
	}

	return types.ReorgCheckpoint{}, len(checkpoints), false, nil
}

func (d *Detector) repair(ctx context.Context, observed types.BlockRef, mismatched types.ReorgCheckpoint) error {
	details := mismatchDetails(observed, mismatched)

	d.log.Warnf("chain divergence detected: %s", details)

	ancestor, depth, found, err := d.findAncestor(ctx)
	if err != nil {
		return err
	}

	if !found {
		metrics.ComponentHealthSet(common.ComponentReorgDetector, false)
		d.log.Errorf("no common ancestor within %d checkpoints of slot %d", d.cfg.MaxLookbackDepth, observed.Slot)
		return &types.ReorgDepthExceededError{
			ProgramID: d.program,
			Slot:      observed.Slot,
			MaxDepth:  d.cfg.MaxLookbackDepth,
		}
	}

	if depth == 0 {
		return fmt.Errorf("block at slot %d (%s): %w", observed.Slot, details, ErrStaleBlock)
	}

	fromSlot := ancestor.Slot + 1

	cursor, err := d.store.RepairReorg(ctx, d.program, ancestor, func(ctx context.Context) error {
		if d.rollback == nil {
			return nil
		}
		return d.rollback.HandleReorg(ctx, d.program, fromSlot)
	})
	if err != nil {
		return fmt.Errorf("failed to repair reorg at ancestor slot %d: %w", ancestor.Slot, err)
	}

	metrics.ReorgDetectedInc(d.program.String(), depth)
	reorgDetectedLog(d.program.String(), ancestor.Slot)
	metrics.CursorSlotSet(d.program.String(), cursor.Slot)

	d.log.Warnf("reorg repaired: ancestor_slot=%d depth=%d cursor_slot=%d",
		ancestor.Slot, depth, cursor.Slot)

	return newReorgError(d.program, ancestor, fromSlot, depth, details)
}

package reorg

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// ErrStaleBlock is returned when an observed block disagrees with a checkpoint chain that is
// still canonical upstream. The block came from a stale read and must be fetched again.
var ErrStaleBlock = errors.New("observed block is not on the canonical chain")

func newReorgError(program solana.PublicKey, ancestor types.ReorgCheckpoint, firstReorgSlot uint64,
	depth int, details string) error {
	return &types.ReorgDetectedError{
		ProgramID:      program,
		Ancestor:       ancestor,
		FirstReorgSlot: firstReorgSlot,
		Depth:          depth,
		Details:        details,
	}
}

func mismatchDetails(observed types.BlockRef, checkpoint types.ReorgCheckpoint) string {
	return fmt.Sprintf("observed slot=%d hash=%s parent_slot=%d parent_hash=%s, checkpoint slot=%d hash=%s",
		observed.Slot, observed.Hash, observed.ParentSlot, observed.ParentHash,
		checkpoint.Slot, checkpoint.BlockHash)
}

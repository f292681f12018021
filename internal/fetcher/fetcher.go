package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/pkg/rpc"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// MaxPageSize is the upstream limit of getSignaturesForAddress.
	MaxPageSize = 1000

	defaultBlockCacheSize = 1024
)

// Config contains configuration for the Fetcher.
type Config struct {
	// PageSize is the number of signatures requested per listing call
	PageSize int

	// BatchSize is the maximum number of transactions fetched in one batch request
	BatchSize int

	// BlockCacheSize is the number of block refs kept in memory
	BlockCacheSize int
}

// Fetcher retrieves signatures, transactions and block metadata from the upstream.
type Fetcher struct {
	cfg    Config
	rpc    rpc.Client
	blocks *lru.Cache[uint64, types.BlockRef]
	log    *logger.Logger

	finalized atomic.Uint64
}

// New creates a new Fetcher.
func New(cfg Config, client rpc.Client, log *logger.Logger) (*Fetcher, error) {
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = MaxPageSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.BlockCacheSize <= 0 {
		cfg.BlockCacheSize = defaultBlockCacheSize
	}

	blocks, err := lru.New[uint64, types.BlockRef](cfg.BlockCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create block cache: %w", err)
	}

	return &Fetcher{
		cfg:    cfg,
		rpc:    client,
		blocks: blocks,
		log:    log,
	}, nil
}

// PageSize returns the effective listing page size.
func (f *Fetcher) PageSize() int {
	return f.cfg.PageSize
}

// ListSignatures returns one page of signatures for program, newest first.
// before and until are exclusive bounds; zero values leave them open.
func (f *Fetcher) ListSignatures(ctx context.Context, program solana.PublicKey,
	before, until solana.Signature) ([]types.SignatureInfo, error) {
	sigs, err := f.rpc.ListSignatures(ctx, program, rpc.ListOptions{
		Before: before,
		Until:  until,
		Limit:  f.cfg.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures for %s: %w", common.ShortID(program.String()), err)
	}

	f.log.Debugf("listed %d signatures for %s (before=%s, until=%s)", len(sigs),
		common.ShortID(program.String()), common.ShortID(before.String()), common.ShortID(until.String()))

	return sigs, nil
}

// Fetch returns the transaction together with the hash and parent of its block.
// It fails with types.ErrNotFound when the transaction is not visible yet.
func (f *Fetcher) Fetch(ctx context.Context, sig solana.Signature) (*types.RawTransaction, error) {
	tx, err := f.rpc.GetTransaction(ctx, sig)
	if err != nil {
		return nil, err
	}

	if err := f.attachBlock(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}

// FetchBatch fetches sigs in batch requests of at most BatchSize.
// Entries not visible upstream yet are nil.
func (f *Fetcher) FetchBatch(ctx context.Context, sigs []solana.Signature) ([]*types.RawTransaction, error) {
	result := make([]*types.RawTransaction, 0, len(sigs))

	for start := 0; start < len(sigs); start += f.cfg.BatchSize {
		end := min(start+f.cfg.BatchSize, len(sigs))

		txs, err := f.rpc.BatchGetTransactions(ctx, sigs[start:end])
		if err != nil {
			return nil, err
		}

		for _, tx := range txs {
			if tx != nil {
				if err := f.attachBlock(ctx, tx); err != nil {
					return nil, err
				}
			}
			result = append(result, tx)
		}
	}

	return result, nil
}

// BlockRef returns the block at slot, served from the cache when possible.
func (f *Fetcher) BlockRef(ctx context.Context, slot uint64) (types.BlockRef, error) {
	if ref, ok := f.blocks.Get(slot); ok {
		blockCacheHitInc()
		return ref, nil
	}
	blockCacheMissInc()

	ref, err := f.rpc.GetBlockRef(ctx, slot)
	if err != nil {
		return types.BlockRef{}, err
	}

	f.blocks.Add(slot, ref)

	return ref, nil
}

// FinalizedSlot returns the newest finalized slot of the upstream.
func (f *Fetcher) FinalizedSlot(ctx context.Context) (uint64, error) {
	slot, err := f.rpc.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return 0, err
	}

	FinalizedSlotSet(slot)
	f.finalized.Store(slot)

	return slot, nil
}

// TipSlot returns the newest slot at the configured commitment.
func (f *Fetcher) TipSlot(ctx context.Context, commitment rpc.Commitment) (uint64, error) {
	return f.rpc.GetSlot(ctx, commitment)
}

// InvalidateFrom drops cached blocks at or above slot.
func (f *Fetcher) InvalidateFrom(slot uint64) {
	removed := 0
	for _, cached := range f.blocks.Keys() {
		if cached >= slot {
			f.blocks.Remove(cached)
			removed++
		}
	}

	if removed > 0 {
		f.log.Debugf("invalidated %d cached blocks from slot %d", removed, slot)
	}
}

// Refresh drops cached blocks above the last finalized slot seen, since those may still be replaced.
func (f *Fetcher) Refresh() {
	f.InvalidateFrom(f.finalized.Load() + 1)
}

func (f *Fetcher) attachBlock(ctx context.Context, tx *types.RawTransaction) error {
	ref, err := f.BlockRef(ctx, tx.Block.Slot)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("block of %s at slot %d: %w", tx.Signature, tx.Block.Slot, err)
		}
		return err
	}

	tx.Block = ref

	return nil
}

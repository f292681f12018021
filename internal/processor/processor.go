package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/dispatcher"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/metrics"
	"github.com/goran-ethernal/SolanaIndexor/internal/reorg"
	"github.com/goran-ethernal/SolanaIndexor/internal/retry"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// Fetcher retrieves transactions with their block ancestry.
type Fetcher interface {
	Fetch(ctx context.Context, sig solana.Signature) (*types.RawTransaction, error)
	FetchBatch(ctx context.Context, sigs []solana.Signature) ([]*types.RawTransaction, error)
	InvalidateFrom(slot uint64)
	Refresh()
}

// Checker verifies a block against the reorg checkpoint chain.
type Checker interface {
	Check(ctx context.Context, ref types.BlockRef) error
}

// Decoder extracts the events of a transaction.
type Decoder interface {
	Decode(tx *types.RawTransaction) ([]types.DecodedEvent, []*types.DecodingError)
}

// Dispatcher delivers the events of a signature exactly once.
type Dispatcher interface {
	Dispatch(ctx context.Context, sig solana.Signature, slot uint64,
		events []types.DecodedEvent) (dispatcher.Outcome, error)
}

// Result describes a processed signature.
type Result struct {
	Outcome dispatcher.Outcome
	Block   types.BlockRef
	Events  int
}

// Processor runs fetch, reorg check, decode and dispatch for one signature at a time.
// The Poller and the Backfill Engine of a program share it.
type Processor struct {
	fetcher    Fetcher
	checker    Checker
	decoder    Decoder
	dispatcher Dispatcher
	retry      *config.RetryConfig
	log        *logger.Logger

	mu         sync.Mutex
	prefetched map[solana.Signature]*types.RawTransaction
}

// New creates a Processor. checker may be nil when reorg detection is disabled.
func New(
	fetcher Fetcher,
	checker Checker,
	decoder Decoder,
	dispatcher Dispatcher,
	retryCfg *config.RetryConfig,
	log *logger.Logger,
) *Processor {
	return &Processor{
		fetcher:    fetcher,
		checker:    checker,
		decoder:    decoder,
		dispatcher: dispatcher,
		retry:      retryCfg,
		log:        log,
		prefetched: make(map[solana.Signature]*types.RawTransaction),
	}
}

// Prefetch loads the transactions of sigs in batch requests so Process does not wait on them one by one.
// Failures are only logged: Process falls back to single fetches.
func (p *Processor) Prefetch(ctx context.Context, sigs []types.SignatureInfo) {
	if len(sigs) < 2 {
		return
	}

	keys := make([]solana.Signature, len(sigs))
	for i, s := range sigs {
		keys[i] = s.Signature
	}

	txs, err := p.fetcher.FetchBatch(ctx, keys)
	if err != nil {
		p.log.Debugf("prefetch of %d transactions failed, falling back to single fetches: %v", len(keys), err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, tx := range txs {
		if tx != nil {
			p.prefetched[tx.Signature] = tx
		}
	}
}

// Refresh drops prefetched transactions and unfinalized cached blocks.
// It is called before each unit of work so a reorg between two ticks is observed.
func (p *Processor) Refresh() {
	p.mu.Lock()
	clear(p.prefetched)
	p.mu.Unlock()

	p.fetcher.Refresh()
}

func (p *Processor) takePrefetched(sig solana.Signature) *types.RawTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, ok := p.prefetched[sig]
	if ok {
		delete(p.prefetched, sig)
	}

	return tx
}

// Process runs one signature through the pipeline.
// A *types.ReorgDetectedError means local state was rewound and the caller must stop and re-plan.
func (p *Processor) Process(ctx context.Context, info types.SignatureInfo) (Result, error) {
	tx := p.takePrefetched(info.Signature)
	if tx == nil {
		var err error
		if tx, err = p.fetch(ctx, info.Signature); err != nil {
			return Result{Outcome: dispatcher.Failed}, err
		}
	}

	if p.checker != nil {
		err := p.checker.Check(ctx, tx.Block)
		if errors.Is(err, reorg.ErrStaleBlock) {
			// the cached block was replaced upstream; read it again once
			p.fetcher.InvalidateFrom(tx.Block.Slot)
			if tx, err = p.fetch(ctx, info.Signature); err != nil {
				return Result{Outcome: dispatcher.Failed}, err
			}
			err = p.checker.Check(ctx, tx.Block)
		}
		if err != nil {
			return Result{Outcome: dispatcher.Failed, Block: tx.Block}, err
		}
	}

	events, decodingErrs := p.decoder.Decode(tx)
	for _, decErr := range decodingErrs {
		p.log.Warnf("skipping malformed event: %v", decErr)
	}

	outcome, err := p.dispatcher.Dispatch(ctx, tx.Signature, tx.Block.Slot, events)

	return Result{Outcome: outcome, Block: tx.Block, Events: len(events)}, err
}

// fetch retries not found and transport errors with bounded backoff.
func (p *Processor) fetch(ctx context.Context, sig solana.Signature) (*types.RawTransaction, error) {
	r := retry.New(p.retry, types.IsRetryable)

	for {
		tx, err := p.fetcher.Fetch(ctx, sig)
		wait, again := r.Record(err)
		if err == nil {
			return tx, nil
		}

		if !again {
			metrics.ErrorsInc(common.ComponentFetcher, "error")
			return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", sig, r.Attempt(), err)
		}

		p.log.Debugf("fetch of %s failed (attempt %d), retrying in %v: %v",
			common.ShortID(sig.String()), r.Attempt(), wait, err)
		metrics.RetryInc("fetch_transaction")

		if err := r.Wait(ctx, wait); err != nil {
			return nil, err
		}
	}
}

package backfill

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/lock"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/metrics"
	"github.com/goran-ethernal/SolanaIndexor/internal/processor"
	"github.com/goran-ethernal/SolanaIndexor/internal/retry"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/goran-ethernal/SolanaIndexor/pkg/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// Lister lists a program's signatures one page at a time, newest first.
type Lister interface {
	ListSignatures(ctx context.Context, program solana.PublicKey,
		before, until solana.Signature) ([]types.SignatureInfo, error)
	PageSize() int
}

// Processor runs one signature through fetch, reorg check, decode and dispatch.
type Processor interface {
	Refresh()
	Prefetch(ctx context.Context, sigs []types.SignatureInfo)
	Process(ctx context.Context, info types.SignatureInfo) (processor.Result, error)
}

// Store is the state the engine reads and writes.
type Store interface {
	store.Backfills
	store.Cursors
}

// Range bounds a backfill. Slot bounds are inclusive; a zero ToSlot means no upper bound.
// Before and Until are optional exclusive signature bounds.
type Range struct {
	FromSlot uint64
	ToSlot   uint64
	Before   solana.Signature
	Until    solana.Signature
}

func (r Range) upper() uint64 {
	if r.ToSlot == 0 {
		return math.MaxUint64
	}
	return r.ToSlot
}

func (r Range) contains(slot uint64) bool {
	return slot >= r.FromSlot && slot <= r.upper()
}

// Engine re-runs the pipeline over historical signature ranges of one program.
// It never moves the live cursor; progress is kept per range.
type Engine struct {
	program   solana.PublicKey
	lister    Lister
	store     Store
	processor Processor
	locker    lock.Locker
	retry     *config.RetryConfig
	log       *logger.Logger
}

// New creates a backfill Engine.
func New(
	program solana.PublicKey,
	lister Lister,
	s Store,
	proc Processor,
	locker lock.Locker,
	retryCfg *config.RetryConfig,
	log *logger.Logger,
) *Engine {
	return &Engine{
		program:   program,
		lister:    lister,
		store:     s,
		processor: proc,
		locker:    locker,
		retry:     retryCfg,
		log:       log,
	}
}

// Run processes every signature of the range, oldest first.
// An interrupted run of the same range resumes after its last processed signature.
func (e *Engine) Run(ctx context.Context, r Range) (types.BackfillProgress, error) {
	if r.ToSlot != 0 && r.ToSlot < r.FromSlot {
		return types.BackfillProgress{}, fmt.Errorf("invalid backfill range: from_slot %d > to_slot %d",
			r.FromSlot, r.ToSlot)
	}

	progress, err := e.loadProgress(ctx, r)
	if err != nil {
		return progress, err
	}

	start := time.Now()
	e.log.Infof("backfill started: range=%s resume_after=%s", progress.ID,
		common.ShortID(progress.LastSignature.String()))

	sigs, err := e.collect(ctx, r)
	if err != nil {
		return progress, err
	}

	sigs = resumeAfter(sigs, progress.LastSignature)
	pageSize := e.lister.PageSize()

	for len(sigs) > 0 {
		n := min(pageSize, len(sigs))

		if err := e.runPage(ctx, &progress, sigs[:n]); err != nil {
			return progress, err
		}

		sigs = sigs[n:]
	}

	progress.Status = types.BackfillDone
	progress.UpdatedAt = time.Now().Unix()
	if err := e.store.SaveBackfillProgress(ctx, progress); err != nil {
		return progress, fmt.Errorf("failed to save backfill progress: %w", err)
	}

	e.log.Infof("backfill done: range=%s processed=%d took=%v", progress.ID, progress.Processed, time.Since(start))

	return progress, nil
}

// SeedHistory backfills from startSlot up to the live cursor.
// It does nothing while the cursor is empty or already below startSlot.
func (e *Engine) SeedHistory(ctx context.Context, startSlot uint64) (types.BackfillProgress, error) {
	cursor, err := e.store.LoadCursor(ctx, e.program)
	if err != nil {
		return types.BackfillProgress{}, fmt.Errorf("failed to load cursor: %w", err)
	}

	if cursor.IsEmpty() || cursor.Slot < startSlot {
		e.log.Debugf("nothing to seed: cursor_slot=%d start_slot=%d", cursor.Slot, startSlot)
		return types.BackfillProgress{}, nil
	}

	return e.Run(ctx, Range{FromSlot: startSlot, ToSlot: cursor.Slot})
}

// Resume finishes ranges left running by a previous process or a failed run.
// A range failing with a non fatal error stays running and the next range is tried;
// the failures are returned joined.
func (e *Engine) Resume(ctx context.Context) error {
	ranges, err := e.store.ListBackfillProgress(ctx, e.program)
	if err != nil {
		return fmt.Errorf("failed to list backfill progress: %w", err)
	}

	var errs []error

	for _, p := range ranges {
		if p.Status != types.BackfillRunning {
			continue
		}

		e.log.Infof("resuming interrupted backfill %s", p.ID)

		if _, err := e.Run(ctx, Range{FromSlot: p.FromSlot, ToSlot: p.ToSlot}); err != nil {
			if types.IsFatal(err) || ctx.Err() != nil {
				return err
			}
			e.log.Warnf("backfill %s stopped, it stays running: %v", p.ID, err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (e *Engine) loadProgress(ctx context.Context, r Range) (types.BackfillProgress, error) {
	id := types.BackfillRangeID(e.program, r.FromSlot, r.ToSlot)

	progress, err := e.store.GetBackfillProgress(ctx, id)
	switch {
	case errors.Is(err, types.ErrNotFound):
	case err != nil:
		return types.BackfillProgress{}, fmt.Errorf("failed to load backfill progress: %w", err)
	case progress.Status == types.BackfillRunning:
		return progress, nil
	}

	// a finished range runs again from scratch; the ledger keeps it free of duplicates
	progress = types.BackfillProgress{
		ID:        id,
		ProgramID: e.program,
		FromSlot:  r.FromSlot,
		ToSlot:    r.ToSlot,
		Status:    types.BackfillRunning,
		UpdatedAt: time.Now().Unix(),
	}

	if err := e.store.SaveBackfillProgress(ctx, progress); err != nil {
		return types.BackfillProgress{}, fmt.Errorf("failed to save backfill progress: %w", err)
	}

	return progress, nil
}

// collect lists the signatures of the range and returns them oldest first.
func (e *Engine) collect(ctx context.Context, r Range) ([]types.SignatureInfo, error) {
	var (
		sigs     []types.SignatureInfo
		before   = r.Before
		pageSize = e.lister.PageSize()
	)

	for {
		var page []types.SignatureInfo

		err := retry.Do(ctx, e.retry, "list_signatures", types.IsRetryable, func() error {
			var err error
			page, err = e.lister.ListSignatures(ctx, e.program, before, r.Until)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list signatures: %w", err)
		}

		for _, info := range page {
			if info.Slot < r.FromSlot {
				slices.Reverse(sigs)
				return sigs, nil
			}
			if r.contains(info.Slot) {
				sigs = append(sigs, info)
			}
		}

		if len(page) < pageSize {
			slices.Reverse(sigs)
			return sigs, nil
		}

		before = page[len(page)-1].Signature
	}
}

func resumeAfter(sigs []types.SignatureInfo, last solana.Signature) []types.SignatureInfo {
	if last == (solana.Signature{}) {
		return sigs
	}

	for i, info := range sigs {
		if info.Signature == last {
			return sigs[i+1:]
		}
	}

	// the last processed signature left the chain, start over
	return sigs
}

// runPage processes one page under the program lock, so live polling can interleave between pages.
func (e *Engine) runPage(ctx context.Context, progress *types.BackfillProgress, page []types.SignatureInfo) error {
	held, unlock, err := e.locker.Lock(ctx, e.program.String())
	if err != nil {
		return fmt.Errorf("failed to acquire program lock: %w", err)
	}
	defer unlock()

	e.processor.Refresh()
	e.processor.Prefetch(held, page)

	for _, info := range page {
		if err := held.Err(); err != nil {
			if lock.LeaseLost(held) {
				return fmt.Errorf("backfill page stopped before %s: %w", info.Signature, lock.ErrLeaseLost)
			}
			return err
		}

		if _, err := e.processor.Process(held, info); err != nil {
			if lock.LeaseLost(held) {
				err = errors.Join(err, lock.ErrLeaseLost)
			}
			return fmt.Errorf("failed to backfill %s at slot %d: %w", info.Signature, info.Slot, err)
		}

		progress.LastSignature = info.Signature
		progress.LastSlot = info.Slot
		progress.Processed++
		progress.UpdatedAt = time.Now().Unix()

		if err := e.store.SaveBackfillProgress(held, *progress); err != nil {
			return fmt.Errorf("failed to save backfill progress: %w", err)
		}

		metrics.BackfillSignaturesInc(e.program.String())
	}

	return nil
}

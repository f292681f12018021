package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/backfill"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	idecoder "github.com/goran-ethernal/SolanaIndexor/internal/decoder"
	"github.com/goran-ethernal/SolanaIndexor/internal/dispatcher"
	"github.com/goran-ethernal/SolanaIndexor/internal/fetcher"
	"github.com/goran-ethernal/SolanaIndexor/internal/lock"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/metrics"
	"github.com/goran-ethernal/SolanaIndexor/internal/poller"
	"github.com/goran-ethernal/SolanaIndexor/internal/processor"
	"github.com/goran-ethernal/SolanaIndexor/internal/reorg"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/goran-ethernal/SolanaIndexor/pkg/decoder"
	"github.com/goran-ethernal/SolanaIndexor/pkg/handler"
	"github.com/goran-ethernal/SolanaIndexor/pkg/rpc"
	"github.com/goran-ethernal/SolanaIndexor/pkg/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"golang.org/x/sync/errgroup"
)

const defaultHousekeepingInterval = time.Minute

// LoggerFunc returns the logger of a component.
type LoggerFunc func(component string) *logger.Logger

// Config describes one tracked program and the engine settings it runs with.
type Config struct {
	Name          string
	Program       solana.PublicKey
	StartStrategy string
	StartSlot     uint64

	Pipeline config.PipelineConfig
	Reorg    config.ReorgConfig
	Backfill config.BackfillConfig

	// HousekeepingInterval is the time between two rounds of finalized slot tracking,
	// checkpoint pruning and retries of failed backfill ranges
	HousekeepingInterval time.Duration
}

// Pipeline wires the poller, backfill engine and reorg detector of one program
// around a shared processor, store and program lock.
type Pipeline struct {
	cfg Config

	fetcher    *fetcher.Fetcher
	detector   *reorg.Detector
	dispatcher *dispatcher.Dispatcher
	processor  *processor.Processor
	poller     *poller.Poller
	backfill   *backfill.Engine
	router     *handler.Router
	store      store.Store
	locker     lock.Locker
	log        *logger.Logger

	// storeFailures counts consecutive failed store checks
	storeFailures int

	// resumeBackfill is set while a backfill range failed and waits for a retry
	resumeBackfill atomic.Bool
}

// New builds the pipeline of one program.
func New(
	cfg Config,
	client rpc.Client,
	s store.Store,
	locker lock.Locker,
	table *decoder.Table,
	router *handler.Router,
	loggers LoggerFunc,
) (*Pipeline, error) {
	if client == nil {
		return nil, errors.New("RPC client is required")
	}
	if s == nil {
		return nil, errors.New("store is required")
	}
	if table == nil {
		return nil, errors.New("decoding table is required")
	}
	if cfg.HousekeepingInterval <= 0 {
		cfg.HousekeepingInterval = defaultHousekeepingInterval
	}

	componentLogger := loggers
	loggers = func(component string) *logger.Logger {
		return componentLogger(component).WithProgram(cfg.Name, cfg.Program.String())
	}

	f, err := fetcher.New(fetcher.Config{
		PageSize:  cfg.Pipeline.PageSize,
		BatchSize: cfg.Pipeline.BatchSize,
	}, client, loggers(common.ComponentFetcher))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:     cfg,
		fetcher: f,
		router:  router,
		store:   s,
		locker:  locker,
		log:     loggers(common.ComponentCoordinator),
	}

	p.dispatcher = dispatcher.New(cfg.Program, s, router, loggers(common.ComponentDispatcher))

	var checker processor.Checker
	if !cfg.Reorg.Disabled {
		p.detector = reorg.NewDetector(cfg.Program, reorg.Config{
			MaxLookbackDepth: cfg.Reorg.MaxLookbackDepth,
			PruneFinalized:   cfg.Reorg.PruneFinalized,
		}, s, client, router, loggers(common.ComponentReorgDetector))
		checker = p.detector
	}

	p.processor = processor.New(f, checker,
		idecoder.New(cfg.Program, table, cfg.Pipeline.IndexFailedTransactions, loggers(common.ComponentDecoder)),
		p.dispatcher, cfg.Pipeline.Retry, loggers(common.ComponentDispatcher))

	p.poller = poller.New(cfg.Program, poller.Config{
		Interval:        cfg.Pipeline.PollInterval.Duration,
		TickTimeout:     cfg.Pipeline.TickTimeout.Duration,
		MaxPagesPerTick: cfg.Pipeline.MaxPagesPerTick,
		PrefetchSize:    cfg.Pipeline.BatchSize,
		Retry:           cfg.Pipeline.Retry,
	}, f, s, p.processor, locker, p.handleError, loggers(common.ComponentPoller))

	p.backfill = backfill.New(cfg.Program, f, s, p.processor, locker, cfg.Pipeline.Retry,
		loggers(common.ComponentBackfill))

	return p, nil
}

// Name returns the configured program name.
func (p *Pipeline) Name() string {
	return p.cfg.Name
}

// Program returns the tracked program id.
func (p *Pipeline) Program() solana.PublicKey {
	return p.cfg.Program
}

// Nudge asks the poller to tick right away.
func (p *Pipeline) Nudge() {
	p.poller.Nudge()
}

// Run recovers interrupted work, applies the start strategy and then polls until ctx is cancelled
// or a fatal error occurs. Historical ranges that fail are left running and retried in the background.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("starting pipeline")

	if err := p.dispatcher.Recover(ctx); err != nil {
		return err
	}

	p.refreshFinalized(ctx)

	if err := p.start(ctx); err != nil {
		return err
	}

	if err := p.tolerate(ctx, "backfill resume", p.backfill.Resume(ctx)); err != nil {
		return err
	}

	if p.cfg.Backfill.Enabled {
		_, err := p.backfill.SeedHistory(ctx, p.cfg.Backfill.StartSlot)
		if err := p.tolerate(ctx, "history seeding", err); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.poller.Run(gctx)
	})

	g.Go(func() error {
		return p.housekeeping(gctx)
	})

	return g.Wait()
}

// tolerate returns err when it must stop the pipeline. Any other backfill failure leaves its
// range running and schedules a retry.
func (p *Pipeline) tolerate(ctx context.Context, step string, err error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return err
	case types.IsFatal(err):
		p.log.Errorf("fatal error during %s, stopping pipeline: %v", step, err)
		metrics.ComponentHealthSet(common.ComponentCoordinator, false)
		return err
	}

	p.log.Warnf("%s failed, retrying in the background: %v", step, err)
	metrics.ErrorsInc(common.ComponentBackfill, "deferred")
	p.resumeBackfill.Store(true)

	return nil
}

// Backfill runs a one-off backfill of r.
func (p *Pipeline) Backfill(ctx context.Context, r backfill.Range) (types.BackfillProgress, error) {
	if err := p.dispatcher.Recover(ctx); err != nil {
		return types.BackfillProgress{}, err
	}

	return p.backfill.Run(ctx, r)
}

// start positions a cursor that was never advanced according to the start strategy.
func (p *Pipeline) start(ctx context.Context) error {
	cursor, err := p.store.LoadCursor(ctx, p.cfg.Program)
	if err != nil {
		return fmt.Errorf("failed to load cursor: %w", err)
	}

	if !cursor.IsEmpty() || cursor.Version > 0 {
		p.log.Infof("resuming at slot %d (signature %s)", cursor.Slot, common.ShortID(cursor.Signature.String()))
		return nil
	}

	cursor, err = p.baseline(ctx)
	if err != nil {
		return err
	}

	if p.cfg.StartStrategy != config.StartStrategySlot || cursor.IsEmpty() {
		return nil
	}

	// index the history from start_slot up to the baseline before going live
	p.log.Infof("indexing history from slot %d up to baseline slot %d", p.cfg.StartSlot, cursor.Slot)

	_, err = p.backfill.Run(ctx, backfill.Range{FromSlot: p.cfg.StartSlot, ToSlot: cursor.Slot})

	return p.tolerate(ctx, "history indexing", err)
}

// baseline positions the empty cursor at the newest signature. Polling an empty cursor would
// deliver the whole history, so it is retried every poll interval until it succeeds.
func (p *Pipeline) baseline(ctx context.Context) (types.SignatureCursor, error) {
	for {
		cursor, err := p.lockedBaseline(ctx)
		if err == nil {
			return cursor, nil
		}
		if ctx.Err() != nil {
			return types.SignatureCursor{}, ctx.Err()
		}

		if err := p.handleError(ctx, err); err != nil {
			return types.SignatureCursor{}, err
		}

		select {
		case <-ctx.Done():
			return types.SignatureCursor{}, ctx.Err()
		case <-time.After(p.cfg.Pipeline.PollInterval.Duration):
		}
	}
}

func (p *Pipeline) lockedBaseline(ctx context.Context) (types.SignatureCursor, error) {
	held, unlock, err := p.locker.Lock(ctx, p.cfg.Program.String())
	if err != nil {
		return types.SignatureCursor{}, fmt.Errorf("failed to acquire program lock: %w", err)
	}
	defer unlock()

	return p.poller.Baseline(held)
}

// handleError reacts to a failed tick. Only fatal errors stop the pipeline.
func (p *Pipeline) handleError(ctx context.Context, err error) error {
	var reorgErr *types.ReorgDetectedError

	switch {
	case types.IsFatal(err):
		p.log.Errorf("fatal error, stopping pipeline: %v", err)
		metrics.ComponentHealthSet(common.ComponentCoordinator, false)
		return err

	case errors.As(err, &reorgErr):
		p.log.Warnf("reorg detected, re-processing from slot %d: %s", reorgErr.Ancestor.Slot+1, reorgErr.Details)
		return p.handleReorg(ctx, reorgErr)

	default:
		p.log.Warnf("tick failed, retrying next tick: %v", err)
		return p.checkStore(ctx)
	}
}

// checkStore reads the cursor after a failed tick. The store is reported unavailable once
// the check fails as many consecutive times as the retry policy allows attempts.
func (p *Pipeline) checkStore(ctx context.Context) error {
	_, err := p.store.LoadCursor(ctx, p.cfg.Program)
	if err == nil {
		p.storeFailures = 0
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	p.storeFailures++
	metrics.ErrorsInc(common.ComponentStore, "unavailable")

	limit := 1
	if p.cfg.Pipeline.Retry != nil {
		limit = max(p.cfg.Pipeline.Retry.MaxAttempts, 1)
	}

	if p.storeFailures < limit {
		p.log.Warnf("store check failed (%d/%d): %v", p.storeFailures, limit, err)
		return nil
	}

	fatal := &types.StoreUnavailableError{Checks: p.storeFailures, Err: err}
	p.log.Errorf("fatal error, stopping pipeline: %v", fatal)
	metrics.ComponentHealthSet(common.ComponentCoordinator, false)

	return fatal
}

// handleReorg re-processes the range above the common ancestor up to the current tip.
func (p *Pipeline) handleReorg(ctx context.Context, reorgErr *types.ReorgDetectedError) error {
	from := reorgErr.Ancestor.Slot + 1

	p.fetcher.InvalidateFrom(from)

	tip, err := p.fetcher.TipSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		p.log.Warnf("failed to read tip after reorg, leaving the range to the poller: %v", err)
		return nil
	}

	if tip < from {
		return nil
	}

	progress, err := p.backfill.Run(ctx, backfill.Range{FromSlot: from, ToSlot: tip})
	if err != nil {
		if types.IsFatal(err) {
			return err
		}
		p.log.Warnf("re-processing after reorg stopped, the poller continues from the rewound cursor: %v", err)
		return nil
	}

	p.log.Infof("reorg handled, re-processed %d signatures in slots %d..%d", progress.Processed, from, tip)

	return nil
}

// housekeeping tracks the finalized slot, prunes finalized checkpoints and retries failed
// backfill ranges. Only a fatal backfill error stops it.
func (p *Pipeline) housekeeping(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.HousekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		p.refreshFinalized(ctx)

		if p.detector != nil && p.cfg.Reorg.PruneFinalized {
			if err := p.prune(ctx); err != nil && ctx.Err() == nil {
				p.log.Warnf("checkpoint pruning failed: %v", err)
			}
		}

		if !p.resumeBackfill.Load() {
			continue
		}

		err := p.backfill.Resume(ctx)
		switch {
		case err == nil:
			p.resumeBackfill.Store(false)
			p.log.Info("failed backfill ranges finished")
		case ctx.Err() != nil:
			return ctx.Err()
		case types.IsFatal(err):
			p.log.Errorf("fatal error during backfill retry, stopping pipeline: %v", err)
			metrics.ComponentHealthSet(common.ComponentCoordinator, false)
			return err
		default:
			p.log.Warnf("backfill retry failed, trying again in %v: %v", p.cfg.HousekeepingInterval, err)
		}
	}
}

// refreshFinalized records the upstream finalized slot. Cached blocks at or below it survive
// the per tick cache refresh.
func (p *Pipeline) refreshFinalized(ctx context.Context) {
	if _, err := p.fetcher.FinalizedSlot(ctx); err != nil && ctx.Err() == nil {
		p.log.Warnf("failed to read finalized slot: %v", err)
	}
}

func (p *Pipeline) prune(ctx context.Context) error {
	held, unlock, err := p.locker.Lock(ctx, p.cfg.Program.String())
	if err != nil {
		return err
	}
	defer unlock()

	return p.detector.PruneFinalized(held)
}

// Close releases the handlers of the program.
func (p *Pipeline) Close() error {
	if p.router == nil {
		return nil
	}

	return p.router.Close()
}

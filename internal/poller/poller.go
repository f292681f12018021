package poller

import (
	"context"
	"errors"
	"fmt"
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

// ErrorHandler is called with the error of a failed tick, outside the program lock.
// A non-nil return stops the poller.
type ErrorHandler func(ctx context.Context, err error) error

// Config contains configuration for the Poller.
type Config struct {
	// Interval is the time between two ticks
	Interval time.Duration

	// TickTimeout bounds a single tick; zero means no timeout
	TickTimeout time.Duration

	// MaxPagesPerTick bounds how many signature pages one tick lists
	MaxPagesPerTick int

	// PrefetchSize is the number of transactions fetched ahead of dispatch
	PrefetchSize int

	// Retry is the policy for listing failures
	Retry *config.RetryConfig
}

// Poller tails the live signatures of one program and advances its cursor.
type Poller struct {
	program solana.PublicKey
	cfg     Config

	lister    Lister
	cursors   store.Cursors
	processor Processor
	locker    lock.Locker
	onError   ErrorHandler
	log       *logger.Logger

	nudge chan struct{}

	// scan state, only touched while the program lock is held
	version    uint64
	scan       []types.SignatureInfo
	scanBefore solana.Signature
	backlog    []types.SignatureInfo
}

// New creates a Poller. onError may be nil, in which case tick errors are only logged.
func New(
	program solana.PublicKey,
	cfg Config,
	lister Lister,
	cursors store.Cursors,
	proc Processor,
	locker lock.Locker,
	onError ErrorHandler,
	log *logger.Logger,
) *Poller {
	if cfg.MaxPagesPerTick <= 0 {
		cfg.MaxPagesPerTick = 1
	}
	if cfg.PrefetchSize <= 0 {
		cfg.PrefetchSize = 1
	}

	return &Poller{
		program:   program,
		cfg:       cfg,
		lister:    lister,
		cursors:   cursors,
		processor: proc,
		locker:    locker,
		onError:   onError,
		log:       log,
		nudge:     make(chan struct{}, 1),
	}
}

// Nudge triggers the next tick right away. It never blocks.
func (p *Poller) Nudge() {
	select {
	case p.nudge <- struct{}{}:
	default:
	}
}

// Reset forgets listed but unprocessed signatures. It must be called with the program lock held.
func (p *Poller) Reset() {
	p.scan = nil
	p.scanBefore = solana.Signature{}
	p.backlog = nil
}

// Run ticks until ctx is cancelled or the error handler returns an error.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.log.Infof("poller started: interval=%v max_pages_per_tick=%d", p.cfg.Interval, p.cfg.MaxPagesPerTick)

	for {
		if err := p.runTick(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			p.log.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-p.nudge:
		}
	}
}

func (p *Poller) runTick(ctx context.Context) error {
	tickCtx := ctx
	if p.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, p.cfg.TickTimeout)
		defer cancel()
	}

	start := time.Now()

	held, unlock, err := p.locker.Lock(tickCtx, p.program.String())
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		p.log.Warnf("failed to acquire program lock: %v", err)
		return nil
	}

	err = p.Tick(held)
	lost := lock.LeaseLost(held)
	unlock()

	metrics.TickDurationLog(p.program.String(), time.Since(start))

	if lost {
		// another instance may own the cursor now, reload it next tick
		p.Reset()
		metrics.ErrorsInc(common.ComponentPoller, "lease_lost")
		p.log.Warnf("program lock lost during tick: %v", err)
		return nil
	}

	if err == nil || ctx.Err() != nil {
		return nil
	}

	metrics.ErrorsInc(common.ComponentPoller, "error")

	if p.onError == nil {
		p.log.Errorf("tick failed: %v", err)
		return nil
	}

	return p.onError(ctx, err)
}

// Tick lists signatures newer than the cursor and processes them oldest first.
// The caller must hold the program lock.
func (p *Poller) Tick(ctx context.Context) error {
	cursor, err := p.cursors.LoadCursor(ctx, p.program)
	if err != nil {
		return fmt.Errorf("failed to load cursor: %w", err)
	}

	if cursor.Version != p.version {
		// the cursor moved outside this poller (reorg repair or another instance)
		p.Reset()
		p.version = cursor.Version
	}

	p.processor.Refresh()

	if len(p.backlog) == 0 {
		complete, err := p.discover(ctx, cursor)
		if err != nil {
			return err
		}
		if !complete {
			p.log.Debugf("listed %d signatures so far, continuing next tick", len(p.scan))
			return nil
		}
	}

	return p.drain(ctx, cursor)
}

// discover pages backward from the newest signature until it reaches the cursor.
// The listing may span several ticks; it reports true once the backlog is ready.
func (p *Poller) discover(ctx context.Context, cursor types.SignatureCursor) (bool, error) {
	// a cursor rewound below every committed signature only knows its slot
	rewound := cursor.IsEmpty() && cursor.Version > 0
	pageSize := p.lister.PageSize()

	for range p.cfg.MaxPagesPerTick {
		var page []types.SignatureInfo

		err := retry.Do(ctx, p.cfg.Retry, "list_signatures", types.IsRetryable, func() error {
			var err error
			page, err = p.lister.ListSignatures(ctx, p.program, p.scanBefore, cursor.Signature)
			return err
		})
		if err != nil {
			return false, err
		}

		reached := len(page) < pageSize
		for _, info := range page {
			// anything older than the cursor was handled before; this also stops a listing that
			// ran past a cursor signature which left the chain
			if info.Slot < cursor.Slot || (rewound && info.Slot == cursor.Slot) {
				reached = true
				break
			}
			p.scan = append(p.scan, info)
		}

		if len(page) > 0 {
			p.scanBefore = page[len(page)-1].Signature
		}

		if reached {
			p.backlog = p.scan
			slices.Reverse(p.backlog)
			p.scan = nil
			p.scanBefore = solana.Signature{}
			return true, nil
		}
	}

	return false, nil
}

// drain processes the backlog oldest first and advances the cursor after each signature.
func (p *Poller) drain(ctx context.Context, cursor types.SignatureCursor) error {
	if len(p.backlog) > 0 {
		p.log.Debugf("processing %d signatures after slot %d", len(p.backlog), cursor.Slot)
	}

	prefetched := 0

	for len(p.backlog) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		if prefetched == 0 {
			prefetched = min(p.cfg.PrefetchSize, len(p.backlog))
			p.processor.Prefetch(ctx, p.backlog[:prefetched])
		}
		prefetched--

		info := p.backlog[0]

		res, err := p.processor.Process(ctx, info)
		if err != nil {
			var reorgErr *types.ReorgDetectedError
			if errors.As(err, &reorgErr) {
				p.Reset()
				return err
			}
			return fmt.Errorf("failed to process %s at slot %d: %w", info.Signature, info.Slot, err)
		}

		p.backlog = p.backlog[1:]

		if res.Block.Slot < cursor.Slot {
			continue
		}

		cursor.Signature = info.Signature
		cursor.Slot = res.Block.Slot
		cursor.BlockHash = res.Block.Hash

		cursor, err = p.cursors.SaveCursor(ctx, cursor)
		if err != nil {
			if errors.Is(err, types.ErrCursorConflict) {
				p.Reset()
			}
			return fmt.Errorf("failed to save cursor: %w", err)
		}

		p.version = cursor.Version

		metrics.CursorSlotSet(p.program.String(), cursor.Slot)
	}

	return nil
}

// Baseline moves an empty cursor to the newest signature of the program without processing history.
// It returns the saved cursor, which stays empty when the program has no signatures yet.
// The caller must hold the program lock.
func (p *Poller) Baseline(ctx context.Context) (types.SignatureCursor, error) {
	cursor, err := p.cursors.LoadCursor(ctx, p.program)
	if err != nil {
		return types.SignatureCursor{}, fmt.Errorf("failed to load cursor: %w", err)
	}

	// a rewound cursor is empty too, but its version tells it apart
	if !cursor.IsEmpty() || cursor.Version > 0 {
		return cursor, nil
	}

	var page []types.SignatureInfo

	err = retry.Do(ctx, p.cfg.Retry, "list_signatures", types.IsRetryable, func() error {
		var err error
		page, err = p.lister.ListSignatures(ctx, p.program, solana.Signature{}, solana.Signature{})
		return err
	})
	if err != nil {
		return types.SignatureCursor{}, fmt.Errorf("failed to list newest signature: %w", err)
	}

	if len(page) == 0 {
		p.log.Info("program has no signatures yet, cursor stays empty")
		return cursor, nil
	}

	cursor.Signature = page[0].Signature
	cursor.Slot = page[0].Slot

	cursor, err = p.cursors.SaveCursor(ctx, cursor)
	if err != nil {
		return types.SignatureCursor{}, fmt.Errorf("failed to save baseline cursor: %w", err)
	}

	p.version = cursor.Version
	p.Reset()

	metrics.CursorSlotSet(p.program.String(), cursor.Slot)
	p.log.Infof("cursor baselined at slot %d (%s)", cursor.Slot, common.ShortID(cursor.Signature.String()))

	return cursor, nil
}

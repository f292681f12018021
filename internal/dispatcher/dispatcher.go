package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/metrics"
	"github.com/goran-ethernal/SolanaIndexor/pkg/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// Outcome is the result of dispatching one signature.
type Outcome int

const (
	// Committed means the events were delivered and the ledger row is committed.
	Committed Outcome = iota
	// Duplicate means the signature was already delivered, or is being delivered elsewhere.
	Duplicate
	// Failed means a handler failed and the ledger row is marked failed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Duplicate:
		return "duplicate"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Advances reports whether the cursor may move past the signature.
func (o Outcome) Advances() bool {
	return o == Committed || o == Duplicate
}

// Router delivers a single event to the handlers interested in it.
type Router interface {
	Route(ctx context.Context, event types.DecodedEvent) error
}

// Dispatcher delivers the events of a signature exactly once through the delivery ledger.
type Dispatcher struct {
	program solana.PublicKey
	ledger  store.Ledger
	router  Router
	log     *logger.Logger

	// stranded holds signatures whose failed delivery could not be marked and are still pending
	mu       sync.Mutex
	stranded map[solana.Signature]struct{}
}

// New creates a dispatcher for one program.
func New(program solana.PublicKey, ledger store.Ledger, router Router, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		program: program,
		ledger:  ledger,
		router:   router,
		log:      log,
		stranded: make(map[solana.Signature]struct{}),
	}
}

// Recover resets rows left pending by a previous crash so they are delivered again.
func (d *Dispatcher) Recover(ctx context.Context) error {
	n, err := d.ledger.ResetPending(ctx, d.program)
	if err != nil {
		return fmt.Errorf("failed to reset pending deliveries: %w", err)
	}

	if n > 0 {
		d.log.Warnf("reset %d deliveries interrupted before commit", n)
	}

	return nil
}

// Dispatch runs the handlers for events of sig, in order, inside the ledger commit transaction.
// A handler failure rolls back every handler effect, marks the row failed and returns a *types.HandlerError.
func (d *Dispatcher) Dispatch(ctx context.Context, sig solana.Signature, slot uint64,
	events []types.DecodedEvent) (Outcome, error) {
	programLabel := d.program.String()

	if err := d.release(ctx, sig); err != nil {
		return Failed, err
	}

	res, err := d.ledger.InsertPending(ctx, d.program, sig, slot)
	switch {
	case errors.Is(err, types.ErrLedgerConflict):
		d.log.Debugf("signature %s is pending elsewhere, treating as duplicate", common.ShortID(sig.String()))
		metrics.SignatureProcessedInc(programLabel, Duplicate.String())
		return Duplicate, nil
	case err != nil:
		return Failed, fmt.Errorf("failed to insert pending delivery: %w", err)
	case res == store.AlreadyCommitted:
		d.log.Debugf("signature %s already committed", common.ShortID(sig.String()))
		metrics.SignatureProcessedInc(programLabel, Duplicate.String())
		return Duplicate, nil
	}

	err = d.ledger.Commit(ctx, sig, func(ctx context.Context) error {
		for _, event := range events {
			if err := d.router.Route(ctx, event); err != nil {
				return &types.HandlerError{
					Signature: sig,
					Kind:      event.Kind,
					Index:     event.Index,
					Err:       err,
				}
			}
		}
		return nil
	})
	if err != nil {
		metrics.SignatureProcessedInc(programLabel, Failed.String())

		// the row must leave pending even when ctx is already cancelled
		if markErr := d.ledger.MarkFailed(context.WithoutCancel(ctx), sig, err.Error()); markErr != nil {
			d.log.Errorf("failed to mark %s failed: %v", common.ShortID(sig.String()), markErr)
			d.strand(sig)

			return Failed, errors.Join(err, fmt.Errorf("failed to mark %s failed: %w", sig, markErr))
		}

		var handlerErr *types.HandlerError
		if errors.As(err, &handlerErr) {
			return Failed, handlerErr
		}

		return Failed, fmt.Errorf("failed to commit delivery of %s: %w", sig, err)
	}

	for _, event := range events {
		metrics.EventDeliveredInc(programLabel, event.Kind)
	}
	metrics.SignatureProcessedInc(programLabel, Committed.String())

	d.log.Debugf("committed %s at slot %d with %d events", common.ShortID(sig.String()), slot, len(events))

	return Committed, nil
}

func (d *Dispatcher) strand(sig solana.Signature) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stranded[sig] = struct{}{}
}

// release marks a stranded signature failed, so the next InsertPending revives it instead of
// reporting a conflict that would let the cursor move past it.
func (d *Dispatcher) release(ctx context.Context, sig solana.Signature) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.stranded[sig]; !ok {
		return nil
	}

	if err := d.ledger.MarkFailed(ctx, sig, "previous failure could not be recorded"); err != nil {
		return fmt.Errorf("failed to release pending delivery of %s: %w", sig, err)
	}

	delete(d.stranded, sig)

	return nil
}

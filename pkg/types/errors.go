package types

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrNotFound is returned when a transaction or block is not visible upstream yet.
	ErrNotFound = errors.New("not found")

	// ErrLedgerConflict is returned when another worker holds a pending record for the signature.
	ErrLedgerConflict = errors.New("ledger conflict: signature is already pending")

	// ErrCursorConflict is returned when a cursor was modified concurrently.
	ErrCursorConflict = errors.New("cursor conflict: version mismatch")
)

// TransportError wraps failures to reach the upstream.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error calling %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodingError reports a malformed payload for a recognized discriminator.
type DecodingError struct {
	Signature     solana.Signature
	Discriminator Discriminator
	Kind          string
	Position      int
	Err           error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("failed to decode %s (discriminator %x) at position %d in %s: %v",
		e.Kind, e.Discriminator[:], e.Position, e.Signature, e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// HandlerError wraps a user handler failure.
type HandlerError struct {
	Signature solana.Signature
	Kind      string
	Index     int
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed for %s event #%d in %s: %v", e.Kind, e.Index, e.Signature, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// ReorgDetectedError is returned when a chain reorganization was detected and repaired.
// The range (Ancestor.Slot, ...] must be re-processed.
type ReorgDetectedError struct {
	ProgramID solana.PublicKey
	Ancestor  ReorgCheckpoint
	// FirstReorgSlot is the lowest slot whose block was found to diverge.
	FirstReorgSlot uint64
	Depth          int
	Details        string
}

func (e *ReorgDetectedError) Error() string {
	return fmt.Sprintf("reorg detected for program %s at slot %d (ancestor slot %d, depth %d): %s",
		e.ProgramID, e.FirstReorgSlot, e.Ancestor.Slot, e.Depth, e.Details)
}

// ReorgDepthExceededError is fatal: no common ancestor was found within the lookback depth.
type ReorgDepthExceededError struct {
	ProgramID solana.PublicKey
	Slot      uint64
	MaxDepth  int
}

func (e *ReorgDepthExceededError) Error() string {
	return fmt.Sprintf("reorg depth exceeded for program %s: no common ancestor within %d checkpoints of slot %d",
		e.ProgramID, e.MaxDepth, e.Slot)
}

// StoreUnavailableError is fatal: the store kept failing on consecutive checks.
type StoreUnavailableError struct {
	Checks int
	Err    error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable after %d failed checks: %v", e.Checks, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is transient (transport failure or not yet visible).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError

	return errors.Is(err, ErrNotFound) || errors.As(err, &transportErr)
}

// IsFatal reports whether err requires operator intervention.
func IsFatal(err error) bool {
	var (
		depthErr *ReorgDepthExceededError
		storeErr *StoreUnavailableError
	)

	return errors.As(err, &depthErr) || errors.As(err, &storeErr)
}

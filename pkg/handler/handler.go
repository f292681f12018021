package handler

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// Handler receives decoded events of a tracked program.
// Handle runs inside the delivery ledger transaction of the event's signature: side effects written
// through the transaction found on ctx (see store.SQLTx and store.PgxTx) commit or roll back with it.
type Handler interface {
	// Name identifies the handler in logs and errors.
	Name() string

	// Kinds returns the event kinds this handler wants. An empty slice subscribes to every kind.
	Kinds() []string

	// Handle processes a single event. Events of one program arrive in signature order and,
	// within a signature, in emission order.
	Handle(ctx context.Context, event types.DecodedEvent) error
}

// ReorgHandler is implemented by handlers that persist state derived from events and must
// roll it back when the chain reorganizes.
type ReorgHandler interface {
	// HandleReorg removes every effect of events with slot >= fromSlot for the program.
	// It runs inside the reorg repair transaction.
	HandleReorg(ctx context.Context, program solana.PublicKey, fromSlot uint64) error
}

// Closer is implemented by handlers holding resources.
type Closer interface {
	Close() error
}

package rpc

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// ListOptions bounds a getSignaturesForAddress call.
// Results are returned newest first, strictly older than Before and strictly newer than Until.
type ListOptions struct {
	Before solana.Signature
	Until  solana.Signature
	Limit  int
}

// Client defines the interface for Solana RPC operations.
// This abstraction allows for easier testing and alternative implementations.
type Client interface {
	// Close closes the RPC client connections.
	Close()

	// ListSignatures lists the signatures of transactions mentioning the program, newest first.
	ListSignatures(ctx context.Context, program solana.PublicKey, opts ListOptions) ([]types.SignatureInfo, error)

	// GetTransaction fetches a single transaction.
	// Returns types.ErrNotFound when the transaction is not visible yet.
	// The returned transaction carries only the slot in its block reference.
	GetTransaction(ctx context.Context, sig solana.Signature) (*types.RawTransaction, error)

	// BatchGetTransactions fetches several transactions in a single batch call.
	// Entries for transactions that are not visible yet are nil.
	BatchGetTransactions(ctx context.Context, sigs []solana.Signature) ([]*types.RawTransaction, error)

	// GetBlockRef retrieves the hash and parent of the block at slot.
	// Returns types.ErrNotFound when the slot was skipped or is not available.
	GetBlockRef(ctx context.Context, slot uint64) (types.BlockRef, error)

	// GetSlot returns the current slot at the given commitment.
	GetSlot(ctx context.Context, commitment Commitment) (uint64, error)
}

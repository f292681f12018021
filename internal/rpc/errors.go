package rpc

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// JSON-RPC server error codes returned by Solana validators.
const (
	codeBlockCleanedUp                 = -32001
	codeBlockNotAvailable              = -32004
	codeSlotSkipped                    = -32007
	codeLongTermStorageSlotSkipped     = -32009
	codeTransactionHistoryNotAvailable = -32011
	codeMinContextSlotNotReached       = -32016
)

var firstAvailableRe = regexp.MustCompile(`First available block: (\d+)`)

// errorCode extracts the JSON-RPC error code from either transport's error type.
func errorCode(err error) (int, string, bool) {
	var solErr *jsonrpc.RPCError
	if errors.As(err, &solErr) {
		return solErr.Code, solErr.Message, true
	}

	var gethErr gethrpc.Error
	if errors.As(err, &gethErr) {
		return gethErr.ErrorCode(), gethErr.Error(), true
	}

	return 0, "", false
}

// IsSlotUnavailableError checks if the error means the requested slot has no block on the node
// (skipped, cleaned up or not yet produced).
func IsSlotUnavailableError(err error) bool {
	code, _, ok := errorCode(err)
	if !ok {
		return false
	}

	switch code {
	case codeBlockCleanedUp, codeBlockNotAvailable, codeSlotSkipped, codeLongTermStorageSlotSkipped,
		codeTransactionHistoryNotAvailable, codeMinContextSlotNotReached:
		return true
	default:
		return false
	}
}

// ParseFirstAvailableSlot attempts to extract the first available slot from a "cleaned up" error message.
// Expected format: "Block 1000 cleaned up, does not exist on node. First available block: 2000"
func ParseFirstAvailableSlot(msg string) (uint64, bool) {
	if msg == "" {
		return 0, false
	}

	matches := firstAvailableRe.FindStringSubmatch(msg)

	const expectedMatches = 2 // full match + 1 group
	if len(matches) != expectedMatches {
		return 0, false
	}

	slot, err := common.ParseSlot(matches[1])
	if err != nil {
		return 0, false
	}

	return slot, true
}

// classifyError maps an upstream error onto the indexer's error kinds:
// missing data becomes types.ErrNotFound, JSON-RPC application errors are returned as is
// and everything else is a *types.TransportError.
func classifyError(method string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, types.ErrNotFound) {
		return err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	if IsSlotUnavailableError(err) {
		_, msg, _ := errorCode(err)
		if first, ok := ParseFirstAvailableSlot(msg); ok {
			return fmt.Errorf("%s: first available slot is %d: %w", method, first, types.ErrNotFound)
		}

		return fmt.Errorf("%s: %s: %w", method, msg, types.ErrNotFound)
	}

	if _, _, ok := errorCode(err); ok {
		return fmt.Errorf("%s: %w", method, err)
	}

	return &types.TransportError{Method: method, Err: err}
}

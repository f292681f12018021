// Package testutil provides an in-memory upstream chain and a small decoding table for pipeline tests.
package testutil

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/pkg/rpc"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// Tx describes a transaction included in a block of the fake chain.
type Tx struct {
	Program solana.PublicKey
	// Data holds one top level instruction of Program per entry.
	Data   [][]byte
	Logs   []string
	Failed bool
}

type entry struct {
	tx       *types.RawTransaction
	mentions map[solana.PublicKey]struct{}
}

var _ rpc.Client = (*Chain)(nil)

// Chain is an in-memory upstream implementing rpc.Client.
// Blocks are appended in slot order and Reorg replaces the tip.
type Chain struct {
	mu sync.Mutex

	blocks map[uint64]types.BlockRef
	slots  []uint64
	// canonical transactions, oldest first
	order []solana.Signature
	txs   map[solana.Signature]entry

	fork      uint64
	nonce     uint64
	finalized uint64

	hidden map[solana.Signature]int

	// FailTransport makes every call fail with a transport error while set.
	FailTransport bool
}

// NewChain creates a chain whose genesis block is at slot 0.
func NewChain() *Chain {
	c := &Chain{
		blocks: make(map[uint64]types.BlockRef),
		txs:    make(map[solana.Signature]entry),
		hidden: make(map[solana.Signature]int),
	}

	genesis := types.BlockRef{Slot: 0, Hash: c.blockHash(0)}
	c.blocks[0] = genesis
	c.slots = append(c.slots, 0)

	return c
}

func (c *Chain) blockHash(slot uint64) solana.Hash {
	return sha256.Sum256(fmt.Appendf(nil, "block/%d/%d", slot, c.fork))
}

func (c *Chain) newSignature() solana.Signature {
	c.nonce++

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], c.nonce)

	return sha512.Sum512(buf[:])
}

// Tip returns the highest canonical block.
func (c *Chain) Tip() types.BlockRef {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.blocks[c.slots[len(c.slots)-1]]
}

// AppendBlock produces a block at slot on top of the current tip and returns the signatures of txs.
func (c *Chain) AppendBlock(slot uint64, txs ...Tx) []solana.Signature {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent := c.blocks[c.slots[len(c.slots)-1]]
	if slot <= parent.Slot {
		panic(fmt.Sprintf("slot %d is not above tip %d", slot, parent.Slot))
	}

	ref := types.BlockRef{
		Slot:       slot,
		Hash:       c.blockHash(slot),
		ParentSlot: parent.Slot,
		ParentHash: parent.Hash,
	}
	c.blocks[slot] = ref
	c.slots = append(c.slots, slot)

	sigs := make([]solana.Signature, 0, len(txs))
	for _, spec := range txs {
		sig := c.newSignature()

		raw := &types.RawTransaction{
			Signature:   sig,
			Block:       types.BlockRef{Slot: slot},
			Fee:         5000,
			LogMessages: slices.Clone(spec.Logs),
			Succeeded:   !spec.Failed,
		}
		for i, data := range spec.Data {
			raw.Instructions = append(raw.Instructions, types.Instruction{
				ProgramID:  spec.Program,
				Data:       slices.Clone(data),
				OuterIndex: i,
				InnerIndex: -1,
			})
		}

		c.txs[sig] = entry{tx: raw, mentions: map[solana.PublicKey]struct{}{spec.Program: {}}}
		c.order = append(c.order, sig)
		sigs = append(sigs, sig)
	}

	return sigs
}

// Reorg abandons every block at or above fromSlot. Later blocks get new hashes.
func (c *Chain) Reorg(fromSlot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fork++

	kept := c.slots[:0]
	for _, slot := range c.slots {
		if slot >= fromSlot {
			delete(c.blocks, slot)
			continue
		}
		kept = append(kept, slot)
	}
	c.slots = kept

	order := c.order[:0]
	for _, sig := range c.order {
		if c.txs[sig].tx.Block.Slot >= fromSlot {
			delete(c.txs, sig)
			continue
		}
		order = append(order, sig)
	}
	c.order = order
}

// SetFinalized sets the slot reported for the finalized commitment.
func (c *Chain) SetFinalized(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.finalized = slot
}

// HideFor makes GetTransaction report sig as not found for the next n calls.
func (c *Chain) HideFor(sig solana.Signature, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hidden[sig] = n
}

// SetFailTransport toggles FailTransport while other goroutines may be calling the chain.
func (c *Chain) SetFailTransport(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.FailTransport = fail
}

func (c *Chain) transportErr(method string) error {
	if c.FailTransport {
		return &types.TransportError{Method: method, Err: fmt.Errorf("connection refused")}
	}
	return nil
}

func (c *Chain) Close() {}

func (c *Chain) ListSignatures(_ context.Context, program solana.PublicKey,
	opts rpc.ListOptions) ([]types.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transportErr("getSignaturesForAddress"); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}

	var (
		result  []types.SignatureInfo
		started = opts.Before == solana.Signature{}
	)

	for i := len(c.order) - 1; i >= 0 && len(result) < limit; i-- {
		sig := c.order[i]

		if !started {
			started = sig == opts.Before
			continue
		}
		if sig == opts.Until {
			break
		}

		e := c.txs[sig]
		if _, ok := e.mentions[program]; !ok {
			continue
		}

		result = append(result, types.SignatureInfo{
			Signature: sig,
			Slot:      e.tx.Block.Slot,
			Failed:    !e.tx.Succeeded,
		})
	}

	return result, nil
}

func (c *Chain) GetTransaction(_ context.Context, sig solana.Signature) (*types.RawTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transportErr("getTransaction"); err != nil {
		return nil, err
	}

	return c.getTransaction(sig)
}

func (c *Chain) getTransaction(sig solana.Signature) (*types.RawTransaction, error) {
	if n := c.hidden[sig]; n > 0 {
		c.hidden[sig] = n - 1
		return nil, types.ErrNotFound
	}

	e, ok := c.txs[sig]
	if !ok {
		return nil, types.ErrNotFound
	}

	tx := *e.tx
	tx.Block = types.BlockRef{Slot: e.tx.Block.Slot}

	return &tx, nil
}

func (c *Chain) BatchGetTransactions(_ context.Context, sigs []solana.Signature) ([]*types.RawTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transportErr("getTransaction"); err != nil {
		return nil, err
	}

	result := make([]*types.RawTransaction, len(sigs))
	for i, sig := range sigs {
		tx, err := c.getTransaction(sig)
		if err == nil {
			result[i] = tx
		}
	}

	return result, nil
}

func (c *Chain) GetBlockRef(_ context.Context, slot uint64) (types.BlockRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transportErr("getBlock"); err != nil {
		return types.BlockRef{}, err
	}

	ref, ok := c.blocks[slot]
	if !ok {
		return types.BlockRef{}, types.ErrNotFound
	}

	return ref, nil
}

func (c *Chain) GetSlot(_ context.Context, commitment rpc.Commitment) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transportErr("getSlot"); err != nil {
		return 0, err
	}

	if commitment == rpc.CommitmentFinalized {
		return c.finalized, nil
	}

	return c.slots[len(c.slots)-1], nil
}

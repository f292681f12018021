package rpc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/retry"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	pkgrpc "github.com/goran-ethernal/SolanaIndexor/pkg/rpc"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// Compile-time check to ensure Client implements pkgrpc.Client interface.
var _ pkgrpc.Client = (*Client)(nil)

const (
	maxBatch             = 100
	maxSignaturesPerPage = 1000
)

// Client wraps the Solana RPC endpoint with convenience methods for indexing.
// Typed single calls go through solana-go, raw and batched JSON-RPC calls through go-ethereum's rpc client.
type Client struct {
	sol        *solanarpc.Client
	raw        *gethrpc.Client
	commitment solanarpc.CommitmentType
	retry      *config.RetryConfig
	log        *logger.Logger
}

// NewClient creates a new RPC client connected to the configured endpoint.
func NewClient(ctx context.Context, cfg config.RPCConfig, log *logger.Logger) (*Client, error) {
	commitment, err := pkgrpc.ParseCommitment(cfg.Commitment)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout.Duration}

	raw, err := gethrpc.DialOptions(ctx, cfg.URL, gethrpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.URL, err)
	}

	return &Client{
		sol:        solanarpc.New(cfg.URL),
		raw:        raw,
		commitment: solanarpc.CommitmentType(commitment),
		retry:      cfg.Retry,
		log:        log,
	}, nil
}

// Close closes the RPC client connections.
func (c *Client) Close() {
	c.raw.Close()
	if err := c.sol.Close(); err != nil {
		c.log.Debugf("failed to close solana rpc client: %v", err)
	}
}

// call runs fn at the client commitment with metrics and transport level retries. Only transport
// errors are retried here, NotFound is left to the caller's retry policy.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	return c.callAt(ctx, method, string(c.commitment), fn)
}

func (c *Client) callAt(ctx context.Context, method, commitment string, fn func() error) error {
	obs := observeCall(method, commitment)

	err := retry.Do(ctx, c.retry, method, isTransportError, func() error {
		obs.attempt()
		return classifyError(method, fn())
	})

	obs.done(err)

	return err
}

func isTransportError(err error) bool {
	var transportErr *types.TransportError
	return errors.As(err, &transportErr)
}

// ListSignatures lists the signatures of transactions mentioning the program, newest first.
func (c *Client) ListSignatures(ctx context.Context, program solana.PublicKey,
	opts pkgrpc.ListOptions) ([]types.SignatureInfo, error) {
	limit := opts.Limit
	if limit <= 0 || limit > maxSignaturesPerPage {
		limit = maxSignaturesPerPage
	}

	var result []*solanarpc.TransactionSignature
	err := c.call(ctx, "getSignaturesForAddress", func() error {
		var err error
		result, err = c.sol.GetSignaturesForAddressWithOpts(ctx, program, &solanarpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Before:     opts.Before,
			Until:      opts.Until,
			Commitment: c.commitment,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	infos := make([]types.SignatureInfo, 0, len(result))
	for _, r := range result {
		info := types.SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			Failed:    r.Err != nil,
		}
		if r.BlockTime != nil {
			t := r.BlockTime.Time().UTC()
			info.BlockTime = &t
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// GetTransaction fetches a single transaction.
func (c *Client) GetTransaction(ctx context.Context, sig solana.Signature) (*types.RawTransaction, error) {
	var result *transactionResult
	err := c.call(ctx, "getTransaction", func() error {
		result = nil
		return c.raw.CallContext(ctx, &result, "getTransaction", sig.String(), c.transactionOpts())
	})
	if err != nil {
		return nil, err
	}

	if result == nil {
		return nil, fmt.Errorf("transaction %s: %w", sig, types.ErrNotFound)
	}

	return result.toRawTransaction(sig)
}

// BatchGetTransactions fetches several transactions in batch calls of at most maxBatch elements.
// Entries for transactions that are not visible yet are nil.
func (c *Client) BatchGetTransactions(ctx context.Context, sigs []solana.Signature) ([]*types.RawTransaction, error) {
	txs := make([]*types.RawTransaction, 0, len(sigs))

	for i := 0; i < len(sigs); i += maxBatch {
		end := min(i+maxBatch, len(sigs))
		chunk := sigs[i:end]

		batch := make([]gethrpc.BatchElem, len(chunk))
		results := make([]*transactionResult, len(chunk))

		err := c.call(ctx, "getTransaction_batch", func() error {
			for j, sig := range chunk {
				results[j] = nil
				batch[j] = gethrpc.BatchElem{
					Method: "getTransaction",
					Args:   []any{sig.String(), c.transactionOpts()},
					Result: &results[j],
				}
			}

			return c.raw.BatchCallContext(ctx, batch)
		})
		if err != nil {
			return nil, err
		}

		missing := 0
		for j, elem := range batch {
			if elem.Error != nil {
				if IsSlotUnavailableError(elem.Error) {
					missing++
					txs = append(txs, nil)
					continue
				}

				return nil, fmt.Errorf("transaction %s: %w", chunk[j], classifyError("getTransaction", elem.Error))
			}

			if results[j] == nil {
				missing++
				txs = append(txs, nil)
				continue
			}

			tx, err := results[j].toRawTransaction(chunk[j])
			if err != nil {
				return nil, err
			}
			txs = append(txs, tx)
		}

		observeBatch(len(chunk), missing)
	}

	return txs, nil
}

// GetBlockRef retrieves the hash and parent of the block at slot, without transactions.
func (c *Client) GetBlockRef(ctx context.Context, slot uint64) (types.BlockRef, error) {
	noRewards := false
	maxVersion := uint64(0)

	var block *solanarpc.GetBlockResult
	err := c.call(ctx, "getBlock", func() error {
		var err error
		block, err = c.sol.GetBlockWithOpts(ctx, slot, &solanarpc.GetBlockOpts{
			Encoding:                       solana.EncodingBase64,
			TransactionDetails:             solanarpc.TransactionDetailsNone,
			Rewards:                        &noRewards,
			Commitment:                     c.commitment,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if errors.Is(err, solanarpc.ErrNotFound) {
			return fmt.Errorf("block at slot %d: %w", slot, types.ErrNotFound)
		}
		return err
	})
	if err != nil {
		return types.BlockRef{}, err
	}

	if block == nil {
		return types.BlockRef{}, fmt.Errorf("block at slot %d: %w", slot, types.ErrNotFound)
	}

	return types.BlockRef{
		Slot:       slot,
		Hash:       block.Blockhash,
		ParentSlot: block.ParentSlot,
		ParentHash: block.PreviousBlockhash,
	}, nil
}

// GetSlot returns the current slot at the given commitment.
func (c *Client) GetSlot(ctx context.Context, commitment pkgrpc.Commitment) (uint64, error) {
	var slot uint64
	err := c.callAt(ctx, "getSlot", string(commitment), func() error {
		var err error
		slot, err = c.sol.GetSlot(ctx, solanarpc.CommitmentType(commitment))
		return err
	})

	return slot, err
}

func (c *Client) transactionOpts() map[string]any {
	return map[string]any{
		"encoding":                       "base64",
		"commitment":                     string(c.commitment),
		"maxSupportedTransactionVersion": 0,
	}
}

// transactionResult is the getTransaction response for the base64 encoding.
type transactionResult struct {
	Slot        uint64           `json:"slot"`
	BlockTime   *int64           `json:"blockTime"`
	Transaction []string         `json:"transaction"`
	Meta        *transactionMeta `json:"meta"`
}

type transactionMeta struct {
	Err               any                 `json:"err"`
	Fee               uint64              `json:"fee"`
	LogMessages       []string            `json:"logMessages"`
	InnerInstructions []innerInstructions `json:"innerInstructions"`
	LoadedAddresses   *loadedAddresses    `json:"loadedAddresses"`
}

type innerInstructions struct {
	Index        int                   `json:"index"`
	Instructions []compiledInstruction `json:"instructions"`
}

type compiledInstruction struct {
	ProgramIDIndex uint16        `json:"programIdIndex"`
	Accounts       []uint16      `json:"accounts"`
	Data           solana.Base58 `json:"data"`
}

type loadedAddresses struct {
	Writable []solana.PublicKey `json:"writable"`
	Readonly []solana.PublicKey `json:"readonly"`
}

// toRawTransaction decodes the wire transaction and flattens outer and inner instructions in execution order.
func (r *transactionResult) toRawTransaction(sig solana.Signature) (*types.RawTransaction, error) {
	if len(r.Transaction) == 0 {
		return nil, fmt.Errorf("transaction %s: empty payload", sig)
	}

	data, err := base64.StdEncoding.DecodeString(r.Transaction[0])
	if err != nil {
		return nil, fmt.Errorf("transaction %s: invalid base64 payload: %w", sig, err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, fmt.Errorf("transaction %s: failed to decode: %w", sig, err)
	}

	raw := &types.RawTransaction{
		Signature: sig,
		Block:     types.BlockRef{Slot: r.Slot},
		Succeeded: true,
	}

	if r.BlockTime != nil {
		t := time.Unix(*r.BlockTime, 0).UTC()
		raw.BlockTime = &t
	}

	keys := make([]solana.PublicKey, 0, len(tx.Message.AccountKeys))
	keys = append(keys, tx.Message.AccountKeys...)

	var inner map[int][]compiledInstruction
	if r.Meta != nil {
		raw.Fee = r.Meta.Fee
		raw.LogMessages = r.Meta.LogMessages
		raw.Succeeded = r.Meta.Err == nil

		if r.Meta.LoadedAddresses != nil {
			keys = append(keys, r.Meta.LoadedAddresses.Writable...)
			keys = append(keys, r.Meta.LoadedAddresses.Readonly...)
		}

		inner = make(map[int][]compiledInstruction, len(r.Meta.InnerInstructions))
		for _, ii := range r.Meta.InnerInstructions {
			inner[ii.Index] = append(inner[ii.Index], ii.Instructions...)
		}
	}

	for i, ix := range tx.Message.Instructions {
		outer, err := resolveInstruction(keys, ix.ProgramIDIndex, ix.Accounts, ix.Data)
		if err != nil {
			return nil, fmt.Errorf("transaction %s instruction %d: %w", sig, i, err)
		}
		outer.OuterIndex = i
		outer.InnerIndex = -1
		raw.Instructions = append(raw.Instructions, outer)

		for j, cix := range inner[i] {
			in, err := resolveInstruction(keys, cix.ProgramIDIndex, cix.Accounts, cix.Data)
			if err != nil {
				return nil, fmt.Errorf("transaction %s instruction %d.%d: %w", sig, i, j, err)
			}
			in.OuterIndex = i
			in.InnerIndex = j
			raw.Instructions = append(raw.Instructions, in)
		}
	}

	return raw, nil
}

func resolveInstruction(keys []solana.PublicKey, programIdx uint16, accounts []uint16,
	data []byte) (types.Instruction, error) {
	if int(programIdx) >= len(keys) {
		return types.Instruction{}, fmt.Errorf("program index %d out of range (%d keys)", programIdx, len(keys))
	}

	ix := types.Instruction{
		ProgramID: keys[programIdx],
		Accounts:  make([]solana.PublicKey, 0, len(accounts)),
		Data:      data,
	}

	for _, idx := range accounts {
		if int(idx) >= len(keys) {
			return types.Instruction{}, fmt.Errorf("account index %d out of range (%d keys)", idx, len(keys))
		}
		ix.Accounts = append(ix.Accounts, keys[idx])
	}

	return ix, nil
}

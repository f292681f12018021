package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/decoder"
	"github.com/goran-ethernal/SolanaIndexor/internal/dispatcher"
	"github.com/goran-ethernal/SolanaIndexor/internal/fetcher"
	"github.com/goran-ethernal/SolanaIndexor/internal/lock"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/processor"
	"github.com/goran-ethernal/SolanaIndexor/internal/reorg"
	istore "github.com/goran-ethernal/SolanaIndexor/internal/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/goran-ethernal/SolanaIndexor/pkg/handler"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"github.com/stretchr/testify/require"
)

// Delivery is one handler invocation seen by a Recorder.
type Delivery struct {
	Signature solana.Signature
	Slot      uint64
	Kind      string
	Index     int
}

// Recorder is a handler remembering every invocation.
type Recorder struct {
	mu     sync.Mutex
	calls  []Delivery
	reorgs []uint64

	// FailOn makes Handle fail for matching events.
	FailOn func(types.DecodedEvent) error
}

var (
	_ handler.Handler      = (*Recorder)(nil)
	_ handler.ReorgHandler = (*Recorder)(nil)
)

func (r *Recorder) Name() string    { return "recorder" }
func (r *Recorder) Kinds() []string { return nil }

func (r *Recorder) Handle(_ context.Context, event types.DecodedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailOn != nil {
		if err := r.FailOn(event); err != nil {
			return err
		}
	}

	r.calls = append(r.calls, Delivery{
		Signature: event.Signature,
		Slot:      event.Slot,
		Kind:      event.Kind,
		Index:     event.Index,
	})

	return nil
}

func (r *Recorder) HandleReorg(_ context.Context, _ solana.PublicKey, fromSlot uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reorgs = append(r.reorgs, fromSlot)

	return nil
}

// Calls returns the invocations in delivery order.
func (r *Recorder) Calls() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Delivery(nil), r.calls...)
}

// CallsFor counts the invocations for sig.
func (r *Recorder) CallsFor(sig solana.Signature) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		if c.Signature == sig {
			n++
		}
	}

	return n
}

// Reorgs returns the fromSlot of every rollback.
func (r *Recorder) Reorgs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]uint64(nil), r.reorgs...)
}

// HarnessConfig tunes NewHarness. Zero values pick small test defaults.
type HarnessConfig struct {
	PageSize         int
	BatchSize        int
	MaxLookbackDepth int
	IndexFailed      bool
	DisableReorg     bool
}

// Harness wires a fake chain, a temporary SQLite store and the per program pipeline stages.
type Harness struct {
	Program solana.PublicKey
	Chain   *Chain

	Store      *istore.SQLiteStore
	Fetcher    *fetcher.Fetcher
	Detector   *reorg.Detector
	Dispatcher *dispatcher.Dispatcher
	Processor  *processor.Processor
	Router     *handler.Router
	Recorder   *Recorder
	Locker     lock.Locker
	Retry      *config.RetryConfig
}

// TestRetryConfig retries quickly.
func TestRetryConfig() *config.RetryConfig {
	return &config.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    common.NewDuration(time.Millisecond),
		MaxBackoff:        common.NewDuration(5 * time.Millisecond),
		BackoffMultiplier: 2,
	}
}

// NewHarness builds a Harness cleaned up with t.
func NewHarness(t *testing.T, cfg HarnessConfig) *Harness {
	t.Helper()

	if cfg.PageSize == 0 {
		cfg.PageSize = 3
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 2
	}
	if cfg.MaxLookbackDepth == 0 {
		cfg.MaxLookbackDepth = 8
	}

	log := logger.NewNopLogger()

	dbCfg := config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "harness.db")}
	dbCfg.ApplyDefaults()

	s, err := istore.OpenSQLite(dbCfg, nil, log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	chain := NewChain()

	f, err := fetcher.New(fetcher.Config{PageSize: cfg.PageSize, BatchSize: cfg.BatchSize}, chain, log)
	require.NoError(t, err)

	h := &Harness{
		Program:  solana.NewWallet().PublicKey(),
		Chain:    chain,
		Store:    s,
		Fetcher:  f,
		Recorder: &Recorder{},
		Locker:   lock.NewLocal(),
		Retry:    TestRetryConfig(),
	}

	h.Router = handler.NewRouter(h.Recorder)
	h.Dispatcher = dispatcher.New(h.Program, s, h.Router, log)

	var checker processor.Checker
	if !cfg.DisableReorg {
		h.Detector = reorg.NewDetector(h.Program, reorg.Config{MaxLookbackDepth: cfg.MaxLookbackDepth},
			s, chain, h.Router, log)
		checker = h.Detector
	}

	h.Processor = processor.New(f, checker, decoder.New(h.Program, NewTable(t), cfg.IndexFailed, log),
		h.Dispatcher, h.Retry, log)

	return h
}

// Deposit returns a transaction with one deposit instruction per amount.
func (h *Harness) Deposit(t *testing.T, amounts ...uint64) Tx {
	t.Helper()

	tx := Tx{Program: h.Program}
	for _, amount := range amounts {
		tx.Data = append(tx.Data, DepositData(t, amount))
	}

	return tx
}

// Status returns the ledger status of sig.
func (h *Harness) Status(t *testing.T, sig solana.Signature) types.DeliveryStatus {
	t.Helper()

	rec, err := h.Store.GetDeliveryStatus(context.Background(), sig)
	require.NoError(t, err)

	return rec.Status
}

// Cursor returns the stored cursor of the program.
func (h *Harness) Cursor(t *testing.T) types.SignatureCursor {
	t.Helper()

	c, err := h.Store.LoadCursor(context.Background(), h.Program)
	require.NoError(t, err)

	return c
}

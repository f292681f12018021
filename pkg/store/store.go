package store

import (
	"context"
	"database/sql"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"github.com/jackc/pgx/v5"
)

// InsertResult is the outcome of InsertPending.
type InsertResult int

const (
	// InsertedPending means the caller now owns the pending row and must Commit or MarkFailed it.
	InsertedPending InsertResult = iota
	// AlreadyCommitted means the signature was delivered before and must be skipped.
	AlreadyCommitted
)

func (r InsertResult) String() string {
	switch r {
	case InsertedPending:
		return "inserted"
	case AlreadyCommitted:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Effect is work that must commit atomically with a ledger or reorg transition.
// The open transaction is available through SQLTx or PgxTx on ctx.
type Effect func(ctx context.Context) error

// Stats summarizes the persisted state of one program.
type Stats struct {
	Committed  int64
	Pending    int64
	Failed     int64
	Superseded int64
	Checkpoint *types.ReorgCheckpoint
	Cursor     types.SignatureCursor
}

// Ledger is the idempotent delivery ledger.
type Ledger interface {
	// GetDeliveryStatus returns types.ErrNotFound for a signature never seen.
	GetDeliveryStatus(ctx context.Context, sig solana.Signature) (types.DeliveryRecord, error)
	// InsertPending inserts a pending row or revives a failed or superseded one.
	// It returns types.ErrLedgerConflict when the row is already pending.
	InsertPending(ctx context.Context, program solana.PublicKey, sig solana.Signature, slot uint64) (InsertResult, error)
	// Commit runs effect and moves the row to committed in one transaction.
	Commit(ctx context.Context, sig solana.Signature, effect Effect) error
	MarkFailed(ctx context.Context, sig solana.Signature, reason string) error
	// ResetPending moves rows left pending by a crash back to failed.
	ResetPending(ctx context.Context, program solana.PublicKey) (int64, error)
	// InvalidateRange marks rows with slot in (fromSlot, inf) as superseded.
	InvalidateRange(ctx context.Context, program solana.PublicKey, fromSlot uint64) (int64, error)
	// PruneSuperseded removes superseded rows of all programs last updated before the unix timestamp.
	// Committed rows are kept forever, they are what makes re-observation a no-op.
	PruneSuperseded(ctx context.Context, before int64) (int64, error)
}

// Cursors persists the per program signature cursor.
type Cursors interface {
	// LoadCursor returns an empty cursor with version 0 when none exists.
	LoadCursor(ctx context.Context, program solana.PublicKey) (types.SignatureCursor, error)
	// SaveCursor stores c if its version still matches, and returns it with the new version.
	SaveCursor(ctx context.Context, c types.SignatureCursor) (types.SignatureCursor, error)
}

// Checkpoints persists the reorg checkpoint chain.
type Checkpoints interface {
	// LatestCheckpoint returns types.ErrNotFound when the chain is empty.
	LatestCheckpoint(ctx context.Context, program solana.PublicKey) (types.ReorgCheckpoint, error)
	GetCheckpoint(ctx context.Context, program solana.PublicKey, slot uint64) (types.ReorgCheckpoint, error)
	// Checkpoints returns up to limit checkpoints, newest first.
	Checkpoints(ctx context.Context, program solana.PublicKey, limit int) ([]types.ReorgCheckpoint, error)
	AppendCheckpoint(ctx context.Context, cp types.ReorgCheckpoint) error
	// PruneCheckpoints deletes checkpoints below the newest one at or below finalizedSlot.
	PruneCheckpoints(ctx context.Context, program solana.PublicKey, finalizedSlot uint64) (int64, error)
	// RepairReorg rolls the program back to ancestor in one transaction and returns the rewound cursor.
	RepairReorg(ctx context.Context, program solana.PublicKey, ancestor types.ReorgCheckpoint,
		rollback Effect) (types.SignatureCursor, error)
}

// Backfills persists backfill range progress.
type Backfills interface {
	// GetBackfillProgress returns types.ErrNotFound for an unknown range.
	GetBackfillProgress(ctx context.Context, id string) (types.BackfillProgress, error)
	SaveBackfillProgress(ctx context.Context, p types.BackfillProgress) error
	ListBackfillProgress(ctx context.Context, program solana.PublicKey) ([]types.BackfillProgress, error)
}

// Store is the durable state of the engine.
type Store interface {
	Ledger
	Cursors
	Checkpoints
	Backfills

	Stats(ctx context.Context, program solana.PublicKey) (Stats, error)
	Close() error
}

type sqlTxKey struct{}

type pgxTxKey struct{}

// WithSQLTx returns a context carrying a database/sql transaction.
func WithSQLTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, sqlTxKey{}, tx)
}

// SQLTx returns the database/sql transaction on ctx, or nil.
func SQLTx(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(sqlTxKey{}).(*sql.Tx)
	return tx
}

// WithPgxTx returns a context carrying a pgx transaction.
func WithPgxTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, pgxTxKey{}, tx)
}

// PgxTx returns the pgx transaction on ctx, or nil.
func PgxTx(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(pgxTxKey{}).(pgx.Tx)
	return tx
}

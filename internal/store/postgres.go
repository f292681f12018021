package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/db"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/metrics"
	"github.com/goran-ethernal/SolanaIndexor/internal/migrations"
	"github.com/goran-ethernal/SolanaIndexor/pkg/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresLabel = "postgres"

var _ store.Store = (*PostgresStore)(nil)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the PostgreSQL implementation of the engine state.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// OpenPostgres connects to url and applies the schema.
func OpenPostgres(ctx context.Context, url string, log *logger.Logger) (*PostgresStore, error) {
	pool, err := db.NewPostgresPool(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := migrations.RunPostgresMigrations(log, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return NewPostgresStore(pool, log), nil
}

// NewPostgresStore wraps an already migrated pool.
func NewPostgresStore(pool *pgxpool.Pool, log *logger.Logger) *PostgresStore {
	metrics.ComponentHealthSet(common.ComponentStore, true)

	return &PostgresStore{
		pool: pool,
		log:  log.WithComponent(common.ComponentStore),
	}
}

// Pool exposes the connection pool so handlers can create their own tables.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) Close() error {
	metrics.ComponentHealthSet(common.ComponentStore, false)
	s.pool.Close()
	return nil
}

func (s *PostgresStore) observe(op string, start time.Time, err error) {
	metrics.DBQueryInc(postgresLabel, op)
	metrics.DBQueryDuration(postgresLabel, op, time.Since(start))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		metrics.DBErrorsInc(postgresLabel, op)
	}
}

// inTx runs fn in a transaction and commits it when fn succeeds.
func (s *PostgresStore) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) (err error) {
	defer func(start time.Time) { s.observe(op, start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.log.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func parseSignature(s string) (solana.Signature, error) {
	if s == "" {
		return solana.Signature{}, nil
	}
	return solana.SignatureFromBase58(s)
}

func parsePublicKey(s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, nil
	}
	return solana.PublicKeyFromBase58(s)
}

func parseHash(s string) (solana.Hash, error) {
	if s == "" {
		return solana.Hash{}, nil
	}
	return solana.HashFromBase58(s)
}

const deliveryColumns = `signature, program_id, slot, status, attempts, last_error, committed_at, updated_at`

func scanDelivery(row pgx.Row) (types.DeliveryRecord, error) {
	var (
		rec          types.DeliveryRecord
		sig, program string
		status       string
	)

	if err := row.Scan(&sig, &program, &rec.Slot, &status, &rec.Attempts, &rec.LastError,
		&rec.CommittedAt, &rec.UpdatedAt); err != nil {
		return types.DeliveryRecord{}, err
	}

	var err error
	if rec.Signature, err = parseSignature(sig); err != nil {
		return types.DeliveryRecord{}, err
	}
	if rec.ProgramID, err = parsePublicKey(program); err != nil {
		return types.DeliveryRecord{}, err
	}
	rec.Status = types.DeliveryStatus(status)

	return rec, nil
}

const cursorColumns = `program_id, signature, slot, block_hash, version, updated_at`

func scanCursor(row pgx.Row) (types.SignatureCursor, error) {
	var (
		c                  types.SignatureCursor
		program, sig, hash string
	)

	if err := row.Scan(&program, &sig, &c.Slot, &hash, &c.Version, &c.UpdatedAt); err != nil {
		return types.SignatureCursor{}, err
	}

	var err error
	if c.ProgramID, err = parsePublicKey(program); err != nil {
		return types.SignatureCursor{}, err
	}
	if c.Signature, err = parseSignature(sig); err != nil {
		return types.SignatureCursor{}, err
	}
	if c.BlockHash, err = parseHash(hash); err != nil {
		return types.SignatureCursor{}, err
	}

	return c, nil
}

const checkpointColumns = `program_id, slot, block_hash, parent_slot, parent_hash`

func scanCheckpoint(row pgx.Row) (types.ReorgCheckpoint, error) {
	var (
		cp                       types.ReorgCheckpoint
		program, hash, parentHex string
	)

	if err := row.Scan(&program, &cp.Slot, &hash, &cp.ParentSlot, &parentHex); err != nil {
		return types.ReorgCheckpoint{}, err
	}

	var err error
	if cp.ProgramID, err = parsePublicKey(program); err != nil {
		return types.ReorgCheckpoint{}, err
	}
	if cp.BlockHash, err = parseHash(hash); err != nil {
		return types.ReorgCheckpoint{}, err
	}
	if cp.ParentHash, err = parseHash(parentHex); err != nil {
		return types.ReorgCheckpoint{}, err
	}

	return cp, nil
}

const backfillColumns = `id, program_id, from_slot, to_slot, last_signature, last_slot, processed, status, updated_at`

func scanBackfill(row pgx.Row) (types.BackfillProgress, error) {
	var (
		p                    types.BackfillProgress
		program, sig, status string
	)

	if err := row.Scan(&p.ID, &program, &p.FromSlot, &p.ToSlot, &sig, &p.LastSlot, &p.Processed,
		&status, &p.UpdatedAt); err != nil {
		return types.BackfillProgress{}, err
	}

	var err error
	if p.ProgramID, err = parsePublicKey(program); err != nil {
		return types.BackfillProgress{}, err
	}
	if p.LastSignature, err = parseSignature(sig); err != nil {
		return types.BackfillProgress{}, err
	}
	p.Status = types.BackfillStatus(status)

	return p, nil
}

func (s *PostgresStore) GetDeliveryStatus(ctx context.Context, sig solana.Signature) (rec types.DeliveryRecord,
	err error) {
	defer func(start time.Time) { s.observe("get_delivery", start, err) }(time.Now())

	rec, err = scanDelivery(s.pool.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_ledger WHERE signature = $1`, db.EncodeBase58(sig)))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.DeliveryRecord{}, types.ErrNotFound
	}
	if err != nil {
		return types.DeliveryRecord{}, fmt.Errorf("failed to get delivery record %s: %w", sig, err)
	}

	return rec, nil
}

func (s *PostgresStore) InsertPending(ctx context.Context, program solana.PublicKey, sig solana.Signature,
	slot uint64) (store.InsertResult, error) {
	result := store.InsertedPending

	err := s.inTx(ctx, "insert_pending", func(tx pgx.Tx) error {
		now := time.Now().UTC().Unix()

		tag, err := tx.Exec(ctx, `
			INSERT INTO delivery_ledger (signature, program_id, slot, status, attempts, updated_at)
			VALUES ($1, $2, $3, $4, 1, $5)
			ON CONFLICT (signature) DO NOTHING`,
			db.EncodeBase58(sig), db.EncodeBase58(program), slot, string(types.StatusPending), now)
		if err != nil {
			return fmt.Errorf("failed to insert pending record: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		existing, err := scanDelivery(tx.QueryRow(ctx,
			`SELECT `+deliveryColumns+` FROM delivery_ledger WHERE signature = $1 FOR UPDATE`,
			db.EncodeBase58(sig)))
		if err != nil {
			return fmt.Errorf("failed to read delivery record: %w", err)
		}

		switch existing.Status {
		case types.StatusCommitted:
			result = store.AlreadyCommitted
			return nil
		case types.StatusPending:
			return types.ErrLedgerConflict
		}

		_, err = tx.Exec(ctx, `
			UPDATE delivery_ledger
			SET status = $1, program_id = $2, slot = $3, attempts = attempts + 1, updated_at = $4
			WHERE signature = $5`,
			string(types.StatusPending), db.EncodeBase58(program), slot, now, db.EncodeBase58(sig))
		if err != nil {
			return fmt.Errorf("failed to revive %s record: %w", existing.Status, err)
		}

		return nil
	})

	return result, err
}

func (s *PostgresStore) Commit(ctx context.Context, sig solana.Signature, effect store.Effect) error {
	return s.inTx(ctx, "commit", func(tx pgx.Tx) error {
		if effect != nil {
			if err := effect(store.WithPgxTx(ctx, tx)); err != nil {
				return err
			}
		}

		now := time.Now().UTC().Unix()

		tag, err := tx.Exec(ctx, `
			UPDATE delivery_ledger
			SET status = $1, committed_at = $2, updated_at = $2, last_error = ''
			WHERE signature = $3 AND status = $4`,
			string(types.StatusCommitted), now, db.EncodeBase58(sig), string(types.StatusPending))
		if err != nil {
			return fmt.Errorf("failed to mark %s committed: %w", sig, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("signature %s is not pending", sig)
		}

		return nil
	})
}

func (s *PostgresStore) MarkFailed(ctx context.Context, sig solana.Signature, reason string) (err error) {
	defer func(start time.Time) { s.observe("mark_failed", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, `
		UPDATE delivery_ledger SET status = $1, last_error = $2, updated_at = $3
		WHERE signature = $4 AND status = $5`,
		string(types.StatusFailed), reason, time.Now().UTC().Unix(), db.EncodeBase58(sig),
		string(types.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark %s failed: %w", sig, err)
	}

	return nil
}

func (s *PostgresStore) ResetPending(ctx context.Context, program solana.PublicKey) (n int64, err error) {
	defer func(start time.Time) { s.observe("reset_pending", start, err) }(time.Now())

	tag, err := s.pool.Exec(ctx, `
		UPDATE delivery_ledger SET status = $1, last_error = $2, updated_at = $3
		WHERE program_id = $4 AND status = $5`,
		string(types.StatusFailed), "interrupted before commit", time.Now().UTC().Unix(),
		db.EncodeBase58(program), string(types.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("failed to reset pending records: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (s *PostgresStore) InvalidateRange(ctx context.Context, program solana.PublicKey,
	fromSlot uint64) (n int64, err error) {
	defer func(start time.Time) { s.observe("invalidate_range", start, err) }(time.Now())

	return invalidatePgx(ctx, s.pool, program, fromSlot)
}

func invalidatePgx(ctx context.Context, q pgxQuerier, program solana.PublicKey, fromSlot uint64) (int64, error) {
	tag, err := q.Exec(ctx, `
		UPDATE delivery_ledger SET status = $1, updated_at = $2
		WHERE program_id = $3 AND slot > $4 AND status != $1`,
		string(types.StatusSuperseded), time.Now().UTC().Unix(), db.EncodeBase58(program), fromSlot)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate ledger above slot %d: %w", fromSlot, err)
	}

	return tag.RowsAffected(), nil
}

func (s *PostgresStore) PruneSuperseded(ctx context.Context, before int64) (n int64, err error) {
	defer func(start time.Time) { s.observe("prune_superseded", start, err) }(time.Now())

	tag, err := s.pool.Exec(ctx, `DELETE FROM delivery_ledger WHERE status = $1 AND updated_at < $2`,
		string(types.StatusSuperseded), before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune ledger: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (s *PostgresStore) LoadCursor(ctx context.Context, program solana.PublicKey) (c types.SignatureCursor,
	err error) {
	defer func(start time.Time) { s.observe("load_cursor", start, err) }(time.Now())

	c, err = scanCursor(s.pool.QueryRow(ctx,
		`SELECT `+cursorColumns+` FROM signature_cursors WHERE program_id = $1`, db.EncodeBase58(program)))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.SignatureCursor{ProgramID: program}, nil
	}
	if err != nil {
		return types.SignatureCursor{}, fmt.Errorf("failed to load cursor: %w", err)
	}

	return c, nil
}

func (s *PostgresStore) SaveCursor(ctx context.Context, c types.SignatureCursor) (saved types.SignatureCursor,
	err error) {
	defer func(start time.Time) { s.observe("save_cursor", start, err) }(time.Now())

	saved, err = saveCursorPgx(ctx, s.pool, c)
	if err != nil {
		return types.SignatureCursor{}, err
	}

	metrics.CursorSlotSet(saved.ProgramID.String(), saved.Slot)

	return saved, nil
}

func saveCursorPgx(ctx context.Context, q pgxQuerier, c types.SignatureCursor) (types.SignatureCursor, error) {
	c.UpdatedAt = time.Now().UTC().Unix()

	var (
		tag pgconn.CommandTag
		err error
	)

	if c.Version == 0 {
		tag, err = q.Exec(ctx, `
			INSERT INTO signature_cursors (program_id, signature, slot, block_hash, version, updated_at)
			VALUES ($1, $2, $3, $4, 1, $5)
			ON CONFLICT (program_id) DO NOTHING`,
			db.EncodeBase58(c.ProgramID), db.EncodeBase58(c.Signature), c.Slot,
			db.EncodeBase58(c.BlockHash), c.UpdatedAt)
	} else {
		tag, err = q.Exec(ctx, `
			UPDATE signature_cursors
			SET signature = $1, slot = $2, block_hash = $3, version = version + 1, updated_at = $4
			WHERE program_id = $5 AND version = $6`,
			db.EncodeBase58(c.Signature), c.Slot, db.EncodeBase58(c.BlockHash), c.UpdatedAt,
			db.EncodeBase58(c.ProgramID), c.Version)
	}
	if err != nil {
		return types.SignatureCursor{}, fmt.Errorf("failed to save cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.SignatureCursor{}, types.ErrCursorConflict
	}

	c.Version++

	return c, nil
}

func (s *PostgresStore) LatestCheckpoint(ctx context.Context, program solana.PublicKey) (cp types.ReorgCheckpoint,
	err error) {
	defer func(start time.Time) { s.observe("latest_checkpoint", start, err) }(time.Now())

	cp, err = scanCheckpoint(s.pool.QueryRow(ctx,
		`SELECT `+checkpointColumns+` FROM reorg_checkpoints WHERE program_id = $1 ORDER BY slot DESC LIMIT 1`,
		db.EncodeBase58(program)))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ReorgCheckpoint{}, types.ErrNotFound
	}
	if err != nil {
		return types.ReorgCheckpoint{}, fmt.Errorf("failed to get latest checkpoint: %w", err)
	}

	return cp, nil
}

func (s *PostgresStore) GetCheckpoint(ctx context.Context, program solana.PublicKey,
	slot uint64) (cp types.ReorgCheckpoint, err error) {
	defer func(start time.Time) { s.observe("get_checkpoint", start, err) }(time.Now())

	cp, err = scanCheckpoint(s.pool.QueryRow(ctx,
		`SELECT `+checkpointColumns+` FROM reorg_checkpoints WHERE program_id = $1 AND slot = $2`,
		db.EncodeBase58(program), slot))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ReorgCheckpoint{}, types.ErrNotFound
	}
	if err != nil {
		return types.ReorgCheckpoint{}, fmt.Errorf("failed to get checkpoint at slot %d: %w", slot, err)
	}

	return cp, nil
}

func (s *PostgresStore) Checkpoints(ctx context.Context, program solana.PublicKey,
	limit int) (checkpoints []types.ReorgCheckpoint, err error) {
	defer func(start time.Time) { s.observe("list_checkpoints", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx,
		`SELECT `+checkpointColumns+` FROM reorg_checkpoints WHERE program_id = $1 ORDER BY slot DESC LIMIT $2`,
		db.EncodeBase58(program), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	checkpoints, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.ReorgCheckpoint, error) {
		return scanCheckpoint(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	return checkpoints, nil
}

func (s *PostgresStore) AppendCheckpoint(ctx context.Context, cp types.ReorgCheckpoint) (err error) {
	defer func(start time.Time) { s.observe("append_checkpoint", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, `
		INSERT INTO reorg_checkpoints (program_id, slot, block_hash, parent_slot, parent_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (program_id, slot) DO UPDATE
		SET block_hash = excluded.block_hash, parent_slot = excluded.parent_slot,
			parent_hash = excluded.parent_hash`,
		db.EncodeBase58(cp.ProgramID), cp.Slot, db.EncodeBase58(cp.BlockHash), cp.ParentSlot,
		db.EncodeBase58(cp.ParentHash))
	if err != nil {
		return fmt.Errorf("failed to append checkpoint at slot %d: %w", cp.Slot, err)
	}

	return nil
}

func (s *PostgresStore) PruneCheckpoints(ctx context.Context, program solana.PublicKey,
	finalizedSlot uint64) (n int64, err error) {
	defer func(start time.Time) { s.observe("prune_checkpoints", start, err) }(time.Now())

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM reorg_checkpoints
		WHERE program_id = $1 AND slot <= $2
		AND slot < (SELECT MAX(slot) FROM reorg_checkpoints WHERE program_id = $1 AND slot <= $2)`,
		db.EncodeBase58(program), finalizedSlot)
	if err != nil {
		return 0, fmt.Errorf("failed to prune checkpoints: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (s *PostgresStore) RepairReorg(ctx context.Context, program solana.PublicKey, ancestor types.ReorgCheckpoint,
	rollback store.Effect) (types.SignatureCursor, error) {
	var (
		cursor      types.SignatureCursor
		invalidated int64
	)

	err := s.inTx(ctx, "repair_reorg", func(tx pgx.Tx) error {
		var err error

		// serializes with concurrent cursor writers of the same program
		cursor, err = scanCursor(tx.QueryRow(ctx,
			`SELECT `+cursorColumns+` FROM signature_cursors WHERE program_id = $1 FOR UPDATE`,
			db.EncodeBase58(program)))
		cursorExists := true
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			cursor = types.SignatureCursor{ProgramID: program}
			cursorExists = false
		case err != nil:
			return fmt.Errorf("failed to load cursor: %w", err)
		}

		invalidated, err = invalidatePgx(ctx, tx, program, ancestor.Slot)
		if err != nil {
			return err
		}

		if rollback != nil {
			if err := rollback(store.WithPgxTx(ctx, tx)); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM reorg_checkpoints WHERE program_id = $1 AND slot > $2`,
			db.EncodeBase58(program), ancestor.Slot); err != nil {
			return fmt.Errorf("failed to delete checkpoints above slot %d: %w", ancestor.Slot, err)
		}

		if !cursorExists || cursor.Slot <= ancestor.Slot {
			return nil
		}

		rewound := cursor
		rewound.BlockHash = ancestor.BlockHash

		last, err := scanDelivery(tx.QueryRow(ctx, `
			SELECT `+deliveryColumns+` FROM delivery_ledger
			WHERE program_id = $1 AND status = $2 AND slot <= $3
			ORDER BY slot DESC, committed_at DESC LIMIT 1`,
			db.EncodeBase58(program), string(types.StatusCommitted), ancestor.Slot))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			rewound.Signature = solana.Signature{}
			rewound.Slot = ancestor.Slot
		case err != nil:
			return fmt.Errorf("failed to find rewind target: %w", err)
		default:
			rewound.Signature = last.Signature
			rewound.Slot = last.Slot
		}

		cursor, err = saveCursorPgx(ctx, tx, rewound)
		return err
	})
	if err != nil {
		return types.SignatureCursor{}, err
	}

	s.log.Infof("reorg repaired for %s: ancestor slot %d, %d ledger rows superseded, cursor at slot %d",
		common.ShortID(program.String()), ancestor.Slot, invalidated, cursor.Slot)

	return cursor, nil
}

func (s *PostgresStore) GetBackfillProgress(ctx context.Context, id string) (p types.BackfillProgress, err error) {
	defer func(start time.Time) { s.observe("get_backfill", start, err) }(time.Now())

	p, err = scanBackfill(s.pool.QueryRow(ctx,
		`SELECT `+backfillColumns+` FROM backfill_progress WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.BackfillProgress{}, types.ErrNotFound
	}
	if err != nil {
		return types.BackfillProgress{}, fmt.Errorf("failed to get backfill progress %s: %w", id, err)
	}

	return p, nil
}

func (s *PostgresStore) SaveBackfillProgress(ctx context.Context, p types.BackfillProgress) (err error) {
	defer func(start time.Time) { s.observe("save_backfill", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, `
		INSERT INTO backfill_progress
			(id, program_id, from_slot, to_slot, last_signature, last_slot, processed, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET last_signature = excluded.last_signature, last_slot = excluded.last_slot,
			processed = excluded.processed, status = excluded.status, updated_at = excluded.updated_at`,
		p.ID, db.EncodeBase58(p.ProgramID), p.FromSlot, p.ToSlot, db.EncodeBase58(p.LastSignature),
		p.LastSlot, p.Processed, string(p.Status), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save backfill progress %s: %w", p.ID, err)
	}

	return nil
}

func (s *PostgresStore) ListBackfillProgress(ctx context.Context,
	program solana.PublicKey) (progress []types.BackfillProgress, err error) {
	defer func(start time.Time) { s.observe("list_backfill", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx,
		`SELECT `+backfillColumns+` FROM backfill_progress WHERE program_id = $1 ORDER BY from_slot ASC, to_slot ASC`,
		db.EncodeBase58(program))
	if err != nil {
		return nil, fmt.Errorf("failed to list backfill progress: %w", err)
	}

	progress, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.BackfillProgress, error) {
		return scanBackfill(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list backfill progress: %w", err)
	}

	return progress, nil
}

func (s *PostgresStore) Stats(ctx context.Context, program solana.PublicKey) (store.Stats, error) {
	var stats store.Stats

	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM delivery_ledger WHERE program_id = $1 GROUP BY status`,
		db.EncodeBase58(program))
	if err != nil {
		return store.Stats{}, fmt.Errorf("failed to count ledger rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return store.Stats{}, fmt.Errorf("failed to count ledger rows: %w", err)
		}
		addStatusCount(&stats, types.DeliveryStatus(status), count)
	}
	if err := rows.Err(); err != nil {
		return store.Stats{}, fmt.Errorf("failed to count ledger rows: %w", err)
	}

	return completeStats(ctx, s, program, stats)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/db"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/metrics"
	"github.com/goran-ethernal/SolanaIndexor/internal/migrations"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/goran-ethernal/SolanaIndexor/pkg/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"github.com/russross/meddler"
)

const sqliteLabel = "sqlite"

var _ store.Store = (*SQLiteStore)(nil)

// SQLiteStore keeps the ledger, cursors, checkpoints and backfill progress in one SQLite database.
type SQLiteStore struct {
	db          *sql.DB
	log         *logger.Logger
	maintenance db.Maintenance
}

// OpenSQLite opens the database at cfg.Path, applies the schema and wires optional maintenance.
func OpenSQLite(cfg config.DatabaseConfig, maintenanceCfg *config.MaintenanceConfig,
	log *logger.Logger) (*SQLiteStore, error) {
	if err := migrations.RunMigrations(cfg.Path); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	sqlDB, err := db.NewSQLiteDBFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := NewSQLiteStore(sqlDB, nil, log)
	s.maintenance = db.NewMaintenanceCoordinator(cfg.Path, sqlDB, maintenanceCfg, log,
		db.WithLedgerPruner(s.PruneSuperseded))

	return s, nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(sqlDB *sql.DB, maintenance db.Maintenance, log *logger.Logger) *SQLiteStore {
	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	metrics.ComponentHealthSet(common.ComponentStore, true)

	return &SQLiteStore{
		db:          sqlDB,
		log:         log.WithComponent(common.ComponentStore),
		maintenance: maintenance,
	}
}

// DB exposes the underlying database so handlers can create their own tables in it.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Maintenance returns the maintenance coordinator of the database.
func (s *SQLiteStore) Maintenance() db.Maintenance {
	return s.maintenance
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	metrics.ComponentHealthSet(common.ComponentStore, false)
	return s.db.Close()
}

// begin acquires the maintenance read lock and starts a transaction.
// The returned function rolls back unless the transaction was committed and releases the lock.
func (s *SQLiteStore) begin(ctx context.Context, op string) (*sql.Tx, func(), error) {
	unlock := s.maintenance.AcquireOperationLock()
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		unlock()
		metrics.DBErrorsInc(sqliteLabel, op)
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	done := func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Errorf("failed to rollback transaction: %v", err)
		}
		unlock()
		metrics.DBQueryInc(sqliteLabel, op)
		metrics.DBQueryDuration(sqliteLabel, op, time.Since(start))
	}

	return tx, done, nil
}

// query runs fn under the maintenance read lock without a transaction.
func (s *SQLiteStore) query(op string, fn func() error) error {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	start := time.Now()
	err := fn()

	metrics.DBQueryInc(sqliteLabel, op)
	metrics.DBQueryDuration(sqliteLabel, op, time.Since(start))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		metrics.DBErrorsInc(sqliteLabel, op)
	}

	return err
}

func (s *SQLiteStore) GetDeliveryStatus(ctx context.Context, sig solana.Signature) (types.DeliveryRecord, error) {
	var rec types.DeliveryRecord

	err := s.query("get_delivery", func() error {
		return meddler.QueryRow(s.db, &rec, `SELECT * FROM delivery_ledger WHERE signature = ?`,
			db.EncodeBase58(sig))
	})
	if errors.Is(err, sql.ErrNoRows) {
		return types.DeliveryRecord{}, types.ErrNotFound
	}
	if err != nil {
		return types.DeliveryRecord{}, fmt.Errorf("failed to get delivery record %s: %w", sig, err)
	}

	return rec, nil
}

func (s *SQLiteStore) InsertPending(ctx context.Context, program solana.PublicKey, sig solana.Signature,
	slot uint64) (store.InsertResult, error) {
	tx, done, err := s.begin(ctx, "insert_pending")
	if err != nil {
		return store.InsertedPending, err
	}
	defer done()

	now := time.Now().UTC().Unix()

	var existing types.DeliveryRecord
	err = meddler.QueryRow(tx, &existing, `SELECT * FROM delivery_ledger WHERE signature = ?`,
		db.EncodeBase58(sig))

	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec := &types.DeliveryRecord{
			Signature: sig,
			ProgramID: program,
			Slot:      slot,
			Status:    types.StatusPending,
			Attempts:  1,
			UpdatedAt: now,
		}
		if err := meddler.Insert(tx, "delivery_ledger", rec); err != nil {
			return store.InsertedPending, fmt.Errorf("failed to insert pending record: %w", err)
		}

	case err != nil:
		return store.InsertedPending, fmt.Errorf("failed to read delivery record: %w", err)

	case existing.Status == types.StatusCommitted:
		return store.AlreadyCommitted, nil

	case existing.Status == types.StatusPending:
		return store.InsertedPending, types.ErrLedgerConflict

	default:
		_, err := tx.ExecContext(ctx, `
			UPDATE delivery_ledger
			SET status = ?, program_id = ?, slot = ?, attempts = attempts + 1, updated_at = ?
			WHERE signature = ?`,
			types.StatusPending, db.EncodeBase58(program), slot, now, db.EncodeBase58(sig))
		if err != nil {
			return store.InsertedPending, fmt.Errorf("failed to revive %s record: %w", existing.Status, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.InsertedPending, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return store.InsertedPending, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, sig solana.Signature, effect store.Effect) error {
	tx, done, err := s.begin(ctx, "commit")
	if err != nil {
		return err
	}
	defer done()

	if effect != nil {
		if err := effect(store.WithSQLTx(ctx, tx)); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Unix()

	res, err := tx.ExecContext(ctx, `
		UPDATE delivery_ledger
		SET status = ?, committed_at = ?, updated_at = ?, last_error = ''
		WHERE signature = ? AND status = ?`,
		types.StatusCommitted, now, now, db.EncodeBase58(sig), types.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark %s committed: %w", sig, err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	} else if n == 0 {
		return fmt.Errorf("signature %s is not pending", sig)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, sig solana.Signature, reason string) error {
	return s.query("mark_failed", func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE delivery_ledger SET status = ?, last_error = ?, updated_at = ?
			WHERE signature = ? AND status = ?`,
			types.StatusFailed, reason, time.Now().UTC().Unix(), db.EncodeBase58(sig), types.StatusPending)
		if err != nil {
			return fmt.Errorf("failed to mark %s failed: %w", sig, err)
		}

		return nil
	})
}

func (s *SQLiteStore) ResetPending(ctx context.Context, program solana.PublicKey) (int64, error) {
	var n int64

	err := s.query("reset_pending", func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE delivery_ledger SET status = ?, last_error = ?, updated_at = ?
			WHERE program_id = ? AND status = ?`,
			types.StatusFailed, "interrupted before commit", time.Now().UTC().Unix(),
			db.EncodeBase58(program), types.StatusPending)
		if err != nil {
			return fmt.Errorf("failed to reset pending records: %w", err)
		}

		n, err = res.RowsAffected()
		return err
	})

	return n, err
}

func (s *SQLiteStore) InvalidateRange(ctx context.Context, program solana.PublicKey, fromSlot uint64) (int64, error) {
	var n int64

	err := s.query("invalidate_range", func() error {
		var err error
		n, err = invalidateSQL(ctx, s.db, program, fromSlot)
		return err
	})

	return n, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func invalidateSQL(ctx context.Context, e execer, program solana.PublicKey, fromSlot uint64) (int64, error) {
	res, err := e.ExecContext(ctx, `
		UPDATE delivery_ledger SET status = ?, updated_at = ?
		WHERE program_id = ? AND slot > ? AND status != ?`,
		types.StatusSuperseded, time.Now().UTC().Unix(), db.EncodeBase58(program), fromSlot,
		types.StatusSuperseded)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate ledger above slot %d: %w", fromSlot, err)
	}

	return res.RowsAffected()
}

func (s *SQLiteStore) PruneSuperseded(ctx context.Context, before int64) (int64, error) {
	var n int64

	err := s.query("prune_superseded", func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM delivery_ledger WHERE status = ? AND updated_at < ?`,
			types.StatusSuperseded, before)
		if err != nil {
			return fmt.Errorf("failed to prune ledger: %w", err)
		}

		n, err = res.RowsAffected()
		return err
	})

	return n, err
}

func (s *SQLiteStore) LoadCursor(ctx context.Context, program solana.PublicKey) (types.SignatureCursor, error) {
	var c types.SignatureCursor

	err := s.query("load_cursor", func() error {
		return meddler.QueryRow(s.db, &c, `SELECT * FROM signature_cursors WHERE program_id = ?`,
			db.EncodeBase58(program))
	})
	if errors.Is(err, sql.ErrNoRows) {
		return types.SignatureCursor{ProgramID: program}, nil
	}
	if err != nil {
		return types.SignatureCursor{}, fmt.Errorf("failed to load cursor: %w", err)
	}

	return c, nil
}

func (s *SQLiteStore) SaveCursor(ctx context.Context, c types.SignatureCursor) (types.SignatureCursor, error) {
	var saved types.SignatureCursor

	err := s.query("save_cursor", func() error {
		var err error
		saved, err = saveCursorSQL(ctx, s.db, c)
		return err
	})
	if err != nil {
		return types.SignatureCursor{}, err
	}

	metrics.CursorSlotSet(saved.ProgramID.String(), saved.Slot)

	return saved, nil
}

func saveCursorSQL(ctx context.Context, e execer, c types.SignatureCursor) (types.SignatureCursor, error) {
	c.UpdatedAt = time.Now().UTC().Unix()

	var (
		res sql.Result
		err error
	)

	if c.Version == 0 {
		res, err = e.ExecContext(ctx, `
			INSERT INTO signature_cursors (program_id, signature, slot, block_hash, version, updated_at)
			VALUES (?, ?, ?, ?, 1, ?)
			ON CONFLICT (program_id) DO NOTHING`,
			db.EncodeBase58(c.ProgramID), db.EncodeBase58(c.Signature), c.Slot,
			db.EncodeBase58(c.BlockHash), c.UpdatedAt)
	} else {
		res, err = e.ExecContext(ctx, `
			UPDATE signature_cursors
			SET signature = ?, slot = ?, block_hash = ?, version = version + 1, updated_at = ?
			WHERE program_id = ? AND version = ?`,
			db.EncodeBase58(c.Signature), c.Slot, db.EncodeBase58(c.BlockHash), c.UpdatedAt,
			db.EncodeBase58(c.ProgramID), c.Version)
	}
	if err != nil {
		return types.SignatureCursor{}, fmt.Errorf("failed to save cursor: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return types.SignatureCursor{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return types.SignatureCursor{}, types.ErrCursorConflict
	}

	c.Version++

	return c, nil
}

func (s *SQLiteStore) LatestCheckpoint(ctx context.Context, program solana.PublicKey) (types.ReorgCheckpoint, error) {
	var cp types.ReorgCheckpoint

	err := s.query("latest_checkpoint", func() error {
		return meddler.QueryRow(s.db, &cp,
			`SELECT * FROM reorg_checkpoints WHERE program_id = ? ORDER BY slot DESC LIMIT 1`,
			db.EncodeBase58(program))
	})
	if errors.Is(err, sql.ErrNoRows) {
		return types.ReorgCheckpoint{}, types.ErrNotFound
	}
	if err != nil {
		return types.ReorgCheckpoint{}, fmt.Errorf("failed to get latest checkpoint: %w", err)
	}

	return cp, nil
}

func (s *SQLiteStore) GetCheckpoint(ctx context.Context, program solana.PublicKey,
	slot uint64) (types.ReorgCheckpoint, error) {
	var cp types.ReorgCheckpoint

	err := s.query("get_checkpoint", func() error {
		return meddler.QueryRow(s.db, &cp,
			`SELECT * FROM reorg_checkpoints WHERE program_id = ? AND slot = ?`,
			db.EncodeBase58(program), slot)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return types.ReorgCheckpoint{}, types.ErrNotFound
	}
	if err != nil {
		return types.ReorgCheckpoint{}, fmt.Errorf("failed to get checkpoint at slot %d: %w", slot, err)
	}

	return cp, nil
}

func (s *SQLiteStore) Checkpoints(ctx context.Context, program solana.PublicKey,
	limit int) ([]types.ReorgCheckpoint, error) {
	var rows []*types.ReorgCheckpoint

	err := s.query("list_checkpoints", func() error {
		return meddler.QueryAll(s.db, &rows,
			`SELECT * FROM reorg_checkpoints WHERE program_id = ? ORDER BY slot DESC LIMIT ?`,
			db.EncodeBase58(program), limit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	checkpoints := make([]types.ReorgCheckpoint, len(rows))
	for i, cp := range rows {
		checkpoints[i] = *cp
	}

	return checkpoints, nil
}

func (s *SQLiteStore) AppendCheckpoint(ctx context.Context, cp types.ReorgCheckpoint) error {
	return s.query("append_checkpoint", func() error {
		return appendCheckpointSQL(ctx, s.db, cp)
	})
}

func appendCheckpointSQL(ctx context.Context, e execer, cp types.ReorgCheckpoint) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO reorg_checkpoints (program_id, slot, block_hash, parent_slot, parent_hash)
		VALUES (?, ?, ?, ?, ?)
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

func (s *SQLiteStore) PruneCheckpoints(ctx context.Context, program solana.PublicKey,
	finalizedSlot uint64) (int64, error) {
	var n int64

	err := s.query("prune_checkpoints", func() error {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM reorg_checkpoints
			WHERE program_id = ? AND slot <= ?
			AND slot < (SELECT MAX(slot) FROM reorg_checkpoints WHERE program_id = ? AND slot <= ?)`,
			db.EncodeBase58(program), finalizedSlot, db.EncodeBase58(program), finalizedSlot)
		if err != nil {
			return fmt.Errorf("failed to prune checkpoints: %w", err)
		}

		n, err = res.RowsAffected()
		return err
	})

	return n, err
}

func (s *SQLiteStore) RepairReorg(ctx context.Context, program solana.PublicKey, ancestor types.ReorgCheckpoint,
	rollback store.Effect) (types.SignatureCursor, error) {
	tx, done, err := s.begin(ctx, "repair_reorg")
	if err != nil {
		return types.SignatureCursor{}, err
	}
	defer done()

	invalidated, err := invalidateSQL(ctx, tx, program, ancestor.Slot)
	if err != nil {
		return types.SignatureCursor{}, err
	}

	if rollback != nil {
		if err := rollback(store.WithSQLTx(ctx, tx)); err != nil {
			return types.SignatureCursor{}, fmt.Errorf("rollback failed: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reorg_checkpoints WHERE program_id = ? AND slot > ?`,
		db.EncodeBase58(program), ancestor.Slot); err != nil {
		return types.SignatureCursor{}, fmt.Errorf("failed to delete checkpoints above slot %d: %w", ancestor.Slot, err)
	}

	var cursor types.SignatureCursor
	err = meddler.QueryRow(tx, &cursor, `SELECT * FROM signature_cursors WHERE program_id = ?`,
		db.EncodeBase58(program))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		cursor = types.SignatureCursor{ProgramID: program}
	case err != nil:
		return types.SignatureCursor{}, fmt.Errorf("failed to load cursor: %w", err)
	default:
		if cursor.Slot > ancestor.Slot {
			var last types.DeliveryRecord
			err := meddler.QueryRow(tx, &last, `
				SELECT * FROM delivery_ledger
				WHERE program_id = ? AND status = ? AND slot <= ?
				ORDER BY slot DESC, committed_at DESC LIMIT 1`,
				db.EncodeBase58(program), types.StatusCommitted, ancestor.Slot)

			rewound := cursor
			switch {
			case errors.Is(err, sql.ErrNoRows):
				rewound.Signature = solana.Signature{}
				rewound.Slot = ancestor.Slot
			case err != nil:
				return types.SignatureCursor{}, fmt.Errorf("failed to find rewind target: %w", err)
			default:
				rewound.Signature = last.Signature
				rewound.Slot = last.Slot
			}
			rewound.BlockHash = ancestor.BlockHash

			cursor, err = saveCursorSQL(ctx, tx, rewound)
			if err != nil {
				return types.SignatureCursor{}, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return types.SignatureCursor{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Infof("reorg repaired for %s: ancestor slot %d, %d ledger rows superseded, cursor at slot %d",
		common.ShortID(program.String()), ancestor.Slot, invalidated, cursor.Slot)

	return cursor, nil
}

func (s *SQLiteStore) GetBackfillProgress(ctx context.Context, id string) (types.BackfillProgress, error) {
	var p types.BackfillProgress

	err := s.query("get_backfill", func() error {
		return meddler.QueryRow(s.db, &p, `SELECT * FROM backfill_progress WHERE id = ?`, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return types.BackfillProgress{}, types.ErrNotFound
	}
	if err != nil {
		return types.BackfillProgress{}, fmt.Errorf("failed to get backfill progress %s: %w", id, err)
	}

	return p, nil
}

func (s *SQLiteStore) SaveBackfillProgress(ctx context.Context, p types.BackfillProgress) error {
	return s.query("save_backfill", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO backfill_progress
				(id, program_id, from_slot, to_slot, last_signature, last_slot, processed, status, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE
			SET last_signature = excluded.last_signature, last_slot = excluded.last_slot,
				processed = excluded.processed, status = excluded.status, updated_at = excluded.updated_at`,
			p.ID, db.EncodeBase58(p.ProgramID), p.FromSlot, p.ToSlot, db.EncodeBase58(p.LastSignature),
			p.LastSlot, p.Processed, p.Status, time.Now().UTC().Unix())
		if err != nil {
			return fmt.Errorf("failed to save backfill progress %s: %w", p.ID, err)
		}

		return nil
	})
}

func (s *SQLiteStore) ListBackfillProgress(ctx context.Context,
	program solana.PublicKey) ([]types.BackfillProgress, error) {
	var rows []*types.BackfillProgress

	err := s.query("list_backfill", func() error {
		return meddler.QueryAll(s.db, &rows,
			`SELECT * FROM backfill_progress WHERE program_id = ? ORDER BY from_slot ASC, to_slot ASC`,
			db.EncodeBase58(program))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list backfill progress: %w", err)
	}

	progress := make([]types.BackfillProgress, len(rows))
	for i, p := range rows {
		progress[i] = *p
	}

	return progress, nil
}

func (s *SQLiteStore) Stats(ctx context.Context, program solana.PublicKey) (store.Stats, error) {
	var stats store.Stats

	err := s.query("stats", func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT status, COUNT(*) FROM delivery_ledger WHERE program_id = ? GROUP BY status`,
			db.EncodeBase58(program))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				status types.DeliveryStatus
				count  int64
			)
			if err := rows.Scan(&status, &count); err != nil {
				return err
			}
			addStatusCount(&stats, status, count)
		}

		return rows.Err()
	})
	if err != nil {
		return store.Stats{}, fmt.Errorf("failed to count ledger rows: %w", err)
	}

	return completeStats(ctx, s, program, stats)
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
)

// Maintenance keeps the ledger database compact while the store is serving pipelines.
type Maintenance interface {
	Start(ctx context.Context) error
	Stop() error
	// AcquireOperationLock is taken around every store write. Compaction waits for
	// all holders to release it. The returned function releases the lock.
	AcquireOperationLock() func()
	Stats() MaintenanceStats
	RunMaintenance(ctx context.Context) error
}

// MaintenanceStats describes past maintenance runs.
type MaintenanceStats struct {
	Runs           uint64
	LastRun        time.Time
	LastError      error
	LastPruned     int64
	LastReclaimed  int64
	LastFreePages  int64
	VacuumsSkipped uint64
}

// NoOpMaintenance is used by stores without a maintenance configuration.
type NoOpMaintenance struct{}

func (*NoOpMaintenance) Start(context.Context) error          { return nil }
func (*NoOpMaintenance) Stop() error                          { return nil }
func (*NoOpMaintenance) RunMaintenance(context.Context) error { return nil }
func (*NoOpMaintenance) AcquireOperationLock() func()         { return func() {} }
func (*NoOpMaintenance) Stats() MaintenanceStats              { return MaintenanceStats{} }

// LedgerPruner deletes superseded ledger rows last updated before the given unix timestamp.
type LedgerPruner func(ctx context.Context, before int64) (int64, error)

// MaintenanceOption customizes a MaintenanceCoordinator.
type MaintenanceOption func(*MaintenanceCoordinator)

// WithLedgerPruner enables superseded row retention.
func WithLedgerPruner(pruner LedgerPruner) MaintenanceOption {
	return func(m *MaintenanceCoordinator) {
		m.pruner = pruner
	}
}

// MaintenanceCoordinator prunes superseded ledger rows, then checkpoints the WAL and vacuums
// the database when pruning or reorg repair left free pages behind.
type MaintenanceCoordinator struct {
	db     *sql.DB
	dbPath string
	cfg    config.MaintenanceConfig
	pruner LedgerPruner
	log    *logger.Logger

	// store writes hold it shared, checkpoint and vacuum hold it exclusively
	opLock sync.RWMutex

	// serializes RunMaintenance
	runMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   MaintenanceStats
}

// NewMaintenanceCoordinator returns a no-op implementation when cfg is nil.
func NewMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg *config.MaintenanceConfig,
	log *logger.Logger,
	opts ...MaintenanceOption,
) Maintenance {
	if cfg == nil {
		return &NoOpMaintenance{}
	}

	m := newMaintenanceCoordinator(dbPath, db, *cfg, log)
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func newMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg config.MaintenanceConfig,
	log *logger.Logger,
) *MaintenanceCoordinator {
	return &MaintenanceCoordinator{
		db:     db,
		dbPath: dbPath,
		cfg:    cfg,
		log:    log.WithComponent(common.ComponentMaintenance),
	}
}

// Start runs maintenance every CheckInterval until Stop or ctx cancellation.
// With VacuumOnStartup a first run happens before Start returns.
func (m *MaintenanceCoordinator) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.log.Info("Ledger maintenance is disabled")
		return nil
	}

	ctx, m.cancel = context.WithCancel(ctx)

	if m.cfg.VacuumOnStartup {
		if err := m.RunMaintenance(ctx); err != nil {
			m.log.Warnf("Startup maintenance failed: %v", err)
		}
	}

	m.wg.Go(func() {
		ticker := time.NewTicker(m.cfg.CheckInterval.Duration)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.RunMaintenance(ctx); err != nil {
					m.log.Warnf("Periodic maintenance failed: %v", err)
				}
			}
		}
	})

	m.log.Infof("Ledger maintenance every %v, checkpoint mode %s, superseded retention %v",
		m.cfg.CheckInterval.Duration, m.cfg.WALCheckpointMode, m.cfg.SupersededRetention.Duration)

	return nil
}

func (m *MaintenanceCoordinator) Stop() error {
	if m.cancel == nil {
		return nil
	}

	m.cancel()
	m.wg.Wait()
	m.log.Info("Ledger maintenance stopped")

	return nil
}

// RunMaintenance prunes superseded rows and then compacts the database.
// Pruning goes through the regular store path and does not block pipelines.
// Compaction waits for in-flight store writes and holds new ones until it is done.
func (m *MaintenanceCoordinator) RunMaintenance(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	start := time.Now()

	run := MaintenanceStats{}

	pruned, pruneErr := m.pruneSuperseded(ctx)
	run.LastPruned = pruned

	if err := ctx.Err(); err != nil {
		return err
	}

	sizeBefore, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("Failed to read ledger size: %v", err)
	}

	compactErr := m.compact(ctx, &run)

	sizeAfter, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("Failed to read ledger size: %v", err)
	}
	if sizeBefore > sizeAfter {
		run.LastReclaimed = sizeBefore - sizeAfter
	}

	runErr := errors.Join(pruneErr, compactErr)
	m.record(run, runErr)
	observeMaintenanceRun(run, runErr, time.Since(start), sizeAfter)

	if runErr != nil {
		return runErr
	}

	m.log.Infof("Maintenance done in %v: pruned %d superseded rows, reclaimed %d MB",
		time.Since(start), pruned, common.BytesToMB(uint64(run.LastReclaimed)))

	return nil
}

func (m *MaintenanceCoordinator) record(run MaintenanceStats, err error) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	m.stats.Runs++
	m.stats.LastRun = time.Now().UTC()
	m.stats.LastError = err
	m.stats.LastPruned = run.LastPruned
	m.stats.LastReclaimed = run.LastReclaimed
	m.stats.LastFreePages = run.LastFreePages
	m.stats.VacuumsSkipped += run.VacuumsSkipped
}

func (m *MaintenanceCoordinator) pruneSuperseded(ctx context.Context) (int64, error) {
	if m.pruner == nil || m.cfg.SupersededRetention.Duration <= 0 {
		return 0, nil
	}

	before := time.Now().UTC().Add(-m.cfg.SupersededRetention.Duration).Unix()

	removed, err := m.pruner(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("superseded retention failed: %w", err)
	}

	return removed, nil
}

// compact checkpoints the WAL and vacuums when the database has free pages.
func (m *MaintenanceCoordinator) compact(ctx context.Context, run *MaintenanceStats) error {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	var errs []error

	if err := m.checkpoint(ctx); err != nil {
		errs = append(errs, err)
	}

	free, err := m.freePages(ctx)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	run.LastFreePages = free

	if free == 0 {
		run.VacuumsSkipped++
		observeVacuum(vacuumSkipped)
		return errors.Join(errs...)
	}

	if _, err := m.db.ExecContext(ctx, "VACUUM"); err != nil {
		if strings.Contains(err.Error(), "database is locked") {
			err = fmt.Errorf("vacuum postponed, ledger is locked: %w", err)
		} else {
			err = fmt.Errorf("vacuum failed: %w", err)
		}
		errs = append(errs, err)
		observeVacuum(vacuumFailed)
	} else {
		observeVacuum(vacuumDone)
	}

	return errors.Join(errs...)
}

func (m *MaintenanceCoordinator) checkpoint(ctx context.Context) error {
	var mode string
	if err := m.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to read journal mode: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		return nil
	}

	var busy, frames, moved int
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", m.cfg.WALCheckpointMode)
	if err := m.db.QueryRowContext(ctx, query).Scan(&busy, &frames, &moved); err != nil {
		return fmt.Errorf("WAL checkpoint failed: %w", err)
	}

	observeCheckpoint(strings.ToLower(m.cfg.WALCheckpointMode), frames-moved)

	if busy > 0 {
		m.log.Warnf("WAL checkpoint left %d of %d frames behind", frames-moved, frames)
	}

	return nil
}

func (m *MaintenanceCoordinator) freePages(ctx context.Context) (int64, error) {
	var free int64
	if err := m.db.QueryRowContext(ctx, "PRAGMA freelist_count").Scan(&free); err != nil {
		return 0, fmt.Errorf("failed to read free page count: %w", err)
	}

	return free, nil
}

func (m *MaintenanceCoordinator) AcquireOperationLock() func() {
	m.opLock.RLock()
	return m.opLock.RUnlock
}

func (m *MaintenanceCoordinator) Stats() MaintenanceStats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	return m.stats
}

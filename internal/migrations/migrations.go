package migrations

import (
	_ "embed"

	"github.com/goran-ethernal/SolanaIndexor/internal/db"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed 001_delivery_ledger.sql
var mig001 string

//go:embed 002_signature_cursors.sql
var mig002 string

//go:embed 003_reorg_checkpoints.sql
var mig003 string

//go:embed 004_backfill_progress.sql
var mig004 string

// All returns the engine's schema migrations in order.
// The SQL is portable between SQLite and PostgreSQL.
func All() []db.Migration {
	return []db.Migration{
		{
			ID:  "001_delivery_ledger.sql",
			SQL: mig001,
		},
		{
			ID:  "002_signature_cursors.sql",
			SQL: mig002,
		},
		{
			ID:  "003_reorg_checkpoints.sql",
			SQL: mig003,
		},
		{
			ID:  "004_backfill_progress.sql",
			SQL: mig004,
		},
	}
}

func RunMigrations(dbPath string) error {
	return db.RunMigrations(dbPath, All())
}

// RunPostgresMigrations applies the schema to a PostgreSQL database.
func RunPostgresMigrations(log *logger.Logger, pool *pgxpool.Pool) error {
	return db.RunMigrationsPostgres(log, pool, All())
}

package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"

	UpDownSeparator     = "-- +migrate Up"
	dbPrefixReplacer    = "/*dbprefix*/"
	NoLimitMigrations   = 0 // indicate that there is no limit on the number of migrations to run
	migrationDirections = 2
)

type Migration struct {
	ID     string
	SQL    string
	Prefix string
}

// RunMigrations will execute pending migrations if needed to keep
// the database updated with the latest changes in either direction,
// up or down.
func RunMigrations(dbPath string, migrations []Migration) error {
	db, err := NewSQLiteDB(dbPath)
	if err != nil {
		return fmt.Errorf("error creating DB %w", err)
	}
	return RunMigrationsDB(logger.GetDefaultLogger(), db, migrations)
}

func RunMigrationsDB(logger *logger.Logger, db *sql.DB, migrationsParam []Migration) error {
	return RunMigrationsDBExtended(logger, db, DialectSQLite, migrationsParam, migrate.Up, NoLimitMigrations)
}

// RunMigrationsPostgres applies migrations through a database/sql view of the pgx pool.
func RunMigrationsPostgres(logger *logger.Logger, pool *pgxpool.Pool, migrationsParam []Migration) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return RunMigrationsDBExtended(logger, db, DialectPostgres, migrationsParam, migrate.Up, NoLimitMigrations)
}

// RunMigrationsDBExtended is an extended version of RunMigrationsDB that allows
// dialect: DialectSQLite or DialectPostgres
// dir: can be migrate.Up or migrate.Down
// maxMigrations: Will apply at most `max` migrations. Pass 0 for no limit (or use Exec)
func RunMigrationsDBExtended(logger *logger.Logger,
	db *sql.DB,
	dialect string,
	migrationsParam []Migration,
	dir migrate.MigrationDirection,
	maxMigrations int) error {
	migs, err := memorySource(migrationsParam)
	if err != nil {
		return err
	}

	// In case of partial execution we ignore the base migrations
	set := migrate.MigrationSet{IgnoreUnknown: maxMigrations != NoLimitMigrations}

	return execMigrations(logger, db, dialect, set, migs, dir, maxMigrations)
}

// RunMigrationsDBTable applies migrations and records them in their own bookkeeping table,
// so handler schemas can live in the ledger database next to the engine's migrations.
func RunMigrationsDBTable(logger *logger.Logger, db *sql.DB, dialect, table string, migrationsParam []Migration) error {
	migs, err := memorySource(migrationsParam)
	if err != nil {
		return err
	}

	return execMigrations(logger, db, dialect, migrate.MigrationSet{TableName: table}, migs, migrate.Up,
		NoLimitMigrations)
}

func memorySource(migrationsParam []Migration) (*migrate.MemoryMigrationSource, error) {
	migs := &migrate.MemoryMigrationSource{Migrations: []*migrate.Migration{}}

	for _, m := range migrationsParam {
		prefixed := strings.ReplaceAll(m.SQL, dbPrefixReplacer, m.Prefix)
		splitted := strings.Split(prefixed, UpDownSeparator)

		if len(splitted) < migrationDirections {
			return nil, fmt.Errorf("migration %s missing '-- +migrate Up' separator", m.ID)
		}

		// splitted[0] = Down section (may include "-- +migrate Down" marker)
		// splitted[1] = Up section

		downSQL := splitted[0]
		upSQL := splitted[1]

		// Clean up Down section - remove the Down marker if present
		downMarker := "-- +migrate Down"
		if idx := strings.Index(downSQL, downMarker); idx != -1 {
			downSQL = strings.TrimSpace(downSQL[idx+len(downMarker):])
		} else {
			downSQL = strings.TrimSpace(downSQL)
		}

		upSQL = strings.TrimSpace(upSQL)

		migs.Migrations = append(migs.Migrations, &migrate.Migration{
			Id:   m.Prefix + m.ID,
			Up:   []string{upSQL},
			Down: []string{downSQL},
		})
	}

	return migs, nil
}

func execMigrations(logger *logger.Logger,
	db *sql.DB,
	dialect string,
	set migrate.MigrationSet,
	migs *migrate.MemoryMigrationSource,
	dir migrate.MigrationDirection,
	maxMigrations int) error {
	var listMigrations strings.Builder
	for _, m := range migs.Migrations {
		listMigrations.WriteString(m.Id + ", ")
	}

	logger.Debugf("running %s migrations: (max %d/%d) migrations: %s", dialect, maxMigrations,
		len(migs.Migrations),
		listMigrations.String())
	nMigrations, err := set.ExecMax(db, dialect, migs, dir, maxMigrations)
	if err != nil {
		return fmt.Errorf("error executing migration (max %d/%d) migrations: %s . Err: %w",
			maxMigrations, len(migs.Migrations), listMigrations.String(), err)
	}

	logger.Infof("successfully ran %d migrations from migrations: %s", nMigrations, listMigrations.String())
	return nil
}

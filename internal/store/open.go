package store

import (
	"context"
	"fmt"

	"github.com/goran-ethernal/SolanaIndexor/internal/db"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/goran-ethernal/SolanaIndexor/pkg/handler"
	"github.com/goran-ethernal/SolanaIndexor/pkg/store"
)

// Opened is a store together with what handlers and the coordinator need from its backend.
type Opened struct {
	Store       store.Store
	Maintenance db.Maintenance
	// HandlerDeps carries the raw database handles to handler factories.
	HandlerDeps handler.Deps
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (*Opened, error) {
	switch cfg.Driver {
	case config.StoreDriverSQLite:
		s, err := OpenSQLite(cfg.DB, cfg.Maintenance, log)
		if err != nil {
			return nil, err
		}

		return &Opened{
			Store:       s,
			Maintenance: s.Maintenance(),
			HandlerDeps: handler.Deps{SQL: s.DB()},
		}, nil

	case config.StoreDriverPostgres:
		s, err := OpenPostgres(ctx, cfg.PostgresURL, log)
		if err != nil {
			return nil, err
		}

		return &Opened{
			Store:       s,
			Maintenance: &db.NoOpMaintenance{},
			HandlerDeps: handler.Deps{Pool: s.Pool()},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

package handler

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deps carries what the engine shares with handlers of a program.
// Exactly one of SQL and Pool is set, depending on the configured store driver.
type Deps struct {
	ProgramName string
	ProgramID   solana.PublicKey

	// SQL is the ledger database when the store driver is sqlite.
	SQL *sql.DB
	// Pool is the ledger database when the store driver is postgres.
	Pool *pgxpool.Pool
}

// Factory is a function that creates a new handler instance.
type Factory func(cfg config.HandlerConfig, deps Deps, log *logger.Logger) (Handler, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register registers a handler factory with the given type name.
// This is typically called in init() functions of handler packages.
// The type name is case-insensitive and will be stored in lowercase.
func Register(handlerType string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	name := strings.ToLower(handlerType)
	if _, exists := registry[name]; exists {
		logger.GetDefaultLogger().Infof("handler with name %s already in handler registry. "+
			"It will be overwritten.", name)
	}

	registry[name] = factory
}

// GetFactory returns the factory for the given handler type.
// Returns nil if the type is not registered.
// The lookup is case-insensitive.
func GetFactory(handlerType string) Factory {
	mu.RLock()
	defer mu.RUnlock()
	return registry[strings.ToLower(handlerType)]
}

// ListRegistered returns a sorted list of all registered handler types.
func ListRegistered() []string {
	mu.RLock()
	defer mu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}

// Create creates a new handler instance using the registered factory.
// Returns an error if the type is not registered or if creation fails.
func Create(cfg config.HandlerConfig, deps Deps, log *logger.Logger) (Handler, error) {
	factory := GetFactory(cfg.Type)
	if factory == nil {
		return nil, fmt.Errorf("unknown handler type: %s (registered types: %v)", cfg.Type, ListRegistered())
	}

	return factory(cfg, deps, log)
}

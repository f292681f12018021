package decoder

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Builder constructs a fresh decoding table.
type Builder func() (*Table, error)

var (
	tables = make(map[string]Builder)
	mu     sync.RWMutex
)

// RegisterTable registers a table builder under a case-insensitive name.
// Programs select their table by this name in the configuration.
func RegisterTable(name string, builder Builder) {
	mu.Lock()
	defer mu.Unlock()

	tables[strings.ToLower(name)] = builder
}

// ListTables returns the sorted names of all registered tables.
func ListTables() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// BuildTable builds the table registered under name.
func BuildTable(name string) (*Table, error) {
	mu.RLock()
	builder := tables[strings.ToLower(name)]
	mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("unknown decoder: %s (registered decoders: %v)", name, ListTables())
	}

	table, err := builder()
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder %s: %w", name, err)
	}

	return table, nil
}

package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
)

const (
	// maxSignaturesPageSize is the hard limit of getSignaturesForAddress.
	maxSignaturesPageSize = 1000

	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"

	LockDriverLocal = "local"
	LockDriverRedis = "redis"

	StartStrategyResume = "resume"
	StartStrategyLatest = "latest"
	StartStrategySlot   = "slot"
)

// Config represents the complete configuration for the indexer.
type Config struct {
	// RPC contains the upstream RPC endpoint configuration
	RPC RPCConfig `yaml:"rpc" json:"rpc" toml:"rpc"`

	// Store contains the persistence configuration for ledger, cursors and checkpoints
	Store StoreConfig `yaml:"store" json:"store" toml:"store"`

	// Pipeline contains polling and fetching settings shared by all programs
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" toml:"pipeline"`

	// Reorg contains reorganization detection settings
	Reorg ReorgConfig `yaml:"reorg" json:"reorg" toml:"reorg"`

	// Backfill contains historical backfill settings
	Backfill BackfillConfig `yaml:"backfill" json:"backfill" toml:"backfill"`

	// Lock selects how per program mutual exclusion is enforced
	Lock LockConfig `yaml:"lock" json:"lock" toml:"lock"`

	// Notifier optionally subscribes to program logs over websocket to trigger early polls
	Notifier *NotifierConfig `yaml:"notifier,omitempty" json:"notifier,omitempty" toml:"notifier,omitempty"`

	// Programs contains the tracked programs
	Programs []ProgramConfig `yaml:"programs" json:"programs" toml:"programs"`

	// Logging contains logging configuration
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`

	// API contains the status API configuration
	API *APIConfig `yaml:"api,omitempty" json:"api,omitempty" toml:"api,omitempty"`
}

// RPCConfig represents the upstream RPC configuration.
type RPCConfig struct {
	// URL is the Solana JSON-RPC HTTP endpoint
	URL string `yaml:"url" json:"url" toml:"url"`

	// Commitment is the commitment level used for reads: "processed", "confirmed" or "finalized"
	Commitment string `yaml:"commitment" json:"commitment" toml:"commitment"`

	// RequestTimeout bounds a single RPC call
	RequestTimeout common.Duration `yaml:"request_timeout" json:"request_timeout" toml:"request_timeout"`

	// Retry contains RPC retry configuration with exponential backoff
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`
}

// ApplyDefaults sets default values for optional RPC configuration fields.
func (r *RPCConfig) ApplyDefaults() {
	if r.Commitment == "" {
		r.Commitment = "confirmed"
	}
	if r.RequestTimeout.Duration == 0 {
		r.RequestTimeout = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.Retry == nil {
		r.Retry = &RetryConfig{}
	}
	r.Retry.ApplyDefaults()
}

// RetryConfig represents retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial request)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	// InitialBackoff is the initial backoff duration before first retry
	InitialBackoff common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration
	MaxBackoff common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults sets default values for retry configuration.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(1 * time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// StoreConfig represents the persistence configuration.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver string `yaml:"driver" json:"driver" toml:"driver"`

	// DB contains SQLite configuration (used when Driver is "sqlite")
	DB DatabaseConfig `yaml:"db" json:"db" toml:"db"`

	// PostgresURL is the connection string (used when Driver is "postgres")
	PostgresURL string `yaml:"postgres_url" json:"postgres_url" toml:"postgres_url"`

	// Maintenance contains optional SQLite maintenance settings
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`
}

// ApplyDefaults sets default values for optional store configuration fields.
func (s *StoreConfig) ApplyDefaults() {
	if s.Driver == "" {
		s.Driver = StoreDriverSQLite
	}
	if s.Maintenance != nil {
		s.Maintenance.ApplyDefaults()
	}

	s.DB.ApplyDefaults()
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	// Path is the file path to the SQLite database
	Path string `yaml:"path" json:"path" toml:"path"`

	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE")
	// WAL mode is recommended for better concurrency
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`

	// Synchronous sets the synchronization level ("FULL", "NORMAL", "OFF")
	// NORMAL provides a good balance between safety and performance
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	// MaxOpenConnections is the maximum number of open database connections
	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`

	// EnableForeignKeys enables foreign key constraint enforcement
	EnableForeignKeys bool `yaml:"enable_foreign_keys" json:"enable_foreign_keys" toml:"enable_foreign_keys"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
}

// Validate checks the SQLite settings.
func (d *DatabaseConfig) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("path is required")
	}

	if !slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
		return fmt.Errorf("journal_mode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}

	if !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
		return fmt.Errorf("synchronous must be one of: FULL, NORMAL, OFF")
	}

	return nil
}

// MaintenanceConfig configures database maintenance behavior.
type MaintenanceConfig struct {
	// Enabled controls whether background maintenance runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// CheckInterval is how often to run maintenance (e.g., "30m", "1h")
	CheckInterval common.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`

	// VacuumOnStartup runs maintenance immediately on startup
	VacuumOnStartup bool `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`

	// WALCheckpointMode controls the WAL checkpoint aggressiveness
	// Options: PASSIVE, FULL, RESTART, TRUNCATE
	WALCheckpointMode string `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`

	// SupersededRetention deletes superseded ledger rows older than this (0 keeps everything).
	// Committed rows are never pruned.
	SupersededRetention common.Duration `yaml:"superseded_retention" json:"superseded_retention" toml:"superseded_retention"`
}

// ApplyDefaults sets default values for optional maintenance configuration fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = common.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// Validate checks if the maintenance configuration is valid.
func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" {
		validModes := []string{"PASSIVE", "FULL", "RESTART", "TRUNCATE"}
		if !slices.Contains(validModes, m.WALCheckpointMode) {
			return fmt.Errorf("maintenance.wal_checkpoint_mode: must be one of: PASSIVE, FULL, RESTART, TRUNCATE")
		}
	}

	return nil
}

// PipelineConfig contains the live polling settings.
type PipelineConfig struct {
	// PollInterval is the time between two ticks of a program's poller
	PollInterval common.Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`

	// TickTimeout bounds a single tick; zero means no timeout
	TickTimeout common.Duration `yaml:"tick_timeout" json:"tick_timeout" toml:"tick_timeout"`

	// PageSize is the number of signatures requested per getSignaturesForAddress call
	PageSize int `yaml:"page_size" json:"page_size" toml:"page_size"`

	// MaxPagesPerTick bounds how many signature pages a single tick lists
	MaxPagesPerTick int `yaml:"max_pages_per_tick" json:"max_pages_per_tick" toml:"max_pages_per_tick"`

	// BatchSize is the number of transactions prefetched in one JSON-RPC batch
	BatchSize int `yaml:"batch_size" json:"batch_size" toml:"batch_size"`

	// IndexFailedTransactions delivers events of failed transactions as well
	IndexFailedTransactions bool `yaml:"index_failed_transactions" json:"index_failed_transactions" toml:"index_failed_transactions"` //nolint:lll

	// Retry is the policy for fetch failures (not found / transport) of a single signature
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`
}

// ApplyDefaults sets default values for optional pipeline configuration fields.
func (p *PipelineConfig) ApplyDefaults() {
	if p.PollInterval.Duration == 0 {
		p.PollInterval = common.NewDuration(2 * time.Second) //nolint:mnd
	}
	if p.PageSize == 0 {
		p.PageSize = maxSignaturesPageSize
	}
	if p.MaxPagesPerTick == 0 {
		p.MaxPagesPerTick = 10
	}
	if p.BatchSize == 0 {
		p.BatchSize = 20
	}
	if p.Retry == nil {
		p.Retry = &RetryConfig{}
	}
	p.Retry.ApplyDefaults()
}

// Validate checks the pipeline configuration.
func (p *PipelineConfig) Validate() error {
	if p.PageSize < 1 || p.PageSize > maxSignaturesPageSize {
		return fmt.Errorf("page_size must be between 1 and %d", maxSignaturesPageSize)
	}
	if p.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive")
	}
	if p.MaxPagesPerTick < 1 {
		return fmt.Errorf("max_pages_per_tick must be positive")
	}

	return nil
}

// ReorgConfig contains reorg detection settings.
type ReorgConfig struct {
	// Disabled turns reorg detection off (e.g. when reading only finalized data)
	Disabled bool `yaml:"disabled" json:"disabled" toml:"disabled"`

	// MaxLookbackDepth is the maximum number of checkpoints walked back to find a common ancestor
	MaxLookbackDepth int `yaml:"max_lookback_depth" json:"max_lookback_depth" toml:"max_lookback_depth"`

	// PruneFinalized removes checkpoints at or below the finalized slot
	PruneFinalized bool `yaml:"prune_finalized" json:"prune_finalized" toml:"prune_finalized"`
}

// ApplyDefaults sets default values for optional reorg configuration fields.
func (r *ReorgConfig) ApplyDefaults() {
	if r.MaxLookbackDepth == 0 {
		r.MaxLookbackDepth = 64
	}
}

// BackfillConfig contains historical backfill settings.
type BackfillConfig struct {
	// Enabled seeds history from StartSlot up to the live cursor on startup
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// StartSlot is the lowest slot seeded when backfill is enabled
	StartSlot uint64 `yaml:"start_slot" json:"start_slot" toml:"start_slot"`

	// PageSize is the number of signatures requested per page during backfill
	PageSize int `yaml:"page_size" json:"page_size" toml:"page_size"`
}

// ApplyDefaults sets default values for optional backfill configuration fields.
func (b *BackfillConfig) ApplyDefaults() {
	if b.PageSize == 0 {
		b.PageSize = maxSignaturesPageSize
	}
}

// LockConfig selects the per program lock implementation.
type LockConfig struct {
	// Driver is "local" (in-process) or "redis" (shared between instances)
	Driver string `yaml:"driver" json:"driver" toml:"driver"`

	// RedisAddress is the redis host:port (used when Driver is "redis")
	RedisAddress string `yaml:"redis_address" json:"redis_address" toml:"redis_address"`

	// RedisPassword is the optional redis password
	RedisPassword string `yaml:"redis_password" json:"redis_password" toml:"redis_password"`

	// RedisDB is the redis database number
	RedisDB int `yaml:"redis_db" json:"redis_db" toml:"redis_db"`

	// KeyPrefix namespaces the lock keys
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix" toml:"key_prefix"`

	// LeaseTTL is how long a lease survives without renewal
	LeaseTTL common.Duration `yaml:"lease_ttl" json:"lease_ttl" toml:"lease_ttl"`
}

// ApplyDefaults sets default values for optional lock configuration fields.
func (l *LockConfig) ApplyDefaults() {
	if l.Driver == "" {
		l.Driver = LockDriverLocal
	}
	if l.KeyPrefix == "" {
		l.KeyPrefix = "solindexor:lock:"
	}
	if l.LeaseTTL.Duration == 0 {
		l.LeaseTTL = common.NewDuration(time.Minute)
	}
}

// NotifierConfig configures the websocket logs subscription.
type NotifierConfig struct {
	// Enabled turns the notifier on
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// WSURL is the Solana websocket endpoint (ws:// or wss://)
	WSURL string `yaml:"ws_url" json:"ws_url" toml:"ws_url"`

	// ReconnectDelay is the wait between reconnection attempts
	ReconnectDelay common.Duration `yaml:"reconnect_delay" json:"reconnect_delay" toml:"reconnect_delay"`
}

// ApplyDefaults sets default values for optional notifier configuration fields.
func (n *NotifierConfig) ApplyDefaults() {
	if n.ReconnectDelay.Duration == 0 {
		n.ReconnectDelay = common.NewDuration(5 * time.Second) //nolint:mnd
	}
}

// ProgramConfig describes a tracked program.
type ProgramConfig struct {
	// Name is a unique identifier for this program in logs and metrics
	Name string `yaml:"name" json:"name" toml:"name"`

	// ProgramID is the base58 program address
	ProgramID string `yaml:"program_id" json:"program_id" toml:"program_id"`

	// Decoder is the name of a registered decoding table
	Decoder string `yaml:"decoder" json:"decoder" toml:"decoder"`

	// StartStrategy decides where an empty cursor starts: "resume", "latest" or "slot"
	StartStrategy string `yaml:"start_strategy" json:"start_strategy" toml:"start_strategy"`

	// StartSlot is the first slot indexed when StartStrategy is "slot"
	StartSlot uint64 `yaml:"start_slot" json:"start_slot" toml:"start_slot"`

	// Handlers receive the decoded events of this program
	Handlers []HandlerConfig `yaml:"handlers" json:"handlers" toml:"handlers"`
}

// ApplyDefaults sets default values for optional program configuration fields.
func (p *ProgramConfig) ApplyDefaults() {
	if p.StartStrategy == "" {
		p.StartStrategy = StartStrategyResume
	}
}

// PublicKey parses the program id.
func (p *ProgramConfig) PublicKey() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(p.ProgramID)
}

// HandlerConfig selects a registered handler type and its options.
type HandlerConfig struct {
	// Type is the registered handler type name
	Type string `yaml:"type" json:"type" toml:"type"`

	// DB is an optional database used by handlers that keep their own tables
	DB *DatabaseConfig `yaml:"db,omitempty" json:"db,omitempty" toml:"db,omitempty"`

	// Options are handler specific settings
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty" toml:"options,omitempty"`
}

// LoggingConfig configures logging behavior with per-component log levels.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components
	// Options: "debug", "info", "warn", "error"
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels sets log levels for specific components
	// Available components: poller, fetcher, decoder, dispatcher, backfill,
	// reorg-detector, store, coordinator, notifier, maintenance, api
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(l.DefaultLevel)]; !valid {
			return fmt.Errorf("logging.default_level: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := common.AllComponents[common.ToLowerWithTrim(component)]; !validComponent {
			return fmt.Errorf("logging.component_levels: unknown component '%s'", component)
		}

		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(level)]; !valid {
			return fmt.Errorf("logging.component_levels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if l == nil {
		return "info"
	}
	if level, ok := l.ComponentLevels[component]; ok {
		return common.ToLowerWithTrim(level)
	}

	return l.GetDefaultLevel()
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	if l == nil || l.DefaultLevel == "" {
		return "info"
	}

	return common.ToLowerWithTrim(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l != nil && l.Development
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP endpoint are active
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to
	// Format: "host:port" or ":port"
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path where metrics are exposed
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.ListenAddress == "" {
			return fmt.Errorf("listen_address is required when metrics are enabled")
		}
		if m.Path == "" {
			return fmt.Errorf("path is required when metrics are enabled")
		}
		if m.Path[0] != '/' {
			return fmt.Errorf("path must start with '/'")
		}
	}

	return nil
}

// APIConfig configures the read-only status API.
type APIConfig struct {
	// Enabled controls whether the API server is started
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the API server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`
}

// ApplyDefaults sets default values for optional API configuration fields.
func (a *APIConfig) ApplyDefaults() {
	if a.ListenAddress == "" {
		a.ListenAddress = ":8080"
	}
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	c.RPC.ApplyDefaults()
	c.Store.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Reorg.ApplyDefaults()
	c.Backfill.ApplyDefaults()
	c.Lock.ApplyDefaults()

	for i := range c.Programs {
		c.Programs[i].ApplyDefaults()
	}

	if c.Notifier != nil {
		c.Notifier.ApplyDefaults()
	}
	if c.Logging != nil {
		c.Logging.ApplyDefaults()
	}
	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
	if c.API != nil {
		c.API.ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.RPC.URL == "" {
		return fmt.Errorf("rpc.url is required")
	}

	if !slices.Contains([]string{"processed", "confirmed", "finalized"}, c.RPC.Commitment) {
		return fmt.Errorf("rpc.commitment must be one of: 'processed', 'confirmed', or 'finalized'")
	}

	switch c.Store.Driver {
	case StoreDriverSQLite:
		if err := c.Store.DB.Validate(); err != nil {
			return fmt.Errorf("store.db: %w", err)
		}
	case StoreDriverPostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be one of: sqlite, postgres")
	}

	if c.Store.Maintenance != nil {
		if err := c.Store.Maintenance.Validate(); err != nil {
			return fmt.Errorf("store.maintenance: %w", err)
		}
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	if c.Reorg.MaxLookbackDepth < 1 {
		return fmt.Errorf("reorg.max_lookback_depth must be positive")
	}

	switch c.Lock.Driver {
	case LockDriverLocal:
	case LockDriverRedis:
		if c.Lock.RedisAddress == "" {
			return fmt.Errorf("lock.redis_address is required for the redis driver")
		}
	default:
		return fmt.Errorf("lock.driver must be one of: local, redis")
	}

	if c.Notifier != nil && c.Notifier.Enabled && c.Notifier.WSURL == "" {
		return fmt.Errorf("notifier.ws_url is required when the notifier is enabled")
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	if len(c.Programs) == 0 {
		return fmt.Errorf("at least one program must be configured")
	}

	names := make(map[string]bool)
	ids := make(map[string]bool)
	for i, program := range c.Programs {
		if program.Name == "" {
			return fmt.Errorf("programs[%d]: name is required", i)
		}

		if names[program.Name] {
			return fmt.Errorf("programs[%d]: duplicate program name '%s'", i, program.Name)
		}
		names[program.Name] = true

		if _, err := program.PublicKey(); err != nil {
			return fmt.Errorf("programs[%d] (%s): invalid program_id: %w", i, program.Name, err)
		}

		if ids[program.ProgramID] {
			return fmt.Errorf("programs[%d] (%s): program_id tracked twice", i, program.Name)
		}
		ids[program.ProgramID] = true

		if program.Decoder == "" {
			return fmt.Errorf("programs[%d] (%s): decoder is required", i, program.Name)
		}

		if !slices.Contains([]string{StartStrategyResume, StartStrategyLatest, StartStrategySlot},
			program.StartStrategy) {
			return fmt.Errorf("programs[%d] (%s): start_strategy must be one of: resume, latest, slot", i, program.Name)
		}

		if len(program.Handlers) == 0 {
			return fmt.Errorf("programs[%d] (%s): at least one handler must be configured", i, program.Name)
		}

		for j, h := range program.Handlers {
			if h.Type == "" {
				return fmt.Errorf("programs[%d] (%s), handlers[%d]: type is required", i, program.Name, j)
			}
		}
	}

	return nil
}

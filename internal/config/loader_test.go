package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

const testProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

var exampleFiles = []struct {
	format string
	path   string
	load   func(string) (*config.Config, error)
}{
	{"YAML", "../../config.example.yaml", LoadFromYAML},
	{"JSON", "../../config.example.json", LoadFromJSON},
	{"TOML", "../../config.example.toml", LoadFromTOML},
}

func TestLoad_ExampleFiles(t *testing.T) {
	for _, f := range exampleFiles {
		t.Run(f.format, func(t *testing.T) {
			cfg, err := f.load(f.path)
			require.NoError(t, err)
			validateConfig(t, cfg, f.format)

			auto, err := LoadFromFile(f.path)
			require.NoError(t, err)
			require.Equal(t, cfg, auto, "[%s] auto-detected load differs", f.format)
		})
	}
}

func TestLoad_PipelineReorgAndLockSections(t *testing.T) {
	for _, f := range exampleFiles {
		t.Run(f.format, func(t *testing.T) {
			cfg, err := f.load(f.path)
			require.NoError(t, err)

			require.Equal(t, time.Minute, cfg.Pipeline.TickTimeout.Duration)
			require.Equal(t, 1000, cfg.Pipeline.PageSize)
			require.Equal(t, 10, cfg.Pipeline.MaxPagesPerTick)
			require.Equal(t, 20, cfg.Pipeline.BatchSize)
			require.False(t, cfg.Pipeline.IndexFailedTransactions)
			require.NotNil(t, cfg.Pipeline.Retry, "pipeline.retry should have default value applied")

			require.False(t, cfg.Reorg.Disabled)
			require.Equal(t, 64, cfg.Reorg.MaxLookbackDepth)
			require.True(t, cfg.Reorg.PruneFinalized)

			require.False(t, cfg.Backfill.Enabled)
			require.Equal(t, 1000, cfg.Backfill.PageSize)

			require.Equal(t, config.LockDriverLocal, cfg.Lock.Driver)
			require.Equal(t, "solindexor:lock:", cfg.Lock.KeyPrefix)
			require.Equal(t, time.Minute, cfg.Lock.LeaseTTL.Duration)

			require.NotNil(t, cfg.Store.Maintenance)
			require.Equal(t, 30*time.Minute, cfg.Store.Maintenance.CheckInterval.Duration)
			require.Equal(t, "TRUNCATE", cfg.Store.Maintenance.WALCheckpointMode)

			require.NotNil(t, cfg.Notifier)
			require.Equal(t, 5*time.Second, cfg.Notifier.ReconnectDelay.Duration)
		})
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"config.yaml": `
rpc:
  url: "https://test.com"
store:
  maintenance:
    ledger_retention: "24h"
programs:
  - name: "token"
    program_id: "` + testProgramID + `"
    decoder: "transfers"
    handlers:
      - type: "transfers"
`,
		"config.json": `{
  "rpc": {"url": "https://test.com"},
  "store": {"maintenance": {"ledger_retention": "24h"}},
  "programs": [{"name": "token", "program_id": "` + testProgramID + `", "decoder": "transfers",
    "handlers": [{"type": "transfers"}]}]
}`,
		"config.toml": `
[rpc]
url = "https://test.com"

[store.maintenance]
ledger_retention = "24h"

[[programs]]
name = "token"
program_id = "` + testProgramID + `"
decoder = "transfers"

[[programs.handlers]]
type = "transfers"
`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			_, err := LoadFromFile(path)
			require.ErrorContains(t, err, "ledger_retention")
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvRPCURL, "https://rpc.internal:8899")
	t.Setenv(EnvPostgresURL, "postgres://indexer@db/indexer")
	t.Setenv(EnvRedisPassword, "hunter2")

	cfg, err := LoadFromFile("../../config.example.yaml")
	require.NoError(t, err)

	require.Equal(t, "https://rpc.internal:8899", cfg.RPC.URL)
	require.Equal(t, "postgres://indexer@db/indexer", cfg.Store.PostgresURL)
	require.Equal(t, "hunter2", cfg.Lock.RedisPassword)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "failed to read config file")
}

func TestLoadFromFile_UnsupportedFormat(t *testing.T) {
	_, err := LoadFromFile("config.txt")
	require.Contains(t, err.Error(), "unsupported config file format")
}

// validateConfig checks that the loaded config has expected values
func validateConfig(t *testing.T, cfg *config.Config, format string) {
	t.Helper()

	require.NotEmpty(t, cfg.RPC.URL, "[%s] rpc.url should not be empty", format)
	require.Equal(t, "confirmed", cfg.RPC.Commitment, "[%s] rpc.commitment", format)
	require.NotNil(t, cfg.RPC.Retry, "[%s] rpc.retry should have default value applied", format)

	require.Equal(t, config.StoreDriverSQLite, cfg.Store.Driver, "[%s] store.driver", format)
	require.NotEmpty(t, cfg.Store.DB.Path, "[%s] store.db.path should not be empty", format)
	require.NotEmpty(t, cfg.Store.DB.JournalMode, "[%s] db.journal_mode should have default value", format)
	require.NotEmpty(t, cfg.Store.DB.Synchronous, "[%s] db.synchronous should have default value", format)

	require.Equal(t, 2*time.Second, cfg.Pipeline.PollInterval.Duration, "[%s] pipeline.poll_interval", format)
	require.NotZero(t, cfg.Pipeline.PageSize, "[%s] pipeline.page_size should not be zero", format)
	require.NotZero(t, cfg.Reorg.MaxLookbackDepth, "[%s] reorg.max_lookback_depth should not be zero", format)

	require.NotEmpty(t, cfg.Programs, "[%s] there should be at least one program configured", format)

	for i, program := range cfg.Programs {
		require.NotEmpty(t, program.Name, "[%s] programs[%d].name should not be empty", format, i)
		require.NotEmpty(t, program.ProgramID, "[%s] programs[%d].program_id should not be empty", format, i)
		require.NotEmpty(t, program.Decoder, "[%s] programs[%d].decoder should not be empty", format, i)
		require.NotEmpty(t, program.StartStrategy, "[%s] programs[%d].start_strategy should have default", format, i)
		require.NotEmpty(t, program.Handlers, "[%s] programs[%d] should have at least one handler", format, i)

		for j, h := range program.Handlers {
			require.NotEmpty(t, h.Type, "[%s] programs[%d].handlers[%d].type should not be empty", format, i, j)
		}
	}
}

func validTestConfig() *config.Config {
	return &config.Config{
		RPC: config.RPCConfig{
			URL: "https://test.com",
		},
		Store: config.StoreConfig{
			DB: config.DatabaseConfig{
				Path: "./test.db",
			},
		},
		Programs: []config.ProgramConfig{
			{
				Name:      "token",
				ProgramID: testProgramID,
				Decoder:   "transfers",
				Handlers:  []config.HandlerConfig{{Type: "transfers"}},
			},
		},
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := validTestConfig()

	cfg.ApplyDefaults()

	require.Equal(t, "confirmed", cfg.RPC.Commitment)
	require.Equal(t, 5, cfg.RPC.Retry.MaxAttempts)
	require.Equal(t, time.Second, cfg.RPC.Retry.InitialBackoff.Duration)
	require.Equal(t, 30*time.Second, cfg.RPC.Retry.MaxBackoff.Duration)
	require.InDelta(t, 2.0, cfg.RPC.Retry.BackoffMultiplier, 0)

	require.Equal(t, config.StoreDriverSQLite, cfg.Store.Driver)
	require.Equal(t, "WAL", cfg.Store.DB.JournalMode)
	require.Equal(t, "NORMAL", cfg.Store.DB.Synchronous)
	require.Equal(t, 5000, cfg.Store.DB.BusyTimeout)
	require.Equal(t, 25, cfg.Store.DB.MaxOpenConnections)

	require.Equal(t, 1000, cfg.Pipeline.PageSize)
	require.Equal(t, 10, cfg.Pipeline.MaxPagesPerTick)
	require.Equal(t, 20, cfg.Pipeline.BatchSize)
	require.Equal(t, 64, cfg.Reorg.MaxLookbackDepth)

	require.Equal(t, config.LockDriverLocal, cfg.Lock.Driver)
	require.Equal(t, config.StartStrategyResume, cfg.Programs[0].StartStrategy)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(cfg *config.Config) {},
		},
		{
			name:    "missing rpc url",
			mutate:  func(cfg *config.Config) { cfg.RPC.URL = "" },
			wantErr: "rpc.url is required",
		},
		{
			name:    "invalid commitment",
			mutate:  func(cfg *config.Config) { cfg.RPC.Commitment = "safe" },
			wantErr: "rpc.commitment",
		},
		{
			name:    "page size above rpc limit",
			mutate:  func(cfg *config.Config) { cfg.Pipeline.PageSize = 1001 },
			wantErr: "page_size",
		},
		{
			name:    "postgres without url",
			mutate:  func(cfg *config.Config) { cfg.Store.Driver = config.StoreDriverPostgres },
			wantErr: "store.postgres_url",
		},
		{
			name:    "redis lock without address",
			mutate:  func(cfg *config.Config) { cfg.Lock.Driver = config.LockDriverRedis },
			wantErr: "lock.redis_address",
		},
		{
			name:    "no programs",
			mutate:  func(cfg *config.Config) { cfg.Programs = nil },
			wantErr: "at least one program",
		},
		{
			name:    "invalid program id",
			mutate:  func(cfg *config.Config) { cfg.Programs[0].ProgramID = "0x1234" },
			wantErr: "invalid program_id",
		},
		{
			name: "duplicate program id",
			mutate: func(cfg *config.Config) {
				second := cfg.Programs[0]
				second.Name = "token-2"
				cfg.Programs = append(cfg.Programs, second)
			},
			wantErr: "tracked twice",
		},
		{
			name:    "unknown start strategy",
			mutate:  func(cfg *config.Config) { cfg.Programs[0].StartStrategy = "genesis" },
			wantErr: "start_strategy",
		},
		{
			name:    "no handlers",
			mutate:  func(cfg *config.Config) { cfg.Programs[0].Handlers = nil },
			wantErr: "at least one handler",
		},
		{
			name: "unknown logging component",
			mutate: func(cfg *config.Config) {
				cfg.Logging = &config.LoggingConfig{ComponentLevels: map[string]string{"downloader": "debug"}}
			},
			wantErr: "unknown component",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			cfg.ApplyDefaults()

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoggingConfig_NilSafe(t *testing.T) {
	var l *config.LoggingConfig

	require.Equal(t, "info", l.GetDefaultLevel())
	require.Equal(t, "info", l.GetComponentLevel("poller"))
	require.False(t, l.IsDevelopment())
}

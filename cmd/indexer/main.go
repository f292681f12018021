package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// Import built-in handlers to register them
	_ "github.com/goran-ethernal/SolanaIndexor/examples/handlers/transfers"
	"github.com/goran-ethernal/SolanaIndexor/internal/backfill"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/config"
	"github.com/goran-ethernal/SolanaIndexor/internal/indexer"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	istore "github.com/goran-ethernal/SolanaIndexor/internal/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/api"
	pkgconfig "github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/goran-ethernal/SolanaIndexor/pkg/decoder"
	"github.com/goran-ethernal/SolanaIndexor/pkg/handler"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║         SolanaIndexor v%s              ║
║   Solana Program Event Indexing Engine    ║
╚═══════════════════════════════════════════╝
`
)

var (
	configPath string

	backfillProgram string
	backfillFrom    uint64
	backfillTo      uint64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "SolanaIndexor - Solana program event indexing engine",
	Long: `SolanaIndexor follows Solana programs, decodes their instructions and events and
delivers every transaction to the configured handlers exactly once, surviving restarts
and chain reorganizations.`,
	Version: version,
	RunE:    runIndexer,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Index the configured programs until interrupted",
	RunE:  runIndexer,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Index a historical slot range of one program",
	Long: `Backfill lists the signatures of a program in [from-slot, to-slot] and delivers them
oldest first. Signatures already committed are skipped, and an interrupted backfill
resumes after the last processed signature.`,
	RunE: runBackfill,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the indexing position of every configured program",
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available handler types and decoders",
	Long:  `List all registered handler types and decoding tables that can be used in the configuration file.`,
	Run: func(cmd *cobra.Command, args []string) {
		printList("handler types", handler.ListRegistered())
		printList("decoders", decoder.ListTables())
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		reflector := &jsonschema.Reflector{DoNotReference: true}
		schema := reflector.Reflect(&pkgconfig.Config{})
		schema.Title = "SolanaIndexor configuration"

		out, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}

		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")

	backfillCmd.Flags().StringVarP(&backfillProgram, "program", "p", "", "program name or id")
	backfillCmd.Flags().Uint64Var(&backfillFrom, "from-slot", 0, "lowest slot to index")
	backfillCmd.Flags().Uint64Var(&backfillTo, "to-slot", 0, "highest slot to index (0 means up to the newest signature)")
	_ = backfillCmd.MarkFlagRequired("program")

	rootCmd.AddCommand(runCmd, backfillCmd, statusCmd, listCmd, schemaCmd)
}

func printList(title string, names []string) {
	fmt.Printf("Available %s:\n", title)
	if len(names) == 0 {
		fmt.Println("  (none registered)")
		return
	}
	for _, name := range names {
		fmt.Printf("  - %s\n", name)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n\nShutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func runIndexer(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	log := logger.NewComponentLoggerFromConfig(common.ComponentCoordinator, cfg.Logging)

	log.Infof("Connecting to %s...", cfg.RPC.URL)
	coordinator, err := indexer.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := coordinator.Close(); err != nil {
			log.Warnf("failed to close coordinator: %v", err)
		}
	}()

	log.Info("Starting SolanaIndexor...")

	if err := coordinator.Run(ctx); err != nil {
		return fmt.Errorf("indexer failed: %w", err)
	}

	log.Info("SolanaIndexor stopped successfully")
	return nil
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	log := logger.NewComponentLoggerFromConfig(common.ComponentBackfill, cfg.Logging)

	coordinator, err := indexer.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := coordinator.Close(); err != nil {
			log.Warnf("failed to close coordinator: %v", err)
		}
	}()

	p, err := coordinator.Pipeline(backfillProgram)
	if err != nil {
		return err
	}

	log.Infof("Backfilling %s from slot %d to slot %d...", p.Name(), backfillFrom, backfillTo)

	progress, err := p.Backfill(ctx, backfill.Range{FromSlot: backfillFrom, ToSlot: backfillTo})
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	fmt.Printf("Backfill of %s done: %d signatures processed, last slot %d\n",
		p.Name(), progress.Processed, progress.LastSlot)

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opened, err := istore.Open(ctx, cfg.Store, logger.NewComponentLoggerFromConfig(common.ComponentStore, cfg.Logging))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer opened.Store.Close() //nolint:errcheck

	statuses := make([]api.ProgramStatus, 0, len(cfg.Programs))
	for _, programCfg := range cfg.Programs {
		id, err := programCfg.PublicKey()
		if err != nil {
			return fmt.Errorf("program %s: %w", programCfg.Name, err)
		}

		status, err := api.CollectStatus(ctx, opened.Store, api.Program{Name: programCfg.Name, ID: id})
		if err != nil {
			return fmt.Errorf("program %s: %w", programCfg.Name, err)
		}
		statuses = append(statuses, status)
	}

	out, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	fmt.Println(string(out))
	return nil
}

package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/lock"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/metrics"
	"github.com/goran-ethernal/SolanaIndexor/internal/notify"
	"github.com/goran-ethernal/SolanaIndexor/internal/pipeline"
	irpc "github.com/goran-ethernal/SolanaIndexor/internal/rpc"
	istore "github.com/goran-ethernal/SolanaIndexor/internal/store"
	"github.com/goran-ethernal/SolanaIndexor/pkg/api"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/goran-ethernal/SolanaIndexor/pkg/decoder"
	"github.com/goran-ethernal/SolanaIndexor/pkg/handler"
	"github.com/goran-ethernal/SolanaIndexor/pkg/rpc"
	"github.com/goran-ethernal/SolanaIndexor/pkg/store"
	"golang.org/x/sync/errgroup"
)

const metricsStopTimeout = 5 * time.Second

// ErrUnknownProgram is returned when a program is looked up by a name or id that is not configured.
var ErrUnknownProgram = errors.New("unknown program")

// Coordinator owns the shared RPC client, store and lock, and runs one pipeline per tracked program.
type Coordinator struct {
	cfg     *config.Config
	client  rpc.Client
	opened  *istore.Opened
	locker  lock.Locker
	loggers pipeline.LoggerFunc
	log     *logger.Logger

	notifier *notify.Notifier

	pipelines []*pipeline.Pipeline
	// byKey indexes pipelines by program name and base58 id
	byKey map[string]*pipeline.Pipeline

	closeOnce sync.Once
}

var _ api.ProgramRegistry = (*Coordinator)(nil)

// Open dials the RPC endpoint, opens the store and the locker, and builds the pipelines of cfg.
func Open(ctx context.Context, cfg *config.Config) (*Coordinator, error) {
	loggers := ConfigLoggers(cfg.Logging)

	client, err := irpc.NewClient(ctx, cfg.RPC, loggers(common.ComponentFetcher))
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}

	opened, err := istore.Open(ctx, cfg.Store, loggers(common.ComponentStore))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	locker, err := lock.New(ctx, cfg.Lock, loggers(common.ComponentCoordinator))
	if err != nil {
		client.Close()
		opened.Store.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to create locker: %w", err)
	}

	c, err := New(cfg, client, opened, locker, loggers)
	if err != nil {
		client.Close()
		locker.Close()       //nolint:errcheck
		opened.Store.Close() //nolint:errcheck
		return nil, err
	}

	return c, nil
}

// ConfigLoggers returns a LoggerFunc building component loggers from the logging configuration.
func ConfigLoggers(cfg *config.LoggingConfig) pipeline.LoggerFunc {
	return func(component string) *logger.Logger {
		return logger.NewComponentLoggerFromConfig(component, cfg)
	}
}

// New builds the pipelines of cfg over already opened dependencies.
// The coordinator takes ownership of client, opened and locker: Close releases them.
func New(
	cfg *config.Config,
	client rpc.Client,
	opened *istore.Opened,
	locker lock.Locker,
	loggers pipeline.LoggerFunc,
) (*Coordinator, error) {
	c := &Coordinator{
		cfg:     cfg,
		client:  client,
		opened:  opened,
		locker:  locker,
		loggers: loggers,
		log:     loggers(common.ComponentCoordinator),
		byKey:   make(map[string]*pipeline.Pipeline),
	}

	if cfg.Notifier != nil && cfg.Notifier.Enabled {
		c.notifier = notify.New(*cfg.Notifier, cfg.RPC.Commitment, loggers(common.ComponentNotifier))
	}

	c.log.Infof("registering %d program(s)...", len(cfg.Programs))

	for _, programCfg := range cfg.Programs {
		p, err := c.buildPipeline(programCfg)
		if err != nil {
			c.closePipelines()
			return nil, fmt.Errorf("program %s: %w", programCfg.Name, err)
		}

		c.pipelines = append(c.pipelines, p)
		c.byKey[p.Name()] = p
		c.byKey[p.Program().String()] = p

		if c.notifier != nil {
			c.notifier.Register(p.Program(), p)
		}

		c.log.Infof("registered program %s (%s)", p.Name(), p.Program())
	}

	return c, nil
}

func (c *Coordinator) buildPipeline(programCfg config.ProgramConfig) (*pipeline.Pipeline, error) {
	programID, err := programCfg.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("invalid program id: %w", err)
	}

	table, err := decoder.BuildTable(programCfg.Decoder)
	if err != nil {
		return nil, err
	}

	deps := c.opened.HandlerDeps
	deps.ProgramName = programCfg.Name
	deps.ProgramID = programID

	router := handler.NewRouter()
	for _, handlerCfg := range programCfg.Handlers {
		h, err := handler.Create(handlerCfg, deps, c.loggers(common.ComponentDispatcher))
		if err != nil {
			router.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to create handler %s: %w", handlerCfg.Type, err)
		}

		router.Add(h)
	}

	return pipeline.New(pipeline.Config{
		Name:          programCfg.Name,
		Program:       programID,
		StartStrategy: programCfg.StartStrategy,
		StartSlot:     programCfg.StartSlot,
		Pipeline:      c.cfg.Pipeline,
		Reorg:         c.cfg.Reorg,
		Backfill:      c.cfg.Backfill,
	}, c.client, c.opened.Store, c.locker, table, router, c.loggers)
}

// Programs returns the tracked programs in configuration order.
func (c *Coordinator) Programs() []api.Program {
	programs := make([]api.Program, len(c.pipelines))
	for i, p := range c.pipelines {
		programs[i] = api.Program{Name: p.Name(), ID: p.Program()}
	}

	return programs
}

// Pipeline returns the pipeline of the program with the given name or base58 id.
func (c *Coordinator) Pipeline(key string) (*pipeline.Pipeline, error) {
	p, ok := c.byKey[strings.TrimSpace(key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, key)
	}

	return p, nil
}

// Store returns the shared store.
func (c *Coordinator) Store() store.Store {
	return c.opened.Store
}

// Health reports an error when the store cannot be read.
func (c *Coordinator) Health(ctx context.Context) error {
	for _, p := range c.pipelines {
		if _, err := c.opened.Store.LoadCursor(ctx, p.Program()); err != nil {
			return fmt.Errorf("store unavailable: %w", err)
		}
	}

	return nil
}

// Run starts database maintenance, the metrics server and the status API, then runs every
// pipeline and the notifier until ctx is cancelled or a pipeline stops on a fatal error.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.opened.Maintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start database maintenance: %w", err)
	}
	defer func() {
		if err := c.opened.Maintenance.Stop(); err != nil {
			c.log.Warnf("failed to stop database maintenance: %v", err)
		}
	}()

	if c.cfg.Metrics != nil && c.cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(c.cfg.Metrics, c.Health, c.loggers(common.ComponentAPI))
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), metricsStopTimeout)
			defer cancel()

			if err := metricsServer.Stop(stopCtx); err != nil {
				c.log.Warnf("failed to stop metrics server: %v", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, p := range c.pipelines {
		g.Go(func() error {
			if err := p.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("pipeline %s: %w", p.Name(), err)
			}
			return nil
		})
	}

	if c.notifier != nil {
		g.Go(func() error {
			c.notifier.Run(gctx) //nolint:errcheck
			return nil
		})
	}

	if c.cfg.API != nil && c.cfg.API.Enabled {
		apiServer := api.NewServer(c.cfg.API, c, c.opened.Store, c.loggers(common.ComponentAPI))
		g.Go(func() error {
			return apiServer.Start(gctx)
		})
	}

	metrics.ComponentHealthSet(common.ComponentCoordinator, true)
	c.log.Infof("running %d pipeline(s)", len(c.pipelines))

	err := g.Wait()
	if err != nil {
		metrics.ComponentHealthSet(common.ComponentCoordinator, false)
		return err
	}

	c.log.Info("all pipelines stopped")

	return nil
}

// Close releases handlers, the locker, the store and the RPC client.
func (c *Coordinator) Close() error {
	var errs []error

	c.closeOnce.Do(func() {
		errs = append(errs, c.closePipelines())

		if c.locker != nil {
			errs = append(errs, c.locker.Close())
		}
		if c.opened != nil && c.opened.Store != nil {
			errs = append(errs, c.opened.Store.Close())
		}
		if c.client != nil {
			c.client.Close()
		}
	})

	return errors.Join(errs...)
}

func (c *Coordinator) closePipelines() error {
	var errs []error
	for _, p := range c.pipelines {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("program %s: %w", p.Name(), err))
		}
	}

	return errors.Join(errs...)
}

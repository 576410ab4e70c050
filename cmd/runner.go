package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ledgersync/internal/cache"
	"github.com/desertthunder/ledgersync/internal/migrate"
	"github.com/desertthunder/ledgersync/internal/netmon"
	"github.com/desertthunder/ledgersync/internal/services"
	"github.com/desertthunder/ledgersync/internal/shared"
	"github.com/desertthunder/ledgersync/internal/stores"
	"github.com/desertthunder/ledgersync/internal/syncq"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config   *shared.Config
	logger   *log.Logger
	output   io.Writer
	db       *sql.DB
	cache    cache.Store
	gateway  services.Gateway
	monitor  *netmon.Monitor
	engine   *syncq.Engine
	migrator *migrate.Engine
	stores   *stores.Stores
}

// RunnerOpts contains configuration options for creating a Runner. Cache and
// Gateway are injectable for tests; left nil they are built from the config
// during bootstrap.
type RunnerOpts struct {
	Config  *shared.Config
	Cache   cache.Store
	Gateway services.Gateway
	Logger  *log.Logger
	Output  io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:  opts.Config,
		logger:  opts.Logger,
		output:  opts.Output,
		cache:   opts.Cache,
		gateway: opts.Gateway,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, statusCommand, syncCommand, queueCommand, migrateCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// bootstrap builds the engine graph: database, cache, gateway, sync engine,
// migration engine, entity stores, network monitor. Idempotent; injected test
// doubles survive it.
func (r *Runner) bootstrap(ctx context.Context, cmd *cli.Command) error {
	if configPath := cmd.String("config"); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			loaded, err := shared.LoadConfig(configPath)
			if err != nil {
				return err
			}
			r.config = loaded
		}
	}

	if r.cache == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open cache database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run schema migrations: %w", err)
		}
		r.db = db
		r.cache = cache.NewSQLiteStore(db)
	}

	if r.gateway == nil {
		r.gateway = services.NewHTTPGateway(services.HTTPGatewayOpts{
			BaseURL:      r.config.Gateway.BaseURL,
			Token:        r.config.Gateway.Token,
			RateLimit:    r.config.Gateway.RateLimit,
			Timeout:      time.Duration(r.config.Gateway.TimeoutSeconds) * time.Second,
			PollInterval: time.Duration(r.config.Gateway.PollIntervalSeconds) * time.Second,
			Logger:       r.logger,
		})
	}

	if r.engine == nil {
		engine, err := syncq.New(syncq.Opts{
			Gateway:    r.gateway,
			Cache:      r.cache,
			Logger:     r.logger,
			MaxRetries: r.config.Sync.MaxRetries,
		})
		if err != nil {
			return fmt.Errorf("failed to create sync engine: %w", err)
		}
		r.engine = engine
	}

	if r.migrator == nil {
		r.migrator = migrate.New(migrate.Opts{
			Gateway:   r.gateway,
			Cache:     r.cache,
			Logger:    r.logger,
			BatchSize: r.config.Sync.MigrationBatchSize,
		})
	}

	if r.monitor == nil {
		interval := time.Duration(r.config.Monitor.PollIntervalSeconds) * time.Second
		r.monitor = netmon.New(r.gateway, interval, r.logger)
		r.monitor.OnChange(r.engine.SetOnline)
		// First probe runs synchronously, so the engine knows its
		// connectivity before any command action executes.
		r.monitor.Start(ctx)
	}

	if r.stores == nil {
		r.stores = stores.NewStores(stores.Deps{
			Gateway: r.gateway,
			Cache:   r.cache,
			Queue:   r.engine,
			Online:  r.monitor,
			Logger:  r.logger,
		})
		if err := r.stores.Load(); err != nil {
			return err
		}
	}

	return nil
}

// close releases the database handle and stops the monitor.
func (r *Runner) close() {
	if r.monitor != nil {
		r.monitor.Stop()
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
	}
}

// SetLogger swaps the runner's logger, propagating nothing already built.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

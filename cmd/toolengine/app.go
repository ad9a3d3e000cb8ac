package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolengine/builtin"
	"github.com/jonwraymond/toolengine/config"
	"github.com/jonwraymond/toolengine/exec"
	"github.com/jonwraymond/toolengine/sqlitestore"
	"github.com/jonwraymond/toolengine/telemetry"
	"github.com/jonwraymond/toolengine/tool"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	root       string
	dbPath     string
	trace      bool
}

// app is the engine assembled from configuration and flags.
type app struct {
	cfg    config.Config
	exec   *exec.Exec
	store  *sqlitestore.Store
	logger telemetry.Logger

	shutdown func(context.Context) error
}

func (g *globalFlags) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if g.root != "" {
		cfg.Tools.Root = g.root
	}
	if g.dbPath != "" {
		cfg.History.SQLitePath = g.dbPath
	}
	return cfg, nil
}

// open builds the engine for one command invocation.
func (g *globalFlags) open(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: telemetry.NewSlogLogger(cfg.NewLogger(cmd.ErrOrStderr())),
	}

	opts := cfg.ExecOptions()
	opts.Logger = a.logger
	opts.Registry = tool.NewRegistry(cfg.RegistryOptions()...)

	if g.trace {
		ins, shutdown, err := telemetry.NewStdout(cmd.ErrOrStderr())
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		opts.Instruments = ins
		a.shutdown = shutdown
	}

	if cfg.History.SQLitePath != "" {
		store, err := sqlitestore.New(cfg.History.SQLitePath)
		if err != nil {
			return nil, errors.Join(err, a.Close(ctx))
		}
		a.store = store
		if err := store.Migrate(ctx); err != nil {
			return nil, errors.Join(fmt.Errorf("migrate: %w", err), a.Close(ctx))
		}
		opts.Sink = store
	}

	if err := builtin.Register(opts.Registry, cfg.Tools); err != nil {
		return nil, errors.Join(err, a.Close(ctx))
	}
	if a.exec, err = exec.New(opts); err != nil {
		return nil, errors.Join(err, a.Close(ctx))
	}
	return a, nil
}

// Close releases the store and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	return errors.Join(errs...)
}

// withApp opens the engine, runs fn and closes the engine.
func (g *globalFlags) withApp(cmd *cobra.Command, fn func(*app) error) (err error) {
	ctx := cmd.Context()
	a, err := g.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
	}()
	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

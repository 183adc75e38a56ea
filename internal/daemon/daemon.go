package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/harun/parley/internal/config"
	"github.com/harun/parley/internal/logger"
	"github.com/harun/parley/internal/observability"
	"github.com/harun/parley/internal/tracing"
	"github.com/harun/parley/pkg/provider"
	"github.com/harun/parley/pkg/server"
	"github.com/harun/parley/pkg/tools"
)

// Daemon assembles the service from configuration and manages its
// lifecycle.
type Daemon struct {
	config  *config.Config
	loader  *config.Loader
	logger  *logger.Logger
	server  *server.Server
	watcher *config.Watcher
}

// New builds a daemon from a loaded configuration.
func New(cfg *config.Config, loader *config.Loader, lg *logger.Logger) (*Daemon, error) {
	observability.EnsureRegistered()
	if err := tracing.Init(tracing.Config{ServiceName: "parley"}); err != nil {
		lg.Warn().Err(err).Msg("Tracing disabled")
	}
	if cfg.DataDir != "" {
		if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
			lg.Warn().Err(err).Msg("Audit log disabled")
		}
	}
	zl := lg.Zerolog()

	prov, err := provider.New(cfg.Provider.Name, cfg.Provider.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	registry, err := tools.NewRegistry(zl, tools.Builtin(tools.Options{
		WorkspaceRoot: cfg.Tools.WorkspaceRoot,
	})...)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}

	srv, err := server.New(server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		StaticDir:    cfg.Server.StaticDir,
		Provider:     prov,
		Registry:     registry,
		Model:        cfg.Chat.Model,
		MaxTokens:    cfg.Chat.MaxTokens,
		SystemPrompt: cfg.Chat.SystemPrompt,
		Logger:       zl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	d := &Daemon{
		config: cfg,
		loader: loader,
		logger: lg,
		server: srv,
	}

	if loader != nil {
		watcher, err := config.NewWatcher(loader, d.applyConfig, zl)
		if err != nil {
			return nil, fmt.Errorf("failed to create config watcher: %w", err)
		}
		d.watcher = watcher
	}

	return d, nil
}

// Start brings the service up.
func (d *Daemon) Start() error {
	if err := d.server.Start(); err != nil {
		return err
	}
	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			d.logger.Warn().Err(err).Msg("Config watching disabled")
			d.watcher = nil
		}
	}
	return nil
}

// Stop shuts the service down.
func (d *Daemon) Stop() error {
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to stop config watcher")
		}
	}
	err := d.server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if terr := tracing.Shutdown(ctx); terr != nil {
		d.logger.Warn().Err(terr).Msg("Failed to shut down tracing")
	}

	return err
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	d.logger.Info().Str("signal", received.String()).Msg("Shutting down")

	return d.Stop()
}

// applyConfig applies the subset of configuration that can change at
// runtime. Everything else requires a restart.
func (d *Daemon) applyConfig(cfg *config.Config) {
	if cfg.Logging.Level != d.config.Logging.Level {
		d.logger.SetLevel(cfg.Logging.Level)
		d.config.Logging.Level = cfg.Logging.Level
	}
}

// Package daemonrun wires the worker daemon runtime: logging, the job store,
// the campaign catalog, the workflow manager, and the scheduler daemon. Both
// the shipyardd binary and "shipyard daemon run" call Run.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"shipyard/internal/config"
	"shipyard/internal/daemon"
	"shipyard/internal/jobstore"
	"shipyard/internal/logging"
	"shipyard/internal/preflight"
	"shipyard/internal/rendersource"
	"shipyard/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the worker daemon and blocks until SIGINT/SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logDependencySnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobstore.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	httpTimeout := time.Duration(cfg.RenderSource.HTTPTimeoutSeconds) * time.Second
	source := rendersource.NewCatalog(cfg.RenderSource.CatalogDir, nil, httpTimeout)
	manager := workflow.NewManager(cfg, store, source, logger)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Stop()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running shipyardd and job database access"),
			logging.String(logging.FieldImpact, "queued export jobs are not processed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("shipyard daemon shutting down")
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if opts.LogLevel == "" && !opts.Development {
		return logging.NewFromConfig(cfg)
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		JSONFile:    cfg.LogPath(),
		Development: opts.Development,
	})
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("converter_enabled", cfg.Converter.Enabled),
		logging.String("storage_provider", cfg.Storage.Provider),
		logging.Bool("ftp_configured", cfg.FTP.Host != ""),
		logging.Bool("platform_api_configured", cfg.PlatformAPI.BaseURL != ""),
		logging.Bool("amqp_configured", cfg.Notifications.AMQPURL != ""),
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

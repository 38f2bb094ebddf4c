package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"shipyard/internal/config"
	"shipyard/internal/export"
	"shipyard/internal/jobstore"
	"shipyard/internal/logging"
	"shipyard/internal/preflight"
	"shipyard/internal/scheduler"
	"shipyard/internal/workflow"
)

// Daemon runs queued export jobs and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *jobstore.Store
	manager    *workflow.Manager
	dispatcher *scheduler.Dispatcher

	lockPath string
	lock     *flock.Flock
	interval time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Waiting      int
	Active       int
	Jobs         map[export.Status]int
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon and registers its scheduler with the manager.
func New(cfg *config.Config, store *jobstore.Store, logger *slog.Logger, manager *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	dispatcher := scheduler.New(manager, cfg.Scheduler.Workers, cfg.Scheduler.QueueSize, logger)
	manager.SetSubmitter(dispatcher)

	interval := time.Duration(cfg.Scheduler.RecoveryIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		manager:    manager,
		dispatcher: dispatcher,
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
		interval:   interval,
	}, nil
}

// Start acquires the daemon lock, recovers interrupted jobs, and launches the
// scheduler and the recovery sweep.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shipyard daemon instance is already running")
	}

	recovered, err := d.manager.RecoverInterrupted(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if recovered > 0 {
		d.logger.Info("interrupted jobs recovered", logging.Int("count", recovered))
	}

	d.reportPreflight(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.dispatcher.Start(runCtx)
	d.sweep(runCtx)

	d.wg.Add(1)
	go d.recoveryLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("shipyard daemon started",
		logging.String("lock", d.lockPath),
		logging.Duration("recovery_interval", d.interval),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.dispatcher.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String("lock", d.lockPath),
		)
	}
	d.running.Store(false)
	d.logger.Info("shipyard daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	waiting, active := d.dispatcher.Stats()
	status := Status{
		Running:      d.running.Load(),
		Waiting:      waiting,
		Active:       active,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.Jobs = stats
	}
	return status
}

// reportPreflight logs failed readiness checks. Jobs still run; a broken
// destination only fails the jobs that use it.
func (d *Daemon) reportPreflight(ctx context.Context) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs relying on this check may fail"),
			logging.String(logging.FieldErrorHint, "run shipyard status for details"),
		)
	}
}

func (d *Daemon) recoveryLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

// sweep re-submits every queued job in the store. The scheduler ignores IDs it
// already holds, so repeated sweeps are harmless.
func (d *Daemon) sweep(ctx context.Context) {
	ids, err := d.manager.QueuedJobIDs(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(d.logger, "queued job sweep failed", "recovery_sweep_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "queued jobs wait for the next sweep"),
			)
		}
		return
	}
	submitted := 0
	for _, id := range ids {
		if err := d.dispatcher.Submit(id); err != nil {
			if errors.Is(err, scheduler.ErrQueueFull) {
				d.logger.Debug("scheduler backlog full; deferring remaining jobs", logging.Int("deferred", len(ids)-submitted))
				break
			}
			continue
		}
		submitted++
	}
	if submitted > 0 {
		d.logger.Debug("queued jobs swept", logging.Int("submitted", submitted))
	}
}

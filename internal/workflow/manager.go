package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shipyard/internal/config"
	"shipyard/internal/convert"
	"shipyard/internal/delivery"
	"shipyard/internal/deps"
	"shipyard/internal/estimate"
	"shipyard/internal/export"
	"shipyard/internal/exporter"
	"shipyard/internal/jobstore"
	"shipyard/internal/logging"
	"shipyard/internal/notifications"
	"shipyard/internal/platforms"
	"shipyard/internal/rendersource"
)

// CampaignExporter exports one campaign. The error is non-nil only when the
// result failed, and carries the causes used for retry decisions.
type CampaignExporter interface {
	Attempt(ctx context.Context, campaignID string, job *export.Job) (export.Result, error)
}

// Finalizer packages and delivers a job's results.
type Finalizer interface {
	Finalize(ctx context.Context, job *export.Job) (delivery.Outcome, error)
}

// Submitter accepts job identifiers for asynchronous processing.
type Submitter interface {
	Submit(jobID string) error
}

// Manager coordinates export jobs.
type Manager struct {
	cfg       *config.Config
	store     *jobstore.Store
	source    rendersource.Source
	estimator *estimate.Estimator
	exporter  CampaignExporter
	finalizer Finalizer
	registry  *platforms.Registry
	notifier  notifications.Service
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.RWMutex
	submitter Submitter
}

// ManagerOption configures optional Manager collaborators.
type ManagerOption func(*Manager)

// WithExporter replaces the per-campaign exporter.
func WithExporter(e CampaignExporter) ManagerOption {
	return func(m *Manager) { m.exporter = e }
}

// WithFinalizer replaces the delivery dispatcher.
func WithFinalizer(f Finalizer) ManagerOption {
	return func(m *Manager) { m.finalizer = f }
}

// WithNotifier replaces the notification service.
func WithNotifier(n notifications.Service) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

// WithRegistry replaces the platform registry.
func WithRegistry(r *platforms.Registry) ManagerOption {
	return func(m *Manager) { m.registry = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager constructs a manager. Collaborators not supplied through options
// are built from cfg: the ffmpeg converter when enabled, the directory asset
// exporter, the delivery dispatcher, and the configured notifiers.
func NewManager(cfg *config.Config, store *jobstore.Store, source rendersource.Source, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:       cfg,
		store:     store,
		source:    source,
		estimator: estimate.New(source, cfg),
		logger:    logging.NewComponentLogger(logger, "workflow"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = platforms.NewRegistry()
	}
	if m.exporter == nil {
		m.exporter = exporter.New(cfg, source, NewConverter(cfg), nil, m.registry, logger)
	}
	if m.finalizer == nil {
		m.finalizer = delivery.NewDispatcher(cfg, m.registry, logger)
	}
	if m.notifier == nil {
		m.notifier = notifications.NewService(cfg, logger)
	}
	return m
}

// NewConverter returns the ffmpeg converter when enabled, passthrough otherwise.
func NewConverter(cfg *config.Config) convert.Converter {
	if cfg == nil || !cfg.Converter.Enabled {
		return convert.Passthrough{}
	}
	return convert.NewFFmpeg(deps.ResolveFFmpegPath(cfg.Converter.FFmpegBinary), cfg.Paths.WorkDir, cfg.ConvertTimeout())
}

// SetSubmitter wires the scheduler that receives newly created jobs.
func (m *Manager) SetSubmitter(s Submitter) {
	m.mu.Lock()
	m.submitter = s
	m.mu.Unlock()
}

// Registry exposes the platform registry used for validation.
func (m *Manager) Registry() *platforms.Registry {
	return m.registry
}

// Estimator exposes the estimator used for admission.
func (m *Manager) Estimator() *estimate.Estimator {
	return m.estimator
}

func (m *Manager) currentSubmitter() Submitter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.submitter
}

package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shipyard/internal/config"
	"shipyard/internal/export"
	"shipyard/internal/logging"
	"shipyard/internal/mailer"
	"shipyard/internal/platforms"
	"shipyard/internal/services"
	"shipyard/internal/services/ftp"
	"shipyard/internal/services/platformapi"
	"shipyard/internal/storage"
)

// Outcome describes what a finalization produced.
type Outcome struct {
	Destination   export.DestinationType
	ArtifactPath  string
	DeliveredURLs []string
	// FileURLs maps export.File IDs to the URL each file was delivered to.
	FileURLs map[string]string
}

// PlatformUploader posts a single render to a platform.
type PlatformUploader interface {
	Upload(ctx context.Context, platform string, upload platformapi.Upload) (platformapi.Receipt, error)
}

// UploaderFactory builds a storage uploader for resolved settings.
type UploaderFactory func(ctx context.Context, cfg config.Storage) (storage.Uploader, error)

// FTPUploader stores files on an FTP server and returns their URLs.
type FTPUploader func(ctx context.Context, target ftp.Target, subdir string, files []ftp.File) ([]string, error)

// StatfsFunc reports total and available bytes for the filesystem holding path.
type StatfsFunc func(path string) (total, free uint64, err error)

// Dispatcher finalizes jobs.
type Dispatcher struct {
	cfg      *config.Config
	registry *platforms.Registry
	logger   *slog.Logger

	newUploader UploaderFactory
	ftpUpload   FTPUploader
	platform    PlatformUploader
	sender      mailer.Sender
	statfs      StatfsFunc
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

func WithUploaderFactory(factory UploaderFactory) Option {
	return func(d *Dispatcher) { d.newUploader = factory }
}

func WithFTPUploader(upload FTPUploader) Option {
	return func(d *Dispatcher) { d.ftpUpload = upload }
}

func WithPlatformUploader(uploader PlatformUploader) Option {
	return func(d *Dispatcher) { d.platform = uploader }
}

func WithMailer(sender mailer.Sender) Option {
	return func(d *Dispatcher) { d.sender = sender }
}

func WithStatfs(statfs StatfsFunc) Option {
	return func(d *Dispatcher) { d.statfs = statfs }
}

// NewDispatcher builds a dispatcher with production transports.
func NewDispatcher(cfg *config.Config, registry *platforms.Registry, logger *slog.Logger, opts ...Option) *Dispatcher {
	if registry == nil {
		registry = platforms.NewRegistry()
	}
	d := &Dispatcher{
		cfg:         cfg,
		registry:    registry,
		logger:      logging.NewComponentLogger(logger, "delivery"),
		newUploader: storage.New,
		ftpUpload:   ftp.Upload,
		platform:    platformapi.NewClient(cfg.PlatformAPI),
		statfs:      realStatfs,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Finalize packages and delivers the job's files. On error the outcome holds
// whatever was delivered before the failure.
func (d *Dispatcher) Finalize(ctx context.Context, job *export.Job) (Outcome, error) {
	started := time.Now()
	dest := job.Destination.Type
	if dest == "" {
		dest = export.DestinationDownload
	}
	ctx = services.WithDestination(services.WithJobID(ctx, job.ID), string(dest))
	logger := logging.WithContext(ctx, d.logger)

	files := collect(job, d.cfg.JobWorkDir(job.ID))
	if len(files) == 0 {
		return Outcome{}, services.Wrap(services.ErrFinalization, "delivery", "collect", "no files to deliver", nil)
	}

	var (
		outcome Outcome
		err     error
	)
	if dest == export.DestinationPlatformAPI {
		outcome, err = d.deliverPlatform(ctx, job, files)
	} else {
		var pkg Package
		pkg, err = d.pack(job, files)
		if err == nil {
			outcome, err = d.deliver(ctx, job, dest, pkg)
		}
	}
	outcome.Destination = dest
	if err != nil {
		return outcome, err
	}

	logger.Info("export delivered",
		logging.String(logging.FieldDestination, string(dest)),
		logging.String("packaging", string(job.Format.Packaging)),
		logging.Int("files", len(files)),
		logging.Int("urls", len(outcome.DeliveredURLs)),
		logging.String("artifact", outcome.ArtifactPath),
		logging.Duration("duration", time.Since(started).Round(time.Millisecond)),
	)
	return outcome, nil
}

func (d *Dispatcher) deliver(ctx context.Context, job *export.Job, dest export.DestinationType, pkg Package) (Outcome, error) {
	outcome := Outcome{ArtifactPath: pkg.Path}
	var err error
	switch dest {
	case export.DestinationDownload:
		return outcome, nil
	case export.DestinationStorage, export.DestinationCloud:
		outcome.DeliveredURLs, outcome.FileURLs, err = d.deliverStorage(ctx, job, pkg)
	case export.DestinationFTP:
		outcome.DeliveredURLs, outcome.FileURLs, err = d.deliverFTP(ctx, job, pkg)
	case export.DestinationEmail:
		err = d.deliverEmail(ctx, job, pkg)
	default:
		err = services.Wrap(services.ErrFinalization, "delivery", "deliver", fmt.Sprintf("unsupported destination %q", dest), nil)
	}
	return outcome, err
}

func finalizationError(operation, message string, err error) error {
	return services.Wrap(services.ErrFinalization, "delivery", operation, message, err)
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"shipyard/internal/estimate"
	"shipyard/internal/export"
	"shipyard/internal/logging"
	"shipyard/internal/rendersource"
	"shipyard/internal/services"
)

// Request describes a job to create.
type Request struct {
	Name        string
	Description string
	CreatedBy   string
	CampaignIDs []string
	Format      export.Format
	Destination export.Destination
	Options     export.Options
	TemplateID  string
}

// CreateJob admits and persists a job, then submits it for processing.
// Admission failures wrap services.ErrAdmission and persist nothing.
func (m *Manager) CreateJob(ctx context.Context, req Request) (*export.Job, error) {
	if err := m.normalizeRequest(&req); err != nil {
		return nil, err
	}

	campaigns, err := m.loadExportable(ctx, req.CampaignIDs)
	if err != nil {
		return nil, err
	}

	projection := m.estimator.EstimateCampaigns(campaigns, req.Format, req.Options)
	if limit := m.cfg.MaxExportSize(); projection.Exceeds(limit) {
		return nil, services.Wrap(services.ErrAdmission, "workflow", "create job",
			fmt.Sprintf("estimated size %s exceeds the %s export limit",
				humanize.IBytes(uint64(projection.TotalSize)), humanize.IBytes(uint64(limit))), nil)
	}

	now := m.now().UTC()
	job := &export.Job{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		CampaignIDs: req.CampaignIDs,
		Format:      req.Format,
		Destination: req.Destination,
		Options:     req.Options,
		TemplateID:  req.TemplateID,
		Status:      export.StatusQueued,
		Metadata: export.JobMetadata{
			TotalCampaigns:   len(req.CampaignIDs),
			EstimatedSize:    projection.TotalSize,
			CompressionRatio: estimate.CompressionRatio(req.Format.Compression),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		job.Metadata.RequestID = rid
	}
	if err := m.store.Insert(ctx, job); err != nil {
		return nil, err
	}

	logger := logging.WithContext(services.WithJobID(ctx, job.ID), m.logger)
	logger.Info("export job created",
		logging.String("name", job.Name),
		logging.Int("campaigns", len(job.CampaignIDs)),
		logging.Int64("estimated_bytes", projection.TotalSize),
		logging.Int("estimated_files", projection.TotalFiles),
		logging.String(logging.FieldDestination, string(job.Destination.Type)),
	)
	m.submit(ctx, job.ID)
	return job, nil
}

// CreateJobFromTemplate creates a job using a template's format, destination,
// and options, and bumps the template usage counter.
func (m *Manager) CreateJobFromTemplate(ctx context.Context, templateID string, campaignIDs []string, creator, name string) (*export.Job, error) {
	tmpl, err := m.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "create job", fmt.Sprintf("template %s not found", templateID), nil)
	}
	if strings.TrimSpace(name) == "" {
		name = tmpl.Name
	}
	job, err := m.CreateJob(ctx, Request{
		Name:        name,
		Description: tmpl.Description,
		CreatedBy:   creator,
		CampaignIDs: campaignIDs,
		Format:      tmpl.Format,
		Destination: tmpl.Destination,
		Options:     tmpl.Options,
		TemplateID:  tmpl.ID,
	})
	if err != nil {
		return nil, err
	}
	if err := m.store.IncrementTemplateUsage(ctx, tmpl.ID); err != nil {
		m.logger.Warn("template usage not recorded",
			logging.String("template_id", tmpl.ID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "template_usage_failed"),
			logging.String(logging.FieldErrorHint, "check job database access"),
		)
	}
	return job, nil
}

func (m *Manager) submit(ctx context.Context, jobID string) {
	submitter := m.currentSubmitter()
	if submitter == nil {
		return
	}
	if err := submitter.Submit(jobID); err != nil {
		logging.WarnWithContext(logging.WithContext(services.WithJobID(ctx, jobID), m.logger),
			"job submission deferred", "job_submit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the daemon recovery loop will pick the job up"),
			logging.String(logging.FieldImpact, "job stays queued until recovered"),
		)
	}
}

// loadExportable fetches every campaign and refuses missing or unfinished ones.
func (m *Manager) loadExportable(ctx context.Context, ids []string) ([]*rendersource.Campaign, error) {
	campaigns := make([]*rendersource.Campaign, 0, len(ids))
	for _, id := range ids {
		campaign, err := m.source.Campaign(ctx, id)
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrValidation) {
			return nil, services.Wrap(services.ErrAdmission, "workflow", "create job", fmt.Sprintf("campaign %s cannot be exported", id), err)
		}
		if err != nil {
			return nil, err
		}
		if !campaign.Completed() {
			return nil, services.Wrap(services.ErrAdmission, "workflow", "create job",
				fmt.Sprintf("campaign %s is not completed (status %s)", id, campaign.Status), nil)
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, nil
}

var (
	validFormatTypes  = []export.FormatType{export.FormatRender, export.FormatBundle, export.FormatPlatform}
	validPackaging    = []export.Packaging{export.PackagingZip, export.PackagingTar, export.PackagingFolder, export.PackagingIndividual}
	validCompression  = []export.Compression{export.CompressionNone, export.CompressionLossless, export.CompressionLossy, export.CompressionAdaptive}
	validDestinations = []export.DestinationType{
		export.DestinationDownload, export.DestinationStorage, export.DestinationCloud,
		export.DestinationFTP, export.DestinationEmail, export.DestinationPlatformAPI,
	}
	validStrategies = []export.VersioningStrategy{export.VersionIncrement, export.VersionTimestamp, export.VersionHash}
)

func (m *Manager) normalizeRequest(req *Request) error {
	invalid := func(message string) error {
		return services.Wrap(services.ErrValidation, "workflow", "create job", message, nil)
	}

	seen := make(map[string]struct{}, len(req.CampaignIDs))
	ids := make([]string, 0, len(req.CampaignIDs))
	for _, id := range req.CampaignIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return invalid(fmt.Sprintf("campaign %s listed twice", id))
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return invalid("at least one campaign id is required")
	}
	req.CampaignIDs = ids

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = fmt.Sprintf("Export %s", m.now().UTC().Format("2006-01-02 15:04"))
	}

	format := &req.Format
	if format.Type == "" {
		format.Type = export.FormatRender
	}
	if format.Packaging == "" {
		format.Packaging = export.PackagingZip
	}
	if format.Compression == "" {
		format.Compression = export.CompressionNone
	}
	if !oneOf(format.Type, validFormatTypes) {
		return invalid(fmt.Sprintf("unknown format type %q", format.Type))
	}
	if !oneOf(format.Packaging, validPackaging) {
		return invalid(fmt.Sprintf("unknown packaging %q", format.Packaging))
	}
	if !oneOf(format.Compression, validCompression) {
		return invalid(fmt.Sprintf("unknown compression %q", format.Compression))
	}

	if req.Destination.Type == "" {
		req.Destination.Type = export.DestinationDownload
	}
	if !oneOf(req.Destination.Type, validDestinations) {
		return invalid(fmt.Sprintf("unknown destination type %q", req.Destination.Type))
	}
	if req.Options.Versioning.Strategy != "" && !oneOf(req.Options.Versioning.Strategy, validStrategies) {
		return invalid(fmt.Sprintf("unknown versioning strategy %q", req.Options.Versioning.Strategy))
	}

	draft := export.Job{Format: req.Format, Destination: req.Destination}
	if draft.IsPlatform() {
		platformID := draft.PlatformID()
		if platformID == "" {
			return invalid("platform exports require a platform id")
		}
		if _, ok := m.registry.Lookup(platformID); !ok {
			return invalid(fmt.Sprintf("unknown platform %q", platformID))
		}
	}
	switch req.Destination.Type {
	case export.DestinationEmail:
		if req.Destination.Value("recipients") == "" {
			return invalid("email destinations require recipients")
		}
	case export.DestinationFTP:
		if req.Destination.Value("host") == "" && strings.TrimSpace(m.cfg.FTP.Host) == "" {
			return invalid("ftp destinations require a host")
		}
	}

	batch := &req.Options.Batch
	if batch.MaxConcurrent < 0 || batch.RetryAttempts < 0 || batch.RetryDelay < 0 {
		return invalid("batch settings must not be negative")
	}
	return nil
}

func oneOf[T comparable](value T, allowed []T) bool {
	for _, candidate := range allowed {
		if candidate == value {
			return true
		}
	}
	return false
}

// Package exporter turns one campaign's render outputs into export files.
//
// Export never fails past its boundary: every problem is recorded on the
// returned Result, and files produced before a failure are kept. Attempt
// exposes the same work with the underlying causes so callers can decide
// whether another attempt is worthwhile.
package exporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"shipyard/internal/assets"
	"shipyard/internal/config"
	"shipyard/internal/convert"
	"shipyard/internal/export"
	"shipyard/internal/fileutil"
	"shipyard/internal/logging"
	"shipyard/internal/naming"
	"shipyard/internal/platforms"
	"shipyard/internal/rendersource"
	"shipyard/internal/services"
)

const defaultPattern = "{campaign}_{name}_{version}.{format}"

// Exporter exports single campaigns.
type Exporter struct {
	cfg       *config.Config
	source    rendersource.Source
	converter convert.Converter
	assets    assets.Exporter
	registry  *platforms.Registry
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an exporter. A nil converter falls back to passthrough and a
// nil asset exporter reads the configured asset directory.
func New(cfg *config.Config, source rendersource.Source, converter convert.Converter, assetExporter assets.Exporter, registry *platforms.Registry, logger *slog.Logger, opts ...Option) *Exporter {
	if converter == nil {
		converter = convert.Passthrough{}
	}
	if assetExporter == nil {
		assetExporter = assets.NewDirectory(cfg)
	}
	if registry == nil {
		registry = platforms.NewRegistry()
	}
	e := &Exporter{
		cfg:       cfg,
		source:    source,
		converter: converter,
		assets:    assetExporter,
		registry:  registry,
		logger:    logging.NewComponentLogger(logger, "exporter"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CampaignDir returns the staging directory for a campaign within a job.
func (e *Exporter) CampaignDir(jobID, campaignID string) string {
	return filepath.Join(e.cfg.JobWorkDir(jobID), naming.Sanitize(campaignID))
}

// Export runs Attempt and drops the causes.
func (e *Exporter) Export(ctx context.Context, campaignID string, job *export.Job) export.Result {
	result, _ := e.Attempt(ctx, campaignID, job)
	return result
}

// run carries per-attempt state.
type run struct {
	job      *export.Job
	campaign *rendersource.Campaign
	dir      string
	version  string
	started  time.Time
	result   export.Result
	causes   []error
	names    map[string]bool
}

// Attempt exports a campaign. The returned error is nil unless the result
// status is failed, in which case it joins every cause.
func (e *Exporter) Attempt(ctx context.Context, campaignID string, job *export.Job) (export.Result, error) {
	ctx = services.WithCampaignID(services.WithJobID(ctx, job.ID), campaignID)
	logger := logging.WithContext(ctx, e.logger)

	r := &run{
		job:     job,
		dir:     e.CampaignDir(job.ID, campaignID),
		started: e.now(),
		names:   map[string]bool{},
		result: export.Result{
			ID:         uuid.NewString(),
			CampaignID: campaignID,
		},
	}

	if err := os.RemoveAll(r.dir); err != nil {
		r.fail(services.Wrap(services.ErrTransient, "exporter", "prepare", "clear staging dir", err))
		return e.finish(r, logger)
	}

	campaign, err := e.source.Campaign(ctx, campaignID)
	if err != nil {
		r.fail(err)
		return e.finish(r, logger)
	}
	r.campaign = campaign
	r.result.CampaignName = campaign.Name
	if !campaign.Completed() {
		r.fail(services.Wrap(services.ErrValidation, "exporter", "campaign",
			fmt.Sprintf("campaign %s is not completed (status %s)", campaignID, campaign.Status), nil))
		return e.finish(r, logger)
	}

	r.version = naming.ResolveVersion(job.Options.Versioning, r.started)
	r.result.Metadata.Version = r.version

	e.exportRenders(ctx, r)
	if job.Options.IncludeAssets {
		e.exportAssets(ctx, r)
	}
	if job.Options.IncludeDocumentation {
		e.writeDocumentation(r)
	}
	if job.IsPlatform() {
		e.checkPlatformNaming(r)
	}
	if job.Options.CreateManifest {
		e.writeManifest(r)
	}
	return e.finish(r, logger)
}

func (r *run) fail(err error) {
	if err == nil {
		return
	}
	r.causes = append(r.causes, err)
	r.result.Errors = append(r.result.Errors, err.Error())
}

func (e *Exporter) finish(r *run, logger *slog.Logger) (export.Result, error) {
	result := r.result
	for _, file := range result.Files {
		result.Metadata.TotalSize += file.Size
	}
	result.Metadata.FileCount = len(result.Files)
	result.Metadata.Duration = e.now().Sub(r.started)

	switch {
	case len(result.Errors) == 0:
		result.Status = export.ResultSuccess
	case result.HasRenderFile():
		result.Status = export.ResultPartial
	default:
		result.Status = export.ResultFailed
	}

	attrs := []logging.Attr{
		logging.String("status", string(result.Status)),
		logging.Int("files", result.Metadata.FileCount),
		logging.Int64("bytes", result.Metadata.TotalSize),
		logging.Duration("duration", result.Metadata.Duration),
	}
	if len(result.Errors) > 0 {
		attrs = append(attrs, logging.Strings("errors", result.Errors))
		logging.WarnWithContext(logger, "campaign export incomplete", "campaign_export_incomplete",
			append(attrs,
				logging.String(logging.FieldErrorHint, "check render source availability and converter output"),
				logging.String(logging.FieldImpact, "campaign files missing from export"),
			)...)
	} else {
		logger.Info("campaign exported", logging.Args(attrs...)...)
	}

	if result.Status == export.ResultFailed {
		if len(r.causes) == 0 {
			return result, services.Wrap(services.ErrTransient, "exporter", "export", "campaign produced nothing", nil)
		}
		return result, errors.Join(r.causes...)
	}
	return result, nil
}

func (e *Exporter) exportRenders(ctx context.Context, r *run) {
	format := r.job.Format
	matched := 0
	for _, output := range r.campaign.Outputs {
		if !format.AcceptsOutput(output.Format) {
			continue
		}
		matched++
		if err := ctx.Err(); err != nil {
			r.fail(err)
			return
		}
		file, err := e.exportRender(ctx, r, output)
		if err != nil {
			r.fail(fmt.Errorf("output %s: %w", outputLabel(output), err))
			continue
		}
		r.result.Files = append(r.result.Files, file)
	}
	if matched == 0 {
		r.result.Warnings = append(r.result.Warnings,
			fmt.Sprintf("no outputs matched formats %s", strings.Join(format.OutputFormats, ", ")))
	}
}

func (e *Exporter) exportRender(ctx context.Context, r *run, output rendersource.Output) (export.File, error) {
	data, err := e.fetch(ctx, r.campaign.ID, output)
	if err != nil {
		return export.File{}, err
	}

	req := convert.Request{
		From:        output.Format,
		To:          r.job.Format.TargetFormat,
		Profile:     r.job.Format.QualityProfile,
		Compression: string(r.job.Format.Compression),
		Watermark:   r.job.Options.Watermark,
	}
	if convert.Required(req) {
		convertCtx, cancel := context.WithTimeout(ctx, e.cfg.ConvertTimeout())
		data, err = e.converter.Convert(convertCtx, data, req)
		cancel()
		if err != nil {
			return export.File{}, err
		}
	}

	format := req.TargetFormat()
	name := e.fileName(r, map[string]string{
		"name":      strings.TrimSuffix(output.Name, filepath.Ext(output.Name)),
		"output_id": output.ID,
		"format":    format,
		"width":     strconv.Itoa(output.Width),
		"height":    strconv.Itoa(output.Height),
	})
	file, err := e.write(r, name, "", bytes.NewReader(data))
	if err != nil {
		return export.File{}, err
	}
	file.SourceOutputID = output.ID
	file.Type = export.FileRender
	file.Format = format
	file.Media = export.MediaInfo{
		Width:           output.Width,
		Height:          output.Height,
		DurationSeconds: output.DurationSeconds,
		CreatedAt:       output.CreatedAt,
	}
	return file, nil
}

func (e *Exporter) fetch(ctx context.Context, campaignID string, output rendersource.Output) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout())
	defer cancel()
	rc, err := e.source.Open(fetchCtx, campaignID, output)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "exporter", "fetch", "read output", err)
	}
	return data, nil
}

func (e *Exporter) exportAssets(ctx context.Context, r *run) {
	assetCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout())
	defer cancel()
	items, err := e.assets.Export(assetCtx, r.campaign, r.job.Format.IncludedAssetKinds)
	if err != nil {
		r.fail(fmt.Errorf("assets: %w", err))
		return
	}
	for _, item := range items {
		name := naming.Sanitize(item.Name)
		file, err := e.write(r, name, filepath.Join("assets", naming.Sanitize(item.Kind)), bytes.NewReader(item.Data))
		if err != nil {
			r.fail(fmt.Errorf("asset %s: %w", item.Name, err))
			continue
		}
		file.Type = export.FileAsset
		file.Format = strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
		r.result.Files = append(r.result.Files, file)
	}
}

func (e *Exporter) checkPlatformNaming(r *run) {
	platformID := r.job.PlatformID()
	spec, ok := e.registry.Lookup(platformID)
	if !ok {
		r.fail(services.Wrap(services.ErrConfiguration, "exporter", "naming", fmt.Sprintf("unknown platform %q", platformID), nil))
		return
	}
	var names []string
	for _, file := range r.result.Files {
		if file.Type == export.FileRender {
			names = append(names, file.Name)
		}
	}
	for _, issue := range platforms.ValidateFiles(names, spec) {
		r.fail(services.Wrap(services.ErrValidation, "exporter", "naming", spec.Name+": "+issue, nil))
	}
}

// fileName applies the job naming pattern. Campaign, version, and timestamp
// variables are always available; values are sanitized before substitution.
func (e *Exporter) fileName(r *run, vars map[string]string) string {
	pattern := strings.TrimSpace(r.job.Format.NamingPattern)
	if pattern == "" {
		pattern = strings.TrimSpace(e.cfg.Export.DefaultNamingPattern)
	}
	if pattern == "" {
		pattern = defaultPattern
	}
	all := map[string]string{
		"campaign":    campaignLabel(r.campaign),
		"campaign_id": r.campaign.ID,
		"version":     r.version,
		"timestamp":   r.started.UTC().Format("20060102-150405"),
		"job":         r.job.Name,
	}
	if platformID := r.job.PlatformID(); platformID != "" {
		all["platform"] = platformID
	}
	for key, value := range vars {
		all[key] = value
	}
	for key, value := range all {
		all[key] = naming.Sanitize(value)
	}
	return naming.Sanitize(naming.ApplyPattern(pattern, all))
}

// write stores data under the campaign dir, de-duplicating names.
func (e *Exporter) write(r *run, name, subdir string, data io.Reader) (export.File, error) {
	if name == "" {
		name = "file"
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; r.names[filepath.Join(subdir, name)]; n++ {
		name = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	r.names[filepath.Join(subdir, name)] = true

	path := filepath.Join(r.dir, subdir, name)
	size, checksum, err := fileutil.WriteChecksummed(path, data)
	if err != nil {
		return export.File{}, services.Wrap(services.ErrTransient, "exporter", "write", name, err)
	}
	return export.File{
		ID:       uuid.NewString(),
		Name:     name,
		Path:     path,
		Size:     size,
		Checksum: checksum,
	}, nil
}

func campaignLabel(campaign *rendersource.Campaign) string {
	if strings.TrimSpace(campaign.Name) != "" {
		return campaign.Name
	}
	return campaign.ID
}

func outputLabel(output rendersource.Output) string {
	if output.Name != "" {
		return output.Name
	}
	return output.ID
}

package delivery

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dustin/go-humanize"

	"shipyard/internal/export"
	"shipyard/internal/logging"
	"shipyard/internal/mailer"
	"shipyard/internal/platforms"
	"shipyard/internal/services/ftp"
	"shipyard/internal/services/platformapi"
	"shipyard/internal/storage"
)

func (d *Dispatcher) deliverStorage(ctx context.Context, job *export.Job, pkg Package) ([]string, map[string]string, error) {
	settings := storage.Settings(d.cfg.Storage, job.Destination)
	uploader, err := d.newUploader(ctx, settings)
	if err != nil {
		return nil, nil, finalizationError("storage", settings.Provider, err)
	}
	defer uploader.Close()

	var urls []string
	fileURLs := make(map[string]string)
	for _, item := range pkg.Items {
		uploadCtx, cancel := context.WithTimeout(ctx, d.cfg.UploadTimeout())
		url, err := uploader.Upload(uploadCtx, storage.ObjectKey(job.ID, item.Name), item.Path)
		cancel()
		if err != nil {
			return urls, fileURLs, finalizationError("storage", item.Name, err)
		}
		urls = append(urls, url)
		if item.FileID != "" {
			fileURLs[item.FileID] = url
		}
	}
	return urls, fileURLs, nil
}

func (d *Dispatcher) deliverFTP(ctx context.Context, job *export.Job, pkg Package) ([]string, map[string]string, error) {
	target, err := ftp.ResolveTarget(d.cfg.FTP, job.Destination)
	if err != nil {
		return nil, nil, finalizationError("ftp", "resolve target", err)
	}
	files := make([]ftp.File, 0, len(pkg.Items))
	for _, item := range pkg.Items {
		files = append(files, ftp.File{Name: item.Name, Path: item.Path})
	}
	uploadCtx, cancel := context.WithTimeout(ctx, d.cfg.UploadTimeout())
	defer cancel()
	urls, err := d.ftpUpload(uploadCtx, target, job.ID, files)
	if err != nil {
		return urls, nil, finalizationError("ftp", target.Addr, err)
	}
	fileURLs := make(map[string]string)
	for idx, item := range pkg.Items {
		if item.FileID != "" && idx < len(urls) {
			fileURLs[item.FileID] = urls[idx]
		}
	}
	return urls, fileURLs, nil
}

// Recipients returns the email destination's recipients, falling back to the
// job's notification recipients.
func Recipients(job *export.Job) []string {
	var out []string
	for _, part := range strings.Split(job.Destination.Value("recipients"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		for _, r := range job.Options.Notifications.Recipients {
			if r = strings.TrimSpace(r); r != "" {
				out = append(out, r)
			}
		}
	}
	return out
}

func (d *Dispatcher) deliverEmail(ctx context.Context, job *export.Job, pkg Package) error {
	recipients := Recipients(job)
	if len(recipients) == 0 {
		return finalizationError("email", "no recipients", nil)
	}
	var total int64
	attachments := make([]mailer.Attachment, 0, len(pkg.Items))
	for _, item := range pkg.Items {
		total += item.Size
		attachments = append(attachments, mailer.Attachment{Name: path.Base(item.Name), Path: item.Path})
	}
	if limit := d.cfg.Email.MaxAttachmentMB * 1024 * 1024; limit > 0 && total > limit {
		return finalizationError("email", fmt.Sprintf("attachments total %s, over the %s limit",
			humanize.IBytes(uint64(total)), humanize.IBytes(uint64(limit))), nil)
	}

	sender := d.sender
	if sender == nil {
		built, err := mailer.New(d.cfg.Email)
		if err != nil {
			return finalizationError("email", "mailer", err)
		}
		sender = built
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.UploadTimeout())
	defer cancel()
	msg := mailer.Message{
		From:        d.cfg.Email.From,
		To:          recipients,
		Subject:     fmt.Sprintf("Export ready: %s", job.Name),
		Text:        emailBody(job, pkg),
		Attachments: attachments,
	}
	if err := sender.Send(sendCtx, msg); err != nil {
		return finalizationError("email", strings.Join(recipients, ","), err)
	}
	return nil
}

func emailBody(job *export.Job, pkg Package) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Export %q finished with %d campaign(s).\n\n", job.Name, len(job.Results))
	for _, result := range job.Results {
		fmt.Fprintf(&b, "- %s: %s, %d file(s), %s\n", result.CampaignName, result.Status,
			result.Metadata.FileCount, humanize.IBytes(uint64(result.Metadata.TotalSize)))
	}
	if len(job.Errors) > 0 {
		b.WriteString("\nFailed campaigns:\n")
		for _, msg := range job.Errors {
			fmt.Fprintf(&b, "- %s\n", msg)
		}
	}
	fmt.Fprintf(&b, "\n%d attachment(s).\n", len(pkg.Items))
	return b.String()
}

// deliverPlatform uploads render files of campaigns that passed the
// compatibility check. Names are re-checked against the platform rules since
// a template or pattern may have changed since export. Files that already
// carry a URL were accepted by an earlier run and are not sent again. On
// failure the receipts gathered so far are still returned with the error.
func (d *Dispatcher) deliverPlatform(ctx context.Context, job *export.Job, files []staged) (Outcome, error) {
	platformID := job.PlatformID()
	spec, ok := d.registry.Lookup(platformID)
	if !ok {
		return Outcome{}, finalizationError("platform", fmt.Sprintf("unknown platform %q", platformID), nil)
	}
	logger := logging.WithContext(ctx, d.logger)

	outcome := Outcome{FileURLs: make(map[string]string)}
	var errs []error
	uploaded := 0
	for _, f := range files {
		if f.file.Type != export.FileRender {
			continue
		}
		if compatible, known := job.Metadata.PlatformCompatibility[f.campaignID]; known && !compatible {
			continue
		}
		if f.file.URL != "" {
			uploaded++
			outcome.DeliveredURLs = append(outcome.DeliveredURLs, f.file.URL)
			outcome.FileURLs[f.file.ID] = f.file.URL
			continue
		}
		if issues := platforms.ValidateFiles([]string{f.file.Name}, spec); len(issues) > 0 {
			errs = append(errs, fmt.Errorf("%s: %s", f.file.Name, strings.Join(issues, "; ")))
			continue
		}
		uploadCtx, cancel := context.WithTimeout(ctx, d.cfg.UploadTimeout())
		receipt, err := d.platform.Upload(uploadCtx, spec.ID, platformapi.Upload{
			CampaignID: f.campaignID,
			Name:       f.file.Name,
			Path:       f.file.Path,
			Format:     f.file.Format,
		})
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.file.Name, err))
			continue
		}
		uploaded++
		if receipt.URL != "" {
			outcome.DeliveredURLs = append(outcome.DeliveredURLs, receipt.URL)
			outcome.FileURLs[f.file.ID] = receipt.URL
		}
	}
	if len(errs) > 0 {
		return outcome, finalizationError("platform", fmt.Sprintf("%d upload(s) to %s failed", len(errs), spec.Name), errors.Join(errs...))
	}
	if uploaded == 0 {
		return Outcome{}, finalizationError("platform", "no compatible render files for "+spec.Name, nil)
	}
	logger.Debug("platform uploads complete",
		logging.String("platform", spec.ID),
		logging.Int("uploaded", uploaded),
	)
	return outcome, nil
}

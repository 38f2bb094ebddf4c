package notifications

import (
	"context"
	"fmt"
	"strings"

	"shipyard/internal/export"
	"shipyard/internal/mailer"
)

// emailService mails the job's notification recipients. Jobs without
// recipients are skipped.
type emailService struct {
	from   string
	sender mailer.Sender
}

func (e *emailService) NotifyJobCompleted(ctx context.Context, job *export.Job) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Export %q completed.\n\n", jobLabel(job))
	fmt.Fprintf(&b, "Campaigns: %d succeeded, %d partial, %d failed\n",
		job.Metadata.SucceededCampaigns, job.Metadata.PartialCampaigns, job.Metadata.FailedCampaigns)
	if job.Metadata.ArtifactPath != "" {
		fmt.Fprintf(&b, "Artifact: %s\n", job.Metadata.ArtifactPath)
	}
	for _, url := range job.Metadata.DeliveredURLs {
		fmt.Fprintf(&b, "Delivered: %s\n", url)
	}
	return e.send(ctx, job, "Export complete: "+jobLabel(job), b.String())
}

func (e *emailService) NotifyJobFailed(ctx context.Context, job *export.Job) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Export %q failed.\n\n", jobLabel(job))
	if job.Metadata.FinalizationError != "" {
		fmt.Fprintf(&b, "%s\n", job.Metadata.FinalizationError)
	}
	for _, msg := range job.Errors {
		fmt.Fprintf(&b, "- %s\n", msg)
	}
	return e.send(ctx, job, "Export failed: "+jobLabel(job), b.String())
}

func (e *emailService) send(ctx context.Context, job *export.Job, subject, text string) error {
	recipients := job.Options.Notifications.Recipients
	if len(recipients) == 0 {
		return nil
	}
	return e.sender.Send(ctx, mailer.Message{
		From:    e.from,
		To:      recipients,
		Subject: subject,
		Text:    text,
	})
}

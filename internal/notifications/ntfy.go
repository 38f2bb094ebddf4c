package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"shipyard/internal/export"
)

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func newNtfy(endpoint string, timeoutSeconds int) *ntfyService {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, job *export.Job) error {
	meta := job.Metadata
	message := fmt.Sprintf("📦 %s: %d/%d campaigns, %s files, %s",
		jobLabel(job), meta.SucceededCampaigns+meta.PartialCampaigns, meta.TotalCampaigns,
		humanize.Comma(int64(meta.TotalFiles)), humanize.IBytes(uint64(meta.TotalSize)))
	if meta.FailedCampaigns > 0 {
		message += fmt.Sprintf("\n%d campaign(s) failed", meta.FailedCampaigns)
	}
	if len(meta.DeliveredURLs) > 0 {
		message += "\n" + meta.DeliveredURLs[0]
	} else if meta.ArtifactPath != "" {
		message += "\n" + meta.ArtifactPath
	}
	return n.send(ctx, payload{
		title:   "Shipyard - Export Complete",
		message: message,
		tags:    []string{"shipyard", "export", "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job *export.Job) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "❌ %s failed", jobLabel(job))
	if reason := failureReason(job); reason != "" {
		builder.WriteString(": ")
		builder.WriteString(reason)
	}
	return n.send(ctx, payload{
		title:    "Shipyard - Export Failed",
		message:  builder.String(),
		tags:     []string{"shipyard", "export", "error"},
		priority: "high",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func jobLabel(job *export.Job) string {
	if name := strings.TrimSpace(job.Name); name != "" {
		return name
	}
	return job.ID
}

// failureReason prefers the finalization error, then the first campaign error.
func failureReason(job *export.Job) string {
	if job.Metadata.FinalizationError != "" {
		return job.Metadata.FinalizationError
	}
	if len(job.Errors) > 0 {
		reason := job.Errors[0]
		if extra := len(job.Errors) - 1; extra > 0 {
			reason += fmt.Sprintf(" (+%d more)", extra)
		}
		return reason
	}
	return ""
}

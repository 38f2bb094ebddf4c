package workflow

import (
	"context"
	"fmt"
	"math"
	"time"

	"shipyard/internal/export"
	"shipyard/internal/logging"
	"shipyard/internal/services"
)

// Progress is a point-in-time view of a job for polling callers.
type Progress struct {
	JobID                  string         `json:"job_id"`
	Status                 export.Status  `json:"status"`
	Progress               int            `json:"progress"`
	EstimatedTimeRemaining *time.Duration `json:"estimated_time_remaining,omitempty"`
	CurrentStep            string         `json:"current_step"`
	CampaignsDone          int            `json:"campaigns_done"`
	CampaignsTotal         int            `json:"campaigns_total"`
}

// Progress reports the last committed state of a job. Missing jobs yield
// (nil, nil).
func (m *Manager) Progress(ctx context.Context, jobID string) (*Progress, error) {
	job, err := m.store.Get(ctx, jobID)
	if err != nil || job == nil {
		return nil, err
	}
	total := len(job.CampaignIDs)
	done := int(math.Round(float64(job.Progress) / exportProgressCeiling * float64(total)))
	if done > total {
		done = total
	}
	if job.Status.Terminal() {
		done = job.Accounted()
	}
	p := &Progress{
		JobID:          job.ID,
		Status:         job.Status,
		Progress:       job.Progress,
		CampaignsDone:  done,
		CampaignsTotal: total,
		CurrentStep:    currentStep(job.Status, job.Progress, done, total),
	}
	if job.Status == export.StatusProcessing && job.Progress > 0 && job.StartedAt != nil {
		elapsed := m.now().Sub(*job.StartedAt)
		if elapsed > 0 {
			rate := float64(job.Progress) / elapsed.Seconds()
			remaining := time.Duration(float64(100-job.Progress) / rate * float64(time.Second))
			p.EstimatedTimeRemaining = &remaining
		}
	}
	return p, nil
}

func currentStep(status export.Status, progress, done, total int) string {
	switch status {
	case export.StatusQueued:
		return "Queued"
	case export.StatusProcessing:
		if progress >= exportProgressCeiling {
			return "Finalizing package"
		}
		if progress == 0 && done == 0 {
			return "Starting export"
		}
		return fmt.Sprintf("Exporting campaigns (%d/%d)", done, total)
	case export.StatusCompleted:
		return "Completed"
	case export.StatusFailed:
		return "Failed"
	case export.StatusCancelled:
		return "Cancelled"
	default:
		return string(status)
	}
}

// CancelJob cancels a queued or processing job. Work already running finishes
// but its results are dropped by the processing goroutine.
func (m *Manager) CancelJob(ctx context.Context, jobID string) error {
	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "workflow", "cancel job", fmt.Sprintf("job %s not found", jobID), nil)
	}
	if job.Status.Terminal() {
		return services.Wrap(services.ErrValidation, "workflow", "cancel job", fmt.Sprintf("job %s is already %s", jobID, job.Status), nil)
	}

	now := m.now().UTC()
	ok, err := m.store.MarkCancelled(ctx, jobID, now)
	if err != nil {
		return err
	}
	if !ok {
		current, _, err := m.store.StatusOf(ctx, jobID)
		if err != nil {
			return err
		}
		return services.Wrap(services.ErrValidation, "workflow", "cancel job", fmt.Sprintf("job %s is already %s", jobID, current), nil)
	}

	logger := logging.WithContext(services.WithJobID(ctx, jobID), m.logger)
	logger.Info("export job cancelled", logging.String("previous_status", string(job.Status)))

	// Queued jobs never reach the processing goroutine, so account for every
	// campaign here.
	if job.Status == export.StatusQueued {
		job.Status = export.StatusCancelled
		job.CompletedAt = &now
		job.Errors = make([]string, 0, len(job.CampaignIDs))
		for _, campaignID := range job.CampaignIDs {
			job.Errors = append(job.Errors, fmt.Sprintf("campaign %s: cancelled before export", campaignID))
		}
		aggregateMetadata(job)
		if _, err := m.store.UpdateIfStatus(ctx, job, export.StatusCancelled); err != nil {
			return err
		}
	}
	return nil
}

// GetJob returns a job or an error wrapping services.ErrNotFound.
func (m *Manager) GetJob(ctx context.Context, jobID string) (*export.Job, error) {
	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "get job", fmt.Sprintf("job %s not found", jobID), nil)
	}
	return job, nil
}

// ListJobs returns jobs, optionally filtered by status.
func (m *Manager) ListJobs(ctx context.Context, statuses ...export.Status) ([]*export.Job, error) {
	return m.store.List(ctx, statuses...)
}

// QueuedJobIDs lists jobs waiting for processing, oldest first.
func (m *Manager) QueuedJobIDs(ctx context.Context) ([]string, error) {
	jobs, err := m.store.List(ctx, export.StatusQueued)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	return ids, nil
}

// Redeliver re-runs finalization for a completed job using the staged files.
func (m *Manager) Redeliver(ctx context.Context, jobID string) (*export.Job, error) {
	job, err := m.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != export.StatusCompleted {
		return nil, services.Wrap(services.ErrValidation, "workflow", "redeliver", fmt.Sprintf("job %s is %s; only completed jobs can be redelivered", jobID, job.Status), nil)
	}
	ctx = services.WithDestination(services.WithJobID(ctx, job.ID), string(job.Destination.Type))
	outcome, err := m.finalizer.Finalize(ctx, job)
	if err != nil {
		// Keep receipts for files that made it so the next attempt skips them.
		if len(outcome.FileURLs) > 0 {
			applyFileURLs(job, outcome.FileURLs)
			if _, storeErr := m.store.UpdateIfStatus(ctx, job, export.StatusCompleted); storeErr != nil {
				return nil, storeErr
			}
		}
		return nil, err
	}
	applyDelivery(job, outcome.ArtifactPath, outcome.DeliveredURLs, outcome.FileURLs)
	if _, err := m.store.UpdateIfStatus(ctx, job, export.StatusCompleted); err != nil {
		return nil, err
	}
	logging.WithContext(ctx, m.logger).Info("export job redelivered",
		logging.Int("delivered", len(outcome.DeliveredURLs)),
		logging.String("artifact", outcome.ArtifactPath),
	)
	return job, nil
}

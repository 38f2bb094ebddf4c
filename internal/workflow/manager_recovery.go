package workflow

import (
	"context"
	"fmt"
	"strings"

	"shipyard/internal/export"
	"shipyard/internal/logging"
	"shipyard/internal/services"
)

// RecoverInterrupted fails jobs left in processing by a worker that exited
// mid-run. Every campaign without a result or error gets one, so the job stays
// fully accounted. Returns the number of jobs recovered.
func (m *Manager) RecoverInterrupted(ctx context.Context) (int, error) {
	jobs, err := m.store.List(ctx, export.StatusProcessing)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, job := range jobs {
		now := m.now().UTC()
		for _, campaignID := range unaccounted(job) {
			job.Errors = append(job.Errors, fmt.Sprintf("campaign %s: interrupted by worker restart", campaignID))
		}
		job.Status = export.StatusFailed
		job.CompletedAt = &now
		aggregateMetadata(job)
		ok, err := m.store.UpdateIfStatus(ctx, job, export.StatusProcessing)
		if err != nil {
			return recovered, err
		}
		if !ok {
			continue
		}
		recovered++
		logging.WarnWithContext(logging.WithContext(services.WithJobID(ctx, job.ID), m.logger),
			"interrupted export job marked failed", "job_interrupted",
			logging.Int("campaigns", len(job.CampaignIDs)),
			logging.String(logging.FieldImpact, "job must be resubmitted"),
			logging.String(logging.FieldErrorHint, "create the job again to re-export"),
		)
		m.notify(ctx, job)
	}
	return recovered, nil
}

func unaccounted(job *export.Job) []string {
	var out []string
	for _, campaignID := range job.CampaignIDs {
		if accountedFor(job, campaignID) {
			continue
		}
		out = append(out, campaignID)
	}
	return out
}

func accountedFor(job *export.Job, campaignID string) bool {
	for _, result := range job.Results {
		if result.CampaignID == campaignID {
			return true
		}
	}
	prefix := "campaign " + campaignID + ":"
	for _, msg := range job.Errors {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

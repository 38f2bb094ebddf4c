package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"shipyard/internal/export"
	"shipyard/internal/logging"
	"shipyard/internal/platforms"
	"shipyard/internal/rendersource"
	"shipyard/internal/services"
)

// exportProgressCeiling is the share of progress reserved for campaign work;
// the remainder covers finalization.
const exportProgressCeiling = 90

const defaultMaxConcurrent = 3

// campaignOutcome is the slot for one campaign, kept in campaign order.
type campaignOutcome struct {
	attempted  bool
	discarded  bool
	result     export.Result
	err        string
	compatible *bool
}

// ProcessJob runs a queued job to a terminal state. Jobs that are not queued
// are returned unchanged. Store failures are returned; per-campaign failures
// are recorded on the job.
func (m *Manager) ProcessJob(ctx context.Context, jobID string) (*export.Job, error) {
	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "process job", fmt.Sprintf("job %s not found", jobID), nil)
	}
	if job.Status != export.StatusQueued {
		return job, nil
	}

	ctx = services.WithJobID(ctx, job.ID)
	if job.Metadata.RequestID != "" {
		ctx = services.WithRequestID(ctx, job.Metadata.RequestID)
	}
	logger := logging.WithContext(ctx, m.logger)

	started := m.now().UTC()
	job.Status = export.StatusProcessing
	job.StartedAt = &started
	job.Progress = 0
	job.Results = nil
	job.Errors = nil
	claimed, err := m.store.UpdateIfStatus(ctx, job, export.StatusQueued)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return m.store.Get(ctx, jobID)
	}
	logger.Info("export job started",
		logging.String("name", job.Name),
		logging.Int("campaigns", len(job.CampaignIDs)),
		logging.Int("max_concurrent", m.maxConcurrent(job)),
	)

	outcomes, cancelled, err := m.runCampaigns(ctx, job)
	if err != nil {
		return nil, err
	}
	if cancelled {
		return m.finishCancelled(ctx, job, outcomes)
	}

	applyOutcomes(job, outcomes)
	if err := m.finalize(ctx, job); err != nil {
		return nil, err
	}

	completed := m.now().UTC()
	job.Progress = 100
	job.CompletedAt = &completed
	if len(job.Errors) == len(job.CampaignIDs) || job.Metadata.FinalizationError != "" {
		job.Status = export.StatusFailed
	} else {
		job.Status = export.StatusCompleted
	}
	aggregateMetadata(job)

	written, err := m.store.UpdateIfStatus(ctx, job, export.StatusProcessing)
	if err != nil {
		return nil, err
	}
	if !written {
		return m.finishCancelled(ctx, job, outcomes)
	}

	m.logCompletion(ctx, job)
	m.notify(ctx, job)
	return job, nil
}

func (m *Manager) maxConcurrent(job *export.Job) int {
	if n := job.Options.Batch.MaxConcurrent; n > 0 {
		return n
	}
	if n := m.cfg.Batch.MaxConcurrent; n > 0 {
		return n
	}
	return defaultMaxConcurrent
}

// runCampaigns exports every campaign with bounded parallelism. The stored
// status is re-read before each launch, and every finished campaign is
// persisted with a status guard. A campaign whose write loses to a cancel is
// discarded, as is anything that finishes after it.
func (m *Manager) runCampaigns(ctx context.Context, job *export.Job) ([]campaignOutcome, bool, error) {
	total := len(job.CampaignIDs)
	outcomes := make([]campaignOutcome, total)

	var spec *platforms.Spec
	if job.IsPlatform() {
		if found, ok := m.registry.Lookup(job.PlatformID()); ok {
			spec = &found
		}
	}

	var (
		mu        sync.Mutex
		done      int
		cancelled atomic.Bool
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.maxConcurrent(job))

	for idx, campaignID := range job.CampaignIDs {
		if cancelled.Load() || groupCtx.Err() != nil {
			break
		}
		// Go blocks until a slot frees up, so the status check runs inside
		// the slot rather than before it.
		group.Go(func() error {
			if cancelled.Load() {
				return nil
			}
			status, _, err := m.store.StatusOf(ctx, job.ID)
			if err != nil {
				return err
			}
			if status == export.StatusCancelled {
				cancelled.Store(true)
				return nil
			}

			outcome := m.exportCampaign(groupCtx, job, campaignID, spec)

			mu.Lock()
			defer mu.Unlock()
			outcomes[idx] = outcome
			if cancelled.Load() {
				outcomes[idx].discarded = true
				return nil
			}
			done++
			written, err := m.persistOutcomes(ctx, job, outcomes, done, total)
			if err != nil {
				return err
			}
			if !written {
				outcomes[idx].discarded = true
				cancelled.Store(true)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if !cancelled.Load() {
		status, _, err := m.store.StatusOf(ctx, job.ID)
		if err != nil {
			return nil, false, err
		}
		cancelled.Store(status == export.StatusCancelled)
	}
	return outcomes, cancelled.Load(), nil
}

// persistOutcomes writes the results and errors gathered so far, with
// progress, while the job is still processing. The caller's job is not
// modified; campaigns still running read it concurrently.
func (m *Manager) persistOutcomes(ctx context.Context, job *export.Job, outcomes []campaignOutcome, done, total int) (bool, error) {
	snapshot := *job
	applyOutcomes(&snapshot, outcomes)
	snapshot.Progress = int(math.Round(float64(done) / float64(total) * exportProgressCeiling))
	return m.store.UpdateIfStatus(ctx, &snapshot, export.StatusProcessing)
}

// exportCampaign validates platform compatibility and runs the exporter with
// retries. Only retryable failures are attempted again.
func (m *Manager) exportCampaign(ctx context.Context, job *export.Job, campaignID string, spec *platforms.Spec) campaignOutcome {
	ctx = services.WithCampaignID(ctx, campaignID)
	logger := logging.WithContext(ctx, m.logger)
	outcome := campaignOutcome{attempted: true}

	if spec != nil {
		compatible, err := m.checkCompatibility(ctx, job, campaignID, *spec)
		outcome.compatible = &compatible
		if err != nil {
			outcome.err = fmt.Sprintf("campaign %s: %v", campaignID, err)
			logging.WarnWithContext(logger, "campaign skipped for platform delivery", "platform_incompatible",
				logging.Error(err),
				logging.String("platform", spec.ID),
				logging.String(logging.FieldErrorHint, "adjust output formats or sizes for the platform"),
				logging.String(logging.FieldImpact, "campaign excluded from the export"),
			)
			return outcome
		}
	}

	attempts := job.Options.Batch.RetryAttempts
	if attempts <= 0 {
		attempts = m.cfg.Batch.RetryAttempts
	}
	delay := job.Options.Batch.RetryDelay
	if delay <= 0 {
		delay = m.cfg.RetryDelay()
	}

	tries := 0
	var last export.Result
	_, err := backoff.Retry(ctx, func() (export.Result, error) {
		tries++
		result, err := m.exporter.Attempt(ctx, campaignID, job)
		last = result
		if err == nil {
			return result, nil
		}
		if !services.Retryable(err) {
			return result, backoff.Permanent(err)
		}
		if tries <= attempts {
			logger.Info("retrying campaign export",
				logging.Int("attempt", tries),
				logging.Int("max_attempts", attempts+1),
				logging.Error(err),
			)
		}
		return result, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(delay)),
		backoff.WithMaxTries(uint(attempts+1)),
		backoff.WithMaxElapsedTime(0),
	)

	outcome.result = last
	if err != nil {
		outcome.err = fmt.Sprintf("campaign %s: %s", campaignID, failureMessage(last, err))
	}
	return outcome
}

func (m *Manager) checkCompatibility(ctx context.Context, job *export.Job, campaignID string, spec platforms.Spec) (bool, error) {
	campaign, err := m.source.Campaign(ctx, campaignID)
	if err != nil {
		return false, err
	}
	compat := platforms.Validate(projectOutputs(campaign, job.Format), spec)
	if err := compat.Err(spec.ID, campaignID); err != nil {
		return false, err
	}
	return true, nil
}

// projectOutputs narrows a campaign to the outputs the job exports, with the
// format they will have after conversion.
func projectOutputs(campaign *rendersource.Campaign, format export.Format) *rendersource.Campaign {
	projected := *campaign
	projected.Outputs = nil
	for _, output := range campaign.Outputs {
		if !format.AcceptsOutput(output.Format) {
			continue
		}
		if target := strings.TrimSpace(format.TargetFormat); target != "" {
			output.Format = target
		}
		projected.Outputs = append(projected.Outputs, output)
	}
	return &projected
}

func failureMessage(result export.Result, err error) string {
	if len(result.Errors) > 0 {
		return strings.Join(result.Errors, "; ")
	}
	if err != nil {
		return err.Error()
	}
	return "export failed"
}

// applyOutcomes moves campaign outcomes onto the job in campaign order.
// Failed campaigns become one error string each. Slots not yet attempted and
// discarded outcomes are skipped.
func applyOutcomes(job *export.Job, outcomes []campaignOutcome) {
	job.Results = nil
	job.Errors = nil
	compat := map[string]bool{}
	for idx, outcome := range outcomes {
		if !outcome.attempted || outcome.discarded {
			continue
		}
		campaignID := job.CampaignIDs[idx]
		if outcome.compatible != nil {
			compat[campaignID] = *outcome.compatible
		}
		switch {
		case outcome.err != "":
			job.Errors = append(job.Errors, outcome.err)
		case outcome.result.Status == export.ResultFailed:
			job.Errors = append(job.Errors, fmt.Sprintf("campaign %s: %s", campaignID, failureMessage(outcome.result, nil)))
		default:
			job.Results = append(job.Results, outcome.result)
		}
	}
	if len(compat) > 0 {
		job.Metadata.PlatformCompatibility = compat
	}
}

// finishCancelled writes the cancelled terminal state. Only outcomes persisted
// before the cancel are kept; every other campaign gets a cancellation error.
func (m *Manager) finishCancelled(ctx context.Context, job *export.Job, outcomes []campaignOutcome) (*export.Job, error) {
	stored, err := m.store.Get(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "process job", fmt.Sprintf("job %s disappeared", job.ID), nil)
	}
	if stored.Status != export.StatusCancelled {
		return stored, nil
	}

	kept := make([]campaignOutcome, len(outcomes))
	for idx, outcome := range outcomes {
		campaignID := job.CampaignIDs[idx]
		switch {
		case !outcome.attempted:
			outcome = campaignOutcome{attempted: true, err: fmt.Sprintf("campaign %s: cancelled before export", campaignID)}
		case outcome.discarded:
			outcome = campaignOutcome{attempted: true, err: fmt.Sprintf("campaign %s: cancelled during export", campaignID)}
		}
		kept[idx] = outcome
	}
	applyOutcomes(job, kept)

	job.Status = export.StatusCancelled
	job.Progress = stored.Progress
	job.CompletedAt = stored.CompletedAt
	if job.CompletedAt == nil {
		now := m.now().UTC()
		job.CompletedAt = &now
	}
	aggregateMetadata(job)
	if _, err := m.store.UpdateIfStatus(ctx, job, export.StatusCancelled); err != nil {
		return nil, err
	}
	logging.WithContext(ctx, m.logger).Info("export job cancelled",
		logging.Int("results", len(job.Results)),
		logging.Int("skipped", len(job.Errors)),
	)
	return job, nil
}

// finalize packages and delivers results. Delivery failures are recorded in
// metadata with a "finalization:" prefix so they stay distinct from campaign
// errors; only store failures are returned.
func (m *Manager) finalize(ctx context.Context, job *export.Job) error {
	if len(job.Results) == 0 {
		return nil
	}
	logger := logging.WithContext(services.WithDestination(ctx, string(job.Destination.Type)), m.logger)
	if err := m.store.UpdateProgress(ctx, job.ID, exportProgressCeiling); err != nil {
		return err
	}

	outcome, err := m.finalizer.Finalize(ctx, job)
	if err != nil {
		if !errors.Is(err, services.ErrFinalization) {
			err = services.Wrap(services.ErrFinalization, "workflow", "finalize", "", err)
		}
		applyFileURLs(job, outcome.FileURLs)
		job.Metadata.FinalizationError = "finalization: " + err.Error()
		logging.ErrorWithContext(logger, "export finalization failed", "finalization_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check destination credentials and free disk space"),
		)
		return nil
	}
	applyDelivery(job, outcome.ArtifactPath, outcome.DeliveredURLs, outcome.FileURLs)
	return nil
}

func applyDelivery(job *export.Job, artifact string, urls []string, fileURLs map[string]string) {
	job.Metadata.ArtifactPath = artifact
	job.Metadata.DeliveredURLs = urls
	job.Metadata.FinalizationError = ""
	applyFileURLs(job, fileURLs)
}

// applyFileURLs records per-file delivery receipts on the job's results.
func applyFileURLs(job *export.Job, fileURLs map[string]string) {
	for r := range job.Results {
		for f := range job.Results[r].Files {
			if url, ok := fileURLs[job.Results[r].Files[f].ID]; ok {
				job.Results[r].Files[f].URL = url
			}
		}
	}
}

// aggregateMetadata recomputes counts and sizes from the result set.
func aggregateMetadata(job *export.Job) {
	meta := &job.Metadata
	meta.TotalCampaigns = len(job.CampaignIDs)
	meta.SucceededCampaigns = 0
	meta.PartialCampaigns = 0
	meta.FailedCampaigns = len(job.Errors)
	meta.TotalFiles = 0
	meta.TotalSize = 0
	for _, result := range job.Results {
		switch result.Status {
		case export.ResultSuccess:
			meta.SucceededCampaigns++
		case export.ResultPartial:
			meta.PartialCampaigns++
		}
		meta.TotalFiles += result.Metadata.FileCount
		meta.TotalSize += result.Metadata.TotalSize
	}
	if job.StartedAt != nil && job.CompletedAt != nil {
		meta.Duration = job.CompletedAt.Sub(*job.StartedAt)
	}
}

func (m *Manager) logCompletion(ctx context.Context, job *export.Job) {
	logger := logging.WithContext(ctx, m.logger)
	attrs := []logging.Attr{
		logging.String("status", string(job.Status)),
		logging.Int("succeeded", job.Metadata.SucceededCampaigns),
		logging.Int("partial", job.Metadata.PartialCampaigns),
		logging.Int("failed", job.Metadata.FailedCampaigns),
		logging.Int("files", job.Metadata.TotalFiles),
		logging.Int64("bytes", job.Metadata.TotalSize),
		logging.Duration("duration", job.Metadata.Duration.Round(time.Millisecond)),
	}
	if job.Metadata.ArtifactPath != "" {
		attrs = append(attrs, logging.String("artifact", job.Metadata.ArtifactPath))
	}
	if job.Status == export.StatusFailed {
		logging.ErrorWithContext(logger, "export job failed", "job_failed",
			append(attrs, logging.Strings("errors", job.Errors), logging.String("finalization_error", job.Metadata.FinalizationError))...)
		return
	}
	logger.Info("export job completed", logging.Args(attrs...)...)
}

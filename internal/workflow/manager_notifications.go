package workflow

import (
	"context"
	"errors"

	"shipyard/internal/export"
	"shipyard/internal/logging"
)

// notify sends the terminal notification the job asked for. Delivery problems
// are logged and never change the job outcome.
func (m *Manager) notify(ctx context.Context, job *export.Job) {
	if m.notifier == nil {
		return
	}
	var err error
	switch {
	case job.Status == export.StatusCompleted && job.Options.Notifications.OnComplete:
		err = m.notifier.NotifyJobCompleted(ctx, job)
	case job.Status == export.StatusFailed && job.Options.Notifications.OnError:
		err = m.notifier.NotifyJobFailed(ctx, job)
	default:
		return
	}
	if err == nil {
		return
	}
	logger := logging.WithContext(ctx, m.logger)
	if errors.Is(err, context.Canceled) {
		logger.Debug("daemon shutting down, could not send job notification")
		return
	}
	logging.WarnWithContext(logger, "job notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notification settings"),
		logging.String(logging.FieldImpact, "recipients were not told about the job outcome"),
	)
}

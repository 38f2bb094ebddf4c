package testsupport

import (
	"context"
	"sync"

	"shipyard/internal/export"
)

// RecordingNotifier captures job notifications for assertions.
type RecordingNotifier struct {
	mu        sync.Mutex
	Completed []string
	Failed    []string
}

func (n *RecordingNotifier) NotifyJobCompleted(_ context.Context, job *export.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Completed = append(n.Completed, job.ID)
	return nil
}

func (n *RecordingNotifier) NotifyJobFailed(_ context.Context, job *export.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Failed = append(n.Failed, job.ID)
	return nil
}

// Counts returns the number of completed and failed notifications seen.
func (n *RecordingNotifier) Counts() (completed, failed int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Completed), len(n.Failed)
}

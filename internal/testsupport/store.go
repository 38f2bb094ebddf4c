package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"shipyard/internal/config"
	"shipyard/internal/export"
	"shipyard/internal/jobstore"
)

// MustOpenStore opens a jobstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()

	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a queued job for the given campaigns and returns it.
func NewJob(t testing.TB, store *jobstore.Store, campaignIDs ...string) *export.Job {
	t.Helper()

	job := &export.Job{
		ID:          uuid.NewString(),
		Name:        "test export",
		CampaignIDs: campaignIDs,
		Format: export.Format{
			Type:        export.FormatRender,
			Packaging:   export.PackagingIndividual,
			Compression: export.CompressionNone,
		},
		Destination: export.Destination{Type: export.DestinationDownload},
		Status:      export.StatusQueued,
	}
	if err := store.Insert(context.Background(), job); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return job
}

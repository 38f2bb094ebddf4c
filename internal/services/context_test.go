package services_test

import (
	"context"
	"testing"

	"shipyard/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithCampaignID(ctx, "camp-9")
	ctx = services.WithDestination(ctx, "storage")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-1" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if id, ok := services.CampaignIDFromContext(ctx); !ok || id != "camp-9" {
		t.Fatalf("unexpected campaign id: %v %v", id, ok)
	}
	if dest, ok := services.DestinationFromContext(ctx); !ok || dest != "storage" {
		t.Fatalf("unexpected destination: %v %v", dest, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "")
	ctx = services.WithCampaignID(ctx, "")
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id value")
	}
	if _, ok := services.CampaignIDFromContext(ctx); ok {
		t.Fatal("expected no campaign id value")
	}
}

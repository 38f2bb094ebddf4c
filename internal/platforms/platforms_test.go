package platforms_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"shipyard/internal/naming"
	"shipyard/internal/platforms"
	"shipyard/internal/rendersource"
	"shipyard/internal/services"
)

func TestRegistrySeedsBuiltins(t *testing.T) {
	registry := platforms.NewRegistry()
	want := []string{"facebook", "instagram", "linkedin", "tiktok", "twitter", "youtube"}
	specs := registry.List()
	if len(specs) != len(want) {
		t.Fatalf("expected %d platforms, got %d", len(want), len(specs))
	}
	for i, spec := range specs {
		if spec.ID != want[i] {
			t.Fatalf("List()[%d] = %s, want %s", i, spec.ID, want[i])
		}
	}
	if _, ok := registry.Lookup(" Instagram "); !ok {
		t.Fatal("expected case-insensitive lookup")
	}
	if _, ok := registry.Lookup("myspace"); ok {
		t.Fatal("unexpected platform")
	}
}

func TestRegistryConcurrentReads(t *testing.T) {
	registry := platforms.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, spec := range registry.List() {
				if _, ok := registry.Lookup(spec.ID); !ok {
					t.Errorf("lookup %s failed", spec.ID)
				}
			}
		}()
	}
	wg.Wait()
}

func TestValidateRejectsBMP(t *testing.T) {
	spec := platforms.Spec{ID: "photos", Name: "Photos", ImageFormats: []string{"jpg", "png"}}
	campaign := &rendersource.Campaign{
		ID:      "c1",
		Outputs: []rendersource.Output{{ID: "o1", Name: "hero", Format: "bmp", Size: 1024}},
	}
	result := platforms.Validate(campaign, spec)
	if result.Compatible {
		t.Fatal("expected bmp output to be incompatible")
	}
	if len(result.Issues) != 1 || !strings.Contains(result.Issues[0], "bmp") {
		t.Fatalf("expected issue mentioning bmp, got %v", result.Issues)
	}
}

func TestValidateAccumulatesAllIssues(t *testing.T) {
	spec := platforms.Spec{ID: "tiny", Name: "Tiny", ImageFormats: []string{"jpg"}, VideoFormats: []string{"mp4"}, MaxFileSize: 1000}
	campaign := &rendersource.Campaign{
		ID: "c1",
		Outputs: []rendersource.Output{
			{ID: "a", Format: "bmp", Size: 5000},
			{ID: "b", Format: "JPEG", Size: 10},
			{ID: "c", Format: "mp4", Size: 2000},
		},
	}
	result := platforms.Validate(campaign, spec)
	if result.Compatible || len(result.Issues) != 3 {
		t.Fatalf("expected 3 issues, got %v", result.Issues)
	}

	err := result.Err("tiny", "c1")
	if !errors.Is(err, services.ErrIncompatible) {
		t.Fatalf("expected ErrIncompatible, got %v", err)
	}
	var incompatible *platforms.IncompatibleError
	if !errors.As(err, &incompatible) || len(incompatible.Issues) != 3 {
		t.Fatalf("expected full issue list on error, got %v", err)
	}
}

func TestValidateWarnsOnDimensions(t *testing.T) {
	spec, _ := platforms.NewRegistry().Lookup("tiktok")
	campaign := &rendersource.Campaign{
		ID:      "c1",
		Outputs: []rendersource.Output{{ID: "wide", Format: "mp4", Size: 10, Width: 1920, Height: 1080}},
	}
	result := platforms.Validate(campaign, spec)
	if !result.Compatible {
		t.Fatalf("dimension mismatch must not block delivery: %v", result.Issues)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
}

func TestValidateFilesChecksNamingRules(t *testing.T) {
	spec := platforms.Spec{Naming: naming.Rules{MaxLength: 12, AllowedChars: `a-z0-9_.`}}
	issues := platforms.ValidateFiles([]string{"ok.mp4", "Way Too Long Name.mp4"}, spec)
	if len(issues) != 2 {
		t.Fatalf("expected length and charset issues for second name, got %v", issues)
	}
}

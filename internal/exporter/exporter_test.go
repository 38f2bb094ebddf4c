package exporter_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"shipyard/internal/config"
	"shipyard/internal/convert"
	"shipyard/internal/export"
	"shipyard/internal/exporter"
	"shipyard/internal/rendersource"
	"shipyard/internal/services"
	"shipyard/internal/testsupport"
)

func newExporter(t *testing.T, cfg *config.Config, converter convert.Converter) *exporter.Exporter {
	t.Helper()
	source := rendersource.NewCatalog(cfg.RenderSource.CatalogDir, nil, time.Second)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return exporter.New(cfg, source, converter, nil, nil, nil, exporter.WithClock(func() time.Time { return fixed }))
}

func writeCampaign(t *testing.T, cfg *config.Config, id string, status rendersource.CampaignStatus, outputs ...rendersource.Output) map[string][]byte {
	t.Helper()
	payloads := make(map[string][]byte, len(outputs))
	for _, output := range outputs {
		payloads[output.ID] = []byte("payload-" + output.ID)
	}
	testsupport.WriteCampaign(t, cfg.RenderSource.CatalogDir, rendersource.Campaign{
		ID:      id,
		Name:    "Spring " + id,
		Status:  status,
		Outputs: outputs,
		Stats:   rendersource.RenderStats{Renderer: "remotion", RenderSeconds: 42, Attempts: 1},
	}, payloads)
	return payloads
}

func baseJob(campaignIDs ...string) *export.Job {
	return &export.Job{
		ID:          "job-1",
		Name:        "spring",
		CampaignIDs: campaignIDs,
		Format: export.Format{
			Type:          export.FormatRender,
			Packaging:     export.PackagingIndividual,
			Compression:   export.CompressionLossy,
			OutputFormats: []string{"mp4"},
		},
		Destination: export.Destination{Type: export.DestinationDownload},
		Status:      export.StatusProcessing,
	}
}

func countTypes(files []export.File) map[export.FileType]int {
	counts := map[export.FileType]int{}
	for _, file := range files {
		counts[file.Type]++
	}
	return counts
}

func TestExportProducesRenderDocumentAndManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	payloads := writeCampaign(t, cfg, "c1", rendersource.CampaignCompleted,
		rendersource.Output{ID: "o1", Name: "hero.mp4", Format: "mp4", Width: 1080, Height: 1920, DurationSeconds: 15},
		rendersource.Output{ID: "o2", Name: "still.jpg", Format: "jpg"},
	)
	job := baseJob("c1")
	job.Options = export.Options{IncludeDocumentation: true, CreateManifest: true}

	result := newExporter(t, cfg, nil).Export(context.Background(), "c1", job)
	if result.Status != export.ResultSuccess {
		t.Fatalf("expected success, got %s: %v", result.Status, result.Errors)
	}
	counts := countTypes(result.Files)
	if counts[export.FileRender] != 1 || counts[export.FileDocument] != 1 || counts[export.FileMetadata] != 1 {
		t.Fatalf("unexpected file types: %v", counts)
	}
	if result.Metadata.Version != "v1.0.0" {
		t.Fatalf("unexpected version %q", result.Metadata.Version)
	}

	render := result.Files[0]
	if render.Name != "Spring_c1_hero_v1.0.0.mp4" {
		t.Fatalf("unexpected render name %q", render.Name)
	}
	sum := sha256.Sum256(payloads["o1"])
	if render.Checksum != hex.EncodeToString(sum[:]) {
		t.Fatalf("checksum mismatch")
	}
	if render.SourceOutputID != "o1" || render.Media.Width != 1080 {
		t.Fatalf("unexpected render metadata %+v", render)
	}
	for _, file := range result.Files {
		if !strings.Contains(file.Name, "v1.0.0") {
			t.Fatalf("file %q does not carry the campaign version", file.Name)
		}
	}

	last := result.Files[len(result.Files)-1]
	if last.Type != export.FileMetadata {
		t.Fatalf("expected manifest last, got %s", last.Type)
	}
	data, err := os.ReadFile(last.Path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest exporter.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if len(manifest.Files) != 2 || manifest.CampaignID != "c1" || manifest.JobID != "job-1" {
		t.Fatalf("unexpected manifest %+v", manifest)
	}

	doc, err := os.ReadFile(result.Files[1].Path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	for _, fragment := range []string{"# Spring c1", "Campaign ID: c1", "hero.mp4", "1080x1920", "Renderer: remotion"} {
		if !bytes.Contains(doc, []byte(fragment)) {
			t.Fatalf("summary missing %q:\n%s", fragment, doc)
		}
	}
}

func TestAttemptFailsForIncompleteCampaign(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeCampaign(t, cfg, "c2", rendersource.CampaignRendering,
		rendersource.Output{ID: "o1", Name: "hero.mp4", Format: "mp4"},
	)
	result, err := newExporter(t, cfg, nil).Attempt(context.Background(), "c2", baseJob("c2"))
	if result.Status != export.ResultFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation cause, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("incomplete campaign must not be retried")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "c2") {
		t.Fatalf("expected error naming campaign, got %v", result.Errors)
	}
}

func TestExportConvertsToTargetFormat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeCampaign(t, cfg, "c1", rendersource.CampaignCompleted,
		rendersource.Output{ID: "o1", Name: "poster.png", Format: "png"},
	)
	var seen convert.Request
	converter := convert.Func(func(_ context.Context, data []byte, req convert.Request) ([]byte, error) {
		seen = req
		return append([]byte("jpg:"), data...), nil
	})
	job := baseJob("c1")
	job.Format.OutputFormats = []string{"png"}
	job.Format.TargetFormat = "jpg"
	job.Options.Watermark = "PREVIEW"

	result := newExporter(t, cfg, converter).Export(context.Background(), "c1", job)
	if result.Status != export.ResultSuccess || len(result.Files) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	file := result.Files[0]
	if file.Format != "jpg" || !strings.HasSuffix(file.Name, ".jpg") {
		t.Fatalf("expected jpg output, got %+v", file)
	}
	if seen.Watermark != "PREVIEW" || seen.From != "png" {
		t.Fatalf("converter saw %+v", seen)
	}
	data, _ := os.ReadFile(file.Path)
	if !bytes.HasPrefix(data, []byte("jpg:")) {
		t.Fatalf("converted bytes not written: %q", data)
	}
}

func TestExportPartialWhenSomeOutputsFail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeCampaign(t, cfg, "c1", rendersource.CampaignCompleted,
		rendersource.Output{ID: "o1", Name: "hero.mp4", Format: "mp4"},
		rendersource.Output{ID: "o2", Name: "teaser.mov", Format: "mov"},
	)
	converter := convert.Func(func(context.Context, []byte, convert.Request) ([]byte, error) {
		return nil, services.Wrap(services.ErrExternalTool, "convert", "ffmpeg", "boom", nil)
	})
	job := baseJob("c1")
	job.Format.OutputFormats = nil
	job.Format.TargetFormat = "mp4"

	result, err := newExporter(t, cfg, converter).Attempt(context.Background(), "c1", job)
	if err != nil {
		t.Fatalf("partial results should not return an error: %v", err)
	}
	if result.Status != export.ResultPartial {
		t.Fatalf("expected partial, got %s", result.Status)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "teaser.mov") {
		t.Fatalf("unexpected errors %v", result.Errors)
	}
}

func TestExportNeverReusesAFileName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	payloads := writeCampaign(t, cfg, "c1", rendersource.CampaignCompleted,
		rendersource.Output{ID: "o1", Name: "hero.mp4", Format: "mp4"},
		rendersource.Output{ID: "o2", Name: "hero.mp4", Format: "mp4"},
		rendersource.Output{ID: "o3", Name: "hero-2.mp4", Format: "mp4"},
	)
	job := baseJob("c1")
	job.Format.NamingPattern = "{name}.{format}"

	result := newExporter(t, cfg, nil).Export(context.Background(), "c1", job)
	if result.Status != export.ResultSuccess {
		t.Fatalf("expected success, got %s: %v", result.Status, result.Errors)
	}
	seen := map[string]string{}
	for _, file := range result.Files {
		if file.Type != export.FileRender {
			continue
		}
		if other, dup := seen[file.Path]; dup {
			t.Fatalf("%s and %s both written to %s", other, file.SourceOutputID, file.Path)
		}
		seen[file.Path] = file.SourceOutputID

		data, err := os.ReadFile(file.Path)
		if err != nil {
			t.Fatalf("read %s: %v", file.Name, err)
		}
		if !bytes.Equal(data, payloads[file.SourceOutputID]) {
			t.Fatalf("%s holds another output's bytes", file.Name)
		}
		sum := sha256.Sum256(data)
		if file.Checksum != hex.EncodeToString(sum[:]) {
			t.Fatalf("checksum for %s does not match the file on disk", file.Name)
		}
	}
	if len(seen) != 3 {
		t.Fatalf("expected three distinct render files, got %v", seen)
	}
}

func TestExportReportsPlatformNamingViolations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeCampaign(t, cfg, "c1", rendersource.CampaignCompleted,
		rendersource.Output{ID: "o1", Name: "hero.mp4", Format: "mp4"},
	)
	job := baseJob("c1")
	job.Format.Type = export.FormatPlatform
	job.Format.Platform = "tiktok"
	job.Format.NamingPattern = "{campaign}_{slot}.{format}"

	result := newExporter(t, cfg, nil).Export(context.Background(), "c1", job)
	if result.Status != export.ResultPartial {
		t.Fatalf("expected partial, got %s", result.Status)
	}
	joined := strings.Join(result.Errors, "\n")
	if !strings.Contains(joined, "{slot}") || !strings.Contains(joined, "TikTok") {
		t.Fatalf("expected naming violation, got %v", result.Errors)
	}
}

func TestExportIncludesAssets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeCampaign(t, cfg, "c1", rendersource.CampaignCompleted,
		rendersource.Output{ID: "o1", Name: "hero.mp4", Format: "mp4"},
	)
	testsupport.WriteAsset(t, cfg.RenderSource.CatalogDir, "c1", "logos", "mark.svg", []byte("<svg/>"))
	testsupport.WriteAsset(t, cfg.RenderSource.CatalogDir, "c1", "fonts", "sans.ttf", []byte("font"))

	job := baseJob("c1")
	job.Format.IncludedAssetKinds = []string{"logos"}
	job.Options.IncludeAssets = true

	result := newExporter(t, cfg, nil).Export(context.Background(), "c1", job)
	counts := countTypes(result.Files)
	if counts[export.FileAsset] != 1 {
		t.Fatalf("expected one asset, got %v", counts)
	}
	for _, file := range result.Files {
		if file.Type == export.FileAsset && (file.Name != "mark.svg" || file.Format != "svg") {
			t.Fatalf("unexpected asset %+v", file)
		}
	}
}

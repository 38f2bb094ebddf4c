package exporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"shipyard/internal/export"
)

// Manifest describes everything produced for one campaign.
type Manifest struct {
	JobID        string         `json:"job_id"`
	JobName      string         `json:"job_name,omitempty"`
	CampaignID   string         `json:"campaign_id"`
	CampaignName string         `json:"campaign_name,omitempty"`
	Version      string         `json:"version"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Format       export.Format  `json:"format"`
	Watermark    string         `json:"watermark,omitempty"`
	Files        []ManifestFile `json:"files"`
	TotalSize    int64          `json:"total_size"`
	Errors       []string       `json:"errors,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

type ManifestFile struct {
	Name           string            `json:"name"`
	Path           string            `json:"path"`
	Type           export.FileType   `json:"type"`
	Format         string            `json:"format"`
	Size           int64             `json:"size"`
	Checksum       string            `json:"sha256"`
	SourceOutputID string            `json:"source_output_id,omitempty"`
	Media          *export.MediaInfo `json:"media,omitempty"`
}

func (e *Exporter) writeManifest(r *run) {
	manifest := Manifest{
		JobID:        r.job.ID,
		JobName:      r.job.Name,
		CampaignID:   r.campaign.ID,
		CampaignName: r.campaign.Name,
		Version:      r.version,
		GeneratedAt:  e.now().UTC(),
		Format:       r.job.Format,
		Watermark:    r.job.Options.Watermark,
		Files:        make([]ManifestFile, 0, len(r.result.Files)),
		Errors:       r.result.Errors,
		Warnings:     r.result.Warnings,
	}
	for _, file := range r.result.Files {
		rel, err := filepath.Rel(r.dir, file.Path)
		if err != nil {
			rel = file.Name
		}
		entry := ManifestFile{
			Name:           file.Name,
			Path:           filepath.ToSlash(rel),
			Type:           file.Type,
			Format:         file.Format,
			Size:           file.Size,
			Checksum:       file.Checksum,
			SourceOutputID: file.SourceOutputID,
		}
		if file.Type == export.FileRender {
			media := file.Media
			entry.Media = &media
		}
		manifest.Files = append(manifest.Files, entry)
		manifest.TotalSize += file.Size
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		r.fail(fmt.Errorf("manifest: %w", err))
		return
	}
	name := e.fileName(r, map[string]string{"name": "manifest", "format": "json"})
	file, err := e.write(r, name, "", bytes.NewReader(data))
	if err != nil {
		r.fail(fmt.Errorf("manifest: %w", err))
		return
	}
	file.Type = export.FileMetadata
	file.Format = "json"
	r.result.Files = append(r.result.Files, file)
}

package export

import "time"

// ResultStatus summarizes the outcome of exporting a single campaign.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultPartial ResultStatus = "partial"
	ResultFailed  ResultStatus = "failed"
)

// FileType classifies produced files.
type FileType string

const (
	FileRender   FileType = "render"
	FileAsset    FileType = "asset"
	FileDocument FileType = "document"
	FileMetadata FileType = "metadata"
)

// MediaInfo carries render dimensions and duration when known.
type MediaInfo struct {
	Width           int       `json:"width,omitempty"`
	Height          int       `json:"height,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// File is a single artifact produced for a campaign.
type File struct {
	ID             string    `json:"id"`
	SourceOutputID string    `json:"source_output_id,omitempty"`
	Name           string    `json:"name"`
	Path           string    `json:"path"`
	Type           FileType  `json:"type"`
	Format         string    `json:"format"`
	Size           int64     `json:"size"`
	Checksum       string    `json:"checksum"`
	URL            string    `json:"url,omitempty"`
	Media          MediaInfo `json:"media"`
}

type ResultMetadata struct {
	FileCount int           `json:"file_count"`
	TotalSize int64         `json:"total_size"`
	Duration  time.Duration `json:"duration"`
	Version   string        `json:"version"`
}

// Result is the outcome of exporting one campaign.
type Result struct {
	ID           string         `json:"id"`
	CampaignID   string         `json:"campaign_id"`
	CampaignName string         `json:"campaign_name"`
	Files        []File         `json:"files,omitempty"`
	Status       ResultStatus   `json:"status"`
	Errors       []string       `json:"errors,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
	Metadata     ResultMetadata `json:"metadata"`
}

// HasRenderFile reports whether at least one render file was produced.
func (r Result) HasRenderFile() bool {
	for _, file := range r.Files {
		if file.Type == FileRender {
			return true
		}
	}
	return false
}

// JobMetadata aggregates execution statistics for a job.
type JobMetadata struct {
	TotalCampaigns        int             `json:"total_campaigns"`
	SucceededCampaigns    int             `json:"succeeded_campaigns"`
	PartialCampaigns      int             `json:"partial_campaigns"`
	FailedCampaigns       int             `json:"failed_campaigns"`
	TotalFiles            int             `json:"total_files"`
	TotalSize             int64           `json:"total_size"`
	EstimatedSize         int64           `json:"estimated_size"`
	CompressionRatio      float64         `json:"compression_ratio"`
	Duration              time.Duration   `json:"duration"`
	PlatformCompatibility map[string]bool `json:"platform_compatibility,omitempty"`
	FinalizationError     string          `json:"finalization_error,omitempty"`
	DeliveredURLs         []string        `json:"delivered_urls,omitempty"`
	ArtifactPath          string          `json:"artifact_path,omitempty"`
	RequestID             string          `json:"request_id,omitempty"`
}

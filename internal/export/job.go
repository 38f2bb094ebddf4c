package export

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an export job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// allowedTransitions lists the only forward moves a job may make.
var allowedTransitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
}

// AllStatuses returns every known job status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a user-supplied string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FormatType selects what kind of package a job produces.
type FormatType string

const (
	FormatRender   FormatType = "render"
	FormatBundle   FormatType = "bundle"
	FormatPlatform FormatType = "platform"
)

// Packaging selects how produced files are laid out for delivery.
type Packaging string

const (
	PackagingZip        Packaging = "zip"
	PackagingTar        Packaging = "tar"
	PackagingFolder     Packaging = "folder"
	PackagingIndividual Packaging = "individual"
)

// Compression selects the media compression profile requested by the caller.
type Compression string

const (
	CompressionNone     Compression = "none"
	CompressionLossless Compression = "lossless"
	CompressionLossy    Compression = "lossy"
	CompressionAdaptive Compression = "adaptive"
)

// Format describes what a job produces.
type Format struct {
	Type               FormatType  `json:"type"`
	Packaging          Packaging   `json:"packaging"`
	Compression        Compression `json:"compression"`
	QualityProfile     string      `json:"quality_profile,omitempty"`
	NamingPattern      string      `json:"naming_pattern,omitempty"`
	IncludedAssetKinds []string    `json:"included_asset_kinds,omitempty"`
	OutputFormats      []string    `json:"output_formats,omitempty"`
	TargetFormat       string      `json:"target_format,omitempty"`
	Platform           string      `json:"platform,omitempty"`
}

// AcceptsOutput reports whether an output of the given format is selected.
// An empty OutputFormats list selects everything.
func (f Format) AcceptsOutput(format string) bool {
	if len(f.OutputFormats) == 0 {
		return true
	}
	for _, candidate := range f.OutputFormats {
		if strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(format)) {
			return true
		}
	}
	return false
}

// DestinationType selects where finalized packages are delivered.
type DestinationType string

const (
	DestinationDownload    DestinationType = "download"
	DestinationStorage     DestinationType = "storage"
	DestinationCloud       DestinationType = "cloud"
	DestinationFTP         DestinationType = "ftp"
	DestinationEmail       DestinationType = "email"
	DestinationPlatformAPI DestinationType = "platform_api"
)

// Destination describes where a job's output goes. Config keys depend on the
// type: bucket/prefix/provider for storage, host/path for ftp, recipients for
// email, platform for platform_api.
type Destination struct {
	Type   DestinationType   `json:"type"`
	Config map[string]string `json:"config,omitempty"`
}

// Value returns a trimmed config value.
func (d Destination) Value(key string) string {
	if d.Config == nil {
		return ""
	}
	return strings.TrimSpace(d.Config[key])
}

// VersioningStrategy selects how per-campaign version labels are generated.
type VersioningStrategy string

const (
	VersionIncrement VersioningStrategy = "increment"
	VersionTimestamp VersioningStrategy = "timestamp"
	VersionHash      VersioningStrategy = "hash"
)

type Versioning struct {
	Enabled  bool               `json:"enabled"`
	Strategy VersioningStrategy `json:"strategy,omitempty"`
	Prefix   string             `json:"prefix,omitempty"`
}

type NotificationOptions struct {
	OnComplete bool     `json:"on_complete"`
	OnError    bool     `json:"on_error"`
	Recipients []string `json:"recipients,omitempty"`
}

// BatchOptions control per-job parallelism and retries. Zero values fall back
// to configured defaults.
type BatchOptions struct {
	MaxConcurrent int           `json:"max_concurrent,omitempty"`
	RetryAttempts int           `json:"retry_attempts,omitempty"`
	RetryDelay    time.Duration `json:"retry_delay,omitempty"`
}

// Options tune what each campaign export includes.
type Options struct {
	IncludeAssets        bool                `json:"include_assets"`
	IncludeDocumentation bool                `json:"include_documentation"`
	CreateManifest       bool                `json:"create_manifest"`
	Watermark            string              `json:"watermark,omitempty"`
	Versioning           Versioning          `json:"versioning"`
	Notifications        NotificationOptions `json:"notifications"`
	Batch                BatchOptions        `json:"batch"`
}

// Job is a persisted export request plus its evolving execution state.
type Job struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	CreatedBy   string      `json:"created_by,omitempty"`
	CampaignIDs []string    `json:"campaign_ids"`
	Format      Format      `json:"format"`
	Destination Destination `json:"destination"`
	Options     Options     `json:"options"`
	TemplateID  string      `json:"template_id,omitempty"`

	Status   Status      `json:"status"`
	Progress int         `json:"progress"`
	Results  []Result    `json:"results,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
	Metadata JobMetadata `json:"metadata"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Accounted returns the number of campaigns that produced a result or an error.
func (j *Job) Accounted() int {
	if j == nil {
		return 0
	}
	return len(j.Results) + len(j.Errors)
}

// IsPlatform reports whether the job targets a social platform.
func (j *Job) IsPlatform() bool {
	if j == nil {
		return false
	}
	return j.Format.Type == FormatPlatform || j.Destination.Type == DestinationPlatformAPI
}

// PlatformID returns the platform a job targets, preferring the format setting.
func (j *Job) PlatformID() string {
	if j == nil {
		return ""
	}
	if id := strings.TrimSpace(j.Format.Platform); id != "" {
		return strings.ToLower(id)
	}
	return strings.ToLower(j.Destination.Value("platform"))
}

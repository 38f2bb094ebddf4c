package rendersource

import (
	"context"
	"io"
	"strings"
	"time"
)

// CampaignStatus mirrors the rendering service's campaign lifecycle.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRendering CampaignStatus = "rendering"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

// Output is one rendered artifact of a campaign.
type Output struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Format          string    `json:"format"`
	Size            int64     `json:"size"`
	Width           int       `json:"width,omitempty"`
	Height          int       `json:"height,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	Path            string    `json:"path,omitempty"`
	URL             string    `json:"url,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// IsVideo reports whether the output carries a duration or a video container format.
func (o Output) IsVideo() bool {
	if o.DurationSeconds > 0 {
		return true
	}
	switch strings.ToLower(o.Format) {
	case "mp4", "mov", "webm", "avi", "mkv", "gif":
		return true
	}
	return false
}

// RenderStats summarizes how a campaign was rendered.
type RenderStats struct {
	Renderer      string  `json:"renderer,omitempty"`
	RenderSeconds float64 `json:"render_seconds,omitempty"`
	Attempts      int     `json:"attempts,omitempty"`
}

// Campaign is a rendered marketing campaign.
type Campaign struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      CampaignStatus `json:"status"`
	Tags        []string       `json:"tags,omitempty"`
	Outputs     []Output       `json:"outputs"`
	Stats       RenderStats    `json:"stats"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Completed reports whether the campaign finished rendering.
func (c *Campaign) Completed() bool {
	return c != nil && c.Status == CampaignCompleted
}

// Source provides campaigns and their output bytes.
type Source interface {
	// Campaign returns the campaign or an error wrapping services.ErrNotFound.
	Campaign(ctx context.Context, id string) (*Campaign, error)
	// Open streams the bytes of an output of the given campaign.
	Open(ctx context.Context, campaignID string, output Output) (io.ReadCloser, error)
}

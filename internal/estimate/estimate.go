// Package estimate predicts the size, file count, and processing time of an
// export before any work is admitted.
//
// Estimation is read-only: campaigns are looked up on the render source and
// nothing is written anywhere.
package estimate

import (
	"context"
	"time"

	"shipyard/internal/config"
	"shipyard/internal/export"
	"shipyard/internal/rendersource"
)

const mib = int64(1) << 20

// CompressionRatio returns the expected output/input size ratio for a
// compression mode. Unknown modes are assumed not to shrink anything.
func CompressionRatio(mode export.Compression) float64 {
	switch mode {
	case export.CompressionNone:
		return 1.0
	case export.CompressionLossless:
		return 0.8
	case export.CompressionLossy:
		return 0.6
	case export.CompressionAdaptive:
		return 0.7
	default:
		return 1.0
	}
}

// Campaign is the projection for a single campaign.
type Campaign struct {
	CampaignID string `json:"campaign_id"`
	Size       int64  `json:"size"`
	Files      int    `json:"files"`
}

// Estimate is the projection for a whole job.
type Estimate struct {
	TotalSize         int64         `json:"total_size"`
	TotalFiles        int           `json:"total_files"`
	PerCampaign       []Campaign    `json:"per_campaign"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Exceeds reports whether the projection is over limit. A limit <= 0 means no cap.
func (e Estimate) Exceeds(limit int64) bool {
	return limit > 0 && e.TotalSize > limit
}

// Estimator computes projections against a render source.
type Estimator struct {
	source        rendersource.Source
	assetOverhead int64
	docOverhead   int64
	throughput    int64
}

// New builds an estimator using the overheads and throughput from cfg.
func New(source rendersource.Source, cfg *config.Config) *Estimator {
	e := &Estimator{
		source:        source,
		assetOverhead: 50 * mib,
		docOverhead:   1 * mib,
		throughput:    25 * mib,
	}
	if cfg != nil {
		if cfg.Export.AssetOverheadMB >= 0 {
			e.assetOverhead = cfg.Export.AssetOverheadMB * mib
		}
		if cfg.Export.DocumentationOverheadMB >= 0 {
			e.docOverhead = cfg.Export.DocumentationOverheadMB * mib
		}
		if cfg.Export.ThroughputMBPerSecond > 0 {
			e.throughput = cfg.Export.ThroughputMBPerSecond * mib
		}
	}
	return e
}

// Estimate loads each campaign and projects the export. Lookup failures are
// returned as-is.
func (e *Estimator) Estimate(ctx context.Context, campaignIDs []string, format export.Format, options export.Options) (Estimate, error) {
	campaigns := make([]*rendersource.Campaign, 0, len(campaignIDs))
	for _, id := range campaignIDs {
		campaign, err := e.source.Campaign(ctx, id)
		if err != nil {
			return Estimate{}, err
		}
		campaigns = append(campaigns, campaign)
	}
	return e.EstimateCampaigns(campaigns, format, options), nil
}

// EstimateCampaigns projects already loaded campaigns.
func (e *Estimator) EstimateCampaigns(campaigns []*rendersource.Campaign, format export.Format, options export.Options) Estimate {
	ratio := CompressionRatio(format.Compression)
	var out Estimate
	for _, campaign := range campaigns {
		if campaign == nil {
			continue
		}
		var raw int64
		files := 0
		for _, output := range campaign.Outputs {
			if !format.AcceptsOutput(output.Format) {
				continue
			}
			raw += output.Size
			files++
		}
		size := int64(float64(raw) * ratio)
		if options.IncludeAssets {
			size += e.assetOverhead
			files++
		}
		if options.IncludeDocumentation {
			size += e.docOverhead
			files++
		}
		if options.CreateManifest {
			files++
		}
		out.PerCampaign = append(out.PerCampaign, Campaign{CampaignID: campaign.ID, Size: size, Files: files})
		out.TotalSize += size
		out.TotalFiles += files
	}
	if e.throughput > 0 {
		out.EstimatedDuration = time.Duration(float64(out.TotalSize) / float64(e.throughput) * float64(time.Second))
	}
	return out
}

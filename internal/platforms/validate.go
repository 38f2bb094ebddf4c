package platforms

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"shipyard/internal/naming"
	"shipyard/internal/rendersource"
	"shipyard/internal/services"
)

// Compatibility is the outcome of checking a campaign against a platform.
// Warnings never affect Compatible.
type Compatibility struct {
	Compatible bool     `json:"compatible"`
	Issues     []string `json:"issues,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Validate checks every output of the campaign against spec. Format and size
// checks both run for every output so the issue list is complete.
func Validate(campaign *rendersource.Campaign, spec Spec) Compatibility {
	var result Compatibility
	if campaign == nil {
		result.Issues = append(result.Issues, "campaign is missing")
		return result
	}
	if len(campaign.Outputs) == 0 {
		result.Issues = append(result.Issues, fmt.Sprintf("campaign %s has no outputs to deliver", campaign.ID))
	}
	for _, output := range campaign.Outputs {
		label := outputLabel(output)
		if !spec.Accepts(output.Format) {
			result.Issues = append(result.Issues, fmt.Sprintf(
				"output %s: format %q is not accepted by %s (allowed: %s)",
				label, normalizeFormat(output.Format), spec.Name, strings.Join(spec.AllowedFormats(), ", "),
			))
		}
		if spec.MaxFileSize > 0 && output.Size > spec.MaxFileSize {
			result.Issues = append(result.Issues, fmt.Sprintf(
				"output %s: size %s exceeds %s limit of %s",
				label, humanize.IBytes(uint64(output.Size)), spec.Name, humanize.IBytes(uint64(spec.MaxFileSize)),
			))
		}
		if warning := dimensionWarning(output, spec); warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
	}
	result.Compatible = len(result.Issues) == 0
	return result
}

// ValidateFiles checks produced file names against the platform naming rules.
func ValidateFiles(names []string, spec Spec) []string {
	var issues []string
	for _, name := range names {
		issues = append(issues, naming.Validate(name, spec.Naming)...)
	}
	return issues
}

func outputLabel(output rendersource.Output) string {
	if output.Name != "" {
		return output.Name
	}
	return output.ID
}

// dimensionWarning flags outputs whose aspect ratio matches none of the
// platform placements. Unknown dimensions are not reported.
func dimensionWarning(output rendersource.Output, spec Spec) string {
	if output.Width <= 0 || output.Height <= 0 || len(spec.Dimensions) == 0 {
		return ""
	}
	ratio := float64(output.Width) / float64(output.Height)
	for _, dim := range spec.Dimensions {
		if dim.Height == 0 {
			continue
		}
		if math.Abs(ratio-float64(dim.Width)/float64(dim.Height)) < 0.02 {
			return ""
		}
	}
	return fmt.Sprintf("output %s: %dx%d matches no %s placement", outputLabel(output), output.Width, output.Height, spec.Name)
}

// IncompatibleError carries the full issue list for an incompatible campaign.
type IncompatibleError struct {
	Platform   string
	CampaignID string
	Issues     []string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("campaign %s is not compatible with %s: %s", e.CampaignID, e.Platform, strings.Join(e.Issues, "; "))
}

func (e *IncompatibleError) Unwrap() error {
	return services.ErrIncompatible
}

// Err returns nil for compatible results and an *IncompatibleError otherwise.
func (c Compatibility) Err(platform, campaignID string) error {
	if c.Compatible {
		return nil
	}
	issues := make([]string, len(c.Issues))
	copy(issues, c.Issues)
	return &IncompatibleError{Platform: platform, CampaignID: campaignID, Issues: issues}
}

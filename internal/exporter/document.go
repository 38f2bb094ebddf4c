package exporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"shipyard/internal/export"
)

func (e *Exporter) writeDocumentation(r *run) {
	name := e.fileName(r, map[string]string{"name": "summary", "format": "md"})
	file, err := e.write(r, name, "", strings.NewReader(e.renderSummary(r)))
	if err != nil {
		r.fail(fmt.Errorf("documentation: %w", err))
		return
	}
	file.Type = export.FileDocument
	file.Format = "md"
	r.result.Files = append(r.result.Files, file)
}

func (e *Exporter) renderSummary(r *run) string {
	c := r.campaign
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", campaignLabel(c))
	if c.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", c.Description)
	}
	fmt.Fprintf(&b, "- Campaign ID: %s\n", c.ID)
	fmt.Fprintf(&b, "- Status: %s\n", c.Status)
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Created: %s\n", c.CreatedAt.UTC().Format(time.RFC3339))
	}
	if c.CompletedAt != nil {
		fmt.Fprintf(&b, "- Rendered: %s\n", c.CompletedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Exported: %s\n", r.started.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Version: %s\n", r.version)
	if len(c.Tags) > 0 {
		fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(c.Tags, ", "))
	}
	if r.job.Options.Watermark != "" {
		fmt.Fprintf(&b, "- Watermark: %s\n", r.job.Options.Watermark)
	}

	b.WriteString("\n## Outputs\n\n")
	b.WriteString("| Output | Format | Size | Dimensions | Duration |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, output := range c.Outputs {
		dims := "-"
		if output.Width > 0 && output.Height > 0 {
			dims = fmt.Sprintf("%dx%d", output.Width, output.Height)
		}
		duration := "-"
		if output.DurationSeconds > 0 {
			duration = (time.Duration(output.DurationSeconds * float64(time.Second))).Round(time.Second).String()
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			outputLabel(output), output.Format, humanize.IBytes(uint64(max(output.Size, 0))), dims, duration)
	}

	if len(r.result.Files) > 0 {
		b.WriteString("\n## Exported files\n\n")
		for _, file := range r.result.Files {
			fmt.Fprintf(&b, "- %s (%s, %s)\n", file.Name, file.Type, humanize.IBytes(uint64(file.Size)))
		}
	}

	stats := c.Stats
	if stats.Renderer != "" || stats.RenderSeconds > 0 || stats.Attempts > 0 {
		b.WriteString("\n## Render stats\n\n")
		if stats.Renderer != "" {
			fmt.Fprintf(&b, "- Renderer: %s\n", stats.Renderer)
		}
		if stats.RenderSeconds > 0 {
			fmt.Fprintf(&b, "- Render time: %s\n", time.Duration(stats.RenderSeconds*float64(time.Second)).Round(time.Second))
		}
		if stats.Attempts > 0 {
			fmt.Fprintf(&b, "- Attempts: %s\n", humanize.Comma(int64(stats.Attempts)))
		}
	}
	return b.String()
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"shipyard/internal/export"
	"shipyard/internal/workflow"
)

func buildJobListRows(jobs []*export.Job, now time.Time) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		size := job.Metadata.TotalSize
		if size == 0 {
			size = job.Metadata.EstimatedSize
		}
		rows = append(rows, []string{
			shortID(job.ID),
			job.Name,
			formatStatusLabel(string(job.Status)),
			fmt.Sprintf("%d%%", job.Progress),
			fmt.Sprintf("%d/%d", job.Accounted(), len(job.CampaignIDs)),
			humanize.IBytes(uint64(size)),
			humanize.RelTime(job.CreatedAt, now, "ago", "from now"),
		})
	}
	return rows
}

func buildStatusCountRows(stats map[export.Status]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range export.AllStatuses() {
		rows = append(rows, []string{formatStatusLabel(string(status)), fmt.Sprintf("%d", stats[status])})
	}
	return rows
}

func renderJobDetail(job *export.Job) string {
	var b strings.Builder
	pairs := [][2]string{
		{"ID", job.ID},
		{"Name", job.Name},
		{"Status", formatStatusLabel(string(job.Status))},
		{"Progress", fmt.Sprintf("%d%%", job.Progress)},
		{"Format", fmt.Sprintf("%s / %s / %s", job.Format.Type, job.Format.Packaging, job.Format.Compression)},
		{"Destination", string(job.Destination.Type)},
		{"Campaigns", fmt.Sprintf("%d ok, %d partial, %d failed of %d",
			job.Metadata.SucceededCampaigns, job.Metadata.PartialCampaigns, job.Metadata.FailedCampaigns, len(job.CampaignIDs))},
		{"Files", fmt.Sprintf("%d (%s)", job.Metadata.TotalFiles, humanize.IBytes(uint64(job.Metadata.TotalSize)))},
		{"Created", formatDisplayTime(job.CreatedAt)},
	}
	if job.CompletedAt != nil {
		pairs = append(pairs, [2]string{"Finished", formatDisplayTime(*job.CompletedAt)})
	}
	if job.Metadata.ArtifactPath != "" {
		pairs = append(pairs, [2]string{"Artifact", job.Metadata.ArtifactPath})
	}
	if job.Metadata.FinalizationError != "" {
		pairs = append(pairs, [2]string{"Delivery error", job.Metadata.FinalizationError})
	}
	b.WriteString(renderPairs(pairs))
	b.WriteString("\n")

	if len(job.Results) > 0 {
		rows := make([][]string, 0, len(job.Results))
		for _, result := range job.Results {
			rows = append(rows, []string{
				result.CampaignID,
				result.CampaignName,
				formatStatusLabel(string(result.Status)),
				fmt.Sprintf("%d", result.Metadata.FileCount),
				humanize.IBytes(uint64(result.Metadata.TotalSize)),
				result.Metadata.Version,
			})
		}
		b.WriteString(renderTable(
			[]string{"Campaign", "Name", "Result", "Files", "Size", "Version"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		))
		b.WriteString("\n")
	}
	for _, url := range job.Metadata.DeliveredURLs {
		fmt.Fprintf(&b, "Delivered: %s\n", url)
	}
	for _, message := range job.Errors {
		fmt.Fprintf(&b, "Error: %s\n", message)
	}
	return b.String()
}

func renderProgress(p *workflow.Progress) string {
	if p == nil {
		return "Job not found\n"
	}
	pairs := [][2]string{
		{"Job", p.JobID},
		{"Status", formatStatusLabel(string(p.Status))},
		{"Progress", fmt.Sprintf("%s %d%%", progressBar(p.Progress, 20), p.Progress)},
		{"Step", p.CurrentStep},
		{"Campaigns", fmt.Sprintf("%d/%d", p.CampaignsDone, p.CampaignsTotal)},
	}
	if p.EstimatedTimeRemaining != nil {
		pairs = append(pairs, [2]string{"Remaining", "~" + p.EstimatedTimeRemaining.Round(time.Second).String()})
	}
	return renderPairs(pairs) + "\n"
}

func progressBar(percent, width int) string {
	percent = max(0, min(100, percent))
	filled := percent * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	words := strings.Split(strings.ToLower(status), "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

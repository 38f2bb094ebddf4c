package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shipyard/internal/workflow"
)

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "estimate <campaign-id>...",
		Short: "Project export size, file count, and duration without creating a job",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager) error {
				est, err := mgr.Estimator().Estimate(cmd.Context(), args, flags.format(), flags.options())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, est)
				}

				rows := make([][]string, 0, len(est.PerCampaign))
				for _, campaign := range est.PerCampaign {
					rows = append(rows, []string{
						campaign.CampaignID,
						fmt.Sprintf("%d", campaign.Files),
						humanize.IBytes(uint64(campaign.Size)),
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"Campaign", "Files", "Size"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight},
				))
				fmt.Fprintf(out, "Total: %d files, %s, about %s\n",
					est.TotalFiles, humanize.IBytes(uint64(est.TotalSize)), est.EstimatedDuration.Round(time.Second))
				if cfg, err := ctx.ensureConfig(); err == nil && est.Exceeds(cfg.MaxExportSize()) {
					fmt.Fprintf(out, "Over the %s export limit; job creation would be refused\n", humanize.IBytes(uint64(cfg.MaxExportSize())))
				}
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the estimate as JSON")
	return cmd
}

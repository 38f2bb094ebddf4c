package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"shipyard/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		raw    bool
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log records, optionally for one job",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := cfg.LogPath()

			result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines})
			if err != nil {
				return err
			}
			printLogLines(out, result.Lines, filter, raw)
			if !follow {
				return nil
			}

			offset := result.Offset
			for {
				result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if err != nil {
					return err
				}
				printLogLines(out, result.Lines, filter, raw)
				offset = result.Offset
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new records until interrupted")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON records unformatted")
	cmd.Flags().StringVar(&filter.JobID, "job", "", "Only records for this job id or prefix")
	cmd.Flags().StringVar(&filter.CampaignID, "campaign", "", "Only records for this campaign")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level: debug, info, warn, or error")
	return cmd
}

func printLogLines(out io.Writer, lines []string, filter logs.Filter, raw bool) {
	for _, line := range lines {
		entry := logs.ParseEntry(line)
		if !filter.Matches(entry) {
			continue
		}
		if raw {
			fmt.Fprintln(out, entry.Raw)
			continue
		}
		fmt.Fprintln(out, entry.Format())
	}
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"shipyard/internal/config"
	"shipyard/internal/jobstore"
	"shipyard/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, job, and dependency health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobstore.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
				running, detail := daemonState(cfg)
				kind := statusWarn
				if running {
					kind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine("Worker", kind, detail, colorize))
				fmt.Fprintln(out, renderStatusLine("Job database", statusInfo, store.Path(), colorize))
				fmt.Fprintln(out)

				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderSectionHeader("Jobs", colorize))
				fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, buildStatusCountRows(stats),
					[]columnAlignment{alignLeft, alignRight}))
				fmt.Fprintln(out)

				fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
				for _, dep := range preflight.CheckSystemDeps(cfg) {
					kind := statusOK
					message := dep.Command
					if dep.Available {
						message = dep.Path
					} else {
						kind = statusWarn
						if dep.Blocking() {
							kind = statusError
						}
						message = dep.Detail
					}
					fmt.Fprintln(out, renderStatusLine(dep.Name, kind, message, colorize))
				}

				if skipChecks {
					return nil
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderSectionHeader("Checks", colorize))
				for _, result := range preflight.RunAll(cmd.Context(), cfg) {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip directory, delivery, and network checks")
	return cmd
}

// daemonState probes the daemon lock. A lock we can take means no daemon
// holds it.
func daemonState(cfg *config.Config) (bool, string) {
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Sprintf("lock check failed: %v", err)
	}
	if locked {
		_ = lock.Unlock()
		return false, "not running"
	}
	detail := "running"
	if pid := readPID(cfg.PIDPath()); pid != "" {
		detail = fmt.Sprintf("running (pid %s)", pid)
	}
	return true, detail
}

func readPID(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

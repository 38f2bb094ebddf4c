package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"shipyard/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or stop the export worker daemon",
	}

	var opts daemonrun.Options
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	runCmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override the configured log level")
	runCmd.Flags().BoolVar(&opts.Development, "dev", false, "Human-readable development logging")
	daemonCmd.AddCommand(runCmd)

	var wait time.Duration
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask a running daemon to shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if running, _ := daemonState(cfg); !running {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			raw := readPID(cfg.PIDPath())
			pid, err := strconv.Atoi(raw)
			if err != nil || pid <= 0 {
				return errors.New("daemon holds the lock but its pid file is missing")
			}
			if err := unix.Kill(pid, unix.SIGTERM); err != nil {
				return fmt.Errorf("signal daemon (pid %d): %w", pid, err)
			}

			deadline := time.Now().Add(wait)
			for time.Now().Before(deadline) {
				if running, _ := daemonState(cfg); !running {
					fmt.Fprintln(out, "Daemon stopped")
					return nil
				}
				time.Sleep(200 * time.Millisecond)
			}
			fmt.Fprintf(out, "Stop requested; daemon (pid %d) still shutting down\n", pid)
			return nil
		},
	}
	stopCmd.Flags().DurationVar(&wait, "wait", 15*time.Second, "How long to wait for the daemon to exit")
	daemonCmd.AddCommand(stopCmd)

	return daemonCmd
}

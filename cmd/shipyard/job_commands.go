package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shipyard/internal/config"
	"shipyard/internal/export"
	"shipyard/internal/jobstore"
	"shipyard/internal/workflow"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Create, inspect, and manage export jobs",
	}

	jobCmd.AddCommand(newJobCreateCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobStatusCommand(ctx))
	jobCmd.AddCommand(newJobProcessCommand(ctx))
	jobCmd.AddCommand(newJobCancelCommand(ctx))
	jobCmd.AddCommand(newJobRedeliverCommand(ctx))
	jobCmd.AddCommand(newJobPurgeCommand(ctx))

	return jobCmd
}

// jobFlags collects the request fields shared by job create and template create.
type jobFlags struct {
	formatType    string
	packaging     string
	compression   string
	quality       string
	naming        string
	assetKinds    []string
	outputFormats []string
	targetFormat  string
	platform      string

	destination string
	destConfig  map[string]string

	assets        bool
	docs          bool
	manifest      bool
	watermark     string
	versioning    string
	versionPrefix string
	notify        bool
	recipients    []string
	maxConcurrent int
	retries       int
	retryDelay    time.Duration
}

func (f *jobFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.formatType, "type", "", "Export type: render, bundle, or platform")
	flags.StringVar(&f.packaging, "packaging", "", "Packaging: zip, tar, folder, or individual")
	flags.StringVar(&f.compression, "compression", "", "Compression: none, lossless, lossy, or adaptive")
	flags.StringVar(&f.quality, "quality", "", "Quality profile: web, broadcast, or archive")
	flags.StringVar(&f.naming, "naming", "", "File naming pattern, e.g. {campaign}_{name}_{version}.{format}")
	flags.StringSliceVar(&f.assetKinds, "asset-kinds", nil, "Asset kinds to include (repeatable)")
	flags.StringSliceVar(&f.outputFormats, "formats", nil, "Only export outputs in these formats (repeatable)")
	flags.StringVar(&f.targetFormat, "target-format", "", "Convert outputs to this format")
	flags.StringVar(&f.platform, "platform", "", "Target platform id (see shipyard platforms list)")
	flags.StringVarP(&f.destination, "destination", "d", "", "Destination: download, storage, cloud, ftp, email, or platform_api")
	flags.StringToStringVar(&f.destConfig, "set", nil, "Destination setting key=value (repeatable)")
	flags.BoolVar(&f.assets, "assets", false, "Include campaign assets")
	flags.BoolVar(&f.docs, "docs", false, "Include campaign documentation")
	flags.BoolVar(&f.manifest, "manifest", false, "Write a manifest per campaign")
	flags.StringVar(&f.watermark, "watermark", "", "Watermark text burned into converted media")
	flags.StringVar(&f.versioning, "versioning", "", "Version labels: increment, timestamp, or hash")
	flags.StringVar(&f.versionPrefix, "version-prefix", "", "Prefix for generated version labels")
	flags.BoolVar(&f.notify, "notify", false, "Notify on completion and failure")
	flags.StringSliceVar(&f.recipients, "recipient", nil, "Notification recipient (repeatable)")
	flags.IntVar(&f.maxConcurrent, "max-concurrent", 0, "Campaigns exported in parallel (0 uses the configured default)")
	flags.IntVar(&f.retries, "retries", 0, "Retries per campaign (0 uses the configured default)")
	flags.DurationVar(&f.retryDelay, "retry-delay", 0, "Delay between retries (0 uses the configured default)")
}

func (f *jobFlags) format() export.Format {
	return export.Format{
		Type:               export.FormatType(strings.ToLower(f.formatType)),
		Packaging:          export.Packaging(strings.ToLower(f.packaging)),
		Compression:        export.Compression(strings.ToLower(f.compression)),
		QualityProfile:     f.quality,
		NamingPattern:      f.naming,
		IncludedAssetKinds: f.assetKinds,
		OutputFormats:      f.outputFormats,
		TargetFormat:       f.targetFormat,
		Platform:           f.platform,
	}
}

func (f *jobFlags) destinationValue() export.Destination {
	return export.Destination{
		Type:   export.DestinationType(strings.ToLower(f.destination)),
		Config: f.destConfig,
	}
}

func (f *jobFlags) options() export.Options {
	opts := export.Options{
		IncludeAssets:        f.assets,
		IncludeDocumentation: f.docs,
		CreateManifest:       f.manifest,
		Watermark:            f.watermark,
		Notifications: export.NotificationOptions{
			OnComplete: f.notify,
			OnError:    f.notify,
			Recipients: f.recipients,
		},
		Batch: export.BatchOptions{
			MaxConcurrent: f.maxConcurrent,
			RetryAttempts: f.retries,
			RetryDelay:    f.retryDelay,
		},
	}
	if f.versioning != "" {
		opts.Versioning = export.Versioning{
			Enabled:  true,
			Strategy: export.VersioningStrategy(strings.ToLower(f.versioning)),
			Prefix:   f.versionPrefix,
		}
	}
	return opts
}

func newJobCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		flags       jobFlags
		name        string
		description string
		template    string
		process     bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "create <campaign-id>...",
		Short: "Queue an export job for one or more campaigns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager) error {
				var (
					job *export.Job
					err error
				)
				if template != "" {
					job, err = mgr.CreateJobFromTemplate(cmd.Context(), template, args, currentUser(), name)
				} else {
					job, err = mgr.CreateJob(cmd.Context(), workflow.Request{
						Name:        name,
						Description: description,
						CreatedBy:   currentUser(),
						CampaignIDs: args,
						Format:      flags.format(),
						Destination: flags.destinationValue(),
						Options:     flags.options(),
					})
				}
				if err != nil {
					return err
				}
				if process {
					job, err = mgr.ProcessJob(cmd.Context(), job.ID)
					if err != nil {
						return err
					}
				}
				if asJSON {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created job %s (%s)\n", job.ID, job.Status)
				fmt.Fprintf(out, "  %d campaigns, estimated %s\n", len(job.CampaignIDs), humanize.IBytes(uint64(job.Metadata.EstimatedSize)))
				if job.Status.Terminal() {
					fmt.Fprint(out, renderJobDetail(job))
				}
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&name, "name", "n", "", "Job name (defaults to a timestamped name)")
	cmd.Flags().StringVar(&description, "description", "", "Job description")
	cmd.Flags().StringVarP(&template, "template", "t", "", "Create the job from a template id or name")
	cmd.Flags().BoolVar(&process, "process", false, "Process the job in the foreground instead of leaving it for the daemon")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the job as JSON")
	return cmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List export jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFilters)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *jobstore.Store) error {
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No export jobs")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Name", "Status", "Progress", "Campaigns", "Size", "Created"},
					buildJobListRows(jobs, time.Now()),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output jobs as JSON")
	return cmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job with its per-campaign results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *jobstore.Store) error {
				job, err := resolveJob(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, job)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderJobDetail(job))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the job as JSON")
	return cmd
}

func newJobStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show job progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager) error {
				id, err := resolveJobIDWith(cmd.Context(), mgr, args[0])
				if err != nil {
					return err
				}
				progress, err := mgr.Progress(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, progress)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderProgress(progress))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output progress as JSON")
	return cmd
}

func newJobProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <job-id>",
		Short: "Process a queued job in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager) error {
				id, err := resolveJobIDWith(cmd.Context(), mgr, args[0])
				if err != nil {
					return err
				}
				job, err := mgr.ProcessJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderJobDetail(job))
				return nil
			})
		},
	}
}

func newJobCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>...",
		Short: "Cancel queued or processing jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager) error {
				out := cmd.OutOrStdout()
				var errs []error
				for _, arg := range args {
					id, err := resolveJobIDWith(cmd.Context(), mgr, arg)
					if err == nil {
						err = mgr.CancelJob(cmd.Context(), id)
					}
					if err != nil {
						fmt.Fprintf(out, "%s: %v\n", arg, err)
						errs = append(errs, err)
						continue
					}
					fmt.Fprintf(out, "Cancelled job %s\n", id)
				}
				if len(errs) > 0 {
					return fmt.Errorf("%d of %d jobs not cancelled", len(errs), len(args))
				}
				return nil
			})
		},
	}
}

func newJobRedeliverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "redeliver <job-id>",
		Short: "Repeat packaging and delivery for a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager) error {
				id, err := resolveJobIDWith(cmd.Context(), mgr, args[0])
				if err != nil {
					return err
				}
				job, err := mgr.Redeliver(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Redelivered job %s\n", job.ID)
				for _, url := range job.Metadata.DeliveredURLs {
					fmt.Fprintf(out, "  %s\n", url)
				}
				return nil
			})
		},
	}
}

func newJobPurgeCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete finished jobs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return errors.New("--older-than must not be negative")
			}
			return ctx.withStore(func(cfg *config.Config, store *jobstore.Store) error {
				cutoff := time.Now().Add(-olderThan)
				removed, err := store.PurgeTerminal(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d finished jobs completed before %s\n", removed, cutoff.UTC().Format("2006-01-02 15:04"))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Only purge jobs that finished longer ago than this")
	return cmd
}

func parseStatuses(values []string) ([]export.Status, error) {
	statuses := make([]export.Status, 0, len(values))
	for _, value := range values {
		status, ok := export.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// resolveJob accepts a full job id or a unique prefix of one.
func resolveJob(ctx context.Context, store *jobstore.Store, arg string) (*export.Job, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, errors.New("job id is required")
	}
	job, err := store.Get(ctx, arg)
	if err != nil || job != nil {
		return job, err
	}
	jobs, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	id, err := matchPrefix(arg, jobIDs(jobs))
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, id)
}

func resolveJobIDWith(ctx context.Context, mgr *workflow.Manager, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("job id is required")
	}
	if _, err := mgr.GetJob(ctx, arg); err == nil {
		return arg, nil
	}
	jobs, err := mgr.ListJobs(ctx)
	if err != nil {
		return "", err
	}
	return matchPrefix(arg, jobIDs(jobs))
}

func jobIDs(jobs []*export.Job) []string {
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	return ids
}

func matchPrefix(prefix string, ids []string) (string, error) {
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("job %s not found", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("job id %s is ambiguous (%d matches)", prefix, len(matches))
	}
}

func currentUser() string {
	if user := strings.TrimSpace(os.Getenv("USER")); user != "" {
		return user
	}
	return "cli"
}

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shipyard/internal/export"
	"shipyard/internal/workflow"
)

func newTemplateCommand(ctx *commandContext) *cobra.Command {
	templateCmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates"},
		Short:   "Manage reusable export presets",
	}

	templateCmd.AddCommand(newTemplateCreateCommand(ctx))
	templateCmd.AddCommand(newTemplateListCommand(ctx))
	templateCmd.AddCommand(newTemplateShowCommand(ctx))
	templateCmd.AddCommand(newTemplateDeleteCommand(ctx))

	return templateCmd
}

func newTemplateCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		flags       jobFlags
		description string
		category    string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Save export settings as a named template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager) error {
				tmpl, err := mgr.CreateTemplate(cmd.Context(), export.Template{
					Name:        args[0],
					Description: description,
					Category:    category,
					Format:      flags.format(),
					Destination: flags.destinationValue(),
					Options:     flags.options(),
					CreatedBy:   currentUser(),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created template %s (%s)\n", tmpl.Name, tmpl.ID)
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&description, "description", "", "Template description")
	cmd.Flags().StringVar(&category, "category", "", "Category used to group templates")
	return cmd
}

func newTemplateListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager) error {
				templates, err := mgr.ListTemplates(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, templates)
				}
				if len(templates) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No templates")
					return nil
				}
				now := time.Now()
				rows := make([][]string, 0, len(templates))
				for _, tmpl := range templates {
					rows = append(rows, []string{
						tmpl.Name,
						tmpl.Category,
						string(tmpl.Format.Type),
						string(tmpl.Destination.Type),
						fmt.Sprintf("%d", tmpl.UsageCount),
						humanize.RelTime(tmpl.CreatedAt, now, "ago", "from now"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Name", "Category", "Type", "Destination", "Used", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output templates as JSON")
	return cmd
}

func newTemplateShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id-or-name>",
		Short: "Show a template as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager) error {
				tmpl, err := mgr.GetTemplate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, tmpl)
			})
		},
	}
}

func newTemplateDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager) error {
				tmpl, err := mgr.GetTemplate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := mgr.DeleteTemplate(cmd.Context(), tmpl.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %s\n", tmpl.Name)
				return nil
			})
		},
	}
}

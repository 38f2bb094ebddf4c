package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shipyard/internal/platforms"
)

// The platform catalogue is static, so these commands never load config.
func newPlatformsCommand(_ *commandContext) *cobra.Command {
	platformsCmd := &cobra.Command{
		Use:         "platforms",
		Aliases:     []string{"platform"},
		Short:       "Inspect supported delivery platforms",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	platformsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List platform ids and their accepted formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := platforms.NewRegistry().List()
			rows := make([][]string, 0, len(specs))
			for _, spec := range specs {
				rows = append(rows, []string{
					spec.ID,
					spec.Name,
					strings.Join(spec.AllowedFormats(), ", "),
					humanize.IBytes(uint64(spec.MaxFileSize)),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Formats", "Max file"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	})

	var asJSON bool
	show := &cobra.Command{
		Use:   "show <platform-id>",
		Short: "Show dimensions, naming rules, and quality targets for a platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, ok := platforms.NewRegistry().Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown platform %q", args[0])
			}
			if asJSON {
				return writeJSON(cmd, spec)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderPlatform(spec))
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "Output the platform spec as JSON")
	platformsCmd.AddCommand(show)

	return platformsCmd
}

func renderPlatform(spec platforms.Spec) string {
	var b strings.Builder
	b.WriteString(renderPairs([][2]string{
		{"Platform", fmt.Sprintf("%s (%s)", spec.Name, spec.ID)},
		{"Images", strings.Join(spec.ImageFormats, ", ")},
		{"Video", strings.Join(spec.VideoFormats, ", ")},
		{"Max file", humanize.IBytes(uint64(spec.MaxFileSize))},
		{"Naming", fmt.Sprintf("%s (max %d chars)", spec.Naming.Pattern, spec.Naming.MaxLength)},
		{"Quality", fmt.Sprintf("%d, %s, %s", spec.Quality.Target, spec.Quality.Compression, spec.Quality.ColorSpace)},
	}))
	b.WriteString("\n")

	rows := make([][]string, 0, len(spec.Dimensions))
	for _, dim := range spec.Dimensions {
		rows = append(rows, []string{
			dim.Purpose,
			fmt.Sprintf("%dx%d", dim.Width, dim.Height),
			dim.AspectRatio,
		})
	}
	b.WriteString(renderTable([]string{"Placement", "Size", "Aspect"}, rows, nil))
	b.WriteString("\n")
	return b.String()
}

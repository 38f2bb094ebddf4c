package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON prints v as indented JSON. URLs in delivered links stay
// readable because HTML escaping is off.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// Preset is a named query shipped with qparser.
type Preset struct {
	Label string
	Query string
}

// Presets are the built-in dork groups.
var Presets = []Preset{
	{Label: "Admin Logs", Query: `intitle:"index of" "admin.log"`},
	{Label: "Cloud Storage", Query: `site:s3.amazonaws.com inurl:config`},
	{Label: "DB Backups", Query: `filetype:sql "dump" password`},
	{Label: "Web Panels", Query: `intitle:"control panel" inurl:cp`},
}

// lookupPresets matches a label case-insensitively; "all" selects every preset.
func lookupPresets(name string) ([]Preset, bool) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "all") {
		return Presets, true
	}
	for _, p := range Presets {
		if strings.EqualFold(p.Label, name) {
			return []Preset{p}, true
		}
	}
	return nil, false
}

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List built-in query presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "LABEL\tQUERY")
			for _, p := range Presets {
				fmt.Fprintf(tw, "%s\t%s\n", p.Label, p.Query)
			}
			return tw.Flush()
		},
	}
}

package cli

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newPatternsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List detection rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Key", "Label", "Kind", "Enabled", "Description"})
			table.SetAutoWrapText(false)
			table.SetBorder(false)

			for _, p := range a.engine.ListPatterns() {
				kind := "custom"
				if p.Builtin {
					kind = "builtin"
				}
				table.Append([]string{p.Key, p.Label, kind, strconv.FormatBool(p.Enabled), p.Description})
			}
			table.Render()
			return nil
		},
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/raaihank/mask-sentinel/internal/privacy"
	"github.com/spf13/cobra"
)

func newRestoreCmd(a *app) *cobra.Command {
	var mappingPath string

	cmd := &cobra.Command{
		Use:   "restore [file]",
		Short: "Restore placeholders from a saved mapping table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(mappingPath)
			if err != nil {
				return fmt.Errorf("failed to read mapping table: %w", err)
			}
			var mapping privacy.MappingTable
			if err := json.Unmarshal(data, &mapping); err != nil {
				return err
			}

			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), a.engine.Restore(text, &mapping))
			return nil
		},
	}

	cmd.Flags().StringVar(&mappingPath, "mapping", "", "Mapping table JSON written by mask --mapping-out")
	cmd.MarkFlagRequired("mapping")
	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newMaskCmd(a *app) *cobra.Command {
	var (
		mappingOut string
		rules      []string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "mask [file]",
		Short: "Mask personal data in a file or stdin",
		Long: `Mask personal data and print the masked text.

The mapping table needed to restore the text is written with --mapping-out.
Without it the placeholders cannot be reversed later.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.checkRules(rules); err != nil {
				return err
			}
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			result := a.engine.Mask(text, rules...)
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				if err := enc.Encode(struct {
					MaskedText string      `json:"masked_text"`
					Detections interface{} `json:"detections"`
					Mapping    interface{} `json:"mapping_table"`
					Summary    interface{} `json:"summary"`
				}{result.MaskedText, result.Detections, result.Mapping, a.engine.Summarize(result.Detections)}); err != nil {
					return err
				}
			} else {
				fmt.Fprint(out, result.MaskedText)
			}

			if mappingOut != "" {
				data, err := json.MarshalIndent(result.Mapping, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode mapping table: %w", err)
				}
				if err := os.WriteFile(mappingOut, append(data, '\n'), 0o600); err != nil {
					return fmt.Errorf("failed to write mapping table: %w", err)
				}
			}

			if a.verbose {
				a.log.LogDetectionCounts("Masking summary", a.engine.Summarize(result.Detections).Counts())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mappingOut, "mapping-out", "", "Write the mapping table to this JSON file")
	cmd.Flags().StringSliceVar(&rules, "rules", nil, "Only apply these rule keys (default: enabled rules)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

// readInput reads the named file, or stdin when no file is given.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

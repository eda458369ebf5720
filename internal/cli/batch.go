package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raaihank/mask-sentinel/internal/batch"
	"github.com/raaihank/mask-sentinel/internal/stats"
	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		input     string
		output    string
		rules     []string
		workers   int
		batchSize int
		record    bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Mask a CSV, JSON lines or Parquet dataset",
		Long: `Mask every record of a dataset and write JSON lines of
{id, masked_text, mapping_table, summary}.

CSV input needs a header with a "text" column and may have an "id" column.
JSON lines input uses {"id": ..., "text": ...} objects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.checkRules(rules); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var out io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			cfg := batch.Config{
				BatchSize:      a.cfg.Batch.BatchSize,
				Workers:        a.cfg.Batch.Workers,
				MaxTextBytes:   a.cfg.Batch.MaxTextBytes,
				ProgressReport: a.cfg.Batch.ProgressReport,
				Rules:          rules,
			}
			if workers > 0 {
				cfg.Workers = workers
			}
			if batchSize > 0 {
				cfg.BatchSize = batchSize
			}

			var recorder stats.Recorder
			if record {
				r, err := stats.New(a.cfg.Stats, a.log)
				if err != nil {
					return err
				}
				defer r.Close()
				recorder = r
			}

			result, err := batch.NewPipeline(a.engine, recorder, cfg, a.log).ProcessFile(ctx, input, out)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "masked %d of %d records (%d skipped), %d detections in %s\n",
				result.Masked, result.TotalRecords, result.Skipped, result.Detections, result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Input dataset (.csv, .jsonl or .parquet)")
	cmd.Flags().StringVar(&output, "output", "", "Output JSON lines file (default: stdout)")
	cmd.Flags().StringSliceVar(&rules, "rules", nil, "Only apply these rule keys")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker goroutines (default from config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records per batch (default from config)")
	cmd.Flags().BoolVar(&record, "record-stats", false, "Add detection counts to the configured stats store")
	cmd.MarkFlagRequired("input")
	return cmd
}

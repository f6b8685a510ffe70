package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"miniisp/pkg/batch"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		method     string
		ratio      float64
		workers    int
		extensions []string
	)
	cmd := &cobra.Command{
		Use:   "batch <input-dir> <output-dir>",
		Short: "White-balance every decoded image in a directory",
		Long: `Batch applies white balance to each matching image of input-dir and writes
it under the same name to output-dir. Images that fail are reported and the
command exits with an error once the rest are done.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			cfg := *a.cfg
			if fs.Changed("method") {
				cfg.Batch.Method = method
			}
			if fs.Changed("ratio") {
				cfg.Batch.Ratio = ratio
			}
			if fs.Changed("workers") {
				cfg.Workers = workers
			}
			if fs.Changed("ext") {
				cfg.Batch.Extensions = extensions
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			wb, err := cfg.BatchWhiteBalance()
			if err != nil {
				return err
			}

			start := time.Now()
			report, err := batch.Run(cmd.Context(), batch.Options{
				InputDir:     args[0],
				OutputDir:    args[1],
				WhiteBalance: wb,
				Extensions:   cfg.Batch.Extensions,
				Workers:      cfg.Workers,
				Logger:       &a.log,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w)
			fmt.Fprintf(w, "=== Batch Results (%.1fs) ===\n", time.Since(start).Seconds())
			fmt.Fprintf(w, "  Run:            %s\n", report.RunID)
			fmt.Fprintf(w, "  White balance:  %s\n", wb.Method)
			fmt.Fprintf(w, "  Processed:      %d\n", len(report.Processed))
			fmt.Fprintf(w, "  Failed:         %d\n", len(report.Failed))
			for _, f := range report.Failed {
				fmt.Fprintf(w, "    %-24s %s\n", f.File, f.Kind)
			}
			fmt.Fprintln(w, "==============================")

			if len(report.Failed) > 0 {
				return fmt.Errorf("%d of %d images failed", len(report.Failed), len(report.Failed)+len(report.Processed))
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&method, "method", "", "white balance: perfect-reflector or grey-world")
	fs.Float64Var(&ratio, "ratio", 0, "fraction of brightest pixels for perfect-reflector (default 0.05)")
	fs.IntVar(&workers, "workers", 0, "images processed concurrently (default one per CPU)")
	fs.StringSliceVar(&extensions, "ext", nil, "file extensions to pick up (default .jpg,.png)")
	return cmd
}

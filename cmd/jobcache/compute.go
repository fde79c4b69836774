package main

import (
	"fmt"
	"github.com/RezaEskandarii/jobcache/internal/artifact"
	"github.com/RezaEskandarii/jobcache/internal/kernel"
	"github.com/spf13/cobra"
	"strconv"
	"time"
)

func newComputeCmd(flags *rootFlags) *cobra.Command {
	var pdf bool

	cmd := &cobra.Command{
		Use:   "compute <n>",
		Short: "Compute Fibonacci(n) locally, without the scheduler or the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.appConfig(cmd)
			if err != nil {
				return err
			}

			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("n must be a non-negative integer, got %q", args[0])
			}
			if n > cfg.MaxInput {
				return fmt.Errorf("n must be less than or equal to %d", cfg.MaxInput)
			}

			started := time.Now()
			result, err := kernel.New().Compute(cmd.Context(), n)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)

			if pdf {
				renderer, err := artifact.NewPDFRenderer(cfg.ArtifactDir, cfg.EntryTTL)
				if err != nil {
					return err
				}
				// the file outlives this process; removal is only scheduled by the server
				defer renderer.Close()

				path, err := renderer.Render(cmd.Context(), fmt.Sprintf("cli-%d", n), n, result)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "pdf:", path)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d digits in %s\n", len(result), time.Since(started).Round(time.Microsecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&pdf, "pdf", false, "also render the result as a PDF into --results-dir")
	return cmd
}

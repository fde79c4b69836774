package main

import (
	"github.com/RezaEskandarii/jobcache/jobmanager"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"syscall"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.appConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return jobmanager.Run(ctx, cfg)
		},
	}
}

package main

import (
	"errors"
	"fmt"
	"github.com/RezaEskandarii/jobcache/internal/message_broker"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"syscall"
)

func newEventsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print job events published by a server with --rabbitmq-url",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.appConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.UseEventPublisher {
				return errors.New("--rabbitmq-url is required")
			}

			broker, err := message_broker.NewRabbitMQ(
				cfg.RabbitMQConfig.URL,
				cfg.RabbitMQConfig.Exchange,
				cfg.RabbitMQConfig.Queue,
				cfg.RabbitMQConfig.RoutingKey,
			)
			if err != nil {
				return err
			}
			defer broker.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			messages, err := broker.Consume(ctx)
			if err != nil {
				return err
			}
			for msg := range messages {
				fmt.Fprintln(cmd.OutOrStdout(), string(msg))
			}
			return nil
		},
	}
}

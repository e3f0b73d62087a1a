package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"projectflow/internal/app"
)

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay outbox events",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "replay [event-id]",
		Short: "Republish a single outbox event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid event id %q", args[0])
			}
			return withApp(func(a *app.App) error {
				if err := a.Replay.ReplayEvent(cmd.Context(), eventID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "event %d replayed\n", eventID)
				return nil
			})
		},
	})

	failed := &cobra.Command{
		Use:   "replay-failed",
		Short: "Republish events that exhausted their retries",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(func(a *app.App) error {
				n, err := a.Replay.ReplayFailedEvents(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d events replayed\n", n)
				return nil
			})
		},
	}
	failed.Flags().IntP("limit", "n", 100, "Maximum events to replay")
	cmd.AddCommand(failed)

	return cmd
}

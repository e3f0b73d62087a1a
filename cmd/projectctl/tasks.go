package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"projectflow/internal/app"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task maintenance",
	}

	overdue := &cobra.Command{
		Use:   "mark-overdue",
		Short: "Flag tasks whose end date has passed and notify their assignees",
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, _ := cmd.Flags().GetString("as-of")
			batch, _ := cmd.Flags().GetInt("batch")

			now := time.Now()
			if asOf != "" {
				t, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of %q, expected YYYY-MM-DD", asOf)
				}
				now = t
			}

			return withApp(func(a *app.App) error {
				n, err := a.Overdue.WithBatchSize(batch).Run(cmd.Context(), now)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d tasks marked overdue\n", n)
				return nil
			})
		},
	}
	overdue.Flags().String("as-of", "", "Reference date (YYYY-MM-DD), defaults to today")
	overdue.Flags().Int("batch", 500, "Maximum tasks flagged in one run")
	cmd.AddCommand(overdue)

	return cmd
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"projectflow/internal/app"
)

func orgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Organization membership",
	}

	remove := &cobra.Command{
		Use:   "remove-member [member-id]",
		Short: "Remove a member from the owner's organization and unassign their open tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid member id %q", args[0])
			}
			ownerID, _ := cmd.Flags().GetInt64("owner")

			return withApp(func(a *app.App) error {
				res, err := a.Organizations.RemoveMemberFromOrganization(cmd.Context(), ownerID, memberID)
				if err != nil {
					return err
				}
				if !res.Success {
					return fmt.Errorf("%s", res.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				return nil
			})
		},
	}
	remove.Flags().Int64("owner", 0, "Organization owner id")
	_ = remove.MarkFlagRequired("owner")
	cmd.AddCommand(remove)

	return cmd
}

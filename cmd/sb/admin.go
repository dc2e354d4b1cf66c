package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/admin"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage desk administrators",
		Long:  "Grants and revokes administrator rights on behalf of the desk owner.",
	}

	cmd.AddCommand(newAdminGrantCmd())
	cmd.AddCommand(newAdminRevokeCmd())
	cmd.AddCommand(newAdminListCmd())
	return cmd
}

func newAdminGrantCmd() *cobra.Command {
	var flags deskFlags

	cmd := &cobra.Command{
		Use:   "grant <user-id> [username]",
		Short: "Make a user an administrator",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := ""
			if len(args) > 1 {
				username = args[1]
			}
			return runAdminGrant(cmd, flags, args[0], username)
		},
	}

	flags.register(cmd)
	return cmd
}

func runAdminGrant(cmd *cobra.Command, flags deskFlags, id, username string) error {
	gate, ref, err := openGate(flags)
	if err != nil {
		return err
	}
	if err := gate.Grant(gate.Owner(), id, username); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Desk %s: %s is now an admin\n", ref, id)
	return nil
}

func newAdminRevokeCmd() *cobra.Command {
	var flags deskFlags

	cmd := &cobra.Command{
		Use:   "revoke <user-id>",
		Short: "Remove a user's administrator rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminRevoke(cmd, flags, args[0])
		},
	}

	flags.register(cmd)
	return cmd
}

func runAdminRevoke(cmd *cobra.Command, flags deskFlags, id string) error {
	gate, ref, err := openGate(flags)
	if err != nil {
		return err
	}
	if err := gate.Revoke(gate.Owner(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Desk %s: %s is no longer an admin\n", ref, id)
	return nil
}

func newAdminListCmd() *cobra.Command {
	var flags deskFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List administrators",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList(cmd, flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runAdminList(cmd *cobra.Command, flags deskFlags) error {
	gate, ref, err := openGate(flags)
	if err != nil {
		return err
	}
	grants, err := gate.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Desk %s owner: %s\n", ref, gate.Owner())
	if len(grants) == 0 {
		fmt.Fprintln(out, "No additional admins.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER ID\tUSERNAME\tADDED BY\tADDED AT")
	for _, g := range grants {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.OperatorID, g.Username, g.AddedBy, g.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func openGate(flags deskFlags) (*admin.Gate, string, error) {
	_, d, gormDB, err := flags.open()
	if err != nil {
		return nil, "", err
	}
	gate, err := admin.NewGate(gormDB, d.Owner)
	if err != nil {
		return nil, "", err
	}
	return gate, d.Reference, nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	var (
		flags deskFlags
		port  int
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the read-only HTTP dashboard for a desk",
		Long: `Serves queue stats, active lines and the unclaimed queue as JSON and CSV.
When dashboard.token is set, /api requests need "Authorization: Bearer <token>".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, flags, port)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	return cmd
}

func runDashboard(cmd *cobra.Command, flags deskFlags, port int) error {
	cfg, d, gormDB, err := flags.open()
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Dashboard.Port
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:        gormDB,
		Reference: d.Reference,
		Port:      port,
		Token:     cfg.Dashboard.Token,
		Out:       cmd.OutOrStdout(),
	})
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/queue"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"q"},
		Short:   "Manage a desk's line queue",
	}

	cmd.AddCommand(newQueueImportCmd())
	cmd.AddCommand(newQueueStatsCmd())
	cmd.AddCommand(newQueueResetCmd())
	cmd.AddCommand(newQueueClearCmd())
	return cmd
}

func newQueueImportCmd() *cobra.Command {
	var flags deskFlags

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import lines from a CSV file",
		Long: `Appends lines to the queue in file order. Columns are
number,name,address,email; only number is required and a header row is
skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueImport(cmd, flags, args[0])
		},
	}

	flags.register(cmd)
	return cmd
}

func runQueueImport(cmd *cobra.Command, flags deskFlags, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := queue.ReadCSV(f)
	if err != nil {
		return err
	}

	_, d, gormDB, err := flags.open()
	if err != nil {
		return err
	}
	n, err := queue.Import(gormDB, records)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Desk %s: imported %d line(s) from %s\n", d.Reference, n, path)
	return nil
}

func newQueueStatsCmd() *cobra.Command {
	var flags deskFlags

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueStats(cmd, flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runQueueStats(cmd *cobra.Command, flags deskFlags) error {
	_, d, gormDB, err := flags.open()
	if err != nil {
		return err
	}
	stats, err := queue.GetStats(gormDB)
	if err != nil {
		return err
	}
	status, err := queue.DeskStatus(gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Desk %s (%s)\n", d.Reference, status)
	fmt.Fprintf(out, "  %-18s %d\n", "Total:", stats.Total())
	fmt.Fprintf(out, "  %-18s %d\n", "Remaining:", stats.Remaining)
	fmt.Fprintf(out, "  %-18s %d\n", "Used:", stats.Used)
	fmt.Fprintf(out, "  %-18s %d\n", "Active:", stats.Active)
	fmt.Fprintf(out, "  %-18s %d\n", "Completed:", stats.Completed)
	fmt.Fprintf(out, "  %-18s %d\n", "No answer:", stats.NoAnswer)
	fmt.Fprintf(out, "  %-18s %d\n", "Pending requests:", stats.PendingRequests)
	return nil
}

func newQueueResetCmd() *cobra.Command {
	var (
		flags deskFlags
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Return every incomplete line to the pool",
		Long:  "Clears the claim on every line that has not been completed so it can be handed out again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueReset(cmd, flags, yes)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runQueueReset(cmd *cobra.Command, flags deskFlags, yes bool) error {
	_, d, gormDB, err := flags.open()
	if err != nil {
		return err
	}
	ok, err := confirm(cmd, fmt.Sprintf("resetting every claim on desk %s", d.Reference), yes)
	if err != nil || !ok {
		return err
	}
	n, err := queue.Reset(gormDB)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Desk %s: %d line(s) returned to the pool\n", d.Reference, n)
	return nil
}

func newQueueClearCmd() *cobra.Command {
	var (
		flags deskFlags
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every line and line request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueClear(cmd, flags, yes)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runQueueClear(cmd *cobra.Command, flags deskFlags, yes bool) error {
	_, d, gormDB, err := flags.open()
	if err != nil {
		return err
	}
	ok, err := confirm(cmd, fmt.Sprintf("clearing every line on desk %s", d.Reference), yes)
	if err != nil || !ok {
		return err
	}
	n, err := queue.Clear(gormDB)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Desk %s: %d line(s) deleted\n", d.Reference, n)
	return nil
}

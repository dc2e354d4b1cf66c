package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/archive"
	"gorm.io/gorm"
)

// exportKind describes one export: how to read (and possibly purge) its
// rows and whether it destroys data.
type exportKind struct {
	name        string
	short       string
	destructive bool
	run         func(*gorm.DB) (archive.Table, int64, error)
}

var exportKinds = []exportKind{
	{
		name:        "completed",
		short:       "Export and delete completed lines",
		destructive: true,
		run: func(gdb *gorm.DB) (archive.Table, int64, error) {
			items, n, err := archive.ExportCompleted(gdb)
			return archive.CompletedTable(items), n, err
		},
	},
	{
		name:  "unclaimed",
		short: "Export lines still in the queue (nothing is deleted)",
		run: func(gdb *gorm.DB) (archive.Table, int64, error) {
			items, err := archive.ExportUnclaimed(gdb)
			return archive.UnclaimedTable(items), int64(len(items)), err
		},
	},
	{
		name:        "no-answer",
		short:       "Export and delete the no-answer log",
		destructive: true,
		run: func(gdb *gorm.DB) (archive.Table, int64, error) {
			recs, n, err := archive.ExportNoAnswerLog(gdb)
			return archive.NoAnswerTable(recs), n, err
		},
	},
	{
		name:        "all",
		short:       "Export and delete every line, active ones included",
		destructive: true,
		run: func(gdb *gorm.DB) (archive.Table, int64, error) {
			items, n, err := archive.ExportAll(gdb)
			return archive.AllTable(items), n, err
		},
	},
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export desk data to CSV",
	}
	for _, kind := range exportKinds {
		cmd.AddCommand(newExportKindCmd(kind))
	}
	return cmd
}

func newExportKindCmd(kind exportKind) *cobra.Command {
	var (
		flags  deskFlags
		outDir string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   kind.name,
		Short: kind.short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, kind, flags, outDir, yes)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write the CSV file into")
	if kind.destructive {
		cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	}
	return cmd
}

func runExport(cmd *cobra.Command, kind exportKind, flags deskFlags, outDir string, yes bool) error {
	out := cmd.OutOrStdout()

	_, d, gormDB, err := flags.open()
	if err != nil {
		return err
	}
	if kind.destructive {
		ok, err := confirm(cmd, fmt.Sprintf("exporting %s deletes the exported rows from desk %s", kind.name, d.Reference), yes)
		if err != nil || !ok {
			return err
		}
	}

	// The file is created before anything is purged so a bad --out fails
	// without losing rows.
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}
	tmp, err := os.CreateTemp(outDir, ".export-*.csv")
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	tb, n, err := kind.run(gormDB)
	if err != nil {
		return err
	}
	if len(tb.Rows) == 0 {
		fmt.Fprintf(out, "Desk %s: nothing to export\n", d.Reference)
		return nil
	}

	if err := archive.WriteCSV(tmp, tb); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	path := filepath.Join(outDir, tb.Filename(time.Now()))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	if kind.destructive {
		fmt.Fprintf(out, "Desk %s: exported %d row(s) to %s and deleted %d\n", d.Reference, len(tb.Rows), path, n)
	} else {
		fmt.Fprintf(out, "Desk %s: exported %d row(s) to %s\n", d.Reference, len(tb.Rows), path)
	}
	return nil
}

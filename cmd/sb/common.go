package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"golang.org/x/term"
	"gorm.io/gorm"
)

const defaultConfigPath = "switchboard.yaml"

// deskFlags are the flags shared by every command that works on one desk.
type deskFlags struct {
	configPath string
	reference  string
}

func (f *deskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVarP(&f.reference, "desk", "d", "", "desk reference (optional when only one desk is configured)")
}

// open loads the config and connects to the selected desk's database.
func (f *deskFlags) open() (*config.Config, *config.DeskConfig, *gorm.DB, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	d, err := selectDesk(cfg, f.reference)
	if err != nil {
		return nil, nil, nil, err
	}
	gormDB, err := db.Connect(cfg.Database, d.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to %s: %w", d.Database, err)
	}
	return cfg, d, gormDB, nil
}

// selectDesk returns the named desk, or the only desk when ref is empty.
func selectDesk(cfg *config.Config, ref string) (*config.DeskConfig, error) {
	if ref != "" {
		return cfg.Desk(ref)
	}
	if len(cfg.Desks) != 1 {
		return nil, fmt.Errorf("%d desks configured, choose one with --desk", len(cfg.Desks))
	}
	return &cfg.Desks[0], nil
}

// selectDesks returns every desk when ref is empty, otherwise just the
// named one.
func selectDesks(cfg *config.Config, ref string) ([]config.DeskConfig, error) {
	if ref == "" {
		return cfg.Desks, nil
	}
	d, err := cfg.Desk(ref)
	if err != nil {
		return nil, err
	}
	return []config.DeskConfig{*d}, nil
}

// isTerminal reports whether r is an interactive terminal. Tests override it.
var isTerminal = func(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// confirm asks the user to type "yes" before a destructive action. With
// --yes the prompt is skipped; without a terminal to ask on, the action is
// refused.
func confirm(cmd *cobra.Command, action string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	in := cmd.InOrStdin()
	if !isTerminal(in) {
		return false, fmt.Errorf("%s needs confirmation: rerun with --yes", action)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "WARNING: %s cannot be undone.\n", action)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() && strings.TrimSpace(scanner.Text()) == "yes" {
		return true, nil
	}
	fmt.Fprintln(out, "Aborted.")
	return false, nil
}

// syncWriter serializes writes from several desks onto one output.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

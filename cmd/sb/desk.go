package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/desk"
	discordadapter "github.com/zulandar/switchboard/internal/desk/discord"
	slackadapter "github.com/zulandar/switchboard/internal/desk/slack"
	"golang.org/x/sync/errgroup"
)

func newDeskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "desk",
		Short: "Run operator desks",
	}

	cmd.AddCommand(newDeskStartCmd())
	return cmd
}

func newDeskStartCmd() *cobra.Command {
	var flags deskFlags

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start desk bots",
		Long: `Connects each desk to its chat platform and serves operators until
interrupted. Without --desk every configured desk runs in this process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeskStart(cmd, flags)
		},
	}

	flags.register(cmd)
	return cmd
}

// adapterFor builds a platform adapter for a desk. Tests override it.
var adapterFor = createAdapter

func runDeskStart(cmd *cobra.Command, flags deskFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	desks, err := selectDesks(cfg, flags.reference)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &syncWriter{w: cmd.OutOrStdout()}
	var daemons []*desk.Daemon
	for _, d := range desks {
		gormDB, err := db.Connect(cfg.Database, d.Database)
		if err != nil {
			return fmt.Errorf("connect to %s: %w", d.Database, err)
		}
		adapter, err := adapterFor(d)
		if err != nil {
			return err
		}
		daemon, err := desk.NewDaemon(desk.DaemonOpts{
			DB:      gormDB,
			Desk:    d,
			Digest:  cfg.Digest,
			Adapter: adapter,
			Out:     out,
		})
		if err != nil {
			return fmt.Errorf("desk %s: %w", d.Reference, err)
		}
		daemons = append(daemons, daemon)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, daemon := range daemons {
		ref := desks[i].Reference
		g.Go(func() error {
			if err := daemon.Run(gctx); err != nil {
				return fmt.Errorf("desk %s: %w", ref, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// createAdapter builds a platform adapter from the desk config.
func createAdapter(d config.DeskConfig) (desk.Adapter, error) {
	switch d.Platform {
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken:  d.Slack.AppToken,
			BotToken:  d.Slack.BotToken,
			ChannelID: d.Group,
		})
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  d.Discord.BotToken,
			ChannelID: d.Group,
		})
	default:
		return nil, fmt.Errorf("desk %s: unsupported platform %q", d.Reference, d.Platform)
	}
}

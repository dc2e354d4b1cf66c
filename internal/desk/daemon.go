package desk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/zulandar/switchboard/internal/admin"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/disposition"
	"gorm.io/gorm"
)

// Daemon is one running desk. It connects to a chat platform via an
// Adapter, pumps inbound messages through the Router and optionally sends
// a scheduled digest to administrators.
type Daemon struct {
	db      *gorm.DB
	desk    config.DeskConfig
	digest  config.DigestConfig
	adapter Adapter
	out     io.Writer
	holder  string
	lease   time.Duration
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	DB      *gorm.DB
	Desk    config.DeskConfig
	Digest  config.DigestConfig
	Adapter Adapter
	Out     io.Writer // defaults to os.Stdout

	// Holder identifies this process in the desk lease; defaults to host:pid.
	Holder       string
	LeaseTimeout time.Duration // defaults to DefaultLeaseTimeout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("desk: db is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("desk: adapter is required")
	}
	if opts.Desk.Owner == "" {
		return nil, fmt.Errorf("desk: owner is required")
	}
	if opts.Desk.Group == "" {
		return nil, fmt.Errorf("desk: group is required")
	}
	if opts.Digest.Enabled {
		if err := ValidateCron(opts.Digest.Cron); err != nil {
			return nil, err
		}
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	holder := opts.Holder
	if holder == "" {
		holder = DefaultHolder()
	}
	lease := opts.LeaseTimeout
	if lease <= 0 {
		lease = DefaultLeaseTimeout
	}
	return &Daemon{
		db:      opts.DB,
		desk:    opts.Desk,
		digest:  opts.Digest,
		adapter: opts.Adapter,
		out:     out,
		holder:  holder,
		lease:   lease,
	}, nil
}

// Run takes the desk lease, connects the adapter, builds the engine and
// router, and blocks until the context is cancelled or the adapter closes
// its inbound channel. Messages are handled one at a time, in arrival order.
func (d *Daemon) Run(ctx context.Context) error {
	ref := d.desk.Reference
	if err := AcquireLease(d.db, d.holder, d.lease); err != nil {
		return err
	}
	defer func() {
		if err := ReleaseLease(d.db, d.holder); err != nil {
			log.Printf("%v", err)
		}
	}()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go d.heartbeat(ctx, cancel)

	fmt.Fprintf(d.out, "Desk %s connecting...\n", ref)
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("desk: connect: %w", err)
	}

	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	router, notifier, err := d.build(botUserID)
	if err != nil {
		d.adapter.Close()
		return err
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("desk: listen: %w", err)
	}

	if d.digest.Enabled {
		sched, err := newScheduler(d.digest.Cron, func() { d.fireDigest(ctx, notifier) })
		if err != nil {
			d.adapter.Close()
			return err
		}
		sched.Start()
		defer sched.Stop()
		fmt.Fprintf(d.out, "Desk %s digest scheduled (next in %s)\n", ref, nextCronDuration(d.digest.Cron).Round(time.Second))
	}

	fmt.Fprintf(d.out, "Desk %s online\n", ref)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Desk %s shutting down...\n", ref)
			if err := d.adapter.Close(); err != nil {
				log.Printf("desk: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Desk %s stopped\n", ref)
			if cause := context.Cause(ctx); errors.Is(cause, ErrLeaseLost) {
				return cause
			}
			return nil

		case msg, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "Desk %s inbound channel closed\n", ref)
				return nil
			}
			router.Handle(ctx, msg)
		}
	}
}

// heartbeat keeps the desk lease fresh until ctx is done. Losing the lease
// stops the daemon; other heartbeat errors are logged and retried.
func (d *Daemon) heartbeat(ctx context.Context, stop context.CancelCauseFunc) {
	ticker := time.NewTicker(d.lease / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := HeartbeatLease(d.db, d.holder)
			if errors.Is(err, ErrLeaseLost) {
				log.Printf("desk %s: %v, stopping", d.desk.Reference, err)
				stop(fmt.Errorf("desk %s: %w", d.desk.Reference, err))
				return
			}
			if err != nil {
				log.Printf("desk %s: %v", d.desk.Reference, err)
			}
		}
	}
}

func (d *Daemon) build(botUserID string) (*Router, *Notifier, error) {
	gate, err := admin.NewGate(d.db, d.desk.Owner)
	if err != nil {
		return nil, nil, fmt.Errorf("desk: build gate: %w", err)
	}
	engine, err := disposition.NewEngine(disposition.EngineOpts{
		DB:        d.db,
		Auth:      gate,
		Reference: d.desk.Reference,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("desk: build engine: %w", err)
	}
	cmdHandler, err := NewCommandHandler(CommandHandlerOpts{DB: d.db, Gate: gate, Engine: engine})
	if err != nil {
		return nil, nil, fmt.Errorf("desk: build command handler: %w", err)
	}
	notifier := NewNotifier(d.adapter, gate, d.desk.Group)
	router, err := NewRouter(RouterOpts{
		Engine:     engine,
		CmdHandler: cmdHandler,
		Notifier:   notifier,
		BotUserID:  botUserID,
		Out:        d.out,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("desk: build router: %w", err)
	}
	return router, notifier, nil
}

// fireDigest builds and sends the queue digest to every administrator.
func (d *Daemon) fireDigest(ctx context.Context, notifier *Notifier) {
	text, err := BuildDigest(d.db, d.desk.Reference)
	if err != nil {
		log.Printf("desk: %v", err)
		return
	}
	if text == "" {
		return
	}
	notifier.Deliver(ctx, []disposition.Notice{{Scope: disposition.ScopeAllAdmins, Text: text}})
}

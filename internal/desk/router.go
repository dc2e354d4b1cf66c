package desk

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/zulandar/switchboard/internal/disposition"
)

// Router classifies inbound chat messages and routes them to the
// appropriate handler: the engine for button presses and pending text
// input, the command handler for slash commands, or ignore.
type Router struct {
	engine     *disposition.Engine
	cmdHandler *CommandHandler
	notifier   *Notifier
	botUserID  string // the bot's own user ID (to filter self-messages)
	out        io.Writer
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Engine     *disposition.Engine
	CmdHandler *CommandHandler
	Notifier   *Notifier
	BotUserID  string    // bot's user ID for self-message filtering
	Out        io.Writer // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("desk: router: engine is required")
	}
	if opts.CmdHandler == nil {
		return nil, fmt.Errorf("desk: router: command handler is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("desk: router: notifier is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Router{
		engine:     opts.Engine,
		cmdHandler: opts.CmdHandler,
		notifier:   opts.Notifier,
		botUserID:  opts.BotUserID,
		out:        out,
	}, nil
}

// Handle classifies and routes a single inbound message. Routing paths:
//  1. Bot self-message → ignore
//  2. Button press → engine event decoded from the action id
//  3. Slash command → command handler
//  4. Direct message while the engine awaits text → engine text event
//  5. Everything else → ignore
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	if r.isSelfMessage(msg) {
		return
	}

	text := strings.TrimSpace(msg.Text)
	fmt.Fprintf(r.out, "desk: router: recv [ch=%s user=%s action=%s] %q\n",
		msg.ChannelID, msg.UserID, msg.ActionID, truncate(text, 80))

	if msg.ActionID != "" {
		ev, ok := disposition.EventFromAction(msg.UserID, msg.UserName, msg.ActionID)
		if !ok {
			fmt.Fprintf(r.out, "desk: router: → ignore unknown action %q\n", msg.ActionID)
			return
		}
		r.handleEvent(ctx, ev)
		return
	}

	if isCommand(text) {
		fmt.Fprintf(r.out, "desk: router: → command\n")
		r.handleCommand(ctx, msg)
		return
	}

	// Blank text (an attachment-only DM) never answers a prompt.
	if msg.Direct && text != "" {
		if kind := r.engine.Expecting(msg.UserID); kind != "" {
			fmt.Fprintf(r.out, "desk: router: → %s\n", kind)
			r.handleEvent(ctx, disposition.Event{
				OperatorID:  msg.UserID,
				DisplayName: msg.UserName,
				Kind:        kind,
				Payload:     text,
			})
			return
		}
	}

	fmt.Fprintf(r.out, "desk: router: → ignore\n")
}

func (r *Router) handleEvent(ctx context.Context, ev disposition.Event) {
	out, err := r.engine.Handle(ctx, ev)
	switch {
	case err == nil:
	case disposition.IsRejection(err):
		fmt.Fprintf(r.out, "desk: router: rejected %s from %s: %v\n", ev.Kind, ev.OperatorID, err)
	default:
		log.Printf("desk: router: %v", err)
	}
	r.notifier.Deliver(ctx, out.Notices)
}

// handleCommand runs a slash command and sends the response back to the
// channel it came from.
func (r *Router) handleCommand(ctx context.Context, msg InboundMessage) {
	resp := r.cmdHandler.Execute(ctx, msg)
	if len(resp.Notices) > 0 {
		r.notifier.Deliver(ctx, resp.Notices)
	}
	if resp.Text == "" && resp.File == nil {
		return
	}
	reply := OutboundMessage{ChannelID: msg.ChannelID, Text: resp.Text, File: resp.File}
	if msg.ChannelID == "" {
		reply.UserID = msg.UserID
	}
	r.notifier.Send(ctx, reply)
}

// isSelfMessage returns true if the message is from the bot itself.
func (r *Router) isSelfMessage(msg InboundMessage) bool {
	return r.botUserID != "" && msg.UserID == r.botUserID
}

// truncate returns s truncated to maxLen with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

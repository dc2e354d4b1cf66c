package desk

import (
	"context"
	"log"

	"github.com/zulandar/switchboard/internal/admin"
	"github.com/zulandar/switchboard/internal/disposition"
)

// Notifier resolves notice scopes to concrete recipients and sends them
// through an Adapter. Delivery failures are logged and never surface to the
// caller; the state change behind a notice has already been committed.
type Notifier struct {
	adapter Adapter
	gate    *admin.Gate
	group   string
}

// NewNotifier creates a Notifier that broadcasts to group.
func NewNotifier(adapter Adapter, gate *admin.Gate, group string) *Notifier {
	return &Notifier{adapter: adapter, gate: gate, group: group}
}

// Deliver sends every notice, in order.
func (n *Notifier) Deliver(ctx context.Context, notices []disposition.Notice) {
	for _, notice := range notices {
		for _, msg := range n.messages(notice) {
			if err := n.adapter.Send(ctx, msg); err != nil {
				log.Printf("desk: deliver %s notice: %v", notice.Scope, err)
			}
		}
	}
}

// Send delivers a single message, logging failures.
func (n *Notifier) Send(ctx context.Context, msg OutboundMessage) {
	if err := n.adapter.Send(ctx, msg); err != nil {
		log.Printf("desk: send: %v", err)
	}
}

func (n *Notifier) messages(notice disposition.Notice) []OutboundMessage {
	base := OutboundMessage{Text: notice.Text, Buttons: buttons(notice.Actions)}

	switch notice.Scope {
	case disposition.ScopeOperator:
		base.UserID = notice.OperatorID
		return []OutboundMessage{base}
	case disposition.ScopeOwner:
		base.UserID = n.gate.Owner()
		return []OutboundMessage{base}
	case disposition.ScopeBroadcast:
		base.ChannelID = n.group
		return []OutboundMessage{base}
	case disposition.ScopeAllAdmins:
		ids, err := n.gate.Recipients()
		if err != nil {
			log.Printf("desk: list admins: %v", err)
			ids = []string{n.gate.Owner()}
		}
		msgs := make([]OutboundMessage, 0, len(ids))
		for _, id := range ids {
			m := base
			m.UserID = id
			msgs = append(msgs, m)
		}
		return msgs
	}
	log.Printf("desk: unknown notice scope %q", notice.Scope)
	return nil
}

func buttons(actions []disposition.Action) []Button {
	if len(actions) == 0 {
		return nil
	}
	out := make([]Button, len(actions))
	for i, a := range actions {
		out[i] = Button{ID: a.ID, Label: a.Label}
	}
	return out
}

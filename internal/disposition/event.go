package disposition

import (
	"strings"
)

// Kind names an operator event.
type Kind string

const (
	KindStart              Kind = "start"
	KindRegisterName       Kind = "register_name"
	KindRequestAllocation  Kind = "request_allocation"
	KindOTP                Kind = "disposition_otp"
	KindNoAnswer           Kind = "disposition_no_answer"
	KindNeedPass           Kind = "disposition_need_pass"
	KindNeedEmail          Kind = "disposition_need_email"
	KindFinishing          Kind = "disposition_finishing"
	KindCallback           Kind = "disposition_callback"
	KindCallEnded          Kind = "disposition_call_ended"
	KindSummaryText        Kind = "summary_text"
	KindCancel             Kind = "cancel"
	KindRequestReplacement Kind = "request_replacement"
	KindApproveRequest     Kind = "approve_request"
	KindDeclineRequest     Kind = "decline_request"
)

// actionKinds are the kinds that may arrive as a button press.
var actionKinds = map[Kind]bool{
	KindRequestAllocation:  true,
	KindOTP:                true,
	KindNoAnswer:           true,
	KindNeedPass:           true,
	KindNeedEmail:          true,
	KindFinishing:          true,
	KindCallback:           true,
	KindCallEnded:          true,
	KindRequestReplacement: true,
	KindApproveRequest:     true,
	KindDeclineRequest:     true,
}

// Event is one thing an operator did.
type Event struct {
	OperatorID  string
	DisplayName string
	Kind        Kind
	// Subject is the operator a button was addressed to. Empty means the
	// sender. Approve/decline buttons carry the request id in Payload instead.
	Subject string
	Payload string
}

// Scope selects who receives a Notice.
type Scope string

const (
	ScopeOperator  Scope = "operator"
	ScopeOwner     Scope = "owner"
	ScopeAllAdmins Scope = "all_admins"
	ScopeBroadcast Scope = "broadcast"
)

// Action is a button attached to a Notice. ID round-trips through the chat
// platform and comes back as the event.
type Action struct {
	ID    string
	Label string
}

// Notice is an outbound message intent. OperatorID is the recipient for
// ScopeOperator and ignored otherwise.
type Notice struct {
	Scope      Scope
	OperatorID string
	Text       string
	Actions    []Action
}

// Outcome collects the notices produced by one event.
type Outcome struct {
	Notices []Notice
}

func (o *Outcome) add(n ...Notice) {
	o.Notices = append(o.Notices, n...)
}

// ActionID encodes a button id as "kind" or "kind:arg".
func ActionID(kind Kind, arg string) string {
	if arg == "" {
		return string(kind)
	}
	return string(kind) + ":" + arg
}

// ParseAction decodes a button id produced by ActionID. ok is false for ids
// that are not events.
func ParseAction(id string) (kind Kind, arg string, ok bool) {
	k, a, _ := strings.Cut(id, ":")
	kind = Kind(k)
	if !actionKinds[kind] {
		return "", "", false
	}
	return kind, a, true
}

// EventFromAction builds the event for a pressed button.
func EventFromAction(operatorID, displayName, actionID string) (Event, bool) {
	kind, arg, ok := ParseAction(actionID)
	if !ok {
		return Event{}, false
	}
	ev := Event{OperatorID: operatorID, DisplayName: displayName, Kind: kind}
	switch kind {
	case KindApproveRequest, KindDeclineRequest:
		ev.Payload = arg
	default:
		ev.Subject = arg
	}
	return ev, true
}

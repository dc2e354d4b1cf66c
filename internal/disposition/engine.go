// Package disposition drives each operator's claimed line from assignment to
// completion. The Engine turns operator events into store mutations through
// the queue package and answers with Notice intents; it never talks to a
// chat platform itself.
package disposition

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/queue"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotSubject is returned when a button addressed to one operator is
	// pressed by another.
	ErrNotSubject = errors.New("disposition: event addressed to another operator")
	// ErrStaleEvent is returned when nothing is pending for the event.
	ErrStaleEvent = errors.New("disposition: stale event")
	// ErrDeskStopped is returned when allocation is requested on a stopped desk.
	ErrDeskStopped = errors.New("disposition: desk is stopped")
	// ErrInvalidName is returned for agent names outside 2-50 characters.
	ErrInvalidName = errors.New("disposition: invalid agent name")
	// ErrNotAdmin is returned when a non-administrator resolves a request.
	ErrNotAdmin = errors.New("disposition: admin only")
	// ErrUnknownKind is returned for events the engine does not handle.
	ErrUnknownKind = errors.New("disposition: unknown event kind")
)

// Authorizer reports whether an identity may act as an administrator.
type Authorizer interface {
	IsAdmin(id string) (bool, error)
}

// Engine is the per-desk disposition state machine.
type Engine struct {
	db        *gorm.DB
	auth      Authorizer
	reference string

	mu       sync.Mutex
	sessions map[string]*session
	naming   map[string]bool
	locks    map[string]*sync.Mutex
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	DB        *gorm.DB
	Auth      Authorizer
	Reference string // desk reference recorded for new operators
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("disposition: db is required")
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("disposition: auth is required")
	}
	return &Engine{
		db:        opts.DB,
		auth:      opts.Auth,
		reference: opts.Reference,
		sessions:  make(map[string]*session),
		naming:    make(map[string]bool),
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// IsRejection reports whether err is an expected refusal rather than a
// store failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrNotSubject, ErrStaleEvent, ErrDeskStopped, ErrInvalidName, ErrNotAdmin, ErrUnknownKind,
		queue.ErrAlreadyActive, queue.ErrNoneAvailable, queue.ErrNoActiveItem,
		queue.ErrRequestExists, queue.ErrRequestNotPending,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Handle applies one event. The returned Outcome always carries the notices
// to deliver, including the explanation for a rejected event. A non-nil
// error is either a rejection (see IsRejection) or a wrapped store failure;
// in both cases no session state was advanced.
func (e *Engine) Handle(ctx context.Context, ev Event) (Outcome, error) {
	if ev.OperatorID == "" {
		return Outcome{}, fmt.Errorf("disposition: operator is required")
	}
	if ev.DisplayName == "" {
		ev.DisplayName = ev.OperatorID
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	switch ev.Kind {
	case KindApproveRequest, KindDeclineRequest:
		return e.resolveRequest(ev)
	}

	unlock := e.lockOperator(ev.OperatorID)
	defer unlock()

	if ev.Subject != "" && ev.Subject != ev.OperatorID {
		return reply(ev, msgNotForYou), ErrNotSubject
	}

	switch ev.Kind {
	case KindStart:
		return e.start(ev)
	case KindRegisterName:
		return e.registerName(ev)
	case KindRequestAllocation:
		return e.allocate(ev)
	case KindOTP:
		return e.otp(ev)
	case KindNoAnswer:
		return e.noAnswer(ev)
	case KindNeedPass, KindNeedEmail:
		return e.sideBranch(ev)
	case KindFinishing, KindCallback, KindCallEnded:
		return e.awaitSummary(ev)
	case KindSummaryText:
		return e.summary(ev)
	case KindCancel:
		return e.cancel(ev)
	case KindRequestReplacement:
		return e.requestReplacement(ev)
	}
	return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
}

// Expecting returns the kind a free-text message from the operator should
// be treated as, or "" when no text input is pending.
func (e *Engine) Expecting(operatorID string) Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.naming[operatorID] {
		return KindRegisterName
	}
	if s, ok := e.sessions[operatorID]; ok && s.state == StateAwaitingSummary {
		return KindSummaryText
	}
	return ""
}

func (e *Engine) start(ev Event) (Outcome, error) {
	op, err := e.operator(ev.OperatorID)
	if err != nil {
		return failure(ev, err)
	}
	if op != nil && op.AgentName != "" {
		text := fmt.Sprintf("👋 Welcome back, %s!\n\n🗃️ Reference: %s\n\nPress the button below to request a line", op.AgentName, op.Reference)
		return Outcome{Notices: []Notice{{
			Scope: ScopeOperator, OperatorID: ev.OperatorID, Text: text,
			Actions: []Action{lineAction("Line 📞")},
		}}}, nil
	}
	e.mu.Lock()
	e.naming[ev.OperatorID] = true
	e.mu.Unlock()
	return reply(ev, msgNamePrompt), nil
}

func (e *Engine) registerName(ev Event) (Outcome, error) {
	name := strings.TrimSpace(ev.Payload)
	if n := utf8.RuneCountInString(name); n < minAgentName || n > maxAgentName {
		return reply(ev, msgNameInvalid), ErrInvalidName
	}
	op := models.Operator{OperatorID: ev.OperatorID, AgentName: name, Reference: e.reference}
	if err := e.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"agent_name", "reference", "updated_at"}),
	}).Create(&op).Error; err != nil {
		return failure(ev, fmt.Errorf("save agent name: %w", err))
	}

	e.mu.Lock()
	delete(e.naming, ev.OperatorID)
	e.mu.Unlock()

	text := fmt.Sprintf("✅ Agent name saved!\n\n👤 Agent: %s\n🗃️ Reference: %s\n\nPress the button below to request a line", name, e.reference)
	return Outcome{Notices: []Notice{{
		Scope: ScopeOperator, OperatorID: ev.OperatorID, Text: text,
		Actions: []Action{lineAction("Line 📞")},
	}}}, nil
}

func (e *Engine) allocate(ev Event) (Outcome, error) {
	running, err := queue.IsRunning(e.db)
	if err != nil {
		return failure(ev, err)
	}
	if !running {
		return reply(ev, msgDeskStopped), ErrDeskStopped
	}

	item, err := queue.Allocate(e.db, ev.OperatorID, ev.DisplayName)
	switch {
	case errors.Is(err, queue.ErrAlreadyActive):
		return reply(ev, msgAlreadyActive), err
	case errors.Is(err, queue.ErrNoneAvailable):
		return reply(ev, msgNoneAvailable), err
	case err != nil:
		return failure(ev, err)
	}

	e.setSession(ev.OperatorID, &session{state: StateAssigned, itemID: item.ID})

	var out Outcome
	out.add(e.lineNotice(ev.OperatorID, item, "🎫 Your Line:"))
	out.add(Notice{Scope: ScopeBroadcast, Text: fmt.Sprintf("✅ %s line has been sent in private", ev.DisplayName)})
	return out, nil
}

func (e *Engine) otp(ev Event) (Outcome, error) {
	s, _, err := e.resolve(ev.OperatorID)
	if err != nil {
		return e.staleOrFailure(ev, err)
	}
	if s.state != StateAssigned {
		return reply(ev, msgStaleAction), ErrStaleEvent
	}

	item, err := queue.SetStatus(e.db, ev.OperatorID, models.StatusOTP)
	if err != nil {
		return e.staleOrFailure(ev, err)
	}
	e.setSession(ev.OperatorID, &session{state: StateOnCall, itemID: item.ID})

	agent, reference := e.agent(ev.OperatorID)
	var out Outcome
	out.add(Notice{
		Scope: ScopeAllAdmins,
		Text:  fmt.Sprintf("📲 %s is on call (OTP)\n\n%s", ev.DisplayName, lineDetails(item, agent, reference)),
	})
	out.add(Notice{Scope: ScopeBroadcast, Text: fmt.Sprintf("📲 %s is on call", ev.DisplayName)})
	out.add(Notice{
		Scope: ScopeOperator, OperatorID: ev.OperatorID,
		Text:    "✅ Status: OTP 📞\n\nWhat do you need?",
		Actions: onCallActions(ev.OperatorID),
	})
	return out, nil
}

func (e *Engine) noAnswer(ev Event) (Outcome, error) {
	// No Answer is accepted from every live state, a pending summary
	// prompt included; the prompt is dropped with the session.
	if _, _, err := e.resolve(ev.OperatorID); err != nil {
		return e.staleOrFailure(ev, err)
	}

	agent, reference := e.agent(ev.OperatorID)
	item, _, err := queue.CompleteNoAnswer(e.db, queue.Claimant{
		OperatorID: ev.OperatorID,
		Username:   ev.DisplayName,
		AgentName:  agent,
		Reference:  reference,
	})
	if err != nil {
		return e.staleOrFailure(ev, err)
	}
	e.clearSession(ev.OperatorID)

	var out Outcome
	out.add(Notice{
		Scope: ScopeOperator, OperatorID: ev.OperatorID,
		Text:    fmt.Sprintf("❌ No Answer on %s\n\nRequest another:", item.Number),
		Actions: []Action{lineAction("Request Another Line 🔄")},
	})
	return out, nil
}

func (e *Engine) sideBranch(ev Event) (Outcome, error) {
	s, _, err := e.resolve(ev.OperatorID)
	if err != nil {
		return e.staleOrFailure(ev, err)
	}
	if s.state != StateOnCall {
		return reply(ev, msgStaleAction), ErrStaleEvent
	}

	status := models.StatusNeedPass
	told := "✅ Admin has been told you need a pass."
	if ev.Kind == KindNeedEmail {
		status = models.StatusNeedEmail
		told = "✅ Admin has been told you need an email."
	}
	item, err := queue.SetStatus(e.db, ev.OperatorID, status)
	if err != nil {
		return e.staleOrFailure(ev, err)
	}
	e.setSession(ev.OperatorID, &session{state: StateOnCall, itemID: item.ID})

	broadcast := dispositionBroadcast(ev.Kind, ev.DisplayName)
	var out Outcome
	out.add(Notice{Scope: ScopeBroadcast, Text: broadcast})
	out.add(Notice{Scope: ScopeAllAdmins, Text: fmt.Sprintf("%s (📞 %s)", broadcast, item.Number)})
	out.add(Notice{
		Scope: ScopeOperator, OperatorID: ev.OperatorID,
		Text: told, Actions: onCallActions(ev.OperatorID),
	})
	return out, nil
}

func (e *Engine) awaitSummary(ev Event) (Outcome, error) {
	s, _, err := e.resolve(ev.OperatorID)
	if err != nil {
		return e.staleOrFailure(ev, err)
	}
	if s.state != StateOnCall {
		return reply(ev, msgStaleAction), ErrStaleEvent
	}

	status := map[Kind]string{
		KindFinishing: models.StatusFinishing,
		KindCallback:  models.StatusCallback,
		KindCallEnded: models.StatusCallEnded,
	}[ev.Kind]
	item, err := queue.SetStatus(e.db, ev.OperatorID, status)
	if err != nil {
		return e.staleOrFailure(ev, err)
	}
	e.setSession(ev.OperatorID, &session{state: StateAwaitingSummary, itemID: item.ID, status: status})

	var out Outcome
	out.add(Notice{Scope: ScopeBroadcast, Text: dispositionBroadcast(ev.Kind, ev.DisplayName)})
	out.add(reply(ev, msgSummaryPrompt).Notices...)
	return out, nil
}

func (e *Engine) summary(ev Event) (Outcome, error) {
	s := e.session(ev.OperatorID)
	if s == nil || s.state != StateAwaitingSummary {
		return Outcome{}, ErrStaleEvent
	}

	text := ev.Payload
	if _, err := queue.Complete(e.db, ev.OperatorID, &text); err != nil {
		if errors.Is(err, queue.ErrNoActiveItem) {
			e.clearSession(ev.OperatorID)
			return Outcome{}, ErrStaleEvent
		}
		return failure(ev, err)
	}
	e.clearSession(ev.OperatorID)

	var out Outcome
	out.add(Notice{Scope: ScopeBroadcast, Text: summaryBroadcast(s.status, ev.DisplayName, text)})
	out.add(Notice{
		Scope: ScopeOperator, OperatorID: ev.OperatorID,
		Text:    "✅ Summary sent to group!\n\nYou can now request a new line if needed.",
		Actions: []Action{lineAction("Request New Line 🔄")},
	})
	return out, nil
}

// cancel aborts the pending text input. Cancelling a summary still
// completes the line, without a summary.
func (e *Engine) cancel(ev Event) (Outcome, error) {
	e.mu.Lock()
	naming := e.naming[ev.OperatorID]
	delete(e.naming, ev.OperatorID)
	e.mu.Unlock()

	s := e.session(ev.OperatorID)
	if s == nil || s.state != StateAwaitingSummary {
		if naming {
			return reply(ev, msgCancelled), nil
		}
		return reply(ev, msgNothingCancel), ErrStaleEvent
	}

	if _, err := queue.Complete(e.db, ev.OperatorID, nil); err != nil && !errors.Is(err, queue.ErrNoActiveItem) {
		return failure(ev, err)
	}
	e.clearSession(ev.OperatorID)

	return Outcome{Notices: []Notice{{
		Scope: ScopeOperator, OperatorID: ev.OperatorID,
		Text:    msgCancelled,
		Actions: []Action{lineAction("Request New Line 🔄")},
	}}}, nil
}

func (e *Engine) requestReplacement(ev Event) (Outcome, error) {
	req, err := queue.CreateRequest(e.db, ev.OperatorID, ev.DisplayName)
	switch {
	case errors.Is(err, queue.ErrNoActiveItem):
		return reply(ev, msgNoLine), err
	case errors.Is(err, queue.ErrRequestExists):
		return reply(ev, msgRequestExists), err
	case err != nil:
		return failure(ev, err)
	}

	var out Outcome
	out.add(Notice{
		Scope:   ScopeAllAdmins,
		Text:    fmt.Sprintf("📞 Line Request\n\nUser: %s (ID: %s)\nCurrent line: %s", ev.DisplayName, ev.OperatorID, req.PreviousNumber),
		Actions: requestActions(req.ID),
	})
	out.add(Notice{Scope: ScopeBroadcast, Text: fmt.Sprintf("📝 %s has requested a new line", ev.DisplayName)})
	out.add(reply(ev, msgRequestSent).Notices...)
	return out, nil
}

// resolveRequest handles approve/decline. The caller's own session is never
// touched, so only the requesting operator is locked.
func (e *Engine) resolveRequest(ev Event) (Outcome, error) {
	ok, err := e.auth.IsAdmin(ev.OperatorID)
	if err != nil {
		return failure(ev, err)
	}
	if !ok {
		return reply(ev, msgAdminOnly), ErrNotAdmin
	}

	id, err := strconv.ParseUint(ev.Payload, 10, 64)
	if err != nil {
		return reply(ev, msgRequestGone), fmt.Errorf("%w: bad request id %q", queue.ErrRequestNotPending, ev.Payload)
	}
	pending, err := queue.GetRequest(e.db, uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reply(ev, msgRequestGone), fmt.Errorf("%w: request %d", queue.ErrRequestNotPending, id)
	}
	if err != nil {
		return failure(ev, err)
	}

	unlock := e.lockOperator(pending.OperatorID)
	defer unlock()

	who := pending.Username
	if who == "" {
		who = pending.OperatorID
	}

	if ev.Kind == KindDeclineRequest {
		req, err := queue.DeclineRequest(e.db, uint(id))
		if errors.Is(err, queue.ErrRequestNotPending) {
			return reply(ev, msgRequestGone), err
		}
		if err != nil {
			return failure(ev, err)
		}
		var out Outcome
		out.add(Notice{Scope: ScopeOperator, OperatorID: req.OperatorID, Text: msgDeclinedUser})
		out.add(Notice{Scope: ScopeBroadcast, Text: fmt.Sprintf("❌ %s's line request has been declined", who)})
		out.add(reply(ev, "✅ Declined!").Notices...)
		return out, nil
	}

	req, item, err := queue.ApproveRequest(e.db, uint(id))
	switch {
	case errors.Is(err, queue.ErrRequestNotPending):
		return reply(ev, msgRequestGone), err
	case errors.Is(err, queue.ErrNoneAvailable):
		return reply(ev, msgNoneAvailable), err
	case err != nil:
		return failure(ev, err)
	}
	e.setSession(req.OperatorID, &session{state: StateAssigned, itemID: item.ID})

	var out Outcome
	out.add(e.lineNotice(req.OperatorID, item, "✅ Your request has been approved! Here is your new line:"))
	out.add(Notice{Scope: ScopeBroadcast, Text: fmt.Sprintf("✅ %s's line request has been approved", who)})
	out.add(reply(ev, "✅ Approved!").Notices...)
	return out, nil
}

func (e *Engine) lineNotice(operatorID string, item *models.WorkItem, heading string) Notice {
	agent, reference := e.agent(operatorID)
	return Notice{
		Scope:      ScopeOperator,
		OperatorID: operatorID,
		Text:       heading + "\n\n" + lineDetails(item, agent, reference),
		Actions:    assignedActions(operatorID),
	}
}

// operator loads the registered operator, or nil if unknown.
func (e *Engine) operator(id string) (*models.Operator, error) {
	var op models.Operator
	result := e.db.Where("operator_id = ?", id).Limit(1).Find(&op)
	if result.Error != nil {
		return nil, fmt.Errorf("load operator %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &op, nil
}

// agent returns the operator's agent name and reference, falling back to
// defaults. A lookup failure only degrades the notice text.
func (e *Engine) agent(id string) (string, string) {
	op, err := e.operator(id)
	if err != nil || op == nil {
		return defaultAgentName, e.reference
	}
	name, ref := op.AgentName, op.Reference
	if name == "" {
		name = defaultAgentName
	}
	if ref == "" {
		ref = e.reference
	}
	return name, ref
}

func (e *Engine) staleOrFailure(ev Event, err error) (Outcome, error) {
	if errors.Is(err, queue.ErrNoActiveItem) {
		e.clearSession(ev.OperatorID)
		return reply(ev, msgStaleAction), fmt.Errorf("%w: %v", ErrStaleEvent, err)
	}
	return failure(ev, err)
}

func reply(ev Event, text string) Outcome {
	return Outcome{Notices: []Notice{{Scope: ScopeOperator, OperatorID: ev.OperatorID, Text: text}}}
}

func failure(ev Event, err error) (Outcome, error) {
	return reply(ev, msgFailure), fmt.Errorf("disposition: %s for %s: %w", ev.Kind, ev.OperatorID, err)
}

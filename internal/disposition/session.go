package disposition

import (
	"sync"

	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/queue"
)

// State is where an operator's current line sits in the disposition flow.
type State int

const (
	StateAssigned State = iota + 1
	StateOnCall
	StateAwaitingSummary
)

func (s State) String() string {
	switch s {
	case StateAssigned:
		return "assigned"
	case StateOnCall:
		return "on_call"
	case StateAwaitingSummary:
		return "awaiting_summary"
	}
	return "unknown"
}

// session is the in-memory state for one operator. It is lost on restart.
type session struct {
	state  State
	itemID uint
	status string // disposition awaiting a summary
}

// State returns the operator's current session state.
func (e *Engine) State(operatorID string) (State, bool) {
	s := e.session(operatorID)
	if s == nil {
		return 0, false
	}
	return s.state, true
}

// lockOperator serializes events for one operator and returns the unlock.
func (e *Engine) lockOperator(id string) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (e *Engine) session(id string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (e *Engine) setSession(id string, s *session) {
	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()
}

func (e *Engine) clearSession(id string) {
	e.mu.Lock()
	delete(e.sessions, id)
	e.mu.Unlock()
}

// resolve returns the operator's session checked against the store. A
// session whose line is gone is dropped. A missing or mismatched session is
// rebuilt from the stored status: no status means Assigned, anything else
// OnCall. Awaiting-summary states cannot be rebuilt.
func (e *Engine) resolve(id string) (*session, *models.WorkItem, error) {
	item, err := queue.ActiveItem(e.db, id)
	if err != nil {
		return nil, nil, err
	}
	if s := e.session(id); s != nil && s.itemID == item.ID {
		return s, item, nil
	}
	s := &session{state: StateOnCall, itemID: item.ID}
	if item.Status == "" {
		s.state = StateAssigned
	}
	e.setSession(id, s)
	return s, item, nil
}

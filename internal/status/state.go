package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/wppilot/internal/bus"
)

// State represents a daemon runtime state.
type State string

const (
	Booting       State = "BOOTING"
	Launching     State = "LAUNCHING"
	LoginRequired State = "LOGIN_REQUIRED"
	Loading       State = "LOADING"
	Ready         State = "READY"
	Degraded      State = "DEGRADED"
	Error         State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:       {Launching, Error},
	Launching:     {LoginRequired, Loading, Ready, Error},
	LoginRequired: {Loading, Ready, Error},
	Loading:       {Ready, LoginRequired, Degraded, Error},
	Ready:         {Loading, LoginRequired, Degraded, Error},
	Degraded:      {Loading, Ready, LoginRequired, Error},
	Error:         {Booting, Launching},
}

// Machine tracks and enforces daemon runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(to)
}

func (m *Machine) transitionLocked(to State) error {
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Emit(bus.KindStatusChanged, StatusChange{From: from, To: to})
	}
	return nil
}

// Observe maps a page status reported by a site handler ("ready",
// "login_required", "loading", "error") onto the machine. Same-state reports
// are no-ops. It returns true when the state changed.
func (m *Machine) Observe(pageStatus string) bool {
	var to State
	switch pageStatus {
	case "ready":
		to = Ready
	case "login_required":
		to = LoginRequired
	case "loading":
		to = Loading
	case "error":
		to = Degraded
	default:
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == to {
		return false
	}
	if m.current == Error || m.current == Booting {
		return false
	}
	return m.transitionLocked(to) == nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}

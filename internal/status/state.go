package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
)

// State represents the client runtime state.
type State string

const (
	Booting   State = "BOOTING"
	SignedOut State = "SIGNED_OUT"
	Syncing   State = "SYNCING"
	Ready     State = "READY"
	Degraded  State = "DEGRADED"
	Error     State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:   {SignedOut, Syncing, Error},
	SignedOut: {Syncing, Error},
	Syncing:   {Ready, Degraded, SignedOut, Error},
	Ready:     {Syncing, Degraded, SignedOut, Error},
	Degraded:  {Syncing, Ready, SignedOut, Error},
	Error:     {Booting},
}

// Machine tracks and enforces client runtime state transitions.
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

// In reports whether the current state is one of states.
func (m *Machine) In(states ...State) bool {
	return slices.Contains(states, m.Current())
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Transitioning to the current state is a no-op and publishes nothing.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Emit("client.status_changed", StatusChange{From: from, To: to})
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}

package status

import (
	"testing"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, SignedOut},
		{Booting, Syncing},
		{Booting, Error},
		{SignedOut, Syncing},
		{Syncing, Ready},
		{Syncing, Degraded},
		{Ready, Degraded},
		{Degraded, Ready},
		{Ready, SignedOut},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(BOOTING -> READY) should fail")
	}
}

// A signed-out client has nothing to be ready or degraded about.
func TestSignedOutMustSyncFirst(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, SignedOut)

	for _, to := range []State{Ready, Degraded} {
		if err := m.Transition(to); err == nil {
			t.Errorf("Transition(SIGNED_OUT -> %s) should fail", to)
		}
	}
	if m.Current() != SignedOut {
		t.Errorf("state = %s, want SIGNED_OUT (should not have changed)", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("client.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(SignedOut); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != "client.status_changed" {
		t.Errorf("event kind = %q, want client.status_changed", evt.Kind)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != SignedOut {
		t.Errorf("change = %v -> %v, want BOOTING -> SIGNED_OUT", change.From, change.To)
	}
}

func TestSameStateIsSilent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("client.", 10)
	defer unsub()

	m := NewMachine(b)
	walkTo(t, m, Ready)
	for len(ch) > 0 {
		<-ch
	}

	if err := m.Transition(Ready); err != nil {
		t.Fatalf("Transition(READY -> READY) error = %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestLoginLifecycle walks a first run: BOOTING → SIGNED_OUT → SYNCING → READY,
// then a failed poll and a recovery.
func TestIn(t *testing.T) {
	m := NewMachine(nil)
	if !m.In(Booting, SignedOut) {
		t.Error("In(Booting, SignedOut) = false while booting")
	}
	walkTo(t, m, Ready)
	if m.In(Booting, SignedOut) {
		t.Error("In(Booting, SignedOut) = true while ready")
	}
	if m.In() {
		t.Error("In() with no states = true")
	}
}

func TestLoginLifecycle(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{SignedOut, Syncing, Ready, Degraded, Ready, SignedOut}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != SignedOut {
		t.Errorf("final state = %s, want SIGNED_OUT", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:   {},
		SignedOut: {SignedOut},
		Syncing:   {Syncing},
		Ready:     {Syncing, Ready},
		Degraded:  {Syncing, Degraded},
		Error:     {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}

// Package keys maps key events to actions, per page plus a global scope.
package keys

import (
	"github.com/ekdusrla/ssukssuk-closet/internal/tui/ui"
	"github.com/gdamore/tcell/v2"
)

// Action is one key binding.
type Action struct {
	Key     tcell.Key
	Rune    rune
	Label   string // how the key is shown in the menu, e.g. "enter"
	Hint    string // empty hides the binding from the menu
	Handler func()
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Rune binds a printable key.
func Rune(r rune, hint string, fn func()) *Action {
	return &Action{Key: tcell.KeyRune, Rune: r, Label: string(r), Hint: hint, Handler: fn}
}

// Key binds a special key.
func Key(k tcell.Key, label, hint string, fn func()) *Action {
	return &Action{Key: k, Label: label, Hint: hint, Handler: fn}
}

// Registry holds bindings in registration order.
type Registry struct {
	global []*Action
	views  map[string][]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string][]*Action)}
}

// AddGlobal registers a binding active on every page.
func (r *Registry) AddGlobal(actions ...*Action) {
	r.global = append(r.global, actions...)
}

// AddView registers bindings for one page.
func (r *Registry) AddView(view string, actions ...*Action) {
	r.views[view] = append(r.views[view], actions...)
}

// Hints lists the visible bindings of view followed by the global ones.
func (r *Registry) Hints(view string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, scope := range [][]*Action{r.views[view], r.global} {
		for _, a := range scope {
			if a.Hint != "" {
				hints = append(hints, ui.MenuHint{Key: a.Label, Description: a.Hint})
			}
		}
	}
	return hints
}

// ViewHints lists the visible bindings of view alone.
func (r *Registry) ViewHints(view string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, a := range r.views[view] {
		if a.Hint != "" {
			hints = append(hints, ui.MenuHint{Key: a.Label, Description: a.Hint})
		}
	}
	return hints
}

// HandleEvent runs the first binding matching ev, page bindings first.
// It reports whether one matched.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	for _, scope := range [][]*Action{r.views[view], r.global} {
		for _, a := range scope {
			if a.Matches(ev) {
				a.Handler()
				return true
			}
		}
	}
	return false
}

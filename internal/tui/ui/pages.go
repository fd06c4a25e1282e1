package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Pages is a navigation stack over tview.Pages. Pages are registered once
// with Add and then pushed by name.
type Pages struct {
	*tview.Pages
	stack    []string
	onChange func(stack []string)
}

func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Add registers a hidden page.
func (p *Pages) Add(name string, item tview.Primitive) {
	p.AddPage(name, item, true, false)
}

// Push shows name on top of the stack. Pushing a page that is already on the
// stack unwinds to it instead of stacking a second copy.
func (p *Pages) Push(name string) {
	if i := slices.Index(p.stack, name); i >= 0 {
		for _, n := range p.stack[i+1:] {
			p.HidePage(n)
		}
		p.stack = p.stack[:i+1]
	} else {
		if top := p.Current(); top != "" {
			p.HidePage(top)
		}
		p.stack = append(p.stack, name)
	}
	p.SwitchToPage(name)
	p.notify()
}

// Pop removes the top page and shows the previous one. The root page is
// never popped; Pop returns "" in that case.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	p.SwitchToPage(p.Current())
	p.notify()
	return top
}

// Current returns the name of the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Stack returns a copy of the current page stack.
func (p *Pages) Stack() []string {
	return slices.Clone(p.stack)
}

// Reset clears the stack and shows only the given page.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.SwitchToPage(name)
	p.notify()
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}

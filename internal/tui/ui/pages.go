package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Pages is the navigation stack. A page appears at most once: showing a
// page that is already open returns to it instead of stacking a copy, so
// inbox > thread > details > thread collapses back to inbox > thread.
type Pages struct {
	*tview.Pages
	stack    []string
	onChange func(stack []string)
}

// NewPages creates an empty stack.
func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

// SetOnChange sets a callback fired with the new stack after each change.
func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Push shows name on top. A page already in the stack is returned to.
func (p *Pages) Push(name string) {
	if p.Current() == name {
		return
	}
	if p.PopTo(name) {
		return
	}
	if top := p.Current(); top != "" {
		p.HidePage(top)
	}
	p.stack = append(p.stack, name)
	p.front(name)
	p.notify()
}

// PopTo pops pages above name. It reports false, changing nothing, when
// name is not open.
func (p *Pages) PopTo(name string) bool {
	i := slices.Index(p.stack, name)
	if i < 0 {
		return false
	}
	if i == len(p.stack)-1 {
		return true
	}
	for _, n := range p.stack[i+1:] {
		p.HidePage(n)
	}
	p.stack = p.stack[:i+1]
	p.front(name)
	p.notify()
	return true
}

// Pop removes the top page and returns its name, or "" when empty.
func (p *Pages) Pop() string {
	top := p.Current()
	if top == "" {
		return ""
	}
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	if next := p.Current(); next != "" {
		p.front(next)
	}
	p.notify()
	return top
}

// Current returns the top page, or "".
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Stack returns a copy of the stack, bottom first.
func (p *Pages) Stack() []string {
	return slices.Clone(p.stack)
}

// Depth returns the number of open pages.
func (p *Pages) Depth() int {
	return len(p.stack)
}

// Reset closes every page and opens name alone, as after a login change.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.front(name)
	p.notify()
}

func (p *Pages) front(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}

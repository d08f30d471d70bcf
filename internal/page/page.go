// Package page is the boundary between automation logic and the host page.
// Reads happen against HTML snapshots; writes go through the Actuator.
package page

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"
)

// ErrTargetNotFound is returned by actuators when a target resolves to no element.
var ErrTargetNotFound = errors.New("target element not found")

// Target addresses one element of the live page: the Index-th match of
// Selector, optionally narrowed to the first match of Child inside it.
type Target struct {
	Selector string
	Index    int
	Child    string
}

// Within returns a target for the first child matching sel inside t.
func (t Target) Within(sel string) Target {
	t.Child = sel
	return t
}

// Reader reads state from the host page.
type Reader interface {
	// URL returns the current page URL.
	URL() string
	// Snapshot parses the current DOM. Each call is a consistent point-in-time copy.
	Snapshot(ctx context.Context) (*goquery.Document, error)
	// LocalStorage returns a value from the page's durable key-value storage.
	LocalStorage(ctx context.Context, key string) (string, error)
}

// Actuator synthesizes user interaction with the host page.
type Actuator interface {
	Click(ctx context.Context, t Target) error
	ContextClick(ctx context.Context, t Target) error
	Hover(ctx context.Context, t Target) error
	Focus(ctx context.Context, t Target) error
	// InsertText uses the page's native text insertion command on an editable
	// element. ok is false when the command is unsupported or refused.
	InsertText(ctx context.Context, t Target, text string) (ok bool, err error)
	// ReplaceText sets the element content directly and dispatches an input event.
	ReplaceText(ctx context.Context, t Target, text string) error
	// Press sends a keydown/keypress/keyup sequence for key to the target.
	Press(ctx context.Context, t Target, key string) error
	// PressPage sends key to whatever element has focus.
	PressPage(ctx context.Context, key string) error
}

// Watcher notifies about page activity: DOM mutations, visibility, focus,
// hash changes and navigations. notify receives the reason.
type Watcher interface {
	Watch(notify func(reason string)) (stop func(), err error)
}

// Page is everything a site handler needs from the host tab.
type Page interface {
	Reader
	Actuator
	Watcher
}

// Watch reasons.
const (
	ReasonMutation   = "mutation"
	ReasonVisibility = "visibility"
	ReasonFocus      = "focus"
	ReasonHashChange = "hashchange"
	ReasonNavigation = "navigation"
	ReasonHeartbeat  = "heartbeat"
)

// Immediate reports whether reason should skip the debounce window.
func Immediate(reason string) bool {
	switch reason {
	case ReasonVisibility, ReasonFocus, ReasonHashChange, ReasonNavigation:
		return true
	}
	return false
}

// Resolve finds t inside a snapshot. The returned selection is empty when the
// target does not exist.
func Resolve(doc *goquery.Document, t Target) *goquery.Selection {
	sel := doc.Find(t.Selector).Eq(t.Index)
	if t.Child != "" {
		sel = sel.Find(t.Child).First()
	}
	return sel
}

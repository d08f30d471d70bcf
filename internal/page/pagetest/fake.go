// Package pagetest provides an in-memory page.Page for tests.
package pagetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/matheus3301/wppilot/internal/page"
)

// Call records one actuator invocation.
type Call struct {
	Op     string
	Target page.Target
	Text   string
}

// Fake is a page.Page backed by an HTML string. Hooks let tests script how the
// host application reacts to interaction; they may call SetHTML or Mutate.
type Fake struct {
	mu      sync.Mutex
	html    string
	url     string
	storage map[string]string
	calls   []Call
	watch   map[int]func(string)
	nextID  int

	// InsertUnsupported makes InsertText report the native command as refused.
	InsertUnsupported bool
	// InsertIgnored makes InsertText report success without changing the DOM.
	InsertIgnored bool

	OnClick        func(f *Fake, t page.Target)
	OnContextClick func(f *Fake, t page.Target)
	OnHover        func(f *Fake, t page.Target)
	OnPress        func(f *Fake, t page.Target, key string)
	OnPressPage    func(f *Fake, key string)
}

// New creates a fake page at url showing html.
func New(url, html string) *Fake {
	return &Fake{url: url, html: html, storage: make(map[string]string), watch: make(map[int]func(string))}
}

// SetHTML replaces the whole document.
func (f *Fake) SetHTML(html string) {
	f.mu.Lock()
	f.html = html
	f.mu.Unlock()
}

// HTML returns the current document.
func (f *Fake) HTML() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.html
}

// SetURL changes the page URL.
func (f *Fake) SetURL(url string) {
	f.mu.Lock()
	f.url = url
	f.mu.Unlock()
}

// SetStorage stores a localStorage value.
func (f *Fake) SetStorage(key, value string) {
	f.mu.Lock()
	f.storage[key] = value
	f.mu.Unlock()
}

// Mutate parses the document, applies fn and serializes it back.
func (f *Fake) Mutate(fn func(doc *goquery.Document)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.html))
	if err != nil {
		return
	}
	fn(doc)
	if out, err := doc.Html(); err == nil {
		f.html = out
	}
}

// Calls returns a copy of the recorded actuator calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount counts recorded calls with the given op.
func (f *Fake) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Notify fires every registered watch callback.
func (f *Fake) Notify(reason string) {
	f.mu.Lock()
	fns := make([]func(string), 0, len(f.watch))
	for _, fn := range f.watch {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(reason)
	}
}

// Watchers returns the number of active watch registrations.
func (f *Fake) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watch)
}

func (f *Fake) URL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

func (f *Fake) Snapshot(_ context.Context) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(f.HTML()))
}

func (f *Fake) LocalStorage(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storage[key], nil
}

func (f *Fake) Watch(notify func(reason string)) (func(), error) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.watch[id] = notify
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.watch, id)
		f.mu.Unlock()
	}, nil
}

func (f *Fake) record(op string, t page.Target, text string) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, Target: t, Text: text})
	f.mu.Unlock()
}

func (f *Fake) exists(t page.Target) error {
	doc, err := f.Snapshot(context.Background())
	if err != nil {
		return err
	}
	if page.Resolve(doc, t).Length() == 0 {
		return fmt.Errorf("%w: %s[%d] %s", page.ErrTargetNotFound, t.Selector, t.Index, t.Child)
	}
	return nil
}

func (f *Fake) Click(_ context.Context, t page.Target) error {
	if err := f.exists(t); err != nil {
		return err
	}
	f.record("click", t, "")
	if f.OnClick != nil {
		f.OnClick(f, t)
	}
	return nil
}

func (f *Fake) ContextClick(_ context.Context, t page.Target) error {
	if err := f.exists(t); err != nil {
		return err
	}
	f.record("contextclick", t, "")
	if f.OnContextClick != nil {
		f.OnContextClick(f, t)
	}
	return nil
}

func (f *Fake) Hover(_ context.Context, t page.Target) error {
	if err := f.exists(t); err != nil {
		return err
	}
	f.record("hover", t, "")
	if f.OnHover != nil {
		f.OnHover(f, t)
	}
	return nil
}

func (f *Fake) Focus(_ context.Context, t page.Target) error {
	if err := f.exists(t); err != nil {
		return err
	}
	f.record("focus", t, "")
	return nil
}

func (f *Fake) InsertText(_ context.Context, t page.Target, text string) (bool, error) {
	if err := f.exists(t); err != nil {
		return false, err
	}
	f.record("insert", t, text)
	if f.InsertUnsupported {
		return false, nil
	}
	if f.InsertIgnored {
		return true, nil
	}
	f.Mutate(func(doc *goquery.Document) {
		el := page.Resolve(doc, t)
		el.SetText(el.Text() + text)
	})
	return true, nil
}

func (f *Fake) ReplaceText(_ context.Context, t page.Target, text string) error {
	if err := f.exists(t); err != nil {
		return err
	}
	f.record("replace", t, text)
	f.Mutate(func(doc *goquery.Document) {
		page.Resolve(doc, t).SetText(text)
	})
	return nil
}

func (f *Fake) Press(_ context.Context, t page.Target, key string) error {
	if err := f.exists(t); err != nil {
		return err
	}
	f.record("press", t, key)
	if f.OnPress != nil {
		f.OnPress(f, t, key)
	}
	return nil
}

func (f *Fake) PressPage(_ context.Context, key string) error {
	f.record("presspage", page.Target{}, key)
	if f.OnPressPage != nil {
		f.OnPressPage(f, key)
	}
	return nil
}

var _ page.Page = (*Fake)(nil)

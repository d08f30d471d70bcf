// Package browser drives a real browser tab through Playwright and exposes it
// as a page.Page.
package browser

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/matheus3301/wppilot/internal/page"
)

// actionTimeoutMs bounds a single synthetic interaction. Callers poll for the
// outcome themselves.
const actionTimeoutMs = 2000

// Tab adapts a Playwright page to page.Page.
type Tab struct {
	pw     playwright.Page
	logger *zap.Logger

	mu       gosync.Mutex
	watching bool
	watch    *watchers
}

// NewTab wraps p.
func NewTab(p playwright.Page, logger *zap.Logger) *Tab {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tab{pw: p, logger: logger, watch: newWatchers(64)}
}

func (t *Tab) URL() string { return t.pw.URL() }

// Snapshot parses the serialized DOM of the main frame.
func (t *Tab) Snapshot(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	html, err := t.pw.Content()
	if err != nil {
		return nil, fmt.Errorf("read page content: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page content: %w", err)
	}
	return doc, nil
}

func (t *Tab) LocalStorage(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := t.pw.Evaluate(localStorageScript, key)
	if err != nil {
		return "", fmt.Errorf("read local storage %q: %w", key, err)
	}
	s, _ := v.(string)
	return s, nil
}

// locate resolves a target to a locator, failing when nothing matches.
func (t *Tab) locate(ctx context.Context, target page.Target) (playwright.Locator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := t.pw.Locator(target.Selector).Nth(target.Index)
	if target.Child != "" {
		l = l.Locator(target.Child).First()
	}
	n, err := l.Count()
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", target.Selector, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s[%d] %s", page.ErrTargetNotFound, target.Selector, target.Index, target.Child)
	}
	return l, nil
}

func (t *Tab) Click(ctx context.Context, target page.Target) error {
	l, err := t.locate(ctx, target)
	if err != nil {
		return err
	}
	return l.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(actionTimeoutMs)})
}

func (t *Tab) ContextClick(ctx context.Context, target page.Target) error {
	l, err := t.locate(ctx, target)
	if err != nil {
		return err
	}
	return l.Click(playwright.LocatorClickOptions{
		Button:  playwright.MouseButtonRight,
		Timeout: playwright.Float(actionTimeoutMs),
	})
}

func (t *Tab) Hover(ctx context.Context, target page.Target) error {
	l, err := t.locate(ctx, target)
	if err != nil {
		return err
	}
	return l.Hover(playwright.LocatorHoverOptions{Timeout: playwright.Float(actionTimeoutMs)})
}

func (t *Tab) Focus(ctx context.Context, target page.Target) error {
	l, err := t.locate(ctx, target)
	if err != nil {
		return err
	}
	return l.Focus(playwright.LocatorFocusOptions{Timeout: playwright.Float(actionTimeoutMs)})
}

func (t *Tab) InsertText(ctx context.Context, target page.Target, text string) (bool, error) {
	l, err := t.locate(ctx, target)
	if err != nil {
		return false, err
	}
	v, err := l.Evaluate(insertTextScript, text)
	if err != nil {
		return false, fmt.Errorf("insert text: %w", err)
	}
	ok, _ := v.(bool)
	return ok, nil
}

func (t *Tab) ReplaceText(ctx context.Context, target page.Target, text string) error {
	l, err := t.locate(ctx, target)
	if err != nil {
		return err
	}
	if _, err := l.Evaluate(replaceTextScript, text); err != nil {
		return fmt.Errorf("replace text: %w", err)
	}
	return nil
}

func (t *Tab) Press(ctx context.Context, target page.Target, key string) error {
	l, err := t.locate(ctx, target)
	if err != nil {
		return err
	}
	return l.Press(key, playwright.LocatorPressOptions{Timeout: playwright.Float(actionTimeoutMs)})
}

func (t *Tab) PressPage(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.pw.Keyboard().Press(key)
}

// Watch registers notify for page activity. The in-page listeners are
// installed on first use and survive reloads.
func (t *Tab) Watch(notify func(reason string)) (func(), error) {
	if err := t.install(); err != nil {
		return nil, err
	}
	return t.watch.add(notify), nil
}

func (t *Tab) install() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watching {
		return nil
	}
	err := t.pw.ExposeFunction(bindingName, func(args ...interface{}) interface{} {
		if len(args) > 0 {
			if reason, ok := args[0].(string); ok {
				t.watch.notify(reason)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("expose notify binding: %w", err)
	}
	script := watchScript
	if err := t.pw.AddInitScript(playwright.Script{Content: &script}); err != nil {
		return fmt.Errorf("add watch script: %w", err)
	}
	if _, err := t.pw.Evaluate(watchScript); err != nil {
		t.logger.Warn("watch script failed on current document", zap.Error(err))
	}
	t.pw.OnFrameNavigated(func(f playwright.Frame) {
		if f == t.pw.MainFrame() {
			t.watch.notify(page.ReasonNavigation)
		}
	})
	t.watching = true
	return nil
}

// Watchers returns the number of active registrations.
func (t *Tab) Watchers() int { return t.watch.count() }

// Close stops delivering notifications.
func (t *Tab) Close() {
	t.watch.close()
}

var _ page.Page = (*Tab)(nil)

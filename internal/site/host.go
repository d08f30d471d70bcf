package site

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/page"
	"go.uber.org/zap"
)

// ContextChange is the payload of context.changed events.
type ContextChange struct {
	Site   string
	URL    string
	Reason string
}

// HandlerChange is the payload of context.handler_changed events.
type HandlerChange struct {
	From string
	To   string
	URL  string
}

// Host owns the tab's active handler. It re-resolves the handler when the
// page navigates, disposes the previous handler's observers and re-attaches
// change listening to the new one.
type Host struct {
	mu       gosync.Mutex
	page     page.Page
	registry *Registry
	bus      *bus.Bus
	logger   *zap.Logger

	name      string
	handler   Handler
	dispose   func()
	stopWatch func()

	listeners map[int]func(string)
	nextID    int
}

// NewHost creates a host for p. Call Start to attach.
func NewHost(p page.Page, r *Registry, b *bus.Bus, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		page:      p,
		registry:  r,
		bus:       b,
		logger:    logger,
		listeners: make(map[int]func(string)),
	}
}

// Start resolves the first handler and follows navigations.
func (h *Host) Start() error {
	h.Refresh()
	stop, err := h.page.Watch(func(reason string) {
		if reason == page.ReasonNavigation || reason == page.ReasonHashChange {
			h.Refresh()
		}
	})
	if err != nil {
		return fmt.Errorf("watch page: %w", err)
	}
	h.mu.Lock()
	h.stopWatch = stop
	h.mu.Unlock()
	return nil
}

// Stop disposes the active handler's observers.
func (h *Host) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopWatch != nil {
		h.stopWatch()
		h.stopWatch = nil
	}
	if h.dispose != nil {
		h.dispose()
		h.dispose = nil
	}
}

// Refresh swaps the handler when the page URL now resolves to a different
// variant. It returns the active handler.
func (h *Host) Refresh() Handler {
	url := h.page.URL()
	reg := h.registry.Resolve(url)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handler != nil && reg.Name == h.name {
		return h.handler
	}

	from := h.name
	if h.dispose != nil {
		h.dispose()
		h.dispose = nil
	}
	next := reg.New(h.page)
	h.name = reg.Name
	h.handler = next
	h.dispose = next.ObserveContextChanges(func(reason string) {
		h.changed(next.Name(), reason)
	})

	h.logger.Info("site handler attached", zap.String("handler", reg.Name), zap.String("previous", from), zap.String("url", url))
	if h.bus != nil {
		h.bus.Emit(bus.KindHandlerChanged, HandlerChange{From: from, To: reg.Name, URL: url})
	}
	return next
}

func (h *Host) changed(site, reason string) {
	h.mu.Lock()
	fns := make([]func(string), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	if h.bus != nil {
		h.bus.Emit(bus.KindContextChanged, ContextChange{Site: site, URL: h.page.URL(), Reason: reason})
	}
	for _, fn := range fns {
		fn(reason)
	}
}

// Name returns the active handler's name.
func (h *Host) Name() string {
	return h.Refresh().Name()
}

// URL returns the address currently shown in the tab.
func (h *Host) URL() string {
	return h.page.URL()
}

// CollectContext collects through the active handler.
func (h *Host) CollectContext(ctx context.Context, opts Options) Context {
	return h.Refresh().CollectContext(ctx, opts)
}

// RunAction dispatches to the active handler.
func (h *Host) RunAction(ctx context.Context, action string, args map[string]any) Result {
	return h.Refresh().RunAction(ctx, action, args)
}

// ObserveContextChanges registers a listener that survives handler swaps.
func (h *Host) ObserveContextChanges(onChange func(reason string)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = onChange
	h.mu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

var _ Handler = (*Host)(nil)

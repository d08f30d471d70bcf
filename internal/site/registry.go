package site

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	gosync "sync"

	"github.com/gobwas/glob"
	"github.com/matheus3301/wppilot/internal/page"
)

// Factory builds a handler bound to a page.
type Factory func(p page.Page) Handler

// Registration describes one handler variant.
type Registration struct {
	Name     string
	Patterns []string // host globs, '.' separated: "web.whatsapp.com", "*.example.com"
	Priority int
	New      Factory
}

type entry struct {
	reg   Registration
	globs []glob.Glob
	order int
}

// Registry picks the handler for a URL by host pattern, highest priority
// first, falling back to the generic handler.
type Registry struct {
	mu       gosync.RWMutex
	entries  []entry
	fallback Registration
}

// NewRegistry creates a registry with the given fallback factory.
func NewRegistry(fallback Factory) *Registry {
	return &Registry{fallback: Registration{Name: GenericName, New: fallback}}
}

// Register adds a handler variant. Patterns are compiled up front.
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" || reg.New == nil {
		return fmt.Errorf("registration needs a name and a factory")
	}
	if len(reg.Patterns) == 0 {
		return fmt.Errorf("registration %q has no host patterns", reg.Name)
	}
	e := entry{reg: reg}
	for _, p := range reg.Patterns {
		g, err := glob.Compile(strings.ToLower(p), '.')
		if err != nil {
			return fmt.Errorf("compile pattern %q for %s: %w", p, reg.Name, err)
		}
		e.globs = append(e.globs, g)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e.order = len(r.entries)
	r.entries = append(r.entries, e)
	slices.SortStableFunc(r.entries, func(a, b entry) int {
		if a.reg.Priority != b.reg.Priority {
			return b.reg.Priority - a.reg.Priority
		}
		return a.order - b.order
	})
	return nil
}

// Resolve returns the registration matching rawURL's host.
func (r *Registry) Resolve(rawURL string) Registration {
	host := hostOf(rawURL)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if host != "" {
		for _, e := range r.entries {
			for _, g := range e.globs {
				if g.Match(host) {
					return e.reg
				}
			}
		}
	}
	return r.fallback
}

// Names lists registered variants in resolution order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries)+1)
	for _, e := range r.entries {
		names = append(names, e.reg.Name)
	}
	return append(names, r.fallback.Name)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

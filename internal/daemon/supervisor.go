package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/site"
	"github.com/matheus3301/wppilot/internal/status"
	"go.uber.org/zap"
)

// Collector runs collection passes. site.Host satisfies it.
type Collector interface {
	CollectContext(ctx context.Context, opts site.Options) site.Context
	ObserveContextChanges(onChange func(reason string)) (dispose func())
}

// QRCode is the payload of session.qr_generated events.
type QRCode struct {
	Code string `json:"code"`
}

// LoggedIn is the payload of session.logged_in events.
type LoggedIn struct {
	URL string `json:"url"`
}

// Supervisor collects the page context whenever the handler reports a change
// and on a slow interval, and folds the page status into the state machine.
// Each pass also feeds the ledger and the archive through the handler.
type Supervisor struct {
	page     Collector
	machine  *status.Machine
	bus      *bus.Bus
	logger   *zap.Logger
	opts     site.Options
	interval time.Duration

	kick     chan struct{}
	cancel   context.CancelFunc
	dispose  func()
	wg       sync.WaitGroup
	lastCode string
}

// NewSupervisor creates a supervisor. A zero interval collects every 10s.
func NewSupervisor(page Collector, machine *status.Machine, b *bus.Bus, logger *zap.Logger, opts site.Options, interval time.Duration) *Supervisor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Supervisor{
		page:     page,
		machine:  machine,
		bus:      b,
		logger:   logger.Named("supervisor"),
		opts:     opts,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Start runs a first pass and then follows changes until Stop.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.dispose = s.page.ObserveContextChanges(func(reason string) {
		s.logger.Debug("context changed", zap.String("reason", reason))
		s.Notify()
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop ends the loop and waits for an in-flight pass.
func (s *Supervisor) Stop() {
	if s.dispose != nil {
		s.dispose()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Notify schedules a pass. Requests made while one is pending coalesce.
func (s *Supervisor) Notify() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Supervisor) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.collect(ctx)
	for {
		select {
		case <-s.kick:
			s.collect(ctx)
		case <-ticker.C:
			s.collect(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Supervisor) collect(ctx context.Context) {
	pc := s.page.CollectContext(ctx, s.opts)
	if ctx.Err() != nil {
		return
	}

	prev := s.machine.Current()
	if s.machine.Observe(pc.Status) {
		next := s.machine.Current()
		s.logger.Info("session status", zap.String("from", string(prev)), zap.String("to", string(next)), zap.String("site", pc.Site))
		if prev == status.LoginRequired && next == status.Ready {
			s.bus.Emit(bus.KindLoggedIn, LoggedIn{URL: pc.URL})
		}
	}

	if pc.LoginCode != "" && pc.LoginCode != s.lastCode {
		s.logger.Info("login code refreshed")
		s.bus.Emit(bus.KindQRGenerated, QRCode{Code: pc.LoginCode})
	}
	s.lastCode = pc.LoginCode
}

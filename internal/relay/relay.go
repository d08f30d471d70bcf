// Package relay bridges the daemon to a NATS server: page actions and
// context collection are served as request/reply, and bus events are
// republished for remote subscribers.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/site"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultPrefix is used when no subject prefix is configured.
const DefaultPrefix = "wppilot"

// requestTimeout bounds one relayed action.
const requestTimeout = 90 * time.Second

// Subjects are the NATS subjects of one session.
type Subjects struct {
	Action  string
	Context string
	Events  string
}

// SubjectsFor builds the subjects for session under prefix.
func SubjectsFor(prefix, session string) Subjects {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	base := prefix + "." + session
	return Subjects{
		Action:  base + ".action",
		Context: base + ".context",
		Events:  base + ".events",
	}
}

// Connect dials the NATS server with reconnects enabled.
func Connect(url, session string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("wppilot-"+session),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// Relay serves one session over NATS.
type Relay struct {
	nc       *nats.Conn
	subjects Subjects
	page     api.Automator
	bus      *bus.Bus
	logger   *zap.Logger

	mu     sync.Mutex
	subs   []*nats.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a relay. It does nothing until Start.
func New(nc *nats.Conn, subjects Subjects, page api.Automator, b *bus.Bus, logger *zap.Logger) *Relay {
	return &Relay{
		nc:       nc,
		subjects: subjects,
		page:     page,
		bus:      b,
		logger:   logger.Named("relay"),
	}
}

// Start subscribes the request subjects and begins forwarding events.
func (r *Relay) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	handlers := map[string]func(context.Context, []byte) []byte{
		r.subjects.Action:  r.handleAction,
		r.subjects.Context: r.handleContext,
	}
	var subs []*nats.Subscription
	for subject, handle := range handlers {
		sub, err := r.nc.Subscribe(subject, func(msg *nats.Msg) {
			reqCtx, done := context.WithTimeout(ctx, requestTimeout)
			defer done()
			reply := handle(reqCtx, msg.Data)
			if msg.Reply == "" {
				return
			}
			if err := msg.Respond(reply); err != nil {
				r.logger.Warn("reply failed", zap.String("subject", msg.Subject), zap.Error(err))
			}
		})
		if err != nil {
			cancel()
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	events, unsub := r.bus.Subscribe("", 256)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unsub()
		r.forward(ctx, events)
	}()

	r.mu.Lock()
	r.subs = subs
	r.cancel = cancel
	r.mu.Unlock()

	r.logger.Info("relay started",
		zap.String("action", r.subjects.Action),
		zap.String("context", r.subjects.Context),
		zap.String("events", r.subjects.Events))
	return nil
}

// Stop unsubscribes and flushes pending publishes. The connection stays open.
func (r *Relay) Stop() {
	r.mu.Lock()
	subs := r.subs
	cancel := r.cancel
	r.subs, r.cancel = nil, nil
	r.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	if err := r.nc.Flush(); err != nil && !r.nc.IsClosed() {
		r.logger.Warn("flush failed", zap.Error(err))
	}
}

func (r *Relay) forward(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case evt := <-events:
			data, err := encodeEvent(evt)
			if err != nil {
				r.logger.Debug("event not encodable", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := r.nc.Publish(r.subjects.Events, data); err != nil {
				r.logger.Warn("publish event failed", zap.String("kind", evt.Kind), zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Relay) handleAction(ctx context.Context, data []byte) []byte {
	var req api.ActionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return mustJSON(site.Failure(site.NewInvalidRequest(fmt.Sprintf("decode request: %v", err))))
	}
	if strings.TrimSpace(req.Action) == "" {
		return mustJSON(site.Failure(site.NewInvalidRequest("action is required")))
	}
	res := r.page.RunAction(ctx, req.Action, req.Args)
	r.logger.Debug("relayed action", zap.String("action", req.Action), zap.Bool("ok", res.OK))
	return mustJSON(res)
}

func (r *Relay) handleContext(ctx context.Context, data []byte) []byte {
	var req api.CollectRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return mustJSON(site.Failure(site.NewInvalidRequest(fmt.Sprintf("decode request: %v", err))))
		}
	}
	pc := r.page.CollectContext(ctx, site.Options{TextLimit: req.TextLimit, MessageLimit: req.MessageLimit})
	return mustJSON(pc)
}

func encodeEvent(evt bus.Event) ([]byte, error) {
	return json.Marshal(api.EventEnvelope{
		ID:         evt.ID,
		Kind:       evt.Kind,
		OccurredAt: evt.Timestamp.UnixMilli(),
		Payload:    evt.Payload,
	})
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(site.Failure(err))
	}
	return b
}

// Close stops the relay and closes its connection.
func (r *Relay) Close() {
	r.Stop()
	r.nc.Close()
}

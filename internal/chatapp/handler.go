// Package chatapp automates the chat web app: it reads the open conversation
// and inbox into a structured context, tracks which messages were already
// seen, and drives the UI to open, send and archive.
package chatapp

import (
	"context"
	gosync "sync"
	"time"

	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/page"
	"github.com/matheus3301/wppilot/internal/site"
	syncpkg "github.com/matheus3301/wppilot/internal/sync"
	"go.uber.org/zap"
)

// Name is the registry name of the handler.
const Name = "chatapp"

// DefaultPatterns are the hosts the handler serves.
var DefaultPatterns = []string{"web.whatsapp.com"}

// Action failure codes.
const (
	ErrComposerNotFound      = "composer_not_found"
	ErrComposerMismatch      = "composer_text_mismatch"
	ErrChatNotFound          = "chat_not_found"
	ErrChatNotOpen           = "chat_not_open"
	ErrChatNotConfirmed      = "chat_not_confirmed"
	ErrArchiveNotFound       = "archive_action_not_found"
	ErrSendButtonNotFound    = "send_button_not_found"
	ErrPhoneMismatch         = "phone_mismatch"
	ErrPhoneNotDetected      = "phone_not_detected"
	ErrSendUnconfirmed       = "send_unconfirmed"
	ErrUnconfirmedInComposer = "unconfirmed_in_composer"
	ErrPageNotReady          = "page_not_ready"
)

// Config holds the timing knobs of collection and actions.
type Config struct {
	MessageLimit     int
	Debounce         time.Duration
	Heartbeat        time.Duration
	DedupeWindow     time.Duration
	IdentityTimeout  time.Duration
	ComposerTimeout  time.Duration
	SendReadyTimeout time.Duration
	ConfirmTimeout   time.Duration
	OpenTimeout      time.Duration
	MenuTimeout      time.Duration
	PollInterval     time.Duration
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		MessageLimit:     DefaultMessageLimit,
		Debounce:         200 * time.Millisecond,
		Heartbeat:        2 * time.Second,
		DedupeWindow:     6 * time.Second,
		IdentityTimeout:  2200 * time.Millisecond,
		ComposerTimeout:  1500 * time.Millisecond,
		SendReadyTimeout: 1200 * time.Millisecond,
		ConfirmTimeout:   2600 * time.Millisecond,
		OpenTimeout:      2500 * time.Millisecond,
		MenuTimeout:      1200 * time.Millisecond,
		PollInterval:     100 * time.Millisecond,
	}
}

// Handler is the chat app site handler. One mutex serializes collection
// passes and actions; helpers ending in Locked expect it held.
type Handler struct {
	mu     gosync.Mutex
	page   page.Page
	ledger *syncpkg.Ledger
	bus    *bus.Bus
	logger *zap.Logger
	cfg    Config
	now    func() time.Time

	sent     *sentWindow
	observed ObservedChat
	myNumber string
	inboxSig string
}

// New creates a handler for p. bus may be nil.
func New(p page.Page, ledger *syncpkg.Ledger, b *bus.Bus, logger *zap.Logger, cfg Config) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = DefaultMessageLimit
	}
	return &Handler{
		page:   p,
		ledger: ledger,
		bus:    b,
		logger: logger.With(zap.String("handler", Name)),
		cfg:    cfg,
		now:    time.Now,
		sent:   newSentWindow(cfg.DedupeWindow),
	}
}

// NewRegistration describes the handler for a site.Registry.
func NewRegistration(ledger *syncpkg.Ledger, b *bus.Bus, logger *zap.Logger, cfg Config, patterns []string) site.Registration {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return site.Registration{
		Name:     Name,
		Patterns: patterns,
		Priority: 100,
		New: func(p page.Page) site.Handler {
			return New(p, ledger, b, logger, cfg)
		},
	}
}

func (h *Handler) Name() string { return Name }

func (h *Handler) poll(timeout time.Duration) page.PollOptions {
	return page.PollOptions{Timeout: timeout, Interval: h.cfg.PollInterval}
}

func (h *Handler) emit(kind string, payload any) {
	if h.bus != nil {
		h.bus.Emit(kind, payload)
	}
}

// sentWindow remembers recently sent (chat, text) fingerprints.
type sentWindow struct {
	window  time.Duration
	entries map[string]time.Time
}

func newSentWindow(window time.Duration) *sentWindow {
	return &sentWindow{window: window, entries: make(map[string]time.Time)}
}

func (w *sentWindow) seen(fp string, now time.Time) bool {
	for k, t := range w.entries {
		if now.Sub(t) >= w.window {
			delete(w.entries, k)
		}
	}
	_, ok := w.entries[fp]
	return ok
}

func (w *sentWindow) record(fp string, now time.Time) {
	w.entries[fp] = now
}

var _ site.Handler = (*Handler)(nil)

// RunAction dispatches one action. It never panics.
func (h *Handler) RunAction(ctx context.Context, action string, args map[string]any) (res site.Result) {
	defer site.Recover(&res)

	h.mu.Lock()
	defer h.mu.Unlock()

	start := h.now()
	v, err := h.dispatchLocked(ctx, action, args)
	if err != nil {
		res = site.Failure(err)
	} else {
		res = site.OK(v)
	}
	h.logger.Debug("action finished",
		zap.String("action", action),
		zap.Bool("ok", res.OK),
		zap.String("error", res.Error),
		zap.Duration("took", h.now().Sub(start)))
	h.emit(bus.KindActionDone, ActionReport{Action: action, OK: res.OK, Error: res.Error})
	return res
}

// ActionReport is the payload of action.completed events.
type ActionReport struct {
	Action string
	OK     bool
	Error  string
}

func (h *Handler) dispatchLocked(ctx context.Context, action string, args map[string]any) (any, error) {
	switch action {
	case "getMyNumber":
		return h.getMyNumberLocked(ctx)
	case "getCurrentChat":
		return h.getCurrentChatLocked(ctx)
	case "readMessages", "getListMessages":
		a, err := site.Decode[readArgs](args)
		if err != nil {
			return nil, err
		}
		return h.readMessagesLocked(ctx, a)
	case "getInbox", "getListInbox":
		a, err := site.Decode[inboxArgs](args)
		if err != nil {
			return nil, err
		}
		return h.getInboxLocked(ctx, a)
	case "sendMessage":
		a, err := site.Decode[sendArgs](args)
		if err != nil {
			return nil, err
		}
		return h.sendLocked(ctx, a)
	case "openChat", "openChatByQuery":
		a, err := site.Decode[openArgs](args)
		if err != nil {
			return nil, err
		}
		return h.openLocked(ctx, a)
	case "openChatAndSendMessage", "openAndSendMessage":
		a, err := site.Decode[openSendArgs](args)
		if err != nil {
			return nil, err
		}
		return h.openAndSendLocked(ctx, a)
	case "archiveChats", "archiveListChats":
		a, err := site.Decode[archiveArgs](args)
		if err != nil {
			return nil, err
		}
		return h.archiveLocked(ctx, a, ScopeAll)
	case "archiveGroups":
		a, err := site.Decode[archiveArgs](args)
		if err != nil {
			return nil, err
		}
		return h.archiveLocked(ctx, a, ScopeGroups)
	case "getAutomationPack":
		return h.automationPackLocked(ctx)
	case "getSyncStatus":
		return h.syncStatusLocked(ctx)
	case "getLoginCode":
		return h.loginCodeLocked(ctx)
	default:
		return nil, site.NewUnknownAction(Name, action)
	}
}

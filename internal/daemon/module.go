package daemon

import (
	"context"
	"time"

	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/browser"
	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/chatapp"
	"github.com/matheus3301/wppilot/internal/config"
	"github.com/matheus3301/wppilot/internal/lock"
	"github.com/matheus3301/wppilot/internal/logging"
	"github.com/matheus3301/wppilot/internal/outbox"
	"github.com/matheus3301/wppilot/internal/page"
	"github.com/matheus3301/wppilot/internal/relay"
	"github.com/matheus3301/wppilot/internal/session"
	"github.com/matheus3301/wppilot/internal/site"
	"github.com/matheus3301/wppilot/internal/status"
	"github.com/matheus3301/wppilot/internal/store"
	intsync "github.com/matheus3301/wppilot/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // nil = load ~/.wppilot/config.toml
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideLedger,
			provideSyncEngine,
			provideBrowser,
			provideRegistry,
			provideHost,
			provideSupervisor,
			provideSender,
			provideService,
			provideRelay,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, cfg.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is never opened by a
// second daemon.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideLedger(db *store.DB, logger *zap.Logger) *intsync.Ledger {
	ledger := intsync.NewLedger(intsync.NewCheckpoints(db, logger), logger)
	ledger.Load()
	return ledger
}

func provideSyncEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger)
}

func provideBrowser(p Params, cfg *config.Config, _ *lock.Lock, machine *status.Machine, logger *zap.Logger) (*browser.Browser, error) {
	if err := machine.Transition(status.Launching); err != nil {
		return nil, err
	}
	br, err := browser.Launch(browserOptions(p.SessionName, cfg.Browser), logger)
	if err != nil {
		_ = machine.Transition(status.Error)
		return nil, err
	}
	return br, nil
}

func browserOptions(sessionName string, c config.Browser) browser.Options {
	return browser.Options{
		URL:        c.URL,
		ProfileDir: session.ProfileDir(sessionName),
		Headless:   c.Headless,
		Channel:    c.Channel,
		Width:      c.ViewportWidth,
		Height:     c.ViewportHeight,
		TimeoutMs:  float64(c.Timeout.Milliseconds()),
		Install:    c.Install,
	}
}

// chatConfig maps the automation section onto the chat handler. Zero values
// keep the handler defaults.
func chatConfig(a config.Automation) chatapp.Config {
	c := chatapp.DefaultConfig()
	if a.MessageLimit > 0 {
		c.MessageLimit = a.MessageLimit
	}
	for _, d := range []struct {
		dst *time.Duration
		src config.Duration
	}{
		{&c.Debounce, a.Debounce},
		{&c.Heartbeat, a.Heartbeat},
		{&c.DedupeWindow, a.DedupeWindow},
		{&c.IdentityTimeout, a.IdentityTimeout},
		{&c.ComposerTimeout, a.ComposerTimeout},
		{&c.SendReadyTimeout, a.SendReadyTimeout},
		{&c.ConfirmTimeout, a.ConfirmTimeout},
		{&c.OpenTimeout, a.OpenTimeout},
		{&c.MenuTimeout, a.MenuTimeout},
		{&c.PollInterval, a.PollInterval},
	} {
		if d.src.Duration > 0 {
			*d.dst = d.src.Duration
		}
	}
	return c
}

func provideRegistry(cfg *config.Config, ledger *intsync.Ledger, b *bus.Bus, logger *zap.Logger) (*site.Registry, error) {
	chatCfg := chatConfig(cfg.Automation)
	observer := site.ObserverConfig{Debounce: chatCfg.Debounce, Heartbeat: chatCfg.Heartbeat}
	generic := func(p page.Page) site.Handler {
		return site.NewGeneric(p, observer, logger)
	}

	r := site.NewRegistry(generic)
	if err := r.Register(chatapp.NewRegistration(ledger, b, logger, chatCfg, nil)); err != nil {
		return nil, err
	}
	for _, s := range cfg.Sites {
		reg := site.Registration{Name: s.Name, Patterns: s.Patterns, Priority: s.Priority, New: generic}
		if s.Name == chatapp.Name {
			reg = chatapp.NewRegistration(ledger, b, logger, chatCfg, s.Patterns)
			reg.Priority = s.Priority
		}
		if reg.Name == "" {
			reg.Name = site.GenericName
		}
		if err := r.Register(reg); err != nil {
			return nil, err
		}
	}
	logger.Info("site handlers registered", zap.Strings("handlers", r.Names()))
	return r, nil
}

func provideHost(br *browser.Browser, r *site.Registry, b *bus.Bus, logger *zap.Logger) *site.Host {
	return site.NewHost(br.Tab(), r, b, logger)
}

func provideSupervisor(host *site.Host, machine *status.Machine, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *Supervisor {
	opts := site.Options{TextLimit: cfg.Automation.TextLimit, MessageLimit: cfg.Automation.MessageLimit}
	return NewSupervisor(host, machine, b, logger, opts, 0)
}

func provideSender(db *store.DB, host *site.Host, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, host, b, logger, 0)
}

func provideService(p Params, machine *status.Machine, host *site.Host, db *store.DB, ledger *intsync.Ledger, b *bus.Bus, logger *zap.Logger) *api.Service {
	return api.NewService(p.SessionName, machine, host, db, ledger, b, logger)
}

// provideRelay returns nil when no NATS server is configured.
func provideRelay(p Params, cfg *config.Config, host *site.Host, b *bus.Bus, logger *zap.Logger) (*relay.Relay, error) {
	if cfg.Relay.NATSURL == "" {
		return nil, nil
	}
	nc, err := relay.Connect(cfg.Relay.NATSURL, p.SessionName, logger)
	if err != nil {
		return nil, err
	}
	return relay.New(nc, relay.SubjectsFor(cfg.Relay.SubjectPrefix, p.SessionName), host, b, logger), nil
}

type lifecycleParams struct {
	fx.In

	Server     *Server
	Lock       *lock.Lock
	DB         *store.DB
	Browser    *browser.Browser
	Host       *site.Host
	Supervisor *Supervisor
	Engine     *intsync.Engine
	Sender     *outbox.Sender
	Relay      *relay.Relay
	Logger     *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, in lifecycleParams) {
	logger := in.Logger
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Archive first so the first collection pass is stored.
			in.Engine.Start(context.Background())

			if err := in.Host.Start(); err != nil {
				return err
			}
			in.Supervisor.Start(context.Background())

			go func() {
				if err := in.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			in.Sender.Start(context.Background())

			if in.Relay != nil {
				if err := in.Relay.Start(context.Background()); err != nil {
					return err
				}
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if in.Relay != nil {
				in.Relay.Close()
			}
			in.Sender.Stop()
			in.Supervisor.Stop()

			stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			in.Server.Stop(stopCtx)
			cancel()

			in.Host.Stop()
			in.Engine.Stop()
			if err := in.Browser.Close(); err != nil {
				logger.Warn("error closing browser", zap.Error(err))
			}
			if err := in.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := in.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

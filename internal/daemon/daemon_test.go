package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/chatapp"
	"github.com/matheus3301/wppilot/internal/config"
	"github.com/matheus3301/wppilot/internal/site"
	"github.com/matheus3301/wppilot/internal/status"
	"github.com/matheus3301/wppilot/internal/store"
	intsync "github.com/matheus3301/wppilot/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func TestModuleGraphIsComplete(t *testing.T) {
	err := fx.ValidateApp(Module(Params{SessionName: "test", Config: config.Default()}))
	require.NoError(t, err)
}

func TestChatConfigKeepsDefaultsForZeroValues(t *testing.T) {
	a := config.Automation{
		MessageLimit:   20,
		ConfirmTimeout: config.Duration{Duration: 5 * time.Second},
	}
	c := chatConfig(a)
	def := chatapp.DefaultConfig()

	assert.Equal(t, 20, c.MessageLimit)
	assert.Equal(t, 5*time.Second, c.ConfirmTimeout)
	assert.Equal(t, def.IdentityTimeout, c.IdentityTimeout)
	assert.Equal(t, def.DedupeWindow, c.DedupeWindow)
}

func TestChatConfigFromDefaults(t *testing.T) {
	assert.Equal(t, chatapp.DefaultConfig(), chatConfig(config.Default().Automation))
}

func TestBrowserOptions(t *testing.T) {
	t.Setenv("WPPILOT_HOME", t.TempDir())
	c := config.Default().Browser
	c.Headless = true

	opts := browserOptions("work", c)
	assert.Equal(t, "https://web.whatsapp.com/", opts.URL)
	assert.True(t, opts.Headless)
	assert.Equal(t, float64(30000), opts.TimeoutMs)
	assert.Equal(t, filepath.Join(os.Getenv("WPPILOT_HOME"), "sessions", "work", "profile"), opts.ProfileDir)
}

func TestRegistryResolution(t *testing.T) {
	cfg := config.Default()
	cfg.Sites = []config.Site{
		{Name: "intranet", Patterns: []string{"*.corp.example"}},
		{Name: chatapp.Name, Patterns: []string{"chat.mirror.example"}, Priority: 50},
	}
	ledger := intsync.NewLedger(nil, zap.NewNop())

	r, err := provideRegistry(cfg, ledger, bus.New(), zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		url  string
		want string
	}{
		{"https://web.whatsapp.com/", chatapp.Name},
		{"https://chat.mirror.example/", chatapp.Name},
		{"https://wiki.corp.example/page", "intranet"},
		{"https://example.org/", site.GenericName},
		{"about:blank", site.GenericName},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.url).Name)
		})
	}
}

func TestRegistryRejectsBadSitePattern(t *testing.T) {
	cfg := config.Default()
	cfg.Sites = []config.Site{{Name: "broken"}}

	_, err := provideRegistry(cfg, intsync.NewLedger(nil, zap.NewNop()), bus.New(), zap.NewNop())
	assert.Error(t, err)
}

// fakeCollector replays a scripted sequence of contexts.
type fakeCollector struct {
	mu       sync.Mutex
	contexts []site.Context
	calls    int
	onChange func(string)
}

func (f *fakeCollector) CollectContext(context.Context, site.Options) site.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.contexts) {
		i = len(f.contexts) - 1
	}
	f.calls++
	return f.contexts[i]
}

func (f *fakeCollector) ObserveContextChanges(onChange func(string)) func() {
	f.mu.Lock()
	f.onChange = onChange
	f.mu.Unlock()
	return func() {}
}

func (f *fakeCollector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSupervisorFirstLogin(t *testing.T) {
	b := bus.New()
	events, unsub := b.Subscribe("session.", 32)
	defer unsub()

	machine := status.NewMachine(b)
	require.NoError(t, machine.Transition(status.Launching))

	page := &fakeCollector{contexts: []site.Context{
		{Status: site.StatusLoginRequired, LoginCode: "code-1"},
		{Status: site.StatusLoginRequired, LoginCode: "code-1"},
		{Status: site.StatusLoginRequired, LoginCode: "code-2"},
		{Status: site.StatusReady, URL: "https://web.whatsapp.com/"},
	}}
	s := NewSupervisor(page, machine, b, zap.NewNop(), site.Options{}, time.Hour)

	ctx := context.Background()
	for range page.contexts {
		s.collect(ctx)
	}
	assert.Equal(t, status.Ready, machine.Current())

	var kinds []string
	var codes []string
	for len(events) > 0 {
		evt := <-events
		kinds = append(kinds, evt.Kind)
		if qr, ok := evt.Payload.(QRCode); ok {
			codes = append(codes, qr.Code)
		}
	}
	assert.Equal(t, []string{"code-1", "code-2"}, codes, "unchanged codes are not republished")
	assert.Equal(t, []string{
		bus.KindStatusChanged, // LAUNCHING -> LOGIN_REQUIRED
		bus.KindQRGenerated,
		bus.KindQRGenerated,
		bus.KindStatusChanged, // LOGIN_REQUIRED -> READY
		bus.KindLoggedIn,
	}, kinds)
}

func TestSupervisorCollectsOnChange(t *testing.T) {
	b := bus.New()
	machine := status.NewMachine(b)
	require.NoError(t, machine.Transition(status.Launching))

	page := &fakeCollector{contexts: []site.Context{{Status: site.StatusLoading}}}
	s := NewSupervisor(page, machine, b, zap.NewNop(), site.Options{}, time.Hour)
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return page.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, status.Loading, machine.Current())

	page.mu.Lock()
	notify := page.onChange
	page.mu.Unlock()
	require.NotNil(t, notify)
	notify("mutation")

	require.Eventually(t, func() bool { return page.count() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerServesAutomationAPI(t *testing.T) {
	// Short path to stay under the Unix socket length limit.
	dir, err := os.MkdirTemp("/tmp", "wppilot-d-*")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(dir) }()

	db, err := store.Open(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	b := bus.New()
	machine := status.NewMachine(b)
	require.NoError(t, machine.Transition(status.Launching))
	require.True(t, machine.Observe(site.StatusLoginRequired))

	logger := zap.NewNop()
	svc := api.NewService("test", machine, nil, db, nil, b, logger)
	socket := filepath.Join(dir, "d.sock")
	srv, err := NewServer(Params{SessionName: "test", SocketPath: socket}, logger, svc)
	require.NoError(t, err)
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	info, err := os.Stat(socket)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	client, err := api.Dial(srv.SocketPath())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test", st.Session)
	assert.Equal(t, string(status.LoginRequired), st.Status)
}

func TestServerReplacesStaleSocket(t *testing.T) {
	dir, err := os.MkdirTemp("/tmp", "wppilot-d-*")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(dir) }()

	socket := filepath.Join(dir, "d.sock")
	require.NoError(t, os.WriteFile(socket, nil, 0600))

	svc := api.NewService("test", status.NewMachine(nil), nil, nil, nil, bus.New(), zap.NewNop())
	srv, err := NewServer(Params{SessionName: "test", SocketPath: socket}, zap.NewNop(), svc)
	require.NoError(t, err)
	srv.Stop(context.Background())

	_, err = os.Stat(socket)
	assert.True(t, os.IsNotExist(err))
}

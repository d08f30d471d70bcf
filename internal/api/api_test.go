package api

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/site"
	"github.com/matheus3301/wppilot/internal/status"
	"github.com/matheus3301/wppilot/internal/store"
	syncpkg "github.com/matheus3301/wppilot/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

type fakePage struct {
	mu      sync.Mutex
	actions []ActionRequest
}

func (f *fakePage) Name() string { return "chatapp" }
func (f *fakePage) URL() string  { return "https://web.whatsapp.com/" }

func (f *fakePage) CollectContext(_ context.Context, opts site.Options) site.Context {
	return site.Context{
		Site:    "chatapp",
		URL:     f.URL(),
		Status:  site.StatusReady,
		Details: map[string]any{"messageLimit": opts.MessageLimit},
	}
}

func (f *fakePage) RunAction(_ context.Context, action string, args map[string]any) site.Result {
	f.mu.Lock()
	f.actions = append(f.actions, ActionRequest{Action: action, Args: args})
	f.mu.Unlock()
	if action == "sendMessage" {
		return site.Failure(site.NewActionError("phone_mismatch", "wrong chat", map[string]any{"expectedPhone": "+1"}))
	}
	return site.OK(map[string]any{"action": action, "echo": args})
}

type harness struct {
	client *Client
	db     *store.DB
	ledger *syncpkg.Ledger
	bus    *bus.Bus
	page   *fakePage
}

func newHarness(t *testing.T, withPage bool) *harness {
	t.Helper()
	// Short path to stay under the Unix socket length limit.
	dir, err := os.MkdirTemp("/tmp", "wppilot-api-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	db, err := store.Open(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	b := bus.New()
	ledger := syncpkg.NewLedger(syncpkg.NewCheckpoints(db, logger), logger)
	h := &harness{db: db, ledger: ledger, bus: b, page: &fakePage{}}

	var page Automator
	if withPage {
		page = h.page
	}
	svc := NewService("test", status.NewMachine(b), page, db, ledger, b, logger)

	socket := filepath.Join(dir, "d.sock")
	lis, err := net.Listen("unix", socket)
	require.NoError(t, err)
	srv := grpc.NewServer()
	Register(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	h.client, err = Dial(socket)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.client.Close() })
	return h
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestGetStatus(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.db.UpsertChat(&store.Chat{ChannelID: "jid:1@c.us", Title: "Ana"}))
	require.NoError(t, h.db.QueueOutbox("c1", "Ana", "", "hi"))

	info, err := h.client.Status(ctx(t))
	require.NoError(t, err)
	assert.Equal(t, "test", info.Session)
	assert.Equal(t, string(status.Booting), info.Status)
	assert.Equal(t, "chatapp", info.Handler)
	assert.Equal(t, "https://web.whatsapp.com/", info.URL)
	assert.EqualValues(t, 1, info.ChatCount)
	assert.Equal(t, 1, info.OutboxPending)
	assert.Zero(t, info.EventsDropped)

	// Nothing ever reads an unbuffered subscription, so every event drops.
	_, unsub := h.bus.Subscribe("chat.", 0)
	defer unsub()
	h.bus.Emit(bus.KindChatObserved, nil)

	info, err = h.client.Status(ctx(t))
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.EventsDropped)
}

func TestCollectContext(t *testing.T) {
	h := newHarness(t, true)

	pc, err := h.client.CollectContext(ctx(t), CollectRequest{MessageLimit: 5})
	require.NoError(t, err)
	assert.Equal(t, "chatapp", pc.Site)
	assert.Equal(t, site.StatusReady, pc.Status)
	details, ok := pc.Details.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 5, details["messageLimit"])
}

func TestRunActionCarriesResults(t *testing.T) {
	h := newHarness(t, true)

	res, err := h.client.RunAction(ctx(t), "openChat", map[string]any{"query": "Ana"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	body := res.Result.(map[string]any)
	assert.Equal(t, "openChat", body["action"])

	res, err = h.client.RunAction(ctx(t), "sendMessage", map[string]any{"text": "hi"})
	require.NoError(t, err, "action failures are results, not transport errors")
	assert.False(t, res.OK)
	assert.Equal(t, "phone_mismatch", res.Error)
	assert.Equal(t, "phone_mismatch", res.Result.(map[string]any)["reason"])

	h.page.mu.Lock()
	defer h.page.mu.Unlock()
	require.Len(t, h.page.actions, 2)
	assert.Equal(t, "Ana", h.page.actions[0].Args["query"])
}

func TestRunActionRequiresName(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.client.RunAction(ctx(t), " ", nil)
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))
}

func TestPageCallsUnavailableWithoutBrowser(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.client.RunAction(ctx(t), "getInbox", nil)
	assert.Equal(t, codes.Unavailable, grpcstatus.Code(err))
	_, err = h.client.CollectContext(ctx(t), CollectRequest{})
	assert.Equal(t, codes.Unavailable, grpcstatus.Code(err))

	info, err := h.client.Status(ctx(t))
	require.NoError(t, err)
	assert.Empty(t, info.Handler)
}

func TestQueueMessage(t *testing.T) {
	h := newHarness(t, true)

	resp, err := h.client.QueueMessage(ctx(t), QueueRequest{Chat: "Ana", Text: "hello", ExpectedPhone: "+34600111222"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ClientMsgID)
	assert.Equal(t, "queued", resp.Status)

	_, err = h.client.QueueMessage(ctx(t), QueueRequest{ClientMsgID: "fixed", Chat: "Ana", Text: "one"})
	require.NoError(t, err)
	_, err = h.client.QueueMessage(ctx(t), QueueRequest{ClientMsgID: "fixed", Chat: "Ana", Text: "two"})
	assert.Equal(t, codes.AlreadyExists, grpcstatus.Code(err))

	_, err = h.client.QueueMessage(ctx(t), QueueRequest{Chat: "Ana"})
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))

	items, err := h.client.ListOutbox(ctx(t), 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "fixed", items[0].ClientMsgID)
	assert.Equal(t, "hello", items[1].Text)
	assert.Equal(t, "+34600111222", items[1].ExpectedPhone)
}

func TestSearchMessages(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.db.UpsertMessage(&store.Message{ChannelID: "jid:1@c.us", MsgID: "m1", Role: "contact", Kind: "text", Body: "see you at the harbour"}))
	require.NoError(t, h.db.UpsertMessage(&store.Message{ChannelID: "jid:2@c.us", MsgID: "m2", Role: "me", Kind: "text", Body: "harbour closed today"}))

	hits, err := h.client.SearchMessages(ctx(t), SearchRequest{Query: "harbour"})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = h.client.SearchMessages(ctx(t), SearchRequest{Query: "harbour", ChannelID: "jid:1@c.us"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m1", hits[0].MessageID)
	assert.Contains(t, hits[0].Snippet, "<<harbour>>")

	_, err = h.client.SearchMessages(ctx(t), SearchRequest{})
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))
}

func TestListLedger(t *testing.T) {
	h := newHarness(t, true)
	h.ledger.Update("jid:1@c.us", "34600111222@c.us", "Ana", "+34600111222", []string{"a", "b"})

	view, err := h.client.ListLedger(ctx(t))
	require.NoError(t, err)
	require.Len(t, view.Chats, 1)
	assert.Equal(t, "jid:1@c.us", view.Chats[0].ChannelID)
	assert.Equal(t, "b", view.Chats[0].LastMessageID)
	assert.Equal(t, []string{"a", "b"}, view.Chats[0].MessageIDs)
}

func TestWatchEvents(t *testing.T) {
	h := newHarness(t, true)
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan EventEnvelope, 8)
	done := make(chan error, 1)
	go func() {
		done <- h.client.WatchEvents(c, "message.", func(env EventEnvelope) error {
			got <- env
			return nil
		})
	}()

	// The server subscribes asynchronously; keep publishing until one lands.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	var env EventEnvelope
wait:
	for {
		select {
		case env = <-got:
			break wait
		case <-ticker.C:
			h.bus.Emit("context.changed", map[string]any{"ignored": true})
			h.bus.Emit(bus.KindSendAck, map[string]any{"clientMsgId": "c1"})
		case <-c.Done():
			t.Fatal("timeout waiting for streamed event")
		}
	}

	assert.Equal(t, bus.KindSendAck, env.Kind)
	assert.NotEmpty(t, env.ID)
	assert.NotZero(t, env.OccurredAt)
	assert.Equal(t, "c1", env.Payload.(map[string]any)["clientMsgId"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

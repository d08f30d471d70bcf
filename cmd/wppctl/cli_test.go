package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/config"
	"github.com/matheus3301/wppilot/internal/lock"
	"github.com/matheus3301/wppilot/internal/session"
	"github.com/matheus3301/wppilot/internal/site"
)

type fakeBackend struct {
	socket string
	page   site.Context
	result site.Result
	action string
	args   map[string]any
	queued api.QueueRequest
	events []api.EventEnvelope
	closed bool
}

func (f *fakeBackend) Status(context.Context) (api.StatusInfo, error) {
	return api.StatusInfo{Session: "work", Status: "READY", Handler: "whatsapp", OutboxPending: 2}, nil
}

func (f *fakeBackend) CollectContext(context.Context, api.CollectRequest) (site.Context, error) {
	return f.page, nil
}

func (f *fakeBackend) RunAction(_ context.Context, action string, args map[string]any) (site.Result, error) {
	f.action, f.args = action, args
	return f.result, nil
}

func (f *fakeBackend) QueueMessage(_ context.Context, req api.QueueRequest) (api.QueueResponse, error) {
	f.queued = req
	return api.QueueResponse{ClientMsgID: "c-1", Status: "queued"}, nil
}

func (f *fakeBackend) ListOutbox(context.Context, int) ([]api.OutboxItem, error) {
	return []api.OutboxItem{{ClientMsgID: "c-1", Chat: "Ana", Text: "hi", Status: "failed", Error: "chat_not_found"}}, nil
}

func (f *fakeBackend) SearchMessages(_ context.Context, req api.SearchRequest) ([]api.SearchHit, error) {
	return []api.SearchHit{{ChannelID: "phone:+34600111222", Role: "me", Snippet: "<<" + req.Query + ">>"}}, nil
}

func (f *fakeBackend) ListLedger(context.Context) (api.LedgerView, error) {
	return api.LedgerView{}, nil
}

func (f *fakeBackend) WatchEvents(_ context.Context, _ string, fn func(api.EventEnvelope) error) error {
	for _, env := range f.events {
		if err := fn(env); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func run(t *testing.T, f *fakeBackend, args ...string) (string, error) {
	t.Helper()
	t.Setenv(session.HomeEnv, t.TempDir())
	prev := dial
	dial = func(socket string) (backend, error) {
		f.socket = socket
		return f, nil
	}
	t.Cleanup(func() { dial = prev })

	var out bytes.Buffer
	err := newCLIApp(&out).Run(append([]string{"wppctl"}, args...))
	return out.String(), err
}

func TestStatus(t *testing.T) {
	f := &fakeBackend{}
	out, err := run(t, f, "--session", "work", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "READY")
	assert.Contains(t, out, "2 pending")
	assert.Equal(t, session.SocketPath("work"), f.socket)
	assert.True(t, f.closed)
}

func TestStatusRejectsBadSession(t *testing.T) {
	_, err := run(t, &fakeBackend{}, "--session", "../x", "status")
	assert.Error(t, err)
}

func TestSendRouting(t *testing.T) {
	f := &fakeBackend{result: site.OK(map[string]any{"sent": true})}
	_, err := run(t, f, "send", "hello", "there")
	require.NoError(t, err)
	assert.Equal(t, "sendMessage", f.action)
	assert.Equal(t, map[string]any{"text": "hello there"}, f.args)

	_, err = run(t, f, "send", "--chat", "Ana", "-p", "+34600111222", "hi")
	require.NoError(t, err)
	assert.Equal(t, "openChatAndSendMessage", f.action)
	assert.Equal(t, map[string]any{"text": "hi", "query": "Ana", "expectedPhone": "+34600111222"}, f.args)
}

func TestActionFailureSetsError(t *testing.T) {
	f := &fakeBackend{result: site.Failure(site.NewActionError("phone_mismatch", "wrong chat", nil))}
	out, err := run(t, f, "action", "sendMessage", `{"text":"x"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone_mismatch")
	assert.Contains(t, out, `"ok": false`)
	assert.Equal(t, map[string]any{"text": "x"}, f.args)
}

func TestActionRejectsBadJSON(t *testing.T) {
	_, err := run(t, &fakeBackend{}, "action", "openChat", "{nope")
	assert.Error(t, err)
}

func TestQueue(t *testing.T) {
	f := &fakeBackend{}
	out, err := run(t, f, "queue", "--chat", "Ana", "--id", "c-1", "see", "you")
	require.NoError(t, err)
	assert.Equal(t, api.QueueRequest{ClientMsgID: "c-1", Chat: "Ana", Text: "see you"}, f.queued)
	assert.Equal(t, "c-1 queued\n", out)
}

func TestOutboxAndSearchJSON(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "outbox")
	require.NoError(t, err)
	assert.Contains(t, out, "(chat_not_found)")

	out, err = run(t, &fakeBackend{}, "--json", "search", "hola")
	require.NoError(t, err)
	var hits []api.SearchHit
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "<<hola>>", hits[0].Snippet)
}

func TestLoginWaitsForScan(t *testing.T) {
	f := &fakeBackend{
		page: site.Context{Status: site.StatusLoginRequired, LoginCode: "2@first"},
		events: []api.EventEnvelope{
			{Kind: bus.KindQRGenerated, Payload: map[string]any{"code": "2@first"}},
			{Kind: bus.KindQRGenerated, Payload: map[string]any{"code": "2@second"}},
			{Kind: bus.KindLoggedIn},
			{Kind: bus.KindQRGenerated, Payload: map[string]any{"code": "2@never"}},
		},
	}
	out, err := run(t, f, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in.")
	assert.Equal(t, 2, bytes.Count([]byte(out), []byte("Linked devices")))
}

func TestLoginWhenReady(t *testing.T) {
	out, err := run(t, &fakeBackend{page: site.Context{Status: site.StatusReady}}, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Already logged in.")
}

func TestEventsPrintsJSONLines(t *testing.T) {
	f := &fakeBackend{events: []api.EventEnvelope{{ID: "1", Kind: "context.changed"}, {ID: "2", Kind: "chat.observed"}}}
	out, err := run(t, f, "events")
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count([]byte(out), []byte("\n")))
}

func TestLockAndConfigInit(t *testing.T) {
	home := t.TempDir()
	t.Setenv(session.HomeEnv, home)

	var out bytes.Buffer
	require.NoError(t, newCLIApp(&out).Run([]string{"wppctl", "--session", "work", "lock"}))
	assert.Contains(t, out.String(), "not locked")

	l, err := lock.Acquire(session.Dir("work"))
	require.NoError(t, err)
	defer func() { _ = l.Release() }()

	out.Reset()
	require.NoError(t, newCLIApp(&out).Run([]string{"wppctl", "--session", "work", "lock"}))
	assert.Contains(t, out.String(), "locked by PID")

	out.Reset()
	require.NoError(t, newCLIApp(&out).Run([]string{"wppctl", "config", "init"}))
	assert.FileExists(t, filepath.Join(home, "config.toml"))
	_, err = config.Load(session.ConfigPath())
	require.NoError(t, err)

	assert.Error(t, newCLIApp(&out).Run([]string{"wppctl", "config", "init"}), "refuses to overwrite")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}

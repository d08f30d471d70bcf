package model

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/chatapp"
	"github.com/matheus3301/wppilot/internal/site"
	"github.com/matheus3301/wppilot/internal/tui/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	page    site.Context
	result  site.Result
	queued  []api.QueueRequest
	actions []string
	args    []map[string]any
	err     error
}

func (f *fakeBackend) Status(context.Context) (api.StatusInfo, error) {
	return api.StatusInfo{Session: "work", Status: "READY", Handler: chatapp.Name}, f.err
}

func (f *fakeBackend) CollectContext(context.Context, api.CollectRequest) (site.Context, error) {
	return f.page, f.err
}

func (f *fakeBackend) RunAction(_ context.Context, action string, args map[string]any) (site.Result, error) {
	f.actions = append(f.actions, action)
	f.args = append(f.args, args)
	return f.result, f.err
}

func (f *fakeBackend) QueueMessage(_ context.Context, req api.QueueRequest) (api.QueueResponse, error) {
	f.queued = append(f.queued, req)
	return api.QueueResponse{ClientMsgID: req.ClientMsgID, Status: "queued"}, f.err
}

func (f *fakeBackend) ListOutbox(context.Context, int) ([]api.OutboxItem, error) {
	return []api.OutboxItem{{ClientMsgID: "c1", Status: "sent"}}, f.err
}

func (f *fakeBackend) SearchMessages(_ context.Context, req api.SearchRequest) ([]api.SearchHit, error) {
	return []api.SearchHit{{MessageID: "m1", Body: req.Query}}, f.err
}

// wirePage mimics a context decoded off the wire: details are a plain map.
func wirePage() site.Context {
	return site.Context{
		Site:   chatapp.Name,
		Status: site.StatusReady,
		Details: map[string]any{
			"currentChat": map[string]any{"title": "Ana", "phone": "+34600111222", "channelId": "phone:34600111222", "chatKey": "k1"},
			"messages":    []any{map[string]any{"id": "m1", "role": "contact", "text": "hola", "kind": "text"}},
			"inbox": []any{
				map[string]any{"index": 0, "title": "Ana", "kind": "contact", "channelId": "phone:34600111222"},
				map[string]any{"index": 1, "title": "Familia", "kind": "group", "channelId": "title:1", "unread": 2},
			},
		},
	}
}

func TestLoadContextDecodesChatDetails(t *testing.T) {
	vm := NewViewModel(&fakeBackend{page: wirePage()})
	require.NoError(t, vm.LoadContext(context.Background(), 20))

	require.NotNil(t, vm.CurrentChat())
	assert.Equal(t, "Ana", vm.CurrentChat().Title)
	assert.Len(t, vm.GetInbox(), 2)
	assert.Equal(t, 2, vm.GetInbox()[1].Unread)
	require.Len(t, vm.GetMessages(), 1)
	assert.Equal(t, "hola", vm.GetMessages()[0].Text)

	select {
	case <-vm.RefreshCh():
	default:
		t.Fatal("expected a refresh signal")
	}
}

func TestLoadContextIgnoresOtherSites(t *testing.T) {
	vm := NewViewModel(&fakeBackend{page: site.Context{Site: site.GenericName, Details: map[string]any{"text": "x"}}})
	require.NoError(t, vm.LoadContext(context.Background(), 0))
	assert.Nil(t, vm.CurrentChat())
	assert.Empty(t, vm.GetInbox())
	assert.Equal(t, site.GenericName, vm.GetPage().Site)
}

func TestQueuePinsPhone(t *testing.T) {
	b := &fakeBackend{page: wirePage()}
	vm := NewViewModel(b)
	ctx := context.Background()

	_, err := vm.Queue(ctx, "hi")
	require.Error(t, err, "no chat open yet")

	require.NoError(t, vm.LoadContext(ctx, 20))
	resp, err := vm.Queue(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, "queued", resp.Status)

	require.Len(t, b.queued, 1)
	q := b.queued[0]
	assert.Equal(t, "+34600111222", q.Chat)
	assert.Equal(t, "+34600111222", q.ExpectedPhone)
	assert.NotEmpty(t, q.ClientMsgID)
	assert.Contains(t, vm.Flash.GetMessage().Text, "Queued")
}

func TestOpenChatDecodesResult(t *testing.T) {
	b := &fakeBackend{result: site.OK(map[string]any{"opened": true, "confirmed": true, "chat": map[string]any{"title": "Familia", "index": 1}})}
	vm := NewViewModel(b)

	res, err := vm.OpenChat(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Equal(t, "Familia", res.Chat.Title)
	assert.Equal(t, []string{"openChat"}, b.actions)
	assert.Equal(t, map[string]any{"chatIndex": 1}, b.args[0])
}

func TestActionFailureKeepsReason(t *testing.T) {
	b := &fakeBackend{result: site.Failure(site.NewActionError("chat_not_found", "no match", nil))}
	vm := NewViewModel(b)

	_, err := vm.OpenChatByQuery(context.Background(), "Zed")
	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "openChat", ae.Action)
	assert.Equal(t, "chat_not_found", ae.Code)
	assert.Equal(t, "no match", ae.Message)
	assert.Equal(t, "openChat failed: chat_not_found: no match", err.Error())

	vm.Flash.Err(err)
	msg := vm.Flash.GetMessage()
	require.NotNil(t, msg)
	assert.Equal(t, ui.FlashWarn, msg.Level, "a missing chat is worth a warning, not an error")
}

func TestEventLogIsBounded(t *testing.T) {
	vm := NewViewModel(&fakeBackend{})
	for i := 0; i < EventLogSize+5; i++ {
		vm.AddEvent(api.EventEnvelope{ID: string(rune('a' + i%26)), Kind: "context.changed", OccurredAt: int64(i)})
	}
	events := vm.GetEvents()
	assert.Len(t, events, EventLogSize)
	assert.Equal(t, int64(5), events[0].OccurredAt)
}

func TestLoadErrorsPropagate(t *testing.T) {
	vm := NewViewModel(&fakeBackend{err: errors.New("daemon down")})
	ctx := context.Background()
	assert.Error(t, vm.LoadStatus(ctx))
	assert.Error(t, vm.LoadContext(ctx, 0))
	assert.Error(t, vm.LoadOutbox(ctx, 10))
}

func TestOpenTarget(t *testing.T) {
	tests := []struct {
		id   string
		want map[string]any
	}{
		{"phone:+34600111222", map[string]any{"phone": "+34600111222"}},
		{"jid:34600111222@c.us", map[string]any{"phone": "+34600111222"}},
		{"jid:120363025@g.us", map[string]any{"query": "120363025"}},
		{"title:familia", map[string]any{"query": "familia"}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := openTarget(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "phone:", "ledger:1", "nocolon"} {
		_, err := openTarget(bad)
		assert.Error(t, err, bad)
	}
}

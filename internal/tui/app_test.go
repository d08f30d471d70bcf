package tui

import (
	"context"
	"testing"

	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/chatapp"
	"github.com/matheus3301/wppilot/internal/site"
	syncpkg "github.com/matheus3301/wppilot/internal/sync"
	"github.com/matheus3301/wppilot/internal/tui/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopClient struct{}

func (nopClient) Status(context.Context) (api.StatusInfo, error) { return api.StatusInfo{}, nil }
func (nopClient) CollectContext(context.Context, api.CollectRequest) (site.Context, error) {
	return site.Context{}, nil
}
func (nopClient) RunAction(context.Context, string, map[string]any) (site.Result, error) {
	return site.OK(nil), nil
}
func (nopClient) QueueMessage(context.Context, api.QueueRequest) (api.QueueResponse, error) {
	return api.QueueResponse{}, nil
}
func (nopClient) ListOutbox(context.Context, int) ([]api.OutboxItem, error) { return nil, nil }
func (nopClient) SearchMessages(context.Context, api.SearchRequest) ([]api.SearchHit, error) {
	return nil, nil
}
func (nopClient) WatchEvents(context.Context, string, func(api.EventEnvelope) error) error {
	return nil
}

func TestCommandsNavigatePages(t *testing.T) {
	a := NewApp(nopClient{}, "work")
	assert.Equal(t, []string{pageInbox}, a.pages.Stack())

	a.runCommand("help")
	assert.Equal(t, pageHelp, a.pages.Current())

	a.runCommand("ev")
	assert.Equal(t, []string{pageInbox, pageHelp, pageEvents}, a.pages.Stack())

	a.back()
	assert.Equal(t, pageHelp, a.pages.Current())

	a.runCommand("chats")
	assert.Equal(t, []string{pageInbox}, a.pages.Stack())

	a.back()
	assert.Equal(t, pageInbox, a.pages.Current(), "the root page stays")

	a.runCommand("bogus")
	msg := a.vm.Flash.GetMessage()
	require.NotNil(t, msg)
	assert.Contains(t, msg.Text, "unknown command")
}

func TestPromptOpenAndClose(t *testing.T) {
	a := NewApp(nopClient{}, "work")

	a.openPrompt(0)
	assert.True(t, a.promptOpen)
	assert.Equal(t, 5, a.main.GetItemCount())

	a.closePrompt()
	assert.False(t, a.promptOpen)
	assert.Equal(t, 4, a.main.GetItemCount())
}

func TestPayloadString(t *testing.T) {
	assert.Equal(t, "abc", payloadString(map[string]any{"code": "abc"}, "code"))
	assert.Equal(t, "", payloadString(map[string]any{"code": 1}, "code"))
	assert.Equal(t, "", payloadString("mutation", "code"))
}

// pageClient reports a logged-in session with two chats, one of them open.
type pageClient struct {
	nopClient
}

func (pageClient) Status(context.Context) (api.StatusInfo, error) {
	return api.StatusInfo{Session: "work", Status: "READY", Handler: chatapp.Name}, nil
}

func (pageClient) CollectContext(context.Context, api.CollectRequest) (site.Context, error) {
	return site.Context{
		Site:   chatapp.Name,
		Status: site.StatusReady,
		Details: chatapp.Details{
			Inbox: []chatapp.InboxEntry{
				{Index: 0, Title: "José Pérez", Unread: 2},
				{Index: 1, Title: "Familia", Unread: 1},
			},
			CurrentChat: &chatapp.CurrentChat{Title: "José Pérez", ChannelID: "title:jose perez"},
			Messages:    []chatapp.Message{{ID: "m1", Role: chatapp.RoleContact, Text: "hola", Kind: chatapp.KindText}},
			Sync:        &syncpkg.Status{MissingMessageCount: 1},
		},
	}, nil
}

func TestRenderBadgesAndLogo(t *testing.T) {
	a := NewApp(pageClient{}, "work")
	require.NoError(t, a.vm.LoadStatus(context.Background()))
	require.NoError(t, a.vm.LoadContext(context.Background(), messageLimit))
	a.render()

	assert.Contains(t, a.crumbs.GetText(true), "3 unread")
	assert.Contains(t, a.logo.GetText(true), "READY")

	a.show(pageThread)
	crumbs := a.crumbs.GetText(true)
	assert.Contains(t, crumbs, "José Pérez")
	assert.Contains(t, crumbs, "1 new")
	assert.NotContains(t, crumbs, "unread", "only the active crumb shows a badge")
}

func TestCompleteChat(t *testing.T) {
	a := NewApp(pageClient{}, "work")
	require.NoError(t, a.vm.LoadContext(context.Background(), messageLimit))

	assert.Equal(t, []string{"José Pérez"}, a.completeChat("jose"))
	assert.Equal(t, []string{"Familia"}, a.completeChat("FAM"))
	assert.Empty(t, a.completeChat("  "))
}

func TestSendFailedFlashLevels(t *testing.T) {
	a := NewApp(nopClient{}, "work")

	a.handleEvent(api.EventEnvelope{Kind: bus.KindSendFailed, Payload: map[string]any{"reason": chatapp.ErrChatNotFound}})
	msg := a.vm.Flash.GetMessage()
	require.NotNil(t, msg)
	assert.Equal(t, ui.FlashWarn, msg.Level)

	a.handleEvent(api.EventEnvelope{Kind: bus.KindSendFailed, Payload: map[string]any{
		"reason":         chatapp.ErrSendUnconfirmed,
		"maybeDelivered": true,
	}})
	msg = a.vm.Flash.GetMessage()
	require.NotNil(t, msg)
	assert.Equal(t, ui.FlashErr, msg.Level)
	assert.Contains(t, msg.Text, "may have been delivered")
}

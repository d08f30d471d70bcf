package outbox

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/chatapp"
	"github.com/matheus3301/wppilot/internal/site"
	"github.com/matheus3301/wppilot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockRunner records actions and answers with a configurable result.
type mockRunner struct {
	mu     sync.Mutex
	calls  []runCall
	result func(args map[string]any) site.Result
}

type runCall struct {
	Action string
	Args   map[string]any
}

func (m *mockRunner) RunAction(_ context.Context, action string, args map[string]any) site.Result {
	m.mu.Lock()
	m.calls = append(m.calls, runCall{Action: action, Args: args})
	m.mu.Unlock()
	if m.result == nil {
		return site.OK(chatapp.OpenSendResult{Send: chatapp.SendResult{Sent: true, Confirmed: true, MessageID: "true_x_1"}})
	}
	return m.result(args)
}

func (m *mockRunner) snapshot() []runCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]runCall(nil), m.calls...)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestSender(t *testing.T, runner ActionRunner) (*Sender, *store.DB, *bus.Bus) {
	t.Helper()
	db := testDB(t)
	b := bus.New()
	return NewSender(db, runner, b, zap.NewNop(), 10*time.Millisecond), db, b
}

func waitEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return bus.Event{}
	}
}

func TestSenderDeliversQueuedMessage(t *testing.T) {
	runner := &mockRunner{}
	s, db, b := newTestSender(t, runner)
	ch, unsub := b.Subscribe(bus.KindSendAck, 10)
	defer unsub()

	require.NoError(t, db.QueueOutbox("c1", "Ana", "+34 600 111 222", "hello"))

	s.Start(context.Background())
	defer s.Stop()

	evt := waitEvent(t, ch)
	payload, ok := evt.Payload.(Event)
	require.True(t, ok)
	assert.Equal(t, "c1", payload.ClientMsgID)
	assert.Equal(t, "sent", payload.Status)
	assert.Equal(t, "true_x_1", payload.MessageID)
	assert.True(t, payload.Confirmed)

	calls := runner.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, SendAction, calls[0].Action)
	assert.Equal(t, "Ana", calls[0].Args["query"])
	assert.Equal(t, "hello", calls[0].Args["text"])
	assert.Equal(t, "+34 600 111 222", calls[0].Args["expectedPhone"])
	assert.NotContains(t, calls[0].Args, "phone")

	e, err := db.GetOutbox("c1")
	require.NoError(t, err)
	assert.Equal(t, "sent", e.Status)
	assert.Equal(t, 1, e.Attempts)
}

func TestSenderPassesPhoneQueries(t *testing.T) {
	args := actionArgs(store.OutboxEntry{ChatQuery: "+34 600 111 222", Body: "hi"})
	assert.Equal(t, "+34 600 111 222", args["phone"])
	assert.NotContains(t, args, "expectedPhone")

	args = actionArgs(store.OutboxEntry{ChatQuery: "Family", Body: "hi"})
	assert.NotContains(t, args, "phone")
}

func TestSenderMarksFailure(t *testing.T) {
	runner := &mockRunner{result: func(map[string]any) site.Result {
		return site.Failure(site.NewActionError(chatapp.ErrPhoneMismatch, "wrong chat", nil))
	}}
	s, db, b := newTestSender(t, runner)
	ch, unsub := b.Subscribe(bus.KindSendFailed, 10)
	defer unsub()

	require.NoError(t, db.QueueOutbox("c1", "Ana", "+1 555 0100", "hello"))

	s.Start(context.Background())
	defer s.Stop()

	evt := waitEvent(t, ch)
	payload := evt.Payload.(Event)
	assert.Equal(t, chatapp.ErrPhoneMismatch, payload.Reason)

	pending, err := db.PendingOutbox()
	require.NoError(t, err)
	assert.Empty(t, pending, "failed entries are not retried")

	e, err := db.GetOutbox("c1")
	require.NoError(t, err)
	assert.Equal(t, "failed", e.Status)
	assert.Equal(t, chatapp.ErrPhoneMismatch, e.ErrorMessage)
}

func TestSenderSkipsSuppressedSends(t *testing.T) {
	tests := []struct {
		name   string
		send   chatapp.SendResult
		reason string
	}{
		{"duplicate", chatapp.SendResult{DuplicatePrevented: true}, SkipDuplicate},
		{"already sent", chatapp.SendResult{AlreadySent: true}, SkipAlreadySent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{result: func(map[string]any) site.Result {
				return site.OK(chatapp.OpenSendResult{Send: tt.send})
			}}
			s, db, b := newTestSender(t, runner)
			ch, unsub := b.Subscribe(bus.KindSendAck, 10)
			defer unsub()

			require.NoError(t, db.QueueOutbox("c1", "Ana", "", "hello"))
			s.processPending(context.Background())

			payload := waitEvent(t, ch).Payload.(Event)
			assert.Equal(t, "skipped", payload.Status)
			assert.Equal(t, tt.reason, payload.Reason)

			e, err := db.GetOutbox("c1")
			require.NoError(t, err)
			assert.Equal(t, "skipped", e.Status)
			assert.Equal(t, tt.reason, e.ErrorMessage)
		})
	}
}

func TestSenderReadsRemoteResultMaps(t *testing.T) {
	runner := &mockRunner{result: func(map[string]any) site.Result {
		return site.OK(map[string]any{
			"open": map[string]any{"opened": true, "confirmed": true},
			"send": map[string]any{"sent": true, "messageId": "true_y_9"},
		})
	}}
	s, db, b := newTestSender(t, runner)
	ch, unsub := b.Subscribe(bus.KindSendAck, 10)
	defer unsub()

	require.NoError(t, db.QueueOutbox("c1", "Ana", "", "hello"))
	s.processPending(context.Background())

	payload := waitEvent(t, ch).Payload.(Event)
	assert.Equal(t, "true_y_9", payload.MessageID)
	assert.False(t, payload.Confirmed)
}

func TestSenderPreservesQueueOrder(t *testing.T) {
	runner := &mockRunner{}
	s, db, _ := newTestSender(t, runner)

	require.NoError(t, db.QueueOutbox("c1", "Ana", "", "first"))
	require.NoError(t, db.QueueOutbox("c2", "Ana", "", "second"))
	s.processPending(context.Background())

	calls := runner.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].Args["text"])
	assert.Equal(t, "second", calls[1].Args["text"])
}

func TestSenderStopsOnCancelledContext(t *testing.T) {
	runner := &mockRunner{}
	s, db, _ := newTestSender(t, runner)
	require.NoError(t, db.QueueOutbox("c1", "Ana", "", "hello"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.processPending(ctx)

	assert.Empty(t, runner.snapshot())
	e, err := db.GetOutbox("c1")
	require.NoError(t, err)
	assert.Equal(t, "queued", e.Status)
}

func TestSenderFlagsClearedComposer(t *testing.T) {
	runner := &mockRunner{result: func(map[string]any) site.Result {
		return site.Failure(site.NewActionError(chatapp.ErrSendUnconfirmed, "never appeared",
			map[string]any{"method": chatapp.MethodButton, "composerCleared": true}))
	}}
	s, db, b := newTestSender(t, runner)
	failed, unsubFailed := b.Subscribe(bus.KindSendFailed, 10)
	defer unsubFailed()
	acks, unsubAcks := b.Subscribe(bus.KindSendAck, 10)
	defer unsubAcks()

	require.NoError(t, db.QueueOutbox("c1", "Ana", "", "perdido"))

	s.Start(context.Background())
	defer s.Stop()

	payload := waitEvent(t, failed).Payload.(Event)
	assert.Equal(t, chatapp.ErrSendUnconfirmed, payload.Reason)
	assert.True(t, payload.MaybeDelivered)
	assert.Empty(t, acks)

	e, err := db.GetOutbox("c1")
	require.NoError(t, err)
	assert.Equal(t, "failed", e.Status)
	assert.Contains(t, e.ErrorMessage, "composer cleared")
}

package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleObservation() Observation {
	return Observation{
		ChannelID: "phone:34600111222",
		Title:     "Ana",
		Phone:     "34600111222",
		Messages: []ObservedMessage{
			{ID: "m1", Role: "contact", Kind: "text", Text: "hola", Timestamp: "10:00"},
			{ID: "m2", Role: "me", Kind: "document", Text: "Documento: informe.pdf", Enriched: map[string]string{"fileName": "informe.pdf"}},
		},
	}
}

func TestEngineIngestObservation(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, nil)

	ch, unsub := b.Subscribe("archive.", 10)
	defer unsub()

	res, err := e.IngestObservation(sampleObservation())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)

	chat, err := db.GetChat("phone:34600111222")
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, "Ana", chat.Title)
	assert.Equal(t, "contact", chat.Kind)
	assert.Equal(t, "Documento: informe.pdf", chat.Preview)

	msgs, err := db.ListMessages("phone:34600111222", 0, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].MsgID)
	assert.JSONEq(t, `{"fileName":"informe.pdf"}`, msgs[0].Enriched)

	select {
	case evt := <-ch:
		assert.Equal(t, bus.KindArchived, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for archive event")
	}
}

func TestEngineIngestObservationIdempotent(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	_, err := e.IngestObservation(sampleObservation())
	require.NoError(t, err)
	res, err := e.IngestObservation(sampleObservation())
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)

	n, err := db.MessageCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestEngineRejectsObservationWithoutChannel(t *testing.T) {
	e := NewEngine(testDB(t), bus.New(), nil)
	_, err := e.IngestObservation(Observation{Messages: []ObservedMessage{{ID: "m1"}}})
	assert.Error(t, err)
}

func TestEngineIngestInbox(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	err := e.IngestInbox([]InboxRow{
		{ChannelID: "title:familia", Title: "Familia", Kind: "group", Unread: 3, Index: 0},
		{ChannelID: "", Title: "skipped"},
		{ChannelID: "phone:346", Title: "Ana", Kind: "contact", Index: 1},
	})
	require.NoError(t, err)

	chats, err := db.ListChats(10, 0)
	require.NoError(t, err)
	assert.Len(t, chats, 2)
}

// TestEngineBusSubscription verifies the engine archives what collectors
// publish on the bus.
func TestEngineBusSubscription(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	logger, _ := zap.NewDevelopment()
	e := NewEngine(db, b, logger)

	e.Start(context.Background())
	defer e.Stop()

	b.Emit(bus.KindChatObserved, sampleObservation())
	b.Emit(bus.KindInboxObserved, []InboxRow{{ChannelID: "title:otro", Title: "Otro"}})

	require.Eventually(t, func() bool {
		n, err := db.MessageCount()
		return err == nil && n == 2
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		c, err := db.GetChat("title:otro")
		return err == nil && c != nil
	}, time.Second, 10*time.Millisecond)
}

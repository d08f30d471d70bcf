package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Publish(Event{Kind: "session.status_changed", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "session.status_changed" {
			t.Errorf("got kind %q, want session.status_changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	b.Publish(Event{Kind: "session.status_changed"})
	b.Publish(Event{Kind: "sync.connected"})

	select {
	case evt := <-ch:
		if evt.Kind != "sync.connected" {
			t.Errorf("got kind %q, want sync.connected", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure session event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	b.Publish(Event{Kind: "session.status_changed"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if got := b.Stats().Dropped; got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
}

func TestStatsCountsSubscribersAndDrops(t *testing.T) {
	b := New()
	_, unsubAll := b.Subscribe("", 1)
	chats, unsubChats := b.Subscribe("chat.", 4)
	defer unsubChats()

	if st := b.Stats(); st.Subscribers != 2 || st.Dropped != 0 {
		t.Fatalf("stats = %+v, want 2 subscribers and no drops", st)
	}

	b.Emit(KindChatObserved, nil)
	b.Emit(KindInboxObserved, nil)
	b.Emit(KindStatusChanged, nil)
	if len(chats) != 2 {
		t.Errorf("chat subscriber got %d events, want 2", len(chats))
	}

	unsubAll()
	st := b.Stats()
	if st.Subscribers != 1 {
		t.Errorf("subscribers = %d, want 1", st.Subscribers)
	}
	if st.Dropped != 2 {
		t.Errorf("dropped = %d, want 2 kept after the lagging subscriber left", st.Dropped)
	}
}

func TestEmitStampsEvent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("context.", 1)
	defer unsub()

	b.Emit(KindContextChanged, "mutation")

	evt := <-ch
	if evt.Kind != KindContextChanged {
		t.Errorf("got kind %q, want %s", evt.Kind, KindContextChanged)
	}
	if evt.ID == "" {
		t.Error("event id should be set")
	}
	if evt.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if evt.Payload != "mutation" {
		t.Errorf("payload = %v, want mutation", evt.Payload)
	}
}

func TestPublishFillsMissingTimestamp(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 1)
	defer unsub()

	b.Publish(Event{Kind: KindChatObserved})

	if evt := <-ch; evt.Timestamp.IsZero() {
		t.Error("Publish should stamp events without a timestamp")
	}
}

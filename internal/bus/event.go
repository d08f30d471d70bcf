package bus

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds published by the daemon. Subscribers filter by prefix, so the
// namespace before the dot groups related kinds.
const (
	KindStatusChanged   = "session.status_changed"
	KindQRGenerated     = "session.qr_generated"
	KindLoggedIn        = "session.logged_in"
	KindContextChanged  = "context.changed"
	KindChatSwitched    = "context.chat_switched"
	KindHandlerChanged  = "context.handler_changed"
	KindChatObserved    = "chat.observed"
	KindInboxObserved   = "chat.inbox_observed"
	KindChatMessageSent = "chat.message_sent"
	KindChatSendFailed  = "chat.send_failed"
	KindArchived        = "archive.messages_stored"
	KindSendAck         = "message.send_ack"
	KindSendFailed      = "message.send_failed"
	KindActionDone      = "action.completed"
)

// Event represents a domain event published on the bus.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(kind string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

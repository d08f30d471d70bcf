package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/store"
	"go.uber.org/zap"
)

// ObservedMessage is one message seen in the open conversation.
type ObservedMessage struct {
	ID        string
	Role      string
	Kind      string
	Text      string
	Timestamp string
	Enriched  map[string]string
}

// Observation is published when a collection pass sees messages that were
// not yet in the ledger.
type Observation struct {
	ChannelID string
	Title     string
	Phone     string
	IsGroup   bool
	Messages  []ObservedMessage
}

// InboxRow is one chat list entry as seen by a collection pass.
type InboxRow struct {
	ChannelID string
	Title     string
	Phone     string
	Kind      string
	Preview   string
	Unread    int
	Index     int
}

// ArchiveResult is the payload of archive events.
type ArchiveResult struct {
	ChannelID string
	Observed  int
	Inserted  int
}

// Engine archives observations into the store idempotently.
// It subscribes to "chat." events on the bus.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine creates a new archive engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to observation events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("chat.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindChatObserved:
		obs, ok := evt.Payload.(Observation)
		if !ok {
			return
		}
		if _, err := e.IngestObservation(obs); err != nil {
			e.logger.Error("failed to archive observation", zap.Error(err), zap.String("channel_id", obs.ChannelID))
		}
	case bus.KindInboxObserved:
		rows, ok := evt.Payload.([]InboxRow)
		if !ok {
			return
		}
		if err := e.IngestInbox(rows); err != nil {
			e.logger.Error("failed to archive inbox", zap.Error(err), zap.Int("count", len(rows)))
		}
	}
}

// IngestObservation stores the chat and its messages. Re-ingesting the same
// observation inserts nothing.
func (e *Engine) IngestObservation(obs Observation) (ArchiveResult, error) {
	res := ArchiveResult{ChannelID: obs.ChannelID, Observed: len(obs.Messages)}
	if obs.ChannelID == "" {
		return res, fmt.Errorf("observation without channel id")
	}

	kind := "contact"
	if obs.IsGroup {
		kind = "group"
	}
	preview := ""
	if n := len(obs.Messages); n > 0 {
		preview = truncate(obs.Messages[n-1].Text, 100)
	}
	if err := e.db.UpsertChat(&store.Chat{
		ChannelID: obs.ChannelID,
		Title:     obs.Title,
		Phone:     obs.Phone,
		Kind:      kind,
		Preview:   preview,
	}); err != nil {
		return res, fmt.Errorf("upsert chat: %w", err)
	}

	now := time.Now().UnixMilli()
	msgs := make([]store.Message, 0, len(obs.Messages))
	for _, m := range obs.Messages {
		if m.ID == "" {
			continue
		}
		enriched := ""
		if len(m.Enriched) > 0 {
			if b, err := json.Marshal(m.Enriched); err == nil {
				enriched = string(b)
			}
		}
		msgs = append(msgs, store.Message{
			ChannelID:      obs.ChannelID,
			MsgID:          m.ID,
			Role:           m.Role,
			Kind:           m.Kind,
			Body:           m.Text,
			TimestampLabel: m.Timestamp,
			Enriched:       enriched,
			ObservedAt:     now,
		})
	}
	inserted, err := e.db.UpsertMessages(msgs)
	if err != nil {
		return res, fmt.Errorf("upsert messages: %w", err)
	}
	res.Inserted = inserted

	if inserted > 0 {
		e.logger.Debug("messages archived", zap.String("channel_id", obs.ChannelID), zap.Int("inserted", inserted))
		e.bus.Emit(bus.KindArchived, res)
	}
	return res, nil
}

// IngestInbox stores a chat list snapshot.
func (e *Engine) IngestInbox(rows []InboxRow) error {
	chats := make([]store.Chat, 0, len(rows))
	for _, r := range rows {
		if r.ChannelID == "" {
			continue
		}
		chats = append(chats, store.Chat{
			ChannelID:   r.ChannelID,
			Title:       r.Title,
			Phone:       r.Phone,
			Kind:        r.Kind,
			Preview:     truncate(r.Preview, 100),
			UnreadCount: r.Unread,
			ListIndex:   r.Index,
		})
	}
	if len(chats) == 0 {
		return nil
	}
	return e.db.UpsertChats(chats)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

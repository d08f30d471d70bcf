package outbox

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/chatapp"
	"github.com/matheus3301/wppilot/internal/normalize"
	"github.com/matheus3301/wppilot/internal/site"
	"github.com/matheus3301/wppilot/internal/store"
	"go.uber.org/zap"
)

// SendAction is the page action that delivers one queued message.
const SendAction = "openChatAndSendMessage"

// Skip reasons recorded on entries that were not typed into the page.
const (
	SkipDuplicate   = "duplicate_prevented"
	SkipAlreadySent = "already_sent"
)

// ActionRunner runs a page action. site.Host satisfies it.
type ActionRunner interface {
	RunAction(ctx context.Context, action string, args map[string]any) site.Result
}

// Event is the payload of outbox ack and failure events.
type Event struct {
	ClientMsgID string `json:"clientMsgId"`
	ChatQuery   string `json:"chatQuery"`
	Status      string `json:"status"`
	MessageID   string `json:"messageId,omitempty"`
	Confirmed   bool   `json:"confirmed,omitempty"`
	Reason      string `json:"reason,omitempty"`

	// MaybeDelivered marks an unconfirmed send whose text left the composer.
	MaybeDelivered bool `json:"maybeDelivered,omitempty"`
}

// Sender drains the outbox one entry at a time through the page.
type Sender struct {
	db       *store.DB
	runner   ActionRunner
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSender creates an outbox sender. A zero interval polls every 500ms.
func NewSender(db *store.DB, runner ActionRunner, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Sender {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Sender{
		db:       db,
		runner:   runner,
		bus:      b,
		logger:   logger.Named("outbox"),
		interval: interval,
	}
}

// Start begins polling the outbox for queued messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop stops the loop and waits for an in-flight send to finish.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		s.deliver(ctx, entry)
	}
}

func (s *Sender) deliver(ctx context.Context, entry store.OutboxEntry) {
	log := s.logger.With(zap.String("client_msg_id", entry.ClientMsgID))
	if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
		log.Error("failed to mark sending", zap.Error(err))
		return
	}

	res := s.runner.RunAction(ctx, SendAction, actionArgs(entry))
	evt := Event{ClientMsgID: entry.ClientMsgID, ChatQuery: entry.ChatQuery}

	if !res.OK {
		evt.Status = store.OutboxFailed
		evt.Reason = res.Error
		evt.MaybeDelivered = composerCleared(res.Result)
		errMsg := res.Error
		if evt.MaybeDelivered {
			errMsg += ": composer cleared, check the chat before re-queueing"
		}
		if err := s.db.MarkOutboxFailed(entry.ClientMsgID, errMsg); err != nil {
			log.Error("failed to mark failed", zap.Error(err))
		}
		log.Warn("send failed", zap.String("reason", res.Error), zap.Bool("maybe_delivered", evt.MaybeDelivered))
		s.bus.Emit(bus.KindSendFailed, evt)
		return
	}

	out, err := decodeResult(res.Result)
	if err != nil {
		evt.Status = store.OutboxFailed
		evt.Reason = site.ErrInternal
		_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
		log.Error("unreadable send result", zap.Error(err))
		s.bus.Emit(bus.KindSendFailed, evt)
		return
	}

	send := out.Send
	evt.MessageID = send.MessageID
	evt.Confirmed = send.Confirmed
	switch {
	case send.DuplicatePrevented, send.AlreadySent:
		evt.Status = store.OutboxSkipped
		evt.Reason = SkipDuplicate
		if send.AlreadySent {
			evt.Reason = SkipAlreadySent
		}
		if err := s.db.MarkOutboxSkipped(entry.ClientMsgID, evt.Reason); err != nil {
			log.Error("failed to mark skipped", zap.Error(err))
		}
		log.Info("send skipped", zap.String("reason", evt.Reason))
	default:
		evt.Status = store.OutboxSent
		if err := s.db.MarkOutboxSent(entry.ClientMsgID); err != nil {
			log.Error("failed to mark sent", zap.Error(err))
		}
		log.Info("message sent", zap.String("message_id", send.MessageID), zap.Bool("confirmed", send.Confirmed))
	}
	s.bus.Emit(bus.KindSendAck, evt)
}

// composerCleared reports whether a failed send left the composer empty.
func composerCleared(result any) bool {
	details, ok := result.(map[string]any)
	if !ok {
		return false
	}
	cleared, _ := details["composerCleared"].(bool)
	return cleared
}

func actionArgs(entry store.OutboxEntry) map[string]any {
	args := map[string]any{
		"query": entry.ChatQuery,
		"text":  entry.Body,
	}
	if normalize.LooksLikePhone(entry.ChatQuery) {
		args["phone"] = entry.ChatQuery
	}
	if entry.ExpectedPhone != "" {
		args["expectedPhone"] = entry.ExpectedPhone
	}
	return args
}

// decodeResult accepts both the in-process result struct and its JSON map
// form returned by a remote daemon.
func decodeResult(v any) (chatapp.OpenSendResult, error) {
	if r, ok := v.(chatapp.OpenSendResult); ok {
		return r, nil
	}
	var out chatapp.OpenSendResult
	b, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}

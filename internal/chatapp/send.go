package chatapp

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/normalize"
	"github.com/matheus3301/wppilot/internal/page"
	"github.com/matheus3301/wppilot/internal/site"
	"go.uber.org/zap"
)

// Send methods.
const (
	MethodButton      = "button"
	MethodEnter       = "enter"
	MethodEnterButton = "enter_button"
)

type sendArgs struct {
	Text          string `json:"text"`
	ExpectedPhone string `json:"expectedPhone"`
}

// SendResult reports a send attempt.
type SendResult struct {
	Sent               bool         `json:"sent"`
	Confirmed          bool         `json:"confirmed,omitempty"`
	DuplicatePrevented bool         `json:"duplicatePrevented,omitempty"`
	AlreadySent        bool         `json:"alreadySent,omitempty"`
	MessageID          string       `json:"messageId,omitempty"`
	Method             string       `json:"method,omitempty"`
	Chat               *CurrentChat `json:"chat,omitempty"`
}

// SendEvent is the payload of chat.message_sent and chat.send_failed.
type SendEvent struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId,omitempty"`
	Text      string `json:"text,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

var composerTarget = page.Target{Selector: selComposer}

func (h *Handler) sendLocked(ctx context.Context, a sendArgs) (SendResult, error) {
	res, err := h.sendFlowLocked(ctx, a)
	ev := SendEvent{MessageID: res.MessageID, Text: a.Text}
	if res.Chat != nil {
		ev.ChannelID = res.Chat.ChannelID
	}
	if err != nil {
		if code := site.Failure(err).Error; code != site.ErrInvalidRequest {
			ev.Reason = code
			h.emit(bus.KindChatSendFailed, ev)
		}
		return res, err
	}
	if res.Sent {
		h.emit(bus.KindChatMessageSent, ev)
	}
	return res, nil
}

func (h *Handler) sendFlowLocked(ctx context.Context, a sendArgs) (SendResult, error) {
	text := strings.TrimSpace(a.Text)
	if text == "" {
		return SendResult{}, site.NewInvalidRequest("text is required")
	}
	wanted := normalize.CollapseText(text)

	chat, err := h.verifyIdentityLocked(ctx, a.ExpectedPhone)
	if err != nil {
		return SendResult{Chat: chat}, err
	}
	res := SendResult{Chat: chat}

	fingerprint := chat.ChannelID + "|" + normalize.NormalizeLookupToken(text)
	if h.sent.seen(fingerprint, h.now()) {
		h.logger.Info("duplicate send suppressed", zap.String("channel_id", chat.ChannelID))
		res.DuplicatePrevented = true
		return res, nil
	}

	v, err := h.read(ctx, h.cfg.MessageLimit)
	if err != nil {
		return res, err
	}
	if id := trailingOwn(v.messages, wanted); id != "" {
		res.AlreadySent, res.MessageID = true, id
		return res, nil
	}
	baseline := make(map[string]struct{}, len(v.messages))
	for _, m := range v.messages {
		baseline[m.ID] = struct{}{}
	}

	if err := h.composeLocked(ctx, text); err != nil {
		return res, err
	}
	if res.Method, err = h.dispatchSendLocked(ctx); err != nil {
		return res, err
	}

	type confirmation struct {
		id       string
		composer string
		present  bool
	}
	c, ok := page.Poll(ctx, h.poll(h.cfg.ConfirmTimeout), func(ctx context.Context) (confirmation, bool) {
		doc, err := h.page.Snapshot(ctx)
		if err != nil {
			return confirmation{}, false
		}
		composer := doc.Find(selComposer).First()
		c := confirmation{present: composer.Length() > 0, composer: normalize.CollapseText(composer.Text())}
		msgs, _ := ScrapeMessages(doc, h.cfg.MessageLimit)
		for i := len(msgs) - 1; i >= 0; i-- {
			m := msgs[i]
			if _, old := baseline[m.ID]; old || m.Role != RoleMe {
				continue
			}
			if normalize.CollapseText(m.Text) == wanted {
				c.id = m.ID
				return c, true
			}
		}
		return c, false
	})
	switch {
	case ok:
		h.sent.record(fingerprint, h.now())
		res.Sent, res.Confirmed, res.MessageID = true, true, c.id
		h.logger.Info("message sent",
			zap.String("channel_id", chat.ChannelID),
			zap.String("message_id", c.id),
			zap.String("method", res.Method))
		return res, nil
	case !c.present:
		return res, site.NewActionError(ErrSendUnconfirmed, "composer disappeared before the message was confirmed",
			map[string]any{"method": res.Method})
	case c.composer != "":
		return res, site.NewActionError(ErrUnconfirmedInComposer, "text is still in the composer",
			map[string]any{"method": res.Method, "composerText": c.composer})
	}
	// The composer emptied, so the page may have taken the message. Remember
	// it to keep a quick retry from posting it twice.
	h.sent.record(fingerprint, h.now())
	h.logger.Warn("message dispatched but not confirmed", zap.String("channel_id", chat.ChannelID))
	return res, site.NewActionError(ErrSendUnconfirmed, "composer cleared but the message never appeared",
		map[string]any{"method": res.Method, "composerCleared": true})
}

// verifyIdentityLocked waits for an open chat and, when expected is set, for
// its phone to match.
func (h *Handler) verifyIdentityLocked(ctx context.Context, expected string) (*CurrentChat, error) {
	want := normalize.PhoneDigits(expected)
	chat, ok := page.Poll(ctx, h.poll(h.cfg.IdentityTimeout), func(ctx context.Context) (*CurrentChat, bool) {
		v, err := h.read(ctx, h.cfg.MessageLimit)
		if err != nil || v.chat == nil {
			return nil, false
		}
		if want == "" {
			return v.chat, true
		}
		return v.chat, v.chat.Phone != "" && normalize.PhonesMatch(want, v.chat.Phone)
	})
	if ok {
		return chat, nil
	}
	switch {
	case chat == nil:
		return nil, site.NewActionError(ErrChatNotOpen, "no chat is open", nil)
	case chat.Phone == "":
		return chat, site.NewActionError(ErrPhoneNotDetected, "open chat has no detectable phone",
			map[string]any{"expectedPhone": want, "title": chat.Title})
	}
	return chat, site.NewActionError(ErrPhoneMismatch, "open chat belongs to another phone",
		map[string]any{"expectedPhone": want, "actualPhone": chat.Phone, "title": chat.Title})
}

// trailingOwn returns the id of an own message equal to text among the own
// messages that end the conversation.
func trailingOwn(msgs []Message, text string) string {
	for i := len(msgs) - 1; i >= 0 && msgs[i].Role == RoleMe; i-- {
		if normalize.CollapseText(msgs[i].Text) == text {
			return msgs[i].ID
		}
	}
	return ""
}

func composerText(doc *goquery.Document) (string, bool) {
	c := doc.Find(selComposer).First()
	return normalize.CollapseText(c.Text()), c.Length() > 0
}

// composeLocked puts text into the composer, preferring native insertion.
func (h *Handler) composeLocked(ctx context.Context, text string) error {
	current, found := page.Poll(ctx, h.poll(h.cfg.ComposerTimeout), func(ctx context.Context) (string, bool) {
		doc, err := h.page.Snapshot(ctx)
		if err != nil {
			return "", false
		}
		return composerText(doc)
	})
	if !found {
		return site.NewActionError(ErrComposerNotFound, "message composer not found", nil)
	}
	if err := h.page.Focus(ctx, composerTarget); err != nil {
		return site.NewActionError(ErrComposerNotFound, err.Error(), nil)
	}

	wanted := normalize.CollapseText(text)
	converged := func() bool {
		_, ok := page.Poll(ctx, h.poll(h.cfg.ComposerTimeout), func(ctx context.Context) (string, bool) {
			doc, err := h.page.Snapshot(ctx)
			if err != nil {
				return "", false
			}
			got, _ := composerText(doc)
			return got, got == wanted
		})
		return ok
	}

	if current == "" {
		inserted, err := h.page.InsertText(ctx, composerTarget, text)
		if err != nil {
			return site.NewActionError(ErrComposerNotFound, err.Error(), nil)
		}
		if inserted && converged() {
			return nil
		}
		h.logger.Debug("native insert did not land, replacing composer text")
	}
	if err := h.page.ReplaceText(ctx, composerTarget, text); err != nil {
		return site.NewActionError(ErrComposerNotFound, err.Error(), nil)
	}
	if !converged() {
		return site.NewActionError(ErrComposerMismatch, "composer text does not match", nil)
	}
	return nil
}

// dispatchSendLocked clicks the send button, falling back to Enter.
func (h *Handler) dispatchSendLocked(ctx context.Context) (string, error) {
	button := page.Target{Selector: selSendButton}
	ready := func(timeout page.PollOptions) bool {
		_, ok := page.Poll(ctx, timeout, func(ctx context.Context) (struct{}, bool) {
			doc, err := h.page.Snapshot(ctx)
			if err != nil {
				return struct{}{}, false
			}
			return struct{}{}, doc.Find(selSendButton).Length() > 0
		})
		return ok
	}

	if ready(h.poll(h.cfg.SendReadyTimeout)) {
		if err := h.page.Click(ctx, button); err == nil {
			return MethodButton, nil
		}
	}

	if err := h.page.Press(ctx, composerTarget, "Enter"); err != nil {
		return "", site.NewActionError(ErrComposerNotFound, err.Error(), nil)
	}
	doc, err := h.page.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	if rest, _ := composerText(doc); rest == "" {
		return MethodEnter, nil
	}
	if ready(h.poll(h.cfg.SendReadyTimeout)) {
		if err := h.page.Click(ctx, button); err == nil {
			return MethodEnterButton, nil
		}
	}
	return "", site.NewActionError(ErrSendButtonNotFound, "send button not found and Enter did not send", nil)
}

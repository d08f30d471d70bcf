package chatapp

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/normalize"
	"github.com/matheus3301/wppilot/internal/site"
	syncpkg "github.com/matheus3301/wppilot/internal/sync"
	"go.uber.org/zap"
)

// Details is the chat-specific part of a collected context.
type Details struct {
	MyNumber    string          `json:"myNumber,omitempty"`
	CurrentChat *CurrentChat    `json:"currentChat,omitempty"`
	Messages    []Message       `json:"messages"`
	Inbox       []InboxEntry    `json:"inbox"`
	Sync        *syncpkg.Status `json:"sync,omitempty"`
	Strategy    string          `json:"strategy,omitempty"`
	Observed    *ObservedChat   `json:"observed,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// view is one parsed read of the page.
type view struct {
	url           string
	title         string
	status        string
	loginCode     string
	chat          *CurrentChat
	messages      []Message
	strategy      string
	inbox         []InboxEntry
	inboxSelector string
}

func (h *Handler) read(ctx context.Context, limit int) (view, error) {
	v := view{url: h.page.URL(), status: site.StatusLoading, messages: []Message{}, inbox: []InboxEntry{}}
	doc, err := h.page.Snapshot(ctx)
	if err != nil {
		v.status = site.StatusError
		return v, fmt.Errorf("snapshot page: %w", err)
	}
	v.title = normalize.CollapseText(doc.Find(selPageTitle).First().Text())
	v.status, v.loginCode = pageStatus(doc)
	v.messages, v.strategy = ScrapeMessages(doc, limit)
	v.inbox, v.inboxSelector = ScrapeInbox(doc)
	v.chat = readCurrentChat(doc, v.messages)
	return v, nil
}

// pageStatus tells the login screen, the loaded app and the splash apart.
func pageStatus(doc *goquery.Document) (string, string) {
	hasPane := doc.Find(selPane).Length() > 0
	if qr := doc.Find(selLoginQR).First(); qr.Length() > 0 && !hasPane {
		code, _ := qr.Attr("data-ref")
		return site.StatusLoginRequired, code
	}
	if hasPane || doc.Find(selMain).Length() > 0 {
		return site.StatusReady, ""
	}
	return site.StatusLoading, ""
}

// CollectContext reads the page into a Context and reconciles the open chat
// with the ledger. It never fails; problems land in Details.Error.
func (h *Handler) CollectContext(ctx context.Context, opts site.Options) site.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.collectLocked(ctx, opts.MessageLimit)
}

// collectLocked never panics. A panic mid-read returns what was gathered so
// far with Details.Error set.
func (h *Handler) collectLocked(ctx context.Context, limit int) (out site.Context) {
	if limit <= 0 {
		limit = h.cfg.MessageLimit
	}
	out = site.Context{Site: Name, CollectedAt: h.now()}
	details := &Details{}
	out.Details = details
	defer func() {
		if r := recover(); r != nil {
			details.Error = fmt.Sprintf("collect panicked: %v", r)
			h.logger.Error("collect panicked", zap.Any("panic", r))
		}
	}()

	v, err := h.read(ctx, limit)
	out.URL, out.Title, out.Status, out.LoginCode = v.url, v.title, v.status, v.loginCode
	details.Messages, details.Inbox, details.Strategy = v.messages, v.inbox, v.strategy
	if err != nil {
		details.Error = err.Error()
		h.logger.Warn("collect failed", zap.Error(err))
		return out
	}

	details.MyNumber = h.myNumberLocked(ctx)
	details.CurrentChat = v.chat
	if v.chat != nil && v.chat.ChannelID != "" {
		prev, _ := h.ledger.Entry(v.chat.ChannelID)
		st := h.ledger.Update(v.chat.ChannelID, v.chat.ChatKey, v.chat.Title, v.chat.Phone, messageIDs(v.messages))
		details.Sync = &st
		if st.MissingMessageCount > 0 {
			h.emit(bus.KindChatObserved, observation(v.chat, v.messages, prev.MessageIDs))
		}
	}
	h.trackChatLocked(v)
	details.Observed = &h.observed
	h.publishInboxLocked(v.inbox)
	return out
}

// trackChatLocked notices when the open conversation changes.
func (h *Handler) trackChatLocked(v view) {
	next := ObservedChat{}
	if v.chat != nil {
		next.ChatKey, next.ChannelID = v.chat.ChatKey, v.chat.ChannelID
	}
	if n := len(v.messages); n > 0 {
		next.LastMessageID = v.messages[n-1].ID
	}
	prev := h.observed
	h.observed = next
	if prev.ChatKey == next.ChatKey {
		return
	}
	h.logger.Info("chat switched",
		zap.String("from", prev.ChannelID),
		zap.String("to", next.ChannelID))
	h.emit(bus.KindChatSwitched, ChatSwitch{From: prev, To: next})
}

func (h *Handler) publishInboxLocked(entries []InboxEntry) {
	if len(entries) == 0 {
		return
	}
	var b strings.Builder
	rows := make([]syncpkg.InboxRow, len(entries))
	for i, e := range entries {
		fmt.Fprintf(&b, "%s|%s|%d\n", e.ChannelID, e.Preview, e.Unread)
		rows[i] = syncpkg.InboxRow{
			ChannelID: e.ChannelID,
			Title:     e.Title,
			Phone:     e.Phone,
			Kind:      e.Kind,
			Preview:   e.Preview,
			Unread:    e.Unread,
			Index:     e.Index,
		}
	}
	sig := normalize.StableHashString(b.String())
	if sig == h.inboxSig {
		return
	}
	h.inboxSig = sig
	h.emit(bus.KindInboxObserved, rows)
}

// myNumberLocked reads the account phone from page storage once it is known.
func (h *Handler) myNumberLocked(ctx context.Context) string {
	if h.myNumber != "" {
		return h.myNumber
	}
	for _, key := range myNumberKeys {
		raw, err := h.page.LocalStorage(ctx, key)
		if err != nil {
			h.logger.Debug("read storage failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if n := parseMyNumber(raw); n != "" {
			h.myNumber = n
			return n
		}
	}
	return ""
}

func messageIDs(msgs []Message) []string {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

// observation keeps the messages whose ids were not known before.
func observation(c *CurrentChat, msgs []Message, known []string) syncpkg.Observation {
	seen := make(map[string]struct{}, len(known))
	for _, id := range known {
		seen[id] = struct{}{}
	}
	obs := syncpkg.Observation{ChannelID: c.ChannelID, Title: c.Title, Phone: c.Phone, IsGroup: c.IsGroup}
	for _, m := range msgs {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		om := syncpkg.ObservedMessage{ID: m.ID, Role: m.Role, Kind: m.Kind, Text: m.Text, Timestamp: m.Timestamp}
		if m.Enriched != nil {
			om.Enriched = m.Enriched.Map()
		}
		obs.Messages = append(obs.Messages, om)
	}
	return obs
}

package chatapp

import (
	"context"

	"github.com/matheus3301/wppilot/internal/site"
	syncpkg "github.com/matheus3301/wppilot/internal/sync"
)

type readArgs struct {
	Limit int `json:"limit"`
}

type inboxArgs struct {
	Scope string `json:"scope"`
	Query string `json:"query"`
	Phone string `json:"phone"`
	Limit int    `json:"limit"`
}

// MessagesResult is returned by readMessages.
type MessagesResult struct {
	Chat     *CurrentChat    `json:"chat,omitempty"`
	Messages []Message       `json:"messages"`
	Strategy string          `json:"strategy,omitempty"`
	Sync     *syncpkg.Status `json:"sync,omitempty"`
}

// InboxResult is returned by getInbox.
type InboxResult struct {
	Scope   string       `json:"scope"`
	Total   int          `json:"total"`
	Entries []InboxEntry `json:"entries"`
}

// AutomationPack bundles everything a caller needs for one decision.
type AutomationPack struct {
	Status    string  `json:"status"`
	LoginCode string  `json:"loginCode,omitempty"`
	URL       string  `json:"url"`
	Details   Details `json:"details"`
}

func (h *Handler) getMyNumberLocked(ctx context.Context) (map[string]any, error) {
	n := h.myNumberLocked(ctx)
	return map[string]any{"myNumber": n, "detected": n != ""}, nil
}

func (h *Handler) getCurrentChatLocked(ctx context.Context) (*CurrentChat, error) {
	v, err := h.read(ctx, h.cfg.MessageLimit)
	if err != nil {
		return nil, err
	}
	if v.chat == nil {
		return nil, site.NewActionError(ErrChatNotOpen, "no chat is open", nil)
	}
	return v.chat, nil
}

func (h *Handler) readMessagesLocked(ctx context.Context, a readArgs) (MessagesResult, error) {
	limit := a.Limit
	if limit <= 0 {
		limit = h.cfg.MessageLimit
	}
	v, err := h.read(ctx, limit)
	if err != nil {
		return MessagesResult{}, err
	}
	if v.chat == nil {
		return MessagesResult{}, site.NewActionError(ErrChatNotOpen, "no chat is open", nil)
	}
	res := MessagesResult{Chat: v.chat, Messages: v.messages, Strategy: v.strategy}
	if v.chat.ChannelID != "" {
		st := h.ledger.Peek(v.chat.ChannelID, messageIDs(v.messages))
		res.Sync = &st
	}
	return res, nil
}

func (h *Handler) getInboxLocked(ctx context.Context, a inboxArgs) (InboxResult, error) {
	scope := a.Scope
	if scope == "" {
		scope = ScopeAll
	}
	if !validScope(scope) {
		return InboxResult{}, site.NewInvalidRequest("scope must be all, groups or contacts")
	}
	v, err := h.read(ctx, h.cfg.MessageLimit)
	if err != nil {
		return InboxResult{}, err
	}
	entries := FilterInbox(v.inbox, scope, Query{Text: a.Query, Phone: a.Phone})
	res := InboxResult{Scope: scope, Total: len(v.inbox), Entries: entries}
	if res.Entries == nil {
		res.Entries = []InboxEntry{}
	}
	if a.Limit > 0 && len(res.Entries) > a.Limit {
		res.Entries = res.Entries[:a.Limit]
	}
	return res, nil
}

func (h *Handler) automationPackLocked(ctx context.Context) (AutomationPack, error) {
	c := h.collectLocked(ctx, h.cfg.MessageLimit)
	pack := AutomationPack{Status: c.Status, LoginCode: c.LoginCode, URL: c.URL}
	if d, ok := c.Details.(*Details); ok {
		pack.Details = *d
	}
	return pack, nil
}

func (h *Handler) syncStatusLocked(ctx context.Context) (map[string]any, error) {
	out := map[string]any{"knownChats": len(h.ledger.Entries())}
	v, err := h.read(ctx, h.cfg.MessageLimit)
	if err != nil {
		return nil, err
	}
	if v.chat != nil && v.chat.ChannelID != "" {
		out["chat"] = v.chat
		out["sync"] = h.ledger.Peek(v.chat.ChannelID, messageIDs(v.messages))
		if e, ok := h.ledger.Entry(v.chat.ChannelID); ok {
			out["entry"] = e
		}
	}
	return out, nil
}

func (h *Handler) loginCodeLocked(ctx context.Context) (map[string]any, error) {
	v, err := h.read(ctx, h.cfg.MessageLimit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": v.status, "loginCode": v.loginCode}, nil
}

package chatapp

import (
	"context"
	"strings"

	"github.com/matheus3301/wppilot/internal/normalize"
	"github.com/matheus3301/wppilot/internal/page"
	"github.com/matheus3301/wppilot/internal/site"
	"go.uber.org/zap"
)

type openArgs struct {
	Query     string `json:"query"`
	Phone     string `json:"phone"`
	ChatIndex *int   `json:"chatIndex"`
	Prefer    string `json:"prefer"`
}

type openSendArgs struct {
	openArgs
	Text          string `json:"text"`
	ExpectedPhone string `json:"expectedPhone"`
}

// OpenResult reports an open attempt. An open that was clicked but never
// confirmed is still reported, with Confirmed false.
type OpenResult struct {
	Opened      bool         `json:"opened"`
	Confirmed   bool         `json:"confirmed"`
	AlreadyOpen bool         `json:"alreadyOpen,omitempty"`
	Chat        InboxEntry   `json:"chat"`
	Score       int          `json:"score,omitempty"`
	Current     *CurrentChat `json:"currentChat,omitempty"`
}

// OpenSendResult combines the open and send steps.
type OpenSendResult struct {
	Open OpenResult `json:"open"`
	Send SendResult `json:"send"`
}

func (a openArgs) validate() error {
	if strings.TrimSpace(a.Query) == "" && normalize.PhoneDigits(a.Phone) == "" && a.ChatIndex == nil {
		return site.NewInvalidRequest("query, phone or chatIndex is required")
	}
	if a.Prefer != "" && !validScope(a.Prefer) {
		return site.NewInvalidRequest("prefer must be all, groups or contacts")
	}
	return nil
}

func (h *Handler) openLocked(ctx context.Context, a openArgs) (OpenResult, error) {
	if err := a.validate(); err != nil {
		return OpenResult{}, err
	}
	v, err := h.read(ctx, h.cfg.MessageLimit)
	if err != nil {
		return OpenResult{}, err
	}

	var res OpenResult
	if a.ChatIndex != nil {
		found := false
		for _, e := range v.inbox {
			if e.Index == *a.ChatIndex {
				res.Chat, found = e, true
				break
			}
		}
		if !found {
			return res, site.NewActionError(ErrChatNotFound, "no chat at that index",
				map[string]any{"chatIndex": *a.ChatIndex, "inboxSize": len(v.inbox)})
		}
	} else {
		ranked := RankInbox(v.inbox, Query{Text: a.Query, Phone: a.Phone, Prefer: a.Prefer})
		if len(ranked) == 0 {
			return res, site.NewActionError(ErrChatNotFound, "no chat matches the query",
				map[string]any{"query": a.Query, "phone": a.Phone, "inboxSize": len(v.inbox)})
		}
		res.Chat, res.Score = ranked[0].Entry, ranked[0].Score
	}

	if v.chat != nil && chatMatches(v.chat, res.Chat) {
		res.Opened, res.Confirmed, res.AlreadyOpen, res.Current = true, true, true, v.chat
		return res, nil
	}

	row := page.Target{Selector: v.inboxSelector, Index: res.Chat.Index}
	if err := h.page.Click(ctx, row); err != nil {
		return res, site.NewActionError(ErrChatNotFound, err.Error(), map[string]any{"chat": res.Chat.Title})
	}
	res.Opened = true

	current, ok := page.Poll(ctx, h.poll(h.cfg.OpenTimeout), func(ctx context.Context) (*CurrentChat, bool) {
		v, err := h.read(ctx, h.cfg.MessageLimit)
		if err != nil || v.chat == nil {
			return nil, false
		}
		return v.chat, chatMatches(v.chat, res.Chat)
	})
	res.Confirmed, res.Current = ok, current
	if !ok {
		h.logger.Warn("chat open not confirmed", zap.String("chat", res.Chat.Title))
	}
	return res, nil
}

// chatMatches reports whether the open chat is the inbox entry e.
func chatMatches(c *CurrentChat, e InboxEntry) bool {
	if c.ChannelID != "" && c.ChannelID == e.ChannelID {
		return true
	}
	if c.Phone != "" && e.PhoneDigits != "" {
		return normalize.PhonesMatch(c.Phone, e.PhoneDigits)
	}
	tok := normalize.NormalizeLookupToken(c.Title)
	return tok != "" && tok == e.NormalizedTitle
}

func (h *Handler) openAndSendLocked(ctx context.Context, a openSendArgs) (OpenSendResult, error) {
	var out OpenSendResult
	if strings.TrimSpace(a.Text) == "" {
		return out, site.NewInvalidRequest("text is required")
	}
	open, err := h.openLocked(ctx, a.openArgs)
	out.Open = open
	if err != nil {
		return out, err
	}
	expected := a.ExpectedPhone
	if expected == "" {
		expected = a.Phone
	}
	if !open.Confirmed && normalize.PhoneDigits(expected) == "" {
		return out, site.NewActionError(ErrChatNotConfirmed, "opened chat could not be confirmed",
			map[string]any{"chat": open.Chat.Title})
	}
	out.Send, err = h.sendLocked(ctx, sendArgs{Text: a.Text, ExpectedPhone: expected})
	return out, err
}

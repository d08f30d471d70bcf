package chatapp

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/matheus3301/wppilot/internal/normalize"
	"go.mau.fi/whatsmeow/types"
)

// CurrentChat identifies the conversation open in the main pane.
type CurrentChat struct {
	Title     string `json:"title"`
	Phone     string `json:"phone,omitempty"`
	ChannelID string `json:"channelId"`
	ChatKey   string `json:"chatKey"`
	IsGroup   bool   `json:"isGroup"`
}

// ObservedChat is the last chat a collection pass saw.
type ObservedChat struct {
	ChatKey       string `json:"chatKey"`
	ChannelID     string `json:"channelId"`
	LastMessageID string `json:"lastMessageId"`
}

// ChatSwitch is the payload of chat switch events.
type ChatSwitch struct {
	From ObservedChat
	To   ObservedChat
}

// readCurrentChat resolves the open conversation. The channel id prefers a
// chat-network id embedded in message ids, then the phone, then the title.
// Returns nil when no conversation is open.
func readCurrentChat(doc *goquery.Document, msgs []Message) *CurrentChat {
	if doc.Find(selMain).Length() == 0 {
		return nil
	}
	title := headerTitle(doc)

	var token types.JID
	hasToken := false
	for i := len(msgs) - 1; i >= 0 && !hasToken; i-- {
		token, hasToken = normalize.ParseChannelToken(msgs[i].ID)
	}

	c := &CurrentChat{Title: title}
	if hasToken {
		switch token.Server {
		case types.DefaultUserServer, types.LegacyUserServer:
			c.Phone = normalize.PhoneDigits(token.User)
		}
		c.IsGroup = normalize.IsGroupJID(token)
	}
	if c.Phone == "" && normalize.LooksLikePhone(title) {
		c.Phone = normalize.PhoneDigits(title)
	}
	if !c.IsGroup {
		c.IsGroup = doc.Find(selHeaderGroupIcn).Length() > 0
	}

	switch {
	case hasToken:
		c.ChannelID = "jid:" + token.User + "@" + token.Server
	case c.Phone != "":
		c.ChannelID = "phone:" + c.Phone
	default:
		if tok := normalize.NormalizeLookupToken(title); tok != "" {
			c.ChannelID = "title:" + tok
		}
	}
	if title == "" && c.ChannelID == "" {
		return nil
	}
	c.ChatKey = chatKey(title)
	return c
}

func headerTitle(doc *goquery.Document) string {
	title := ""
	doc.Find(selHeaderTitle).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("title"); ok && strings.TrimSpace(v) != "" {
			title = normalize.CollapseText(v)
			return false
		}
		if t := normalize.CollapseText(s.Text()); t != "" {
			title = t
			return false
		}
		return true
	})
	return title
}

func chatKey(title string) string {
	tok := normalize.NormalizeLookupToken(title)
	if tok == "" {
		return ""
	}
	return "chat_" + normalize.StableHashString(tok)
}

// parseMyNumber extracts the account phone from a stored id such as
// "\"34600111222:12@c.us\"".
func parseMyNumber(raw string) string {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" {
		return ""
	}
	if jid, err := types.ParseJID(raw); err == nil && jid.User != "" && strings.Contains(raw, "@") {
		return normalize.PhoneDigits(jid.User)
	}
	return normalize.PhoneDigits(normalize.ExtractPhoneCandidate(raw))
}

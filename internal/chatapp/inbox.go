package chatapp

import (
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/matheus3301/wppilot/internal/normalize"
)

// Inbox entry kinds.
const (
	ChatContact = "contact"
	ChatGroup   = "group"
	ChatUnknown = "unknown"
)

// Archive and listing scopes.
const (
	ScopeAll      = "all"
	ScopeGroups   = "groups"
	ScopeContacts = "contacts"
)

// Score weights for open-by-query.
const (
	scoreExactTitle  = 1000
	scorePrefixTitle = 700
	scoreSubstring   = 500
	scorePartialMax  = 300
	scorePhoneExact  = 900
	scorePhoneSuffix = 600
	scorePreferBias  = 150
)

// InboxEntry is one row of the chat list.
type InboxEntry struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Phone     string `json:"phone,omitempty"`
	Preview   string `json:"preview,omitempty"`
	Kind      string `json:"kind"`
	Unread    int    `json:"unread,omitempty"`
	ChannelID string `json:"channelId"`

	NormalizedTitle string `json:"-"`
	PhoneDigits     string `json:"-"`
	SearchHaystack  string `json:"-"`
}

// ScrapeInbox reads the chat list. It returns the row selector that matched
// so rows can be addressed by index.
func ScrapeInbox(doc *goquery.Document) ([]InboxEntry, string) {
	for _, sel := range inboxRowSelectors {
		rows := doc.Find(sel)
		if rows.Length() == 0 {
			continue
		}
		entries := make([]InboxEntry, 0, rows.Length())
		rows.Each(func(i int, row *goquery.Selection) {
			if e, ok := scrapeInboxRow(row, i); ok {
				entries = append(entries, e)
			}
		})
		return entries, sel
	}
	return []InboxEntry{}, inboxRowSelectors[0]
}

func scrapeInboxRow(row *goquery.Selection, index int) (e InboxEntry, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e, ok = InboxEntry{}, false
		}
	}()

	titles := row.Find(selInboxTitle)
	title := ""
	if v, ok := titles.First().Attr("title"); ok {
		title = normalize.CollapseText(v)
	}
	if title == "" {
		return InboxEntry{}, false
	}

	preview := normalize.CollapseText(row.Find(selInboxPreview).First().Text())
	if preview == "" && titles.Length() > 1 {
		v, _ := titles.Eq(1).Attr("title")
		preview = normalize.CollapseText(v)
	}

	unread := 0
	if u := row.Find(selInboxUnread).First(); u.Length() > 0 {
		n := normalize.PhoneDigits(u.Text())
		if n == "" {
			label, _ := u.Attr("aria-label")
			n = normalize.PhoneDigits(label)
		}
		unread, _ = strconv.Atoi(n)
	}

	kind := ChatUnknown
	switch {
	case row.Find(selGroupIcon).Length() > 0:
		kind = ChatGroup
	case row.Find(selUserIcon).Length() > 0, normalize.LooksLikePhone(title):
		kind = ChatContact
	}

	return newInboxEntry(index, title, preview, kind, unread), true
}

func newInboxEntry(index int, title, preview, kind string, unread int) InboxEntry {
	e := InboxEntry{
		Index:           index,
		Title:           title,
		Preview:         preview,
		Kind:            kind,
		Unread:          unread,
		NormalizedTitle: normalize.NormalizeLookupToken(title),
	}
	if normalize.LooksLikePhone(title) {
		e.PhoneDigits = normalize.PhoneDigits(title)
		e.Phone = e.PhoneDigits
	}
	e.SearchHaystack = strings.TrimSpace(e.NormalizedTitle + " " + e.PhoneDigits)
	if e.PhoneDigits != "" {
		e.ChannelID = "phone:" + e.PhoneDigits
	} else {
		e.ChannelID = "title:" + e.NormalizedTitle
	}
	return e
}

// Query selects inbox entries.
type Query struct {
	Text   string
	Phone  string
	Prefer string // groups, contacts or empty
}

func (q Query) empty() bool {
	return strings.TrimSpace(q.Text) == "" && normalize.PhoneDigits(q.Phone) == ""
}

// ScoreEntry rates how well e answers q. Zero means no match.
func ScoreEntry(e InboxEntry, q Query) int {
	score := 0
	tok := normalize.NormalizeLookupToken(q.Text)
	if tok != "" && e.NormalizedTitle != "" {
		switch {
		case e.NormalizedTitle == tok:
			score = scoreExactTitle
		case strings.HasPrefix(e.NormalizedTitle, tok):
			score = scorePrefixTitle
		case strings.Contains(e.NormalizedTitle, tok):
			score = scoreSubstring
		default:
			words := strings.Fields(tok)
			matched := 0
			for _, w := range words {
				if strings.Contains(e.SearchHaystack, w) {
					matched++
				}
			}
			if matched > 0 {
				score = scorePartialMax * matched / len(words)
			}
		}
	}

	phone := normalize.PhoneDigits(q.Phone)
	if phone == "" && normalize.LooksLikePhone(q.Text) {
		phone = normalize.PhoneDigits(q.Text)
	}
	if phone != "" && e.PhoneDigits != "" {
		switch {
		case phone == e.PhoneDigits:
			score += scorePhoneExact
		case normalize.PhonesMatch(phone, e.PhoneDigits):
			score += scorePhoneSuffix
		}
	}

	if score == 0 {
		return 0
	}
	switch q.Prefer {
	case ScopeGroups:
		score += bias(e.Kind, ChatGroup, ChatContact)
	case ScopeContacts:
		score += bias(e.Kind, ChatContact, ChatGroup)
	}
	if score < 1 {
		score = 1
	}
	return score
}

func bias(kind, preferred, other string) int {
	switch kind {
	case preferred:
		return scorePreferBias
	case other:
		return -scorePreferBias
	}
	return 0
}

// Ranked is a scored inbox entry.
type Ranked struct {
	Entry InboxEntry `json:"entry"`
	Score int        `json:"score"`
}

// RankInbox returns matching entries, best first. Ties keep list order.
func RankInbox(entries []InboxEntry, q Query) []Ranked {
	var out []Ranked
	for _, e := range entries {
		if s := ScoreEntry(e, q); s > 0 {
			out = append(out, Ranked{Entry: e, Score: s})
		}
	}
	slices.SortStableFunc(out, func(a, b Ranked) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return a.Entry.Index - b.Entry.Index
	})
	return out
}

// FilterInbox applies a scope and, when q is not empty, the scorer.
func FilterInbox(entries []InboxEntry, scope string, q Query) []InboxEntry {
	var scoped []InboxEntry
	for _, e := range entries {
		switch scope {
		case ScopeGroups:
			if e.Kind != ChatGroup {
				continue
			}
		case ScopeContacts:
			if e.Kind == ChatGroup {
				continue
			}
		}
		scoped = append(scoped, e)
	}
	if q.empty() {
		return scoped
	}
	ranked := RankInbox(scoped, q)
	out := make([]InboxEntry, len(ranked))
	for i, r := range ranked {
		out[i] = r.Entry
	}
	return out
}

func validScope(scope string) bool {
	switch scope {
	case ScopeAll, ScopeGroups, ScopeContacts:
		return true
	}
	return false
}

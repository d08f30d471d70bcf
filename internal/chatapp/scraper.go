package chatapp

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/matheus3301/wppilot/internal/normalize"
)

// DefaultMessageLimit bounds the scraped conversation tail.
const DefaultMessageLimit = 80

// Roles.
const (
	RoleMe      = "me"
	RoleContact = "contact"
)

var (
	prePlainPattern = regexp.MustCompile(`^\s*\[([^\]]+)\]`)
	clockPattern    = regexp.MustCompile(`\b\d{1,2}:\d{2}(?:\s?[AaPp]\.?\s?[Mm]\.?)?`)
)

// Message is one conversation turn as rendered in the open chat.
type Message struct {
	ID        string      `json:"id"`
	Role      string      `json:"role"`
	Text      string      `json:"text"`
	Timestamp string      `json:"timestamp,omitempty"`
	Kind      string      `json:"kind"`
	Enriched  *Enrichment `json:"enriched,omitempty"`
}

// ScrapeMessages reads the open conversation, oldest first, keeping the last
// limit messages. It returns the selector strategy that matched, or "" when
// no rows were found.
func ScrapeMessages(doc *goquery.Document, limit int) ([]Message, string) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	var rows *goquery.Selection
	used := ""
	for _, s := range messageStrategies {
		if found := doc.Find(s.Selector); found.Length() > 0 {
			rows, used = found, s.Name
			break
		}
	}
	if rows == nil {
		return []Message{}, ""
	}

	msgs := make([]Message, 0, rows.Length())
	rows.Each(func(i int, row *goquery.Selection) {
		if m, ok := scrapeRow(row, i); ok {
			msgs = append(msgs, m)
		}
	})
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, used
}

// scrapeRow converts one row. A row that fails to parse is skipped alone.
func scrapeRow(row *goquery.Selection, position int) (m Message, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m, ok = Message{}, false
		}
	}()

	role := RoleContact
	if row.Is(selOutgoing) || row.Find(selOutgoing).Length() > 0 || row.ParentsFiltered(selOutgoing).Length() > 0 {
		role = RoleMe
	}

	marker := prePlainText(row)
	timestamp := timestampOf(row, marker)
	raw := rowText(row)
	if raw == "" && !isRealRow(row) {
		return Message{}, false
	}

	kind := classify(row, raw)
	extras := enrich(row, kind, raw, timestamp)
	text := raw
	if text == "" {
		text = synthesize(kind, extras)
	}
	if text == "" {
		return Message{}, false
	}

	id := domID(row)
	if id == "" {
		id = "h_" + normalize.StableHashString(strings.Join([]string{role, timestamp, marker, kind, text}, "|")) +
			"_" + strconv.Itoa(position)
	}

	m = Message{ID: id, Role: role, Text: text, Timestamp: timestamp, Kind: kind}
	if !extras.empty() {
		m.Enriched = &extras
	}
	return m, true
}

func domID(row *goquery.Selection) string {
	if v, ok := row.Attr("data-id"); ok && v != "" {
		return v
	}
	if v, ok := row.Find("[data-id]").First().Attr("data-id"); ok && v != "" {
		return v
	}
	if v, ok := row.ParentsFiltered("[data-id]").First().Attr("data-id"); ok && v != "" {
		return v
	}
	return ""
}

func prePlainText(row *goquery.Selection) string {
	if v, ok := row.Attr("data-pre-plain-text"); ok {
		return strings.TrimSpace(v)
	}
	v, _ := row.Find(selPrePlain).First().Attr("data-pre-plain-text")
	return strings.TrimSpace(v)
}

func timestampOf(row *goquery.Selection, marker string) string {
	if m := prePlainPattern.FindStringSubmatch(marker); m != nil {
		return strings.TrimSpace(m[1])
	}
	meta := normalize.CollapseText(row.Find(selMsgMeta).First().Text())
	return clockPattern.FindString(meta)
}

// rowText joins the distinct text fragments of a row, skipping quoted replies.
func rowText(row *goquery.Selection) string {
	var parts []string
	row.Find(selTextNodes).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(selQuoted).Length() > 0 {
			return
		}
		// Nested matches repeat their parent's text.
		if s.ParentsFiltered(selTextNodes).Length() > 0 {
			return
		}
		t := normalize.CollapseText(s.Text())
		if t == "" {
			return
		}
		for _, p := range parts {
			if p == t || strings.Contains(p, t) {
				return
			}
		}
		parts = append(parts, t)
	})
	return strings.Join(parts, "\n")
}

// isRealRow tells conversation rows from list chrome such as date dividers
// and encryption notices.
func isRealRow(row *goquery.Selection) bool {
	if domID(row) != "" {
		return true
	}
	for _, sel := range []string{selOutgoing, selIncoming, selPrePlain, selMsgMeta} {
		if has(row, sel) {
			return true
		}
	}
	return row.ParentsFiltered(selIncoming+", "+selOutgoing).Length() > 0
}

package chatapp

import (
	"context"
	"fmt"
	"html"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/page"
	"github.com/matheus3301/wppilot/internal/page/pagetest"
	syncpkg "github.com/matheus3301/wppilot/internal/sync"
)

const appURL = "https://web.whatsapp.com/"

type memBackend struct {
	mu     gosync.Mutex
	values map[string]string
}

func (m *memBackend) GetCheckpoint(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", syncpkg.ErrNoCheckpoint
	}
	return v, nil
}

func (m *memBackend) UpdateCheckpoint(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

type fakeMsg struct {
	id   string
	out  bool
	text string
	at   string
}

type fakeChat struct {
	title    string
	group    bool
	archived bool
	msgs     []fakeMsg
}

// fakeApp renders a chat web app and reacts to interaction like the real one.
type fakeApp struct {
	mu         gosync.Mutex
	chats      []*fakeChat
	open       int
	menuFor    int
	menuItems  []string
	composer   string
	noButton   bool
	noMenuBtn  bool
	ignoreSend bool
	// loseSend clears the composer without posting, like a dropped send.
	loseSend       bool
	disabledButton bool
	nextID         int
	qr             string
}

func newFakeApp(chats ...*fakeChat) *fakeApp {
	return &fakeApp{chats: chats, open: -1, menuFor: -1, menuItems: []string{"Archive chat", "Mute notifications"}}
}

func (a *fakeApp) visible() []*fakeChat {
	var out []*fakeChat
	for _, c := range a.chats {
		if !c.archived {
			out = append(out, c)
		}
	}
	return out
}

func (a *fakeApp) render() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var b strings.Builder
	b.WriteString("<html><head><title>WhatsApp</title></head><body><div id=\"app\">\n")
	if a.qr != "" {
		fmt.Fprintf(&b, "<div class=\"landing\"><div data-ref=%q><canvas></canvas></div></div>\n", a.qr)
		b.WriteString("</div></body></html>")
		return b.String()
	}
	b.WriteString("<div id=\"pane-side\">\n")
	for _, c := range a.visible() {
		icon := "default-user"
		if c.group {
			icon = "default-group"
		}
		preview := ""
		if n := len(c.msgs); n > 0 {
			preview = c.msgs[n-1].text
		}
		fmt.Fprintf(&b, "<div role=\"listitem\"><span data-icon=%q></span><span title=%q>%s</span><span title=%q>%s</span>",
			icon, c.title, html.EscapeString(c.title), preview, html.EscapeString(preview))
		if !a.noMenuBtn {
			b.WriteString("<button><span data-icon=\"down\"></span></button>")
		}
		b.WriteString("</div>\n")
	}
	b.WriteString("</div>\n")

	if a.menuFor >= 0 {
		b.WriteString("<div role=\"application\"><ul>")
		for _, item := range a.menuItems {
			fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(item))
		}
		b.WriteString("</ul></div>\n")
	}

	if a.open >= 0 {
		c := a.chats[a.open]
		b.WriteString("<div id=\"main\"><header>")
		if c.group {
			b.WriteString("<span data-icon=\"default-group\"></span>")
		}
		fmt.Fprintf(&b, "<span dir=\"auto\" title=%q>%s</span></header>\n", c.title, html.EscapeString(c.title))
		b.WriteString("<div class=\"copyable-area\">\n")
		for _, m := range c.msgs {
			class, who := "message-in", c.title
			if m.out {
				class, who = "message-out", "Me"
			}
			fmt.Fprintf(&b, "<div class=%q data-id=%q><div data-pre-plain-text=%q><span class=\"selectable-text\"><span>%s</span></span></div></div>\n",
				class, m.id, "["+m.at+", 17/10/2026] "+who+": ", html.EscapeString(m.text))
		}
		b.WriteString("</div>\n")
		fmt.Fprintf(&b, "<footer><div contenteditable=\"true\" role=\"textbox\">%s</div>", html.EscapeString(a.composer))
		switch {
		case a.disabledButton:
			b.WriteString("<button aria-label=\"Send\" aria-disabled=\"true\"><span data-icon=\"send\"></span></button>")
		case !a.noButton:
			b.WriteString("<button aria-label=\"Send\"><span data-icon=\"send\"></span></button>")
		}
		b.WriteString("</footer></div>\n")
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

// attach wires the app to a fake page.
func (a *fakeApp) attach(f *pagetest.Fake) {
	f.SetHTML(a.render())
	rerender := func() { f.SetHTML(a.render()) }

	f.OnClick = func(f *pagetest.Fake, t page.Target) {
		switch {
		case t.Selector == selSendButton:
			a.send(f)
		case t.Child == selRowMenuButton:
			a.mu.Lock()
			a.menuFor = t.Index
			a.mu.Unlock()
		case t.Selector == selMenuItems:
			a.mu.Lock()
			if a.menuFor >= 0 && strings.HasPrefix(a.menuItems[t.Index], "Archive") {
				a.visible()[a.menuFor].archived = true
			}
			a.menuFor = -1
			a.mu.Unlock()
		case t.Selector == inboxRowSelectors[0]:
			a.mu.Lock()
			target := a.visible()[t.Index]
			for i, c := range a.chats {
				if c == target {
					a.open = i
				}
			}
			a.composer = ""
			a.mu.Unlock()
		default:
			return
		}
		rerender()
	}
	f.OnContextClick = func(f *pagetest.Fake, t page.Target) {
		a.mu.Lock()
		a.menuFor = t.Index
		a.mu.Unlock()
		rerender()
	}
	f.OnPress = func(f *pagetest.Fake, t page.Target, key string) {
		if key == "Enter" {
			a.send(f)
			rerender()
		}
	}
	f.OnPressPage = func(f *pagetest.Fake, key string) {
		if key == "Escape" {
			a.mu.Lock()
			a.menuFor = -1
			a.mu.Unlock()
			rerender()
		}
	}
}

// send posts whatever the composer shows in the live DOM.
func (a *fakeApp) send(f *pagetest.Fake) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.HTML()))
	if err != nil {
		return
	}
	text := strings.TrimSpace(doc.Find(selComposer).First().Text())
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ignoreSend || text == "" || a.open < 0 {
		a.composer = text
		return
	}
	if a.loseSend {
		a.composer = ""
		return
	}
	a.nextID++
	c := a.chats[a.open]
	c.msgs = append(c.msgs, fakeMsg{id: fmt.Sprintf("true_%s_OUT%d", chatJID(c), a.nextID), out: true, text: text, at: "10:30"})
	a.composer = ""
}

func chatJID(c *fakeChat) string {
	for _, m := range c.msgs {
		parts := strings.Split(m.id, "_")
		if len(parts) > 1 && strings.Contains(parts[1], "@") {
			return parts[1]
		}
	}
	return "unknown@c.us"
}

func incoming(jid, id, text string) fakeMsg {
	return fakeMsg{id: "false_" + jid + "_" + id, text: text, at: "10:00"}
}

func outgoing(jid, id, text string) fakeMsg {
	return fakeMsg{id: "true_" + jid + "_" + id, out: true, text: text, at: "10:01"}
}

func testConfig() Config {
	return Config{
		MessageLimit:     DefaultMessageLimit,
		Debounce:         20 * time.Millisecond,
		Heartbeat:        50 * time.Millisecond,
		DedupeWindow:     time.Minute,
		IdentityTimeout:  80 * time.Millisecond,
		ComposerTimeout:  60 * time.Millisecond,
		SendReadyTimeout: 40 * time.Millisecond,
		ConfirmTimeout:   80 * time.Millisecond,
		OpenTimeout:      80 * time.Millisecond,
		MenuTimeout:      60 * time.Millisecond,
		PollInterval:     5 * time.Millisecond,
	}
}

type harness struct {
	app    *fakeApp
	page   *pagetest.Fake
	ledger *syncpkg.Ledger
	bus    *bus.Bus
	h      *Handler
}

func newHarness(t *testing.T, app *fakeApp) *harness {
	t.Helper()
	f := pagetest.New(appURL, "")
	app.attach(f)
	ledger := syncpkg.NewLedger(&memBackend{}, zap.NewNop())
	ledger.Load()
	b := bus.New()
	return &harness{app: app, page: f, ledger: ledger, bus: b, h: New(f, ledger, b, zap.NewNop(), testConfig())}
}

func (hs *harness) run(t *testing.T, action string, args map[string]any) (bool, any, string) {
	t.Helper()
	res := hs.h.RunAction(context.Background(), action, args)
	return res.OK, res.Result, res.Error
}

func docOf(t *testing.T, s string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

const (
	anaJID    = "34600111222@c.us"
	familyJID = "120363025555555555@g.us"
)

func anaChat() *fakeChat {
	return &fakeChat{title: "Ana", msgs: []fakeMsg{
		incoming(anaJID, "A1", "hola"),
		incoming(anaJID, "A2", "que tal?"),
	}}
}

func familyChat() *fakeChat {
	return &fakeChat{title: "Familia", group: true, msgs: []fakeMsg{
		incoming(familyJID, "F1", "cena a las 9"),
	}}
}

func anaGomezChat() *fakeChat {
	return &fakeChat{title: "Ana Gomez", msgs: []fakeMsg{
		incoming("34699888777@c.us", "G1", "buenas"),
	}}
}

package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppilot/internal/chatapp"
	syncpkg "github.com/matheus3301/wppilot/internal/sync"
	"github.com/matheus3301/wppilot/internal/tui/ui"
	"github.com/rivo/tview"
)

// Thread shows the open chat and a composer that queues replies.
type Thread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	chat     *chatapp.CurrentChat
	sync     *syncpkg.Status
	onSend   func(text string)
}

// NewThread creates the message thread view.
func NewThread(theme *ui.Theme) *Thread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" No chat open ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Queue reply (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	th := &Thread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && th.onSend != nil {
			text := composer.GetText()
			if text != "" {
				th.onSend(text)
				composer.SetText("")
			}
		}
	})

	return th
}

// Name implements Component.
func (th *Thread) Name() string {
	if th.chat != nil && th.chat.Title != "" {
		return th.chat.Title
	}
	return "Messages"
}

// Badge implements ui.Badged with the archive state of the open chat.
func (th *Thread) Badge() string {
	switch {
	case th.chat == nil || th.sync == nil:
		return ""
	case th.sync.IsLastMessageSynced:
		return "synced"
	case th.sync.MissingMessageCount == 1:
		return "1 new"
	}
	return fmt.Sprintf("%d new", th.sync.MissingMessageCount)
}

// SetSync records the ledger status of the open chat, nil when unknown.
func (th *Thread) SetSync(st *syncpkg.Status) {
	th.sync = st
}

// Hints implements Component.
func (th *Thread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "d", Description: "Details"},
		{Key: "r", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// SetOnSend sets the callback for submitted composer text.
func (th *Thread) SetOnSend(fn func(text string)) {
	th.onSend = fn
}

// Chat returns the chat being shown, or nil.
func (th *Thread) Chat() *chatapp.CurrentChat {
	return th.chat
}

// Update renders the visible messages, oldest first.
func (th *Thread) Update(chat *chatapp.CurrentChat, msgs []chatapp.Message) {
	th.chat = chat
	th.messages.Clear()
	if chat == nil {
		th.messages.SetTitle(" No chat open ")
		return
	}
	title := chat.Title
	if chat.Phone != "" && chat.Phone != chat.Title {
		title = fmt.Sprintf("%s %s", chat.Title, chat.Phone)
	}
	th.messages.SetTitle(" " + tview.Escape(sanitizeForTerminal(title)) + " ")

	for _, m := range msgs {
		_, _ = fmt.Fprint(th.messages, th.formatMessage(m))
	}
	th.messages.ScrollToEnd()
}

func (th *Thread) formatMessage(m chatapp.Message) string {
	sender := "Them"
	if m.Role == chatapp.RoleMe {
		sender = "You"
	}
	body := tview.Escape(sanitizeForTerminal(m.Text))
	if m.Kind != "" && m.Kind != chatapp.KindText {
		body = fmt.Sprintf("[%s]<%s>[-] %s", colorHex(th.theme.KindColor(m.Kind)), m.Kind, body)
	}
	return fmt.Sprintf("[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
		colorHex(th.theme.RoleColor(m.Role)), sender, tview.Escape(m.Timestamp), body)
}

// Messages returns the message pane (for focus management).
func (th *Thread) Messages() *tview.TextView {
	return th.messages
}

// Composer returns the composer input (for focus management).
func (th *Thread) Composer() *tview.InputField {
	return th.composer
}

func colorHex(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}

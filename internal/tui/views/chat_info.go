package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wppilot/internal/chatapp"
	"github.com/matheus3301/wppilot/internal/tui/ui"
	"github.com/rivo/tview"
)

// ChatInfo shows the open chat's identity and how far its messages are synced.
type ChatInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewChatInfo creates the chat details view.
func NewChatInfo(theme *ui.Theme) *ChatInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Chat Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ChatInfo{TextView: tv, theme: theme}
}

// Name implements Component.
func (ci *ChatInfo) Name() string { return "Details" }

// Hints implements Component.
func (ci *ChatInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// Update renders the details of d.CurrentChat.
func (ci *ChatInfo) Update(d chatapp.Details) {
	ci.Clear()
	chat := d.CurrentChat
	if chat == nil {
		_, _ = fmt.Fprint(ci, "\n No chat is open.")
		return
	}

	fg := colorHex(ci.theme.FgColor)
	ct := colorHex(ci.theme.CounterColor)
	row := func(label, value string) {
		if value == "" {
			value = "-"
		}
		_, _ = fmt.Fprintf(ci, " [%s::b]%-14s[-:-:-] [%s]%s[-]\n", fg, label+":", ct, tview.Escape(sanitizeForTerminal(value)))
	}

	chatType := "Contact"
	if chat.IsGroup {
		chatType = "Group"
	}

	_, _ = fmt.Fprintln(ci)
	row("Title", chat.Title)
	row("Phone", chat.Phone)
	row("Type", chatType)
	row("Channel", chat.ChannelID)
	row("Chat key", chat.ChatKey)
	row("Strategy", d.Strategy)
	row("Visible msgs", fmt.Sprint(len(d.Messages)))

	if s := d.Sync; s != nil {
		synced := "no"
		if s.IsLastMessageSynced {
			synced = "yes"
		}
		_, _ = fmt.Fprintln(ci)
		_, _ = fmt.Fprintf(ci, " [%s::b]%-14s[-:-:-] [%s]%s[-]\n", fg, "Synced:", colorHex(ci.theme.SyncColor(s.IsLastMessageSynced)), synced)
		row("Known msgs", fmt.Sprint(s.KnownMessageCount))
		row("Known last", s.KnownLastMessageID)
		row("Visible last", s.LastVisibleMessageID)
		row("Missing", fmt.Sprint(s.MissingMessageCount))
		if len(s.MissingMessageIDs) > 0 {
			row("Missing ids", strings.Join(s.MissingMessageIDs, ", "))
		}
	}
	if d.Error != "" {
		_, _ = fmt.Fprintln(ci)
		row("Error", d.Error)
	}

	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(sanitizeForTerminal(chat.Title))))
}

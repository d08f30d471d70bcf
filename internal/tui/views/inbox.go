package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppilot/internal/chatapp"
	"github.com/matheus3301/wppilot/internal/normalize"
	"github.com/matheus3301/wppilot/internal/tui/ui"
	"github.com/rivo/tview"
)

// Inbox is the chat list as last scraped from the page.
type Inbox struct {
	*tview.Table
	theme   *ui.Theme
	entries []chatapp.InboxEntry
	visible []chatapp.InboxEntry
	filter  string
}

// NewInbox creates the chat list table.
func NewInbox(theme *ui.Theme) *Inbox {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Inbox ")
	table.SetTitleColor(theme.TitleColor)

	return &Inbox{Table: table, theme: theme}
}

// Name implements Component.
func (in *Inbox) Name() string { return "Inbox" }

// Badge implements ui.Badged with the unread total across all chats.
func (in *Inbox) Badge() string {
	total := 0
	for _, e := range in.entries {
		total += e.Unread
	}
	if total == 0 {
		return ""
	}
	return fmt.Sprintf("%d unread", total)
}

// Hints implements Component.
func (in *Inbox) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "a", Description: "Archive"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "r", Description: "Refresh"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the rows, keeping the active filter.
func (in *Inbox) Update(entries []chatapp.InboxEntry) {
	in.entries = entries
	in.render()
}

// SetFilter narrows the rows to titles, phones and previews containing
// filter, compared the way chat lookups are.
func (in *Inbox) SetFilter(filter string) {
	in.filter = strings.TrimSpace(filter)
	in.render()
}

// ClearFilter shows every row.
func (in *Inbox) ClearFilter() {
	in.filter = ""
	in.render()
}

// Visible returns the rows currently shown.
func (in *Inbox) Visible() []chatapp.InboxEntry {
	return in.visible
}

func (in *Inbox) matches(e chatapp.InboxEntry) bool {
	if in.filter == "" {
		return true
	}
	needle := normalize.NormalizeLookupToken(in.filter)
	if needle == "" {
		return true
	}
	for _, s := range []string{e.Title, e.Preview} {
		if strings.Contains(normalize.NormalizeLookupToken(s), needle) {
			return true
		}
	}
	digits := normalize.PhoneDigits(in.filter)
	return digits != "" && strings.Contains(normalize.PhoneDigits(e.Phone), digits)
}

func (in *Inbox) render() {
	in.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" #", 0},
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" UNREAD", 0},
		{" TYPE", 0},
	}
	for col, h := range headers {
		in.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(in.theme.TableHeaderFg).
			SetBackgroundColor(in.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	in.visible = in.visible[:0]
	for _, e := range in.entries {
		if !in.matches(e) {
			continue
		}
		in.visible = append(in.visible, e)
		row := len(in.visible)

		name := e.Title
		if e.Phone != "" && e.Phone != e.Title {
			name = fmt.Sprintf("%s (%s)", e.Title, e.Phone)
		}
		unread := ""
		if e.Unread > 0 {
			unread = strconv.Itoa(e.Unread)
		}

		in.SetCell(row, 0, tview.NewTableCell(" "+strconv.Itoa(row)).SetTextColor(in.theme.NumericKeyColor))
		in.SetCell(row, 1, tview.NewTableCell(cell(name)).SetExpansion(1).SetTextColor(in.theme.FgColor))
		in.SetCell(row, 2, tview.NewTableCell(cell(e.Preview)).SetExpansion(2).SetMaxWidth(60).SetTextColor(in.theme.FgColor))
		in.SetCell(row, 3, tview.NewTableCell(unread).SetAlign(tview.AlignRight).SetTextColor(in.theme.CounterColor))
		in.SetCell(row, 4, tview.NewTableCell(strings.ToUpper(e.Kind)).SetAlign(tview.AlignRight).SetTextColor(in.theme.FgColor))
	}

	if in.filter != "" {
		in.SetTitle(fmt.Sprintf(" Inbox (%d/%d) filter: %s ", len(in.visible), len(in.entries), tview.Escape(in.filter)))
	} else {
		in.SetTitle(fmt.Sprintf(" Inbox (%d) ", len(in.entries)))
	}
}

// Selected returns the entry under the cursor.
func (in *Inbox) Selected() (chatapp.InboxEntry, bool) {
	row, _ := in.GetSelection()
	return in.ByPosition(row)
}

// ByPosition returns the Nth visible entry, counting from 1.
func (in *Inbox) ByPosition(n int) (chatapp.InboxEntry, bool) {
	if n < 1 || n > len(in.visible) {
		return chatapp.InboxEntry{}, false
	}
	return in.visible[n-1], true
}

package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/store"
	"github.com/matheus3301/wppilot/internal/tui/ui"
	"github.com/rivo/tview"
)

// Outbox lists queued sends and their delivery state.
type Outbox struct {
	*tview.Table
	theme   *ui.Theme
	pending int
	failed  int
}

// NewOutbox creates the outbox table.
func NewOutbox(theme *ui.Theme) *Outbox {
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
	table.SetTitle(" Outbox ")
	table.SetTitleColor(theme.TitleColor)

	return &Outbox{Table: table, theme: theme}
}

// Name implements Component.
func (ob *Outbox) Name() string { return "Outbox" }

// Badge implements ui.Badged with what still needs attention.
func (ob *Outbox) Badge() string {
	var parts []string
	if ob.pending > 0 {
		parts = append(parts, fmt.Sprintf("%d pending", ob.pending))
	}
	if ob.failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", ob.failed))
	}
	return strings.Join(parts, ", ")
}

// Hints implements Component.
func (ob *Outbox) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "r", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders the entries in the order given.
func (ob *Outbox) Update(items []api.OutboxItem) {
	ob.Clear()
	for col, h := range []string{" ID", " CHAT", " TEXT", " STATUS", " TRIES", " UPDATED"} {
		ob.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(ob.theme.TableHeaderFg).
			SetBackgroundColor(ob.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}
	ob.pending, ob.failed = 0, 0
	for i, it := range items {
		row := i + 1
		switch it.Status {
		case store.OutboxQueued, store.OutboxSending:
			ob.pending++
		case store.OutboxFailed:
			ob.failed++
		}
		status := it.Status
		if it.Error != "" {
			status += " (" + it.Error + ")"
		}
		ob.SetCell(row, 0, tview.NewTableCell(" "+shortID(it.ClientMsgID)).SetTextColor(ob.theme.CounterColor))
		ob.SetCell(row, 1, tview.NewTableCell(cell(it.Chat)).SetMaxWidth(24).SetTextColor(ob.theme.FgColor))
		ob.SetCell(row, 2, tview.NewTableCell(cell(it.Text)).SetExpansion(1).SetMaxWidth(60).SetTextColor(ob.theme.FgColor))
		ob.SetCell(row, 3, tview.NewTableCell(cell(status)).SetTextColor(ob.theme.OutboxColor(it.Status)))
		ob.SetCell(row, 4, tview.NewTableCell(" "+strconv.Itoa(it.Attempts)).SetAlign(tview.AlignRight).SetTextColor(ob.theme.FgColor))
		ob.SetCell(row, 5, tview.NewTableCell(" "+formatMillis(it.UpdatedAt)).SetTextColor(ob.theme.FgColor))
	}
	ob.SetTitle(fmt.Sprintf(" Outbox (%d) ", len(items)))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

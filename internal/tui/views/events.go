package views

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/tui/ui"
	"github.com/rivo/tview"
)

// EventLog lists daemon events, newest first.
type EventLog struct {
	*tview.Table
	theme *ui.Theme
}

// NewEventLog creates the event log table.
func NewEventLog(theme *ui.Theme) *EventLog {
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
	table.SetTitle(" Events ")
	table.SetTitleColor(theme.TitleColor)

	return &EventLog{Table: table, theme: theme}
}

// Name implements Component.
func (el *EventLog) Name() string { return "Events" }

// Hints implements Component.
func (el *EventLog) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// Update renders events given oldest first.
func (el *EventLog) Update(events []api.EventEnvelope) {
	el.Clear()
	for col, h := range []string{" TIME", " KIND", " PAYLOAD"} {
		el.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(el.theme.TableHeaderFg).
			SetBackgroundColor(el.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}
	for i := range events {
		e := events[len(events)-1-i]
		row := i + 1
		el.SetCell(row, 0, tview.NewTableCell(" "+time.UnixMilli(e.OccurredAt).Format("15:04:05")).SetTextColor(el.theme.CounterColor))
		el.SetCell(row, 1, tview.NewTableCell(" "+e.Kind).SetTextColor(el.theme.EventColor(e.Kind)))
		el.SetCell(row, 2, tview.NewTableCell(cell(summarize(e.Payload, 120))).SetExpansion(1).SetTextColor(el.theme.FgColor))
	}
	el.SetTitle(fmt.Sprintf(" Events (%d) ", len(events)))
}

// summarize renders a payload as one line of compact JSON, cut to max runes.
func summarize(payload any, max int) string {
	if payload == nil {
		return ""
	}
	var s string
	if str, ok := payload.(string); ok {
		s = str
	} else {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Sprint(payload)
		}
		s = string(b)
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}

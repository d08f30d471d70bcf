package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
	"github.com/rivo/uniseg"
)

// menuGap separates hint columns.
const menuGap = 3

// Menu lays the active page's key hints out in columns of at most rows
// lines. Chat jump hints go last.
type Menu struct {
	*tview.TextView
	theme *Theme
	rows  int
}

// NewMenu creates a menu that fills columns of rows lines.
func NewMenu(theme *Theme, rows int) *Menu {
	if rows < 1 {
		rows = 1
	}
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme, rows: rows}
}

// Update renders hints.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, strings.Join(m.layout(hints), "\n"))
}

func (m *Menu) layout(hints []MenuHint) []string {
	ordered := make([]MenuHint, 0, len(hints))
	var jumps []MenuHint
	for _, h := range hints {
		if h.Numeric {
			jumps = append(jumps, h)
			continue
		}
		ordered = append(ordered, h)
	}
	ordered = append(ordered, jumps...)
	if len(ordered) == 0 {
		return nil
	}

	lines := make([]string, min(m.rows, len(ordered)))
	for start := 0; start < len(ordered); start += m.rows {
		col := ordered[start:min(start+m.rows, len(ordered))]
		width := 0
		for _, h := range col {
			width = max(width, uniseg.StringWidth(plainHint(h)))
		}
		last := start+m.rows >= len(ordered)
		for r, h := range col {
			lines[r] += m.colored(h)
			if !last {
				lines[r] += strings.Repeat(" ", width-uniseg.StringWidth(plainHint(h))+menuGap)
			}
		}
	}
	return lines
}

func plainHint(h MenuHint) string {
	return "<" + h.Key + "> " + h.Description
}

func (m *Menu) colored(h MenuHint) string {
	kc := colorName(m.theme.MenuKeyColor)
	if h.Numeric {
		kc = colorName(m.theme.NumericKeyColor)
	}
	return fmt.Sprintf("[%s::b]<%s>[-:-:-] %s", kc, tview.Escape(h.Key), tview.Escape(h.Description))
}

package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Crumb is one step of the navigation trail.
type Crumb struct {
	Label string
	Badge string
}

// Crumbs is the trail of open pages, newest on the right. Only the active
// crumb shows its badge.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates an empty trail.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update renders trail.
func (c *Crumbs) Update(trail []Crumb) {
	c.Clear()
	_, _ = fmt.Fprint(c, c.format(trail))
}

func (c *Crumbs) format(trail []Crumb) string {
	parts := make([]string, 0, len(trail))
	for i, cr := range trail {
		label := tview.Escape(cr.Label)
		if i < len(trail)-1 {
			parts = append(parts, fmt.Sprintf("[%s:%s:] %s [-:-:-]",
				colorName(c.theme.CrumbInactiveFg), colorName(c.theme.CrumbInactiveBg), label))
			continue
		}
		active := fmt.Sprintf("[%s:%s:b] %s [-:-:-]",
			colorName(c.theme.CrumbActiveFg), colorName(c.theme.CrumbActiveBg), label)
		if cr.Badge != "" {
			active += fmt.Sprintf(" [%s]%s[-]", colorName(c.theme.CounterColor), tview.Escape(cr.Badge))
		}
		parts = append(parts, active)
	}
	return strings.Join(parts, " > ")
}

// colorName returns a tview colour tag for c.
func colorName(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}

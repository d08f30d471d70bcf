package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

var logoArt = [...]string{
	"╦ ╦╔═╗╔═╗╦╦  ╔═╗╔╦╗",
	"║║║╠═╝╠═╝║║  ║ ║ ║ ",
	"╚╩╝╩  ╩  ╩╩═╝╚═╝ ╩ ",
}

// Logo is the header art. Its colour follows the session state so a lost
// login shows at a glance from any page.
type Logo struct {
	*tview.TextView
	theme *Theme
	state string
}

// NewLogo creates the logo in the neutral colour.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{TextView: tv, theme: theme}
	l.render()
	return l
}

// SetStatus recolours the logo for a session state. Unchanged states do not
// redraw.
func (l *Logo) SetStatus(state string) {
	if state == l.state {
		return
	}
	l.state = state
	l.render()
}

func (l *Logo) render() {
	l.Clear()
	color := colorName(l.theme.TitleColor)
	caption := "whatsapp web pilot"
	if l.state != "" {
		color = colorName(l.theme.StatusColor(l.state))
		caption = l.state
	}
	for _, line := range logoArt {
		_, _ = fmt.Fprintf(l, "[%s::b]%s[-:-:-]\n", color, line)
	}
	_, _ = fmt.Fprintf(l, "[%s]%s[-:-:-]", colorName(l.theme.FgColor), caption)
}

package views

import (
	"fmt"

	"github.com/matheus3301/wppilot/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	keyColor := hv.theme.MenuKeyColor
	kc := fmt.Sprintf("#%06x", keyColor.Hex())

	help := fmt.Sprintf(`
  [::b]Global Keys[-:-:-]

  [%[1]s]:[-:-:-]      Command mode        [%[1]s]Esc[-:-:-]    Cancel / Go back
  [%[1]s]/[-:-:-]      Filter the inbox    [%[1]s]?[-:-:-]      Help
  [%[1]s]r[-:-:-]      Collect the page    [%[1]s]Ctrl-C[-:-:-] Quit immediately
  [%[1]s]e[-:-:-]      Event log           [%[1]s]o[-:-:-]      Outbox
  [%[1]s]g[-:-:-]      Go to chat          [%[1]s]q[-:-:-]      Quit

  [::b]Inbox[-:-:-]

  [%[1]s]Enter[-:-:-]  Open chat in the tab [%[1]s]1-9[-:-:-]   Open the Nth row
  [%[1]s]a[-:-:-]      Archive chat         [%[1]s]0[-:-:-]     Clear filter

  [::b]Chat[-:-:-]

  [%[1]s]i[-:-:-]      Focus composer       [%[1]s]d[-:-:-]     Chat details
  [%[1]s]Enter[-:-:-]  Queue reply (in composer)

  [::b]Commands (: mode)[-:-:-]

  [%[1]s]:open <name or phone>[-:-:-]   Open the best matching chat
  [%[1]s]:search <query>[-:-:-]         Search archived messages
  [%[1]s]:send <text>[-:-:-]            Queue text for the open chat
  [%[1]s]:events[-:-:-] / [%[1]s]:outbox[-:-:-]     Show events or outbox
  [%[1]s]:help[-:-:-] / [%[1]s]:h[-:-:-]            Show this help
  [%[1]s]:quit[-:-:-] / [%[1]s]:q[-:-:-]            Quit
`, kc)

	_, _ = fmt.Fprint(hv, help)
}

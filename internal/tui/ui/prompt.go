package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode is what the prompt's text is used for.
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
	PromptOpen
)

var promptLabels = map[PromptMode]struct{ label, title string }{
	PromptCommand: {":", " Command "},
	PromptFilter:  {"/", " Filter chats "},
	PromptOpen:    {"@", " Open chat (name or phone) "},
}

// Prompt is the input bar for commands, inbox filters and chat jumps. Each
// mode may have a completer offering suggestions while typing.
type Prompt struct {
	*tview.InputField
	theme      *Theme
	mode       PromptMode
	completers map[PromptMode]func(text string) []string
	onSubmit   func(mode PromptMode, text string)
	onCancel   func()
}

// NewPrompt creates the prompt bar.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{
		InputField: input,
		theme:      theme,
		completers: make(map[PromptMode]func(string) []string),
	}
	input.SetAutocompleteFunc(p.Suggest)
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := p.GetText()
			if p.onSubmit != nil && text != "" {
				p.onSubmit(p.mode, text)
			}
			p.SetText("")
		case tcell.KeyEscape:
			p.SetText("")
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})
	return p
}

// SetCompleter sets the suggestion source of a mode.
func (p *Prompt) SetCompleter(mode PromptMode, fn func(text string) []string) {
	p.completers[mode] = fn
}

// Suggest returns the active mode's suggestions for text. Empty text offers
// nothing so the list does not pop up on open.
func (p *Prompt) Suggest(text string) []string {
	fn := p.completers[p.mode]
	if fn == nil || text == "" {
		return nil
	}
	return fn(text)
}

// SetOnSubmit sets the callback for submitted text.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback for Esc.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate clears the prompt and switches it to mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.SetText("")
	l := promptLabels[mode]
	p.SetLabel(l.label)
	p.SetTitle(l.title)
}

// Mode returns the active mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}

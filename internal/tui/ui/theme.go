package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/wppilot/internal/chatapp"
	"github.com/matheus3301/wppilot/internal/status"
	"github.com/matheus3301/wppilot/internal/store"
)

// Theme is the TUI palette: shared chrome plus the colours that carry
// meaning for chats, sync state and deliveries.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	DimColor         tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TitleColor       tcell.Color
	CounterColor     tcell.Color

	TableHeaderFg tcell.Color
	TableHeaderBg tcell.Color
	TableCursorFg tcell.Color
	TableCursorBg tcell.Color

	CrumbActiveFg   tcell.Color
	CrumbActiveBg   tcell.Color
	CrumbInactiveFg tcell.Color
	CrumbInactiveBg tcell.Color

	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	PromptBorderColor tcell.Color

	// Messages.
	MeColor      tcell.Color
	ContactColor tcell.Color
	MediaColor   tcell.Color

	// States shared by session status, sync, outbox and flashes.
	OKColor        tcell.Color
	AttentionColor tcell.Color
	FailureColor   tcell.Color
}

// DefaultTheme returns the dark palette.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorCadetBlue,
		DimColor:         tcell.ColorDimGray,
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		TitleColor:       tcell.ColorFuchsia,
		CounterColor:     tcell.ColorPapayaWhip,

		TableHeaderFg: tcell.ColorWhite,
		TableHeaderBg: tcell.ColorBlack,
		TableCursorFg: tcell.ColorBlack,
		TableCursorBg: tcell.ColorAqua,

		CrumbActiveFg:   tcell.ColorBlack,
		CrumbActiveBg:   tcell.ColorOrange,
		CrumbInactiveFg: tcell.ColorBlack,
		CrumbInactiveBg: tcell.ColorAqua,

		MenuKeyColor:      tcell.ColorDodgerBlue,
		NumericKeyColor:   tcell.ColorFuchsia,
		PromptBorderColor: tcell.ColorDodgerBlue,

		MeColor:      tcell.ColorMediumSeaGreen,
		ContactColor: tcell.ColorCadetBlue,
		MediaColor:   tcell.ColorPlum,

		OKColor:        tcell.ColorNavajoWhite,
		AttentionColor: tcell.ColorOrange,
		FailureColor:   tcell.ColorOrangeRed,
	}
}

// RoleColor colours a message's sender.
func (t *Theme) RoleColor(role string) tcell.Color {
	if role == chatapp.RoleMe {
		return t.MeColor
	}
	return t.ContactColor
}

// KindColor colours the tag of a non-text message.
func (t *Theme) KindColor(kind string) tcell.Color {
	switch kind {
	case chatapp.KindText, "":
		return t.FgColor
	case chatapp.KindEmpty, chatapp.KindUnknown:
		return t.DimColor
	}
	return t.MediaColor
}

// SyncColor marks whether the newest visible message is archived.
func (t *Theme) SyncColor(synced bool) tcell.Color {
	if synced {
		return t.OKColor
	}
	return t.AttentionColor
}

// StatusColor colours a session state.
func (t *Theme) StatusColor(state string) tcell.Color {
	switch status.State(state) {
	case status.Ready:
		return t.OKColor
	case status.Error:
		return t.FailureColor
	case status.LoginRequired, status.Degraded:
		return t.AttentionColor
	}
	return t.FgColor
}

// OutboxColor colours an outbox entry's delivery state.
func (t *Theme) OutboxColor(state string) tcell.Color {
	switch state {
	case store.OutboxFailed:
		return t.FailureColor
	case store.OutboxQueued, store.OutboxSending:
		return t.AttentionColor
	case store.OutboxSkipped:
		return t.DimColor
	}
	return t.FgColor
}

// EventColor colours a daemon event kind.
func (t *Theme) EventColor(kind string) tcell.Color {
	switch {
	case strings.HasSuffix(kind, "failed"):
		return t.FailureColor
	case strings.HasPrefix(kind, "session."):
		return t.AttentionColor
	case strings.HasPrefix(kind, "archive."), strings.HasSuffix(kind, "_ack"), strings.HasSuffix(kind, "_sent"):
		return t.OKColor
	}
	return t.FgColor
}

// FlashColor colours a flash message by level.
func (t *Theme) FlashColor(level FlashLevel) tcell.Color {
	switch level {
	case FlashWarn:
		return t.AttentionColor
	case FlashErr:
		return t.FailureColor
	}
	return t.OKColor
}

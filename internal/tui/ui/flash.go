package ui

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/wppilot/internal/chatapp"
)

// FlashLevel is how loudly a flash is shown and how long it stays.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// Duration is how long a flash of this level stays up.
func (l FlashLevel) Duration() time.Duration {
	switch l {
	case FlashWarn:
		return 8 * time.Second
	case FlashErr:
		return 15 * time.Second
	}
	return 5 * time.Second
}

// retryable failure reasons: nothing was typed into the wrong place, so the
// user can try again. Every other reason is shown as an error.
var retryable = map[string]struct{}{
	chatapp.ErrChatNotFound:       {},
	chatapp.ErrChatNotOpen:        {},
	chatapp.ErrChatNotConfirmed:   {},
	chatapp.ErrPageNotReady:       {},
	chatapp.ErrComposerNotFound:   {},
	chatapp.ErrSendButtonNotFound: {},
	chatapp.ErrPhoneNotDetected:   {},
	chatapp.ErrArchiveNotFound:    {},
}

// LevelFor maps an action failure reason to a flash level.
func LevelFor(reason string) FlashLevel {
	if _, ok := retryable[reason]; ok {
		return FlashWarn
	}
	return FlashErr
}

// reasoned is an error that carries an action failure reason.
type reasoned interface {
	ReasonCode() string
}

// FlashMessage is one notification.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the current notification.
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	now     func() time.Time
}

// NewFlashModel creates an empty flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{now: time.Now}
}

// Info shows a confirmation.
func (f *FlashModel) Info(msg string) {
	f.set(msg, FlashInfo)
}

// Warn shows something the user may want to act on.
func (f *FlashModel) Warn(msg string) {
	f.set(msg, FlashWarn)
}

// Err shows err. Action failures with a retryable reason drop to a warning.
func (f *FlashModel) Err(err error) {
	level := FlashErr
	var r reasoned
	if errors.As(err, &r) {
		level = LevelFor(r.ReasonCode())
	}
	f.set(err.Error(), level)
}

// Failure shows an action failure reported by reason code, as events do.
func (f *FlashModel) Failure(reason, msg string) {
	f.set(msg, LevelFor(reason))
}

func (f *FlashModel) set(msg string, level FlashLevel) {
	f.mu.Lock()
	f.current = FlashMessage{Text: msg, Level: level, Expires: f.now().Add(level.Duration())}
	f.mu.Unlock()
}

// GetMessage returns the current flash, or nil once it expired.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// FlashBar shows the current flash under the crumbs.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates the flash bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Update renders msg, or clears the bar when msg is nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", colorName(fb.theme.FlashColor(msg.Level)), tview.Escape(msg.Text))
}

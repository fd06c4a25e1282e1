package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

var flashTTL = map[FlashLevel]time.Duration{
	FlashInfo: 4 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  12 * time.Second,
}

// FlashMessage is a transient notification.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// Flash keeps the latest notification until it expires.
type Flash struct {
	mu      sync.Mutex
	current FlashMessage
	now     func() time.Time
	notify  func()
}

// NewFlash creates an empty flash model. notify, when set, runs after every
// change so the bar can be redrawn.
func NewFlash(notify func()) *Flash {
	return &Flash{now: time.Now, notify: notify}
}

func (f *Flash) Info(msg string)                  { f.set(msg, FlashInfo) }
func (f *Flash) Warn(msg string)                  { f.set(msg, FlashWarn) }
func (f *Flash) Infof(format string, args ...any) { f.set(fmt.Sprintf(format, args...), FlashInfo) }

// Err shows err, nil clears nothing.
func (f *Flash) Err(err error) {
	if err == nil {
		return
	}
	f.set(err.Error(), FlashErr)
}

func (f *Flash) set(msg string, level FlashLevel) {
	f.mu.Lock()
	f.current = FlashMessage{Text: msg, Level: level, Expires: f.now().Add(flashTTL[level])}
	f.mu.Unlock()
	if f.notify != nil {
		f.notify()
	}
}

// Current returns the live message, or nil once it expired.
func (f *Flash) Current() *FlashMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current.Text == "" || f.now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// FlashBar is the UI component that displays flash notifications.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders msg, or clears the bar when msg is nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}

	color := fb.theme.FlashInfoColor
	switch msg.Level {
	case FlashWarn:
		color = fb.theme.FlashWarnColor
	case FlashErr:
		color = fb.theme.FlashErrColor
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", colorName(color), tview.Escape(msg.Text))
}

package views

import (
	"fmt"
	"strings"

	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/timestamp"
	"github.com/ekdusrla/ssukssuk-closet/internal/tui/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// MessageThread shows one room log above a multi-line composer.
type MessageThread struct {
	*tview.Flex
	theme       *ui.Theme
	messages    *tview.TextView
	composer    *tview.TextArea
	counterpart string
	log         []conversation.Message
	onSend      func(body string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewTextArea().
		SetPlaceholder("enter to send, alt-enter for a new line")
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetTitle(" Compose ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, false).
		AddItem(composer, 5, 0, true)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() != tcell.KeyEnter || ev.Modifiers()&tcell.ModAlt != 0 {
			return ev
		}
		body := composer.GetText()
		if strings.TrimSpace(body) != "" && mt.onSend != nil {
			composer.SetText("", false)
			mt.onSend(body)
		}
		return nil
	})

	return mt
}

func (mt *MessageThread) Name() string {
	if mt.counterpart == "" {
		return "room"
	}
	return mt.counterpart
}

// SetOnSend sets the callback for enter in the composer.
func (mt *MessageThread) SetOnSend(fn func(body string)) {
	mt.onSend = fn
}

// SetRoom switches to counterpart and clears the composer.
func (mt *MessageThread) SetRoom(counterpart string) {
	if counterpart != mt.counterpart {
		mt.composer.SetText("", false)
	}
	mt.counterpart = counterpart
	mt.log = nil
	mt.messages.Clear()
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(counterpart)))
}

// Room returns the counterpart shown.
func (mt *MessageThread) Room() string {
	return mt.counterpart
}

// Update renders log as seen by me.
func (mt *MessageThread) Update(log []conversation.Message, me string) {
	mt.log = log
	mt.messages.Clear()
	_, _ = fmt.Fprint(mt.messages, RenderLog(log, me, mt.theme))
	mt.messages.ScrollToEnd()
}

// LatestFailed returns the id of the newest message that failed to send.
func (mt *MessageThread) LatestFailed() (string, bool) {
	for i := len(mt.log) - 1; i >= 0; i-- {
		if m := mt.log[i]; m.Local && m.State == conversation.Failed {
			return m.ID, true
		}
	}
	return "", false
}

// Messages returns the log view, for scrolling focus.
func (mt *MessageThread) Messages() *tview.TextView { return mt.messages }

// Composer returns the input area.
func (mt *MessageThread) Composer() *tview.TextArea { return mt.composer }

// RenderLog formats a room log with tview color tags. A date rule opens
// every calendar day; own messages carry their delivery state.
func RenderLog(log []conversation.Message, me string, theme *ui.Theme) string {
	var b strings.Builder
	me = conversation.NormalizeNickname(me)
	lastDay := ""
	for _, m := range log {
		if day := m.SentAt.Format("2006. 1. 2."); day != lastDay {
			fmt.Fprintf(&b, "[::d]──── %s ────[-:-:-]\n\n", day)
			lastDay = day
		}

		author, color := m.AuthorID, ui.Tag(theme.TheirsColor)
		mine := m.AuthorID == me
		if mine {
			author, color = "나", ui.Tag(theme.MineColor)
		}
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]", color,
			tview.Escape(sanitizeForTerminal(author)), timestamp.Format(m.SentAt))
		if mine {
			switch m.State {
			case conversation.Pending:
				fmt.Fprintf(&b, " [%s]전송 중…[-]", ui.Tag(theme.PendingColor))
			case conversation.Failed:
				fmt.Fprintf(&b, " [%s::b]전송 실패 (r 재전송)[-:-:-]", ui.Tag(theme.FailedColor))
			}
		}
		fmt.Fprintf(&b, "\n%s\n\n", tview.Escape(sanitizeForTerminal(m.Body)))
	}
	return b.String()
}

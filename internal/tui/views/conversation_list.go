package views

import (
	"fmt"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/timestamp"
	"github.com/ekdusrla/ssukssuk-closet/internal/tui/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ConversationList is the room list page.
type ConversationList struct {
	*tview.Table
	theme     *ui.Theme
	summaries []conversation.Summary
	query     string
	total     int
	onOpen    func(counterpart string)
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
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
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{
		Table: table,
		theme: theme,
	}
	table.SetSelectedFunc(func(row, _ int) {
		if c := cl.At(row); c != "" && cl.onOpen != nil {
			cl.onOpen(c)
		}
	})
	cl.SetTitle(" Rooms ")
	return cl
}

func (cl *ConversationList) Name() string { return "rooms" }

// SetOnOpen sets the callback for enter on a row.
func (cl *ConversationList) SetOnOpen(fn func(counterpart string)) {
	cl.onOpen = fn
}

// Update shows summaries, already filtered by query, out of total rooms.
func (cl *ConversationList) Update(summaries []conversation.Summary, query string, total int, now time.Time) {
	selected := cl.Selected()
	cl.summaries = summaries
	cl.query = query
	cl.total = total
	cl.render(now)

	row := 1
	for i, s := range summaries {
		if s.CounterpartID == selected {
			row = i + 1
			break
		}
	}
	if len(summaries) > 0 {
		cl.Select(row, 0)
	}
}

func (cl *ConversationList) render(now time.Time) {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NICKNAME", 1},
		{" LAST MESSAGE", 3},
		{" WHEN", 0},
		{" NEW", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	for i, s := range cl.summaries {
		row := i + 1
		name := tview.NewTableCell(" " + tview.Escape(oneLine(s.CounterpartID))).
			SetExpansion(1).SetTextColor(cl.theme.FgColor)
		if s.UnreadCount > 0 {
			name.SetAttributes(tcell.AttrBold)
		}
		cl.SetCell(row, 0, name)
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(oneLine(s.LastMessagePreview))).
			SetExpansion(3).SetMaxWidth(60).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+timestamp.FormatRelative(s.LastMessageAt, now)).
			SetTextColor(cl.theme.CounterColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(" "+conversation.BadgeLabel(s.UnreadCount)+" ").
			SetTextColor(cl.theme.BadgeColor).SetAttributes(tcell.AttrBold).SetAlign(tview.AlignRight))
	}

	switch {
	case cl.query != "":
		cl.SetTitle(fmt.Sprintf(" Rooms (%d/%d) /%s ", len(cl.summaries), cl.total, tview.Escape(cl.query)))
	default:
		cl.SetTitle(fmt.Sprintf(" Rooms (%d) ", cl.total))
	}
}

// At returns the counterpart shown on table row, or "" for the header.
func (cl *ConversationList) At(row int) string {
	i := row - 1
	if i < 0 || i >= len(cl.summaries) {
		return ""
	}
	return cl.summaries[i].CounterpartID
}

// Selected returns the counterpart under the cursor.
func (cl *ConversationList) Selected() string {
	row, _ := cl.GetSelection()
	return cl.At(row)
}

// ByIndex returns the Nth visible room (1-based).
func (cl *ConversationList) ByIndex(n int) string {
	return cl.At(n)
}

// Unread sums the unread counts of the shown rooms.
func (cl *ConversationList) Unread() int {
	total := 0
	for _, s := range cl.summaries {
		total += s.UnreadCount
	}
	return total
}

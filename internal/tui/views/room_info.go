package views

import (
	"fmt"

	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/tui/ui"
	"github.com/rivo/tview"
)

// RoomDetails is what the info page shows about one room.
type RoomDetails struct {
	Counterpart string
	LastRefresh string
	Unread      int
	Log         []conversation.Message
}

// RoomInfo displays details for the open room.
type RoomInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewRoomInfo creates a new room info view.
func NewRoomInfo(theme *ui.Theme) *RoomInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Room ")
	tv.SetTitleColor(theme.TitleColor)

	return &RoomInfo{
		TextView: tv,
		theme:    theme,
	}
}

func (ri *RoomInfo) Name() string { return "info" }

// Update renders d.
func (ri *RoomInfo) Update(d RoomDetails) {
	ri.Clear()
	ri.SetTitle(fmt.Sprintf(" %s ", tview.Escape(d.Counterpart)))

	var pending, failed int
	for _, m := range d.Log {
		switch m.State {
		case conversation.Pending:
			pending++
		case conversation.Failed:
			failed++
		}
	}
	refreshed := d.LastRefresh
	if refreshed == "" {
		refreshed = "never"
	}

	kc := ui.Tag(ri.theme.MenuKeyColor)
	_, _ = fmt.Fprintf(ri, "\n  [%s::b]Nickname:[-:-:-]     %s\n", kc, tview.Escape(d.Counterpart))
	_, _ = fmt.Fprintf(ri, "  [%s::b]Avatar:[-:-:-]       %s\n", kc, tview.Escape(conversation.AvatarURL(d.Counterpart)))
	_, _ = fmt.Fprintf(ri, "  [%s::b]Messages:[-:-:-]     %d\n", kc, len(d.Log))
	_, _ = fmt.Fprintf(ri, "  [%s::b]Unread:[-:-:-]       %d\n", kc, d.Unread)
	_, _ = fmt.Fprintf(ri, "  [%s::b]Sending:[-:-:-]      %d\n", kc, pending)
	_, _ = fmt.Fprintf(ri, "  [%s::b]Failed:[-:-:-]       %d\n", kc, failed)
	_, _ = fmt.Fprintf(ri, "  [%s::b]Last refresh:[-:-:-] %s\n", kc, tview.Escape(refreshed))
}

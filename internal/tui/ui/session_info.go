package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// ProfileData holds the header information.
type ProfileData struct {
	Profile  string
	Nickname string
	Status   string
	Rooms    int
	Unread   int
	Synced   string // last room list refresh, already formatted
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(data *ProfileData) {
	pi.Clear()
	if data == nil {
		return
	}

	fg := colorName(pi.theme.FgColor)
	ct := colorName(pi.theme.CounterColor)
	dash := func(s string) string {
		if s == "" {
			return "-"
		}
		return tview.Escape(s)
	}

	_, _ = fmt.Fprintf(pi,
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Status:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]Rooms:[-:-:-]   [%s]%d[-] [::d](unread %d)[-:-:-]\n"+
			"[%s::b]Synced:[-:-:-]  [%s]%s[-]",
		fg, ct, dash(data.Profile),
		fg, ct, dash(data.Nickname),
		fg, ct, dash(data.Status),
		fg, ct, data.Rooms, data.Unread,
		fg, ct, dash(data.Synced),
	)
}

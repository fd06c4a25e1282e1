package views

import (
	"fmt"
	"strings"

	"github.com/ekdusrla/ssukssuk-closet/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpSection is one titled block of the help page.
type HelpSection struct {
	Title string
	Hints []ui.MenuHint
}

// HelpView displays key binding and command reference.
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

	return &HelpView{
		TextView: tv,
		theme:    theme,
	}
}

func (hv *HelpView) Name() string { return "help" }

// Update renders sections.
func (hv *HelpView) Update(sections []HelpSection) {
	hv.Clear()
	kc := ui.Tag(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.Title)
		for _, h := range s.Hints {
			fmt.Fprintf(&b, "  [%s]%-16s[-:-:-] %s\n", kc, tview.Escape(h.Key), h.Description)
		}
	}
	_, _ = fmt.Fprint(hv, b.String())
}

package ui

import (
	"strings"

	"github.com/rivo/tview"
)

var logoArt = []string{
	"╔═╗╔═╗╦ ╦╦╔═",
	"╚═╗╚═╗║ ║╠╩╗",
	"╚═╝╚═╝╚═╝╩ ╩",
}

const logoTagline = "쑥쑥 옷장 채팅"

// NewLogo returns the header logo.
func NewLogo(theme *Theme) *tview.TextView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)
	tv.SetText(renderLogo(theme))
	return tv
}

func renderLogo(theme *Theme) string {
	var b strings.Builder
	for _, line := range logoArt {
		b.WriteString("[" + colorName(theme.TitleColor) + "::b]" + line + "[-:-:-]\n")
	}
	b.WriteString("[" + colorName(theme.FgColor) + "]" + logoTagline + "[-]")
	return b.String()
}

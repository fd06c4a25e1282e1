package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Menu displays keyboard shortcut hints in columns of at most rows lines.
type Menu struct {
	*tview.TextView
	theme *Theme
	rows  int
}

// NewMenu creates a new menu hint panel.
func NewMenu(theme *Theme, rows int) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
		rows:     rows,
	}
}

// Update renders menu hints.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, FormatHints(hints, m.rows, colorName(m.theme.MenuKeyColor)))
}

// FormatHints lays hints out column by column, rows lines high.
func FormatHints(hints []MenuHint, rows int, keyColor string) string {
	if rows <= 0 {
		rows = 1
	}
	lines := make([]string, min(rows, len(hints)))
	for i, h := range hints {
		cell := fmt.Sprintf("[%s::b]<%s>[-:-:-] %-10s", keyColor, h.Key, h.Description)
		lines[i%rows] += cell + "  "
	}
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

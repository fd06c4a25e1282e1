package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Crumbs shows the page trail, e.g. "rooms › seller01 › info".
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the trail. The last element is highlighted.
func (c *Crumbs) Update(trail []string) {
	c.Clear()
	_, _ = fmt.Fprint(c, FormatCrumbs(trail, c.theme))
}

// FormatCrumbs renders trail with tview color tags.
func FormatCrumbs(trail []string, theme *Theme) string {
	parts := make([]string, 0, len(trail))
	for i, name := range trail {
		fg, bg, attr := theme.CrumbInactiveFg, theme.CrumbInactiveBg, ""
		if i == len(trail)-1 {
			fg, bg, attr = theme.CrumbActiveFg, theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]",
			colorName(fg), colorName(bg), attr, tview.Escape(name)))
	}
	return strings.Join(parts, " › ")
}

var colorNames = func() map[tcell.Color]string {
	m := make(map[tcell.Color]string, len(tcell.ColorNames))
	for name, val := range tcell.ColorNames {
		if prev, ok := m[val]; !ok || name < prev {
			m[val] = name
		}
	}
	return m
}()

// colorName returns a tview-compatible color name string.
func colorName(c tcell.Color) string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("#%06x", c.Hex())
}

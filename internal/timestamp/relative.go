package timestamp

import (
	"fmt"
	"math"
	"time"
)

var weekdays = [...]string{"일요일", "월요일", "화요일", "수요일", "목요일", "금요일", "토요일"}

// FormatRelative renders the label used in the conversation list:
// today "오후 3:24", the previous day "어제", the last week the weekday name,
// then "1월 2일" within the year and "2024. 1. 2." before that.
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	now = now.In(t.Location())

	days := calendarDaysBetween(t, now)
	switch {
	case days <= 0:
		return Format(t)
	case days == 1:
		return "어제"
	case days < 7:
		return weekdays[t.Weekday()]
	case t.Year() == now.Year():
		return fmt.Sprintf("%d월 %d일", int(t.Month()), t.Day())
	default:
		return fmt.Sprintf("%d. %d. %d.", t.Year(), int(t.Month()), t.Day())
	}
}

// calendarDaysBetween counts midnights crossed from a to b, both in a's location.
func calendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, a.Location())
	end := time.Date(by, bm, bd, 0, 0, 0, 0, a.Location())
	return int(math.Round(end.Sub(start).Hours() / 24))
}

// Package timestamp converts between the chat API's wire timestamps
// ("YYYY-MM-DD/HH:MM", local time, minute precision) and time.Time, and renders
// the Korean 12-hour labels shown next to messages.
package timestamp

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedTimestamp is returned when a raw timestamp does not match the wire grammar.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

const (
	dateLayout = "2006-01-02"
	wireLayout = "2006-01-02/15:04"

	morning   = "오전"
	afternoon = "오후"
)

// Decode parses a wire timestamp in the local time zone.
func Decode(raw string) (time.Time, error) {
	return DecodeIn(raw, time.Local)
}

// DecodeIn parses a wire timestamp in the given location.
func DecodeIn(raw string, loc *time.Location) (time.Time, error) {
	date, clock, ok := strings.Cut(raw, "/")
	if !ok || strings.Contains(clock, "/") {
		return time.Time{}, malformed(raw)
	}
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok || strings.Contains(mm, ":") {
		return time.Time{}, malformed(raw)
	}

	hour, ok := twoDigits(hh)
	if !ok || hour > 23 {
		return time.Time{}, malformed(raw)
	}
	minute, ok := twoDigits(mm)
	if !ok || minute > 59 {
		return time.Time{}, malformed(raw)
	}

	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrMalformedTimestamp, raw, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

// Encode renders t in the wire format, in t's own location.
func Encode(t time.Time) string {
	return t.Format(wireLayout)
}

// Format renders t as "오전 H:MM" / "오후 H:MM". Midnight and noon are shown as 12.
func Format(t time.Time) string {
	period := morning
	if t.Hour() >= 12 {
		period = afternoon
	}
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%s %d:%02d", period, h, t.Minute())
}

func twoDigits(s string) (int, bool) {
	if len(s) != 2 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func malformed(raw string) error {
	return fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
}

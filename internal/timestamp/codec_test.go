package timestamp

import (
	"errors"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	got, err := DecodeIn("2025-11-22/16:03", time.UTC)
	if err != nil {
		t.Fatalf("DecodeIn() error = %v", err)
	}
	want := time.Date(2025, 11, 22, 16, 3, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DecodeIn() = %v, want %v", got, want)
	}
}

func TestDecodeUsesLocalZone(t *testing.T) {
	got, err := Decode("2025-01-01/00:15")
	if err != nil {
		t.Fatal(err)
	}
	if got.Location() != time.Local {
		t.Errorf("location = %v, want Local", got.Location())
	}
	if got.Hour() != 0 || got.Minute() != 15 {
		t.Errorf("clock = %02d:%02d, want 00:15", got.Hour(), got.Minute())
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no slash", "2025-11-22 16:03"},
		{"two slashes", "2025-11-22/16:03/00"},
		{"no colon", "2025-11-22/1603"},
		{"seconds", "2025-11-22/16:03:00"},
		{"hour 24", "2025-11-22/24:00"},
		{"minute 60", "2025-11-22/16:60"},
		{"one digit hour", "2025-11-22/6:03"},
		{"signed minute", "2025-11-22/16:-3"},
		{"bad month", "2025-13-01/10:00"},
		{"bad day", "2025-02-30/10:00"},
		{"short year", "25-11-22/16:03"},
		{"letters", "yyyy-mm-dd/hh:mm"},
		{"trailing space", "2025-11-22/16:03 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeIn(tt.raw, time.UTC)
			if !errors.Is(err, ErrMalformedTimestamp) {
				t.Errorf("DecodeIn(%q) error = %v, want ErrMalformedTimestamp", tt.raw, err)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2025-11-22/16:03", "오후 4:03"},
		{"2025-01-01/00:15", "오전 12:15"},
		{"2025-01-01/12:00", "오후 12:00"},
		{"2025-01-01/11:59", "오전 11:59"},
		{"2025-01-01/09:05", "오전 9:05"},
		{"2025-01-01/23:59", "오후 11:59"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			decoded, err := DecodeIn(tt.raw, time.UTC)
			if err != nil {
				t.Fatal(err)
			}
			if got := Format(decoded); got != tt.want {
				t.Errorf("Format(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatDecodeDeterministic(t *testing.T) {
	for h := 0; h < 24; h++ {
		for m := 0; m < 60; m += 7 {
			raw := Encode(time.Date(2024, 2, 29, h, m, 0, 0, time.UTC))
			a, err := DecodeIn(raw, time.UTC)
			if err != nil {
				t.Fatalf("DecodeIn(%q) error = %v", raw, err)
			}
			b, _ := DecodeIn(raw, time.UTC)
			if Format(a) != Format(b) {
				t.Fatalf("Format not deterministic for %q", raw)
			}
			if Encode(a) != raw {
				t.Errorf("Encode(DecodeIn(%q)) = %q", raw, Encode(a))
			}
		}
	}
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2025, 11, 22, 18, 0, 0, 0, time.UTC) // Saturday
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"same day", time.Date(2025, 11, 22, 15, 24, 0, 0, time.UTC), "오후 3:24"},
		{"yesterday", time.Date(2025, 11, 21, 23, 50, 0, 0, time.UTC), "어제"},
		{"this week", time.Date(2025, 11, 16, 9, 0, 0, 0, time.UTC), "일요일"},
		{"same year", time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC), "1월 2일"},
		{"last year", time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), "2024. 1. 2."},
		{"future", time.Date(2025, 11, 23, 1, 0, 0, 0, time.UTC), "오전 1:00"},
		{"zero", time.Time{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRelative(tt.at, now); got != tt.want {
				t.Errorf("FormatRelative() = %q, want %q", got, tt.want)
			}
		})
	}
}

package views

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// sanitizeForTerminal drops codepoints that tcell renders badly or that
// would move the cursor: emoji skin tone modifiers, zero width joiners,
// variation selectors, and control characters other than newline and tab.
// Invalid UTF-8 becomes U+FFFD.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if isProblematicRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isProblematicRune(r rune) bool {
	switch {
	case r == '\n' || r == '\t':
		return false
	case unicode.IsControl(r):
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}

// oneLine flattens s for table cells.
func oneLine(s string) string {
	return strings.Join(strings.Fields(sanitizeForTerminal(s)), " ")
}

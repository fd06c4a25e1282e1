package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// NormalizeNickname returns the participant key for a nickname. Hangul typed on
// some platforms arrives decomposed, so keys are trimmed and NFC-composed.
func NormalizeNickname(nickname string) string {
	return norm.NFC.String(strings.TrimSpace(nickname))
}

// AvatarURL returns the generated avatar for a participant; the nickname is the seed.
func AvatarURL(nickname string) string {
	return avatarBaseURL + url.QueryEscape(NormalizeNickname(nickname))
}

// BadgeLabel renders an unread count for the conversation list.
func BadgeLabel(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > 99:
		return "99+"
	default:
		return strconv.Itoa(unread)
	}
}

// FilterSummaries keeps the summaries whose counterpart contains query,
// ignoring case. An empty query keeps everything.
func FilterSummaries(summaries []Summary, query string) []Summary {
	q := strings.ToLower(NormalizeNickname(query))
	if q == "" {
		return summaries
	}
	out := make([]Summary, 0, len(summaries))
	for _, s := range summaries {
		if strings.Contains(strings.ToLower(NormalizeNickname(s.CounterpartID)), q) {
			out = append(out, s)
		}
	}
	return out
}

// SnapshotID derives a stable id for a server message, which the wire format
// does not carry. occurrence disambiguates identical entries within one snapshot.
func SnapshotID(counterpart, author string, sentAt time.Time, body string, occurrence int) string {
	h := sha256.New()
	for _, part := range []string{
		NormalizeNickname(counterpart),
		NormalizeNickname(author),
		strconv.FormatInt(sentAt.Unix(), 10),
		body,
		strconv.Itoa(occurrence),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "srv-" + hex.EncodeToString(h.Sum(nil)[:10])
}

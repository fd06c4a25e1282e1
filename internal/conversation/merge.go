package conversation

import (
	"slices"
	"time"
)

// foldWindow bounds how far a pending send time may be from the
// minute-precision server time of the entry it is folded into.
const foldWindow = 2 * time.Minute

// MergeConfirmed replaces the confirmed part of a room log with the server
// snapshot and keeps local messages the snapshot does not contain yet.
//
// A local pending or confirmed message is folded into (dropped in favour of) a
// snapshot entry that is new relative to the previous merge and matches it by
// server id or by author, body and send time. A confirmed local with no entry
// near its send time falls back to the earliest new entry with its author and
// body, so a skewed server clock cannot leave a duplicate behind. Failed
// messages are never folded. Entries already seen in an earlier merge cannot absorb locals, which
// makes applying the same snapshot again a no-op.
func (s *Store) MergeConfirmed(counterpart string, server []Message) {
	key := NormalizeNickname(counterpart)

	s.mu.Lock()
	prev := s.logs[key]

	known := make(map[string]uint64, len(prev))
	var locals []Message
	for _, m := range prev {
		if m.Local {
			locals = append(locals, m)
			continue
		}
		known[m.ID] = m.seq
	}

	claimed := make([]bool, len(server))
	next := make([]Message, 0, len(server)+len(locals))
	for _, l := range locals {
		if l.State != Failed {
			if i := matchSnapshot(l, server, claimed, known); i >= 0 {
				claimed[i] = true
				delete(s.pending, l.ID)
				continue
			}
		}
		next = append(next, l)
	}

	for _, m := range server {
		m.State = Confirmed
		m.Local = false
		m.AuthorID = NormalizeNickname(m.AuthorID)
		if seq, ok := known[m.ID]; ok {
			m.seq = seq
		} else {
			s.seq++
			m.seq = s.seq
		}
		next = append(next, m)
	}
	sortLog(next)

	s.logs[key] = next
	change := s.changeLocked(key)
	s.mu.Unlock()

	s.publish("conversation.log_changed", change)
}

func matchSnapshot(local Message, server []Message, claimed []bool, known map[string]uint64) int {
	usable := func(i int) bool {
		if claimed[i] {
			return false
		}
		_, seen := known[server[i].ID]
		return !seen
	}

	if local.ServerID != "" {
		if i := slices.IndexFunc(server, func(m Message) bool { return m.ID == local.ServerID }); i >= 0 && usable(i) {
			return i
		}
	}

	author := NormalizeNickname(local.AuthorID)
	sent := local.SentAt.Truncate(time.Minute)
	earliest := -1
	for i, m := range server {
		if !usable(i) || NormalizeNickname(m.AuthorID) != author || m.Body != local.Body {
			continue
		}
		if d := m.SentAt.Sub(sent); d >= -foldWindow && d <= foldWindow {
			return i
		}
		if earliest < 0 || m.SentAt.Before(server[earliest].SentAt) {
			earliest = i
		}
	}
	if local.State == Confirmed {
		return earliest
	}
	return -1
}

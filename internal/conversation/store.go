// Package conversation holds the in-memory view of every known room for the
// signed-in user. It is the single source of truth for rendering and the only
// place conversation state is mutated; it performs no I/O.
package conversation

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/google/uuid"
)

// Store owns all summaries and room logs of the current session.
type Store struct {
	mu        sync.RWMutex
	summaries []Summary
	logs      map[string][]Message
	pending   map[string]string // local message id -> counterpart
	seq       uint64

	bus   *bus.Bus
	newID func() string
}

// NewStore creates an empty store. Mutations are announced on b when it is non-nil.
func NewStore(b *bus.Bus) *Store {
	return &Store{
		logs:    make(map[string][]Message),
		pending: make(map[string]string),
		bus:     b,
		newID:   func() string { return "local-" + uuid.NewString() },
	}
}

// ListSummaries returns the conversation list, most recent first.
func (s *Store) ListSummaries() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.summaries)
}

// ReplaceSummaries swaps the whole conversation list.
func (s *Store) ReplaceSummaries(summaries []Summary) {
	next := normalizeSummaries(summaries)

	s.mu.Lock()
	s.summaries = next
	s.mu.Unlock()

	s.publish("conversation.summaries_replaced", slices.Clone(next))
}

// Log returns a copy of the room log for counterpart. Unknown rooms are empty.
func (s *Store) Log(counterpart string) []Message {
	key := NormalizeNickname(counterpart)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.logs[key])
	if out == nil {
		out = []Message{}
	}
	return out
}

// Rooms returns the counterparts that have a log, sorted.
func (s *Store) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]string, 0, len(s.logs))
	for k := range s.logs {
		rooms = append(rooms, k)
	}
	slices.Sort(rooms)
	return rooms
}

// AppendPending adds a message composed on this client at the tail of the
// room log and returns its provisional id. A sentAt earlier than the current
// tail (clock skew against the server) is raised to the tail's time so the
// message still sorts last.
func (s *Store) AppendPending(counterpart, author, body string, sentAt time.Time) string {
	key := NormalizeNickname(counterpart)
	id := s.newID()

	s.mu.Lock()
	log := s.logs[key]
	if n := len(log); n > 0 && sentAt.Before(log[n-1].SentAt) {
		sentAt = log[n-1].SentAt
	}
	s.seq++
	log = append(log, Message{
		ID:       id,
		AuthorID: NormalizeNickname(author),
		Body:     body,
		SentAt:   sentAt,
		State:    Pending,
		Local:    true,
		seq:      s.seq,
	})
	s.logs[key] = log
	s.pending[id] = key
	change := s.changeLocked(key)
	s.mu.Unlock()

	s.publish("conversation.log_changed", change)
	return id
}

// ResolvePending applies a send outcome to a pending message in place. It
// reports false when the id is unknown, already folded into a server
// snapshot, or no longer pending.
func (s *Store) ResolvePending(id string, outcome Outcome) bool {
	s.mu.Lock()
	key, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	log := s.logs[key]
	i := slices.IndexFunc(log, func(m Message) bool { return m.ID == id })
	if i < 0 || log[i].State != Pending {
		s.mu.Unlock()
		return false
	}
	log[i].State = outcome.state
	if outcome.state == Confirmed {
		log[i].ServerID = outcome.serverID
	}
	change := s.changeLocked(key)
	s.mu.Unlock()

	s.publish("conversation.log_changed", change)
	return true
}

// Requeue replaces a failed message with a fresh pending copy at the tail of
// its room, in one step, and returns the new provisional id.
func (s *Store) Requeue(id string, sentAt time.Time) (Message, string, bool) {
	s.mu.Lock()
	key, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return Message{}, "", false
	}
	log := s.logs[key]
	i := slices.IndexFunc(log, func(m Message) bool { return m.ID == id })
	if i < 0 || log[i].State != Failed {
		s.mu.Unlock()
		return Message{}, "", false
	}
	failed := log[i]
	log = slices.Delete(log, i, i+1)
	delete(s.pending, id)

	if n := len(log); n > 0 && sentAt.Before(log[n-1].SentAt) {
		sentAt = log[n-1].SentAt
	}
	newID := s.newID()
	s.seq++
	log = append(log, Message{
		ID:       newID,
		AuthorID: failed.AuthorID,
		Body:     failed.Body,
		SentAt:   sentAt,
		State:    Pending,
		Local:    true,
		seq:      s.seq,
	})
	s.logs[key] = log
	s.pending[newID] = key
	change := s.changeLocked(key)
	s.mu.Unlock()

	s.publish("conversation.log_changed", change)
	return failed, newID, true
}

// Find returns the message with the given id and its counterpart.
func (s *Store) Find(id string) (Message, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, log := range s.logs {
		if i := slices.IndexFunc(log, func(m Message) bool { return m.ID == id }); i >= 0 {
			return log[i], key, true
		}
	}
	return Message{}, "", false
}

// Hydrate loads a previously cached state. Messages that were still pending
// when the cache was written can no longer be resolved and become failed.
func (s *Store) Hydrate(summaries []Summary, logs map[string][]Message) {
	next := normalizeSummaries(summaries)

	s.mu.Lock()
	s.summaries = next
	s.logs = make(map[string][]Message, len(logs))
	s.pending = make(map[string]string)
	for counterpart, msgs := range logs {
		key := NormalizeNickname(counterpart)
		log := make([]Message, 0, len(msgs))
		for _, m := range msgs {
			s.seq++
			m.seq = s.seq
			if m.Local {
				if m.State == Pending {
					m.State = Failed
				}
				s.pending[m.ID] = key
			}
			log = append(log, m)
		}
		sortLog(log)
		s.logs[key] = log
	}
	s.mu.Unlock()

	s.publish("conversation.hydrated", len(logs))
}

// Reset discards all state. It is called when a session starts or ends.
func (s *Store) Reset() {
	s.mu.Lock()
	s.summaries = nil
	s.logs = make(map[string][]Message)
	s.pending = make(map[string]string)
	s.mu.Unlock()

	s.publish("conversation.reset", nil)
}

func (s *Store) changeLocked(key string) LogChange {
	return LogChange{CounterpartID: key, Messages: slices.Clone(s.logs[key])}
}

func (s *Store) publish(kind string, payload any) {
	s.bus.Emit(kind, payload)
}

func normalizeSummaries(in []Summary) []Summary {
	latest := make(map[string]Summary, len(in))
	for _, sum := range in {
		sum.CounterpartID = NormalizeNickname(sum.CounterpartID)
		if sum.UnreadCount < 0 {
			sum.UnreadCount = 0
		}
		if prev, ok := latest[sum.CounterpartID]; ok && prev.LastMessageAt.After(sum.LastMessageAt) {
			continue
		}
		latest[sum.CounterpartID] = sum
	}
	out := make([]Summary, 0, len(latest))
	for _, sum := range latest {
		out = append(out, sum)
	}
	slices.SortFunc(out, func(a, b Summary) int {
		if c := b.LastMessageAt.Compare(a.LastMessageAt); c != 0 {
			return c
		}
		return cmp.Compare(a.CounterpartID, b.CounterpartID)
	})
	return out
}

func sortLog(log []Message) {
	slices.SortStableFunc(log, func(a, b Message) int {
		if c := a.SentAt.Compare(b.SentAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
}

package conversation

import (
	"reflect"
	"testing"
	"time"
)

func bodies(log []Message) []string {
	out := make([]string, len(log))
	for i, m := range log {
		out[i] = m.Body
	}
	return out
}

func TestMergeConfirmedOrdersBySentAt(t *testing.T) {
	s := NewStore(nil)
	s.MergeConfirmed("bob", []Message{
		serverMsg("bob", "me", 3, "third"),
		serverMsg("bob", "bob", 1, "first"),
		serverMsg("bob", "bob", 2, "second"),
	})

	got := bodies(s.Log("bob"))
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("log = %v, want %v", got, want)
	}
	for _, m := range s.Log("bob") {
		if m.State != Confirmed || m.Local {
			t.Errorf("server message %q = %+v, want confirmed non-local", m.Body, m)
		}
	}
}

func TestMergeConfirmedTieKeepsServerOrder(t *testing.T) {
	s := NewStore(nil)
	a := serverMsg("bob", "bob", 1, "a")
	b := serverMsg("bob", "me", 1, "b")
	s.MergeConfirmed("bob", []Message{a, b})

	if got := bodies(s.Log("bob")); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("log = %v, want [a b]", got)
	}
}

func TestMergeConfirmedIdempotent(t *testing.T) {
	snapshot := []Message{
		serverMsg("bob", "bob", 0, "hi"),
		serverMsg("bob", "me", 1, "hello"),
		serverMsg("bob", "me", 1, "hello"),
	}
	snapshot[2].ID = SnapshotID("bob", "me", at(1), "hello", 1)

	s := NewStore(nil)
	s.AppendPending("bob", "me", "hello", at(1).Add(20*time.Second))
	failed := s.AppendPending("bob", "me", "never arrived", at(1).Add(30*time.Second))
	s.ResolvePending(failed, Fail())

	s.MergeConfirmed("bob", snapshot)
	first := view(s.Log("bob"))

	s.MergeConfirmed("bob", snapshot)
	second := view(s.Log("bob"))

	if !reflect.DeepEqual(first, second) {
		t.Errorf("second merge changed the log:\n first  %+v\n second %+v", first, second)
	}
	if got := bodies(first); !reflect.DeepEqual(got, []string{"hi", "hello", "hello", "never arrived"}) {
		t.Errorf("log = %v", got)
	}
}

func TestMergeConfirmedFoldsConfirmedLocal(t *testing.T) {
	s := NewStore(nil)
	s.MergeConfirmed("bob", []Message{serverMsg("bob", "bob", 0, "hi")})
	id := s.AppendPending("bob", "me", "hello", at(1).Add(40*time.Second))
	s.ResolvePending(id, Confirm(""))

	s.MergeConfirmed("bob", []Message{
		serverMsg("bob", "bob", 0, "hi"),
		serverMsg("bob", "me", 1, "hello"),
	})

	log := s.Log("bob")
	if got := bodies(log); !reflect.DeepEqual(got, []string{"hi", "hello"}) {
		t.Fatalf("log = %v, want local folded into server copy", got)
	}
	if log[1].Local || log[1].ID == id {
		t.Errorf("tail = %+v, want the server copy", log[1])
	}
	if s.ResolvePending(id, Fail()) {
		t.Error("folded message still resolvable")
	}
}

func TestMergeConfirmedFoldsConfirmedLocalDespiteClockSkew(t *testing.T) {
	s := NewStore(nil)
	id := s.AppendPending("bob", "me", "hello", at(0).Add(20*time.Second))
	s.ResolvePending(id, Confirm(""))

	snapshot := []Message{serverMsg("bob", "me", 3, "hello")}
	s.MergeConfirmed("bob", snapshot)
	s.MergeConfirmed("bob", snapshot)

	log := s.Log("bob")
	if len(log) != 1 {
		t.Fatalf("log = %+v, want one entry for one sent message", log)
	}
	if log[0].Local || !log[0].SentAt.Equal(at(3)) {
		t.Errorf("entry = %+v, want the server copy", log[0])
	}
}

func TestMergeConfirmedPendingNeedsNearbyTime(t *testing.T) {
	s := NewStore(nil)
	id := s.AppendPending("bob", "me", "hello", at(0))

	s.MergeConfirmed("bob", []Message{serverMsg("bob", "me", 10, "hello")})

	if got := len(s.Log("bob")); got != 2 {
		t.Fatalf("got %d messages, want the distant entry kept apart from the pending send", got)
	}
	if !s.ResolvePending(id, Confirm("")) {
		t.Error("pending message was folded into a distant entry")
	}
}

func TestMergeConfirmedFoldsByServerID(t *testing.T) {
	s := NewStore(nil)
	srv := serverMsg("bob", "me", 5, "edited on the way")
	id := s.AppendPending("bob", "me", "typed", at(0))
	s.ResolvePending(id, Confirm(srv.ID))

	s.MergeConfirmed("bob", []Message{srv})

	if got := bodies(s.Log("bob")); !reflect.DeepEqual(got, []string{"edited on the way"}) {
		t.Errorf("log = %v", got)
	}
}

func TestMergeConfirmedKeepsUnmatchedPending(t *testing.T) {
	s := NewStore(nil)
	id := s.AppendPending("bob", "me", "in flight", at(3))

	s.MergeConfirmed("bob", []Message{serverMsg("bob", "bob", 1, "hi")})

	log := s.Log("bob")
	if got := bodies(log); !reflect.DeepEqual(got, []string{"hi", "in flight"}) {
		t.Fatalf("log = %v", got)
	}
	if log[1].ID != id || log[1].State != Pending {
		t.Errorf("pending = %+v", log[1])
	}
	if !s.ResolvePending(id, Confirm("")) {
		t.Error("pending message lost its resolvability after merge")
	}
}

func TestMergeConfirmedNeverFoldsFailed(t *testing.T) {
	s := NewStore(nil)
	id := s.AppendPending("bob", "me", "hello", at(1))
	s.ResolvePending(id, Fail())

	s.MergeConfirmed("bob", []Message{serverMsg("bob", "me", 1, "hello")})

	log := s.Log("bob")
	if len(log) != 2 {
		t.Fatalf("got %d messages, want server copy and failed local", len(log))
	}
	var failed int
	for _, m := range log {
		if m.State == Failed {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed messages = %d, want 1", failed)
	}
}

func TestMergeConfirmedOldEntryDoesNotAbsorbNewSend(t *testing.T) {
	s := NewStore(nil)
	s.MergeConfirmed("bob", []Message{serverMsg("bob", "me", 1, "ok")})
	s.AppendPending("bob", "me", "ok", at(1).Add(10*time.Second))

	s.MergeConfirmed("bob", []Message{serverMsg("bob", "me", 1, "ok")})

	if got := len(s.Log("bob")); got != 2 {
		t.Errorf("got %d messages, want the repeated body kept pending", got)
	}
}

func TestMergeConfirmedOtherRoomsUntouched(t *testing.T) {
	s := NewStore(nil)
	s.AppendPending("alice", "me", "hey", at(0))
	s.MergeConfirmed("bob", []Message{serverMsg("bob", "bob", 1, "hi")})

	if got := len(s.Log("alice")); got != 1 {
		t.Errorf("alice log has %d messages, want 1", got)
	}
}

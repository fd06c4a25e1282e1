package store

import (
	"net/http"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.From != 0 || result.Version != 2 || !result.Changed() {
		t.Errorf("first Migrate() = %+v, want 0 -> 2 (init + auth_state)", result)
	}

	result, err = db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed() {
		t.Errorf("second Migrate() = %+v, want no change", result)
	}
}

// TestMigrateSchemaHasRequiredColumns verifies the migrations create every
// column the cache writers depend on.
func TestMigrateSchemaHasRequiredColumns(t *testing.T) {
	db := testDB(t)

	requiredOps := []struct {
		desc  string
		query string
		args  []any
	}{
		{"insert summary", "INSERT INTO summaries (counterpart, last_message_preview, last_message_at, unread_count) VALUES (?, ?, ?, ?)", []any{"bob", "hi", 1000, 2}},
		{"insert message", "INSERT INTO messages (id, counterpart, server_id, author, body, sent_at, state, local, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", []any{"m1", "bob", "", "bob", "hello", 1000, "confirmed", false, 0}},
		{"queue outbox", "INSERT INTO outbox (client_msg_id, counterpart, body, status) VALUES (?, ?, ?, ?)", []any{"cid", "bob", "text", "queued"}},
		{"set sync state", "INSERT INTO sync_state (key, value) VALUES (?, ?)", []any{"k", "v"}},
		{"save auth", "INSERT INTO auth_state (id, nickname, cookies, signed_in_at) VALUES (?, ?, ?, ?)", []any{1, "me", "[]", 1000}},
	}

	for _, op := range requiredOps {
		t.Run(op.desc, func(t *testing.T) {
			if _, err := db.Exec(op.query, op.args...); err != nil {
				t.Fatalf("%s failed: %v", op.desc, err)
			}
		})
	}
}

func TestReplaceSummaries(t *testing.T) {
	db := testDB(t)

	if err := db.ReplaceSummaries([]Summary{
		{Counterpart: "alice", LastMessageAt: 1000, LastMessagePreview: "old"},
		{Counterpart: "bob", LastMessageAt: 3000, UnreadCount: 4},
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceSummaries([]Summary{
		{Counterpart: "bob", LastMessageAt: 3000, UnreadCount: 1},
		{Counterpart: "carol", LastMessageAt: 3000},
	}); err != nil {
		t.Fatal(err)
	}

	sums, err := db.ListSummaries()
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 2 {
		t.Fatalf("got %d summaries, want 2 (alice dropped)", len(sums))
	}
	if sums[0].Counterpart != "bob" || sums[1].Counterpart != "carol" {
		t.Errorf("order = %s, %s; want bob, carol", sums[0].Counterpart, sums[1].Counterpart)
	}
	if sums[0].UnreadCount != 1 {
		t.Errorf("bob unread = %d, want 1", sums[0].UnreadCount)
	}
}

func TestReplaceRoomLogKeepsOrder(t *testing.T) {
	db := testDB(t)

	log := []Message{
		{ID: "srv-2", Author: "bob", Body: "later", SentAt: 2000, State: "confirmed"},
		{ID: "srv-1", Author: "bob", Body: "earlier", SentAt: 1000, State: "confirmed"},
		{ID: "local-1", Author: "me", Body: "mine", SentAt: 2500, State: "pending", Local: true},
	}
	if err := db.ReplaceRoomLog("bob", log); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListRoomLog("bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	for i, want := range []string{"srv-2", "srv-1", "local-1"} {
		if got[i].ID != want {
			t.Errorf("log[%d] = %s, want %s (insertion order)", i, got[i].ID, want)
		}
	}
	if !got[2].Local || got[2].State != "pending" {
		t.Errorf("local message = %+v", got[2])
	}

	// Replacing again must not duplicate.
	if err := db.ReplaceRoomLog("bob", log[:1]); err != nil {
		t.Fatal(err)
	}
	got, err = db.ListRoomLog("bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("got %d messages after replace, want 1", len(got))
	}
}

func TestLoadRoomLogs(t *testing.T) {
	db := testDB(t)

	if err := db.ReplaceRoomLog("alice", []Message{{ID: "a1", Author: "alice", Body: "hi", SentAt: 1, State: "confirmed"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceRoomLog("bob", []Message{{ID: "b1", Author: "bob", Body: "yo", SentAt: 1, State: "confirmed"}, {ID: "b2", Author: "me", Body: "hey", SentAt: 2, State: "failed", Local: true}}); err != nil {
		t.Fatal(err)
	}

	logs, err := db.LoadRoomLogs()
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || len(logs["alice"]) != 1 || len(logs["bob"]) != 2 {
		t.Errorf("logs = %+v", logs)
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("client1", "bob", "test msg"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if pending[0].ClientMsgID != "client1" || pending[0].Counterpart != "bob" {
		t.Errorf("entry = %+v", pending[0])
	}

	if err := db.MarkOutboxSent("client1", "server1"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after sent, want 0", len(pending))
	}

	entries, err := db.ListOutbox(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Status != OutboxSent || entries[0].ServerMsgID != "server1" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestOutboxFailureAndRetry(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("c1", "bob", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxFailed("c1", "network error"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxRetried("c1"); err != nil {
		t.Fatal(err)
	}

	entries, err := db.ListOutbox(10)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Status != OutboxRetried || entries[0].ErrorMessage != "network error" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestFailStaleOutbox(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"c1", "c2"} {
		if err := db.QueueOutbox(id, "bob", "hello"); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.MarkOutboxSent("c2", ""); err != nil {
		t.Fatal(err)
	}

	n, err := db.FailStaleOutbox("interrupted")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("failed %d entries, want 1", n)
	}
	pending, _ := db.PendingOutbox()
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0", len(pending))
	}
}

func TestCheckpoint(t *testing.T) {
	db := testDB(t)

	if _, ok, err := db.Checkpoint("rooms.refreshed_at"); err != nil || ok {
		t.Fatalf("Checkpoint(unset) = ok %v, err %v", ok, err)
	}
	if err := db.SetCheckpoint("rooms.refreshed_at", "1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetCheckpoint("rooms.refreshed_at", "2"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.Checkpoint("rooms.refreshed_at")
	if err != nil || !ok || v != "2" {
		t.Errorf("Checkpoint() = %q, %v, %v; want 2", v, ok, err)
	}
}

func TestAuthState(t *testing.T) {
	db := testDB(t)

	if _, _, ok, err := db.LoadAuth(); err != nil || ok {
		t.Fatalf("LoadAuth(empty) = ok %v, err %v", ok, err)
	}

	cookies := []*http.Cookie{{Name: "JSESSIONID", Value: "abc", Path: "/"}}
	if err := db.SaveAuth("민지엄마", cookies); err != nil {
		t.Fatal(err)
	}
	nick, got, ok, err := db.LoadAuth()
	if err != nil || !ok {
		t.Fatalf("LoadAuth() ok %v, err %v", ok, err)
	}
	if nick != "민지엄마" || len(got) != 1 || got[0].Value != "abc" {
		t.Errorf("LoadAuth() = %q, %+v", nick, got)
	}

	if err := db.ClearAuth(); err != nil {
		t.Fatal(err)
	}
	if _, _, ok, _ := db.LoadAuth(); ok {
		t.Error("LoadAuth() after ClearAuth still signed in")
	}
}

func TestReset(t *testing.T) {
	db := testDB(t)

	_ = db.ReplaceSummaries([]Summary{{Counterpart: "bob"}})
	_ = db.ReplaceRoomLog("bob", []Message{{ID: "m", Author: "bob", Body: "x", State: "confirmed"}})
	_ = db.QueueOutbox("c1", "bob", "x")
	_ = db.SaveAuth("me", nil)

	if err := db.Reset(); err != nil {
		t.Fatal(err)
	}
	sums, _ := db.ListSummaries()
	logs, _ := db.LoadRoomLogs()
	entries, _ := db.ListOutbox(10)
	if len(sums) != 0 || len(logs) != 0 || len(entries) != 0 {
		t.Errorf("Reset() left data: %d summaries, %d logs, %d outbox", len(sums), len(logs), len(entries))
	}
	if _, _, ok, _ := db.LoadAuth(); !ok {
		t.Error("Reset() cleared the persisted session")
	}
}

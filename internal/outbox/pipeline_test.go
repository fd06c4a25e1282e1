package outbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ekdusrla/ssukssuk-closet/internal/auth"
	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/devserver"
	"github.com/ekdusrla/ssukssuk-closet/internal/remote"
	"github.com/ekdusrla/ssukssuk-closet/internal/store"
)

// mockSender records calls and returns configurable results.
type mockSender struct {
	mu      sync.Mutex
	calls   []sendCall
	failOn  map[string]error // body -> error
	entered chan struct{}
	release chan struct{}
}

type sendCall struct {
	To   string
	Body string
}

func (m *mockSender) SendMessage(_ context.Context, to, body string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, sendCall{To: to, Body: body})
	err := m.failOn[body]
	m.mu.Unlock()

	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	if err != nil {
		return "", err
	}
	return "server-" + body, nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type nopAuthenticator struct{}

func (nopAuthenticator) SignIn(context.Context, string, string) error { return nil }
func (nopAuthenticator) Cookies() []*http.Cookie                      { return nil }
func (nopAuthenticator) SetCookies([]*http.Cookie)                    {}
func (nopAuthenticator) ResetCookies()                                {}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func signedIn(t *testing.T) *auth.Session {
	t.Helper()
	sess := auth.NewSession(nopAuthenticator{}, nil, nil, nil)
	if err := sess.Login(context.Background(), "me", "pw"); err != nil {
		t.Fatal(err)
	}
	return sess
}

func outboxStatus(t *testing.T, db *store.DB) map[string]string {
	t.Helper()
	entries, err := db.ListOutbox(100)
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.ClientMsgID] = e.Status
	}
	return out
}

func TestSendAgainstServer(t *testing.T) {
	srv := devserver.New()
	srv.AddUser("me", "pw")
	srv.AddUser("bob", "pw")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	api, err := remote.NewClient(remote.WithBaseURL(ts.URL))
	if err != nil {
		t.Fatal(err)
	}
	sess := auth.NewSession(api, nil, nil, nil)
	if err := sess.Login(context.Background(), "me", "pw"); err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	conv := conversation.NewStore(nil)
	p := NewPipeline(api, conv, sess, db, nil, nil)

	id, err := p.Send(context.Background(), "bob", "안녕하세요\n아직 있나요?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	log := conv.Log("bob")
	if len(log) != 1 || log[0].ID != id || log[0].State != conversation.Confirmed {
		t.Fatalf("log = %+v, want one confirmed message", log)
	}
	if log[0].Body != "안녕하세요\n아직 있나요?" || log[0].AuthorID != "me" {
		t.Errorf("message = %+v, want body with newline kept", log[0])
	}
	if got := srv.Messages("me", "bob"); len(got) != 1 || got[0] != "안녕하세요\n아직 있나요?" {
		t.Errorf("server messages = %q", got)
	}
	if st := outboxStatus(t, db)[id]; st != store.OutboxSent {
		t.Errorf("outbox status = %q, want sent", st)
	}
}

func TestSendEmptyMessage(t *testing.T) {
	mock := &mockSender{}
	conv := conversation.NewStore(nil)
	p := NewPipeline(mock, conv, signedIn(t), nil, nil, nil)

	for _, body := range []string{"", "   ", "\n\t "} {
		if _, err := p.Send(context.Background(), "bob", body); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Send(%q) error = %v, want ErrEmptyMessage", body, err)
		}
	}
	if len(conv.Log("bob")) != 0 || mock.callCount() != 0 {
		t.Error("empty message reached the store or the server")
	}
}

func TestSendWithoutSession(t *testing.T) {
	mock := &mockSender{}
	conv := conversation.NewStore(nil)
	p := NewPipeline(mock, conv, auth.NewSession(nopAuthenticator{}, nil, nil, nil), nil, nil, nil)

	if _, err := p.Send(context.Background(), "bob", "hi"); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("Send() error = %v, want ErrNotAuthenticated", err)
	}
	if len(conv.Log("bob")) != 0 || mock.callCount() != 0 {
		t.Error("send without session touched the store or the server")
	}
}

func TestSendOffline(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	api, err := remote.NewClient(remote.WithBaseURL(ts.URL))
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	b := bus.New()
	failed, unsub := b.Subscribe("message.send_failed", 4)
	defer unsub()
	conv := conversation.NewStore(nil)
	p := NewPipeline(api, conv, signedIn(t), db, b, nil)

	id, err := p.Send(context.Background(), "bob", "hello")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("Send() error = %v, want ErrSendFailed", err)
	}
	if id == "" {
		t.Fatal("Send() returned no id for an appended message")
	}

	log := conv.Log("bob")
	if len(log) != 1 || log[0].State != conversation.Failed || log[0].Body != "hello" {
		t.Errorf("log = %+v, want the message kept as failed", log)
	}
	if st := outboxStatus(t, db)[id]; st != store.OutboxFailed {
		t.Errorf("outbox status = %q, want failed", st)
	}
	select {
	case evt := <-failed:
		if d, ok := evt.Payload.(Delivery); !ok || d.MessageID != id || d.Error == "" {
			t.Errorf("payload = %#v", evt.Payload)
		}
	default:
		t.Error("no message.send_failed event")
	}
}

func TestSendShowsPendingBeforeAnswer(t *testing.T) {
	mock := &mockSender{entered: make(chan struct{}, 1), release: make(chan struct{})}
	conv := conversation.NewStore(nil)
	p := NewPipeline(mock, conv, signedIn(t), nil, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := p.Send(context.Background(), "bob", "hello")
		done <- err
	}()
	<-mock.entered

	log := conv.Log("bob")
	if len(log) != 1 || log[0].State != conversation.Pending {
		t.Errorf("log while in flight = %+v, want one pending message", log)
	}
	close(mock.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := conv.Log("bob")[0]; got.State != conversation.Confirmed || got.ServerID != "server-hello" {
		t.Errorf("message = %+v, want confirmed with server id", got)
	}
}

func TestConcurrentSendsSameRoom(t *testing.T) {
	mock := &mockSender{failOn: map[string]error{"b": errors.New("boom")}}
	conv := conversation.NewStore(nil)
	p := NewPipeline(mock, conv, signedIn(t), testDB(t), nil, nil)

	var wg sync.WaitGroup
	ids := make(map[string]string)
	var mu sync.Mutex
	for _, body := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := p.Send(context.Background(), "bob", body)
			mu.Lock()
			ids[body] = id
			mu.Unlock()
		}()
	}
	wg.Wait()

	if ids["a"] == ids["b"] {
		t.Fatalf("both sends got id %q", ids["a"])
	}
	states := make(map[string]conversation.DeliveryState)
	for _, m := range conv.Log("bob") {
		states[m.ID] = m.State
	}
	if states[ids["a"]] != conversation.Confirmed || states[ids["b"]] != conversation.Failed {
		t.Errorf("states = %v, want a confirmed and b failed", states)
	}
}

func TestRetry(t *testing.T) {
	mock := &mockSender{failOn: map[string]error{"hello": errors.New("offline")}}
	db := testDB(t)
	conv := conversation.NewStore(nil)
	p := NewPipeline(mock, conv, signedIn(t), db, nil, nil)
	ctx := context.Background()

	failedID, err := p.Send(ctx, "bob", "hello")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := p.Send(ctx, "bob", "after"); err != nil {
		t.Fatal(err)
	}

	mock.mu.Lock()
	mock.failOn = nil
	mock.mu.Unlock()

	newID, err := p.Retry(ctx, failedID)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	log := conv.Log("bob")
	if len(log) != 2 {
		t.Fatalf("got %d messages, want 2", len(log))
	}
	if log[1].ID != newID || log[1].Body != "hello" || log[1].State != conversation.Confirmed {
		t.Errorf("tail = %+v, want the retried message confirmed", log[1])
	}
	if _, _, ok := conv.Find(failedID); ok {
		t.Error("failed copy still in the log")
	}

	st := outboxStatus(t, db)
	if st[failedID] != store.OutboxRetried || st[newID] != store.OutboxSent {
		t.Errorf("outbox = %v", st)
	}
	if got := mock.callCount(); got != 3 {
		t.Errorf("sender called %d times, want 3", got)
	}
}

func TestRetryRejectsNonFailed(t *testing.T) {
	mock := &mockSender{}
	conv := conversation.NewStore(nil)
	p := NewPipeline(mock, conv, signedIn(t), nil, nil, nil)
	ctx := context.Background()

	id, err := p.Send(ctx, "bob", "fine")
	if err != nil {
		t.Fatal(err)
	}
	for _, target := range []string{id, "local-unknown"} {
		if _, err := p.Retry(ctx, target); !errors.Is(err, ErrNotRetryable) {
			t.Errorf("Retry(%q) error = %v, want ErrNotRetryable", target, err)
		}
	}
}

func TestSendRejectedSessionSignsOut(t *testing.T) {
	mock := &mockSender{failOn: map[string]error{"hi": &remote.APIError{Status: http.StatusUnauthorized}}}
	sess := signedIn(t)
	conv := conversation.NewStore(nil)
	p := NewPipeline(mock, conv, sess, nil, nil, nil)

	if _, err := p.Send(context.Background(), "bob", "hi"); !errors.Is(err, ErrSendFailed) {
		t.Fatalf("Send() error = %v, want ErrSendFailed", err)
	}
	if _, ok := sess.Current(); ok {
		t.Error("session kept after the server rejected it")
	}
}

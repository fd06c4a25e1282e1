package devserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, h http.Handler, method, target, body, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v (%s)", method, target, err, rec.Body.String())
	}
	return rec, env
}

func signIn(t *testing.T, s *Server, nick string) string {
	t.Helper()
	rec, env := do(t, s.Handler(), http.MethodPost, "/sign/in", `{"nickname":"`+nick+`","pw":"pw"}`, "")
	if env.Code != http.StatusOK {
		t.Fatalf("sign in %s: %+v", nick, env)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c.Value
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func TestSignIn(t *testing.T) {
	s := New()
	s.AddUser("me", "pw")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"ok", `{"nickname":"me","pw":"pw"}`, http.StatusOK},
		{"wrong password", `{"nickname":"me","pw":"nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"nickname":"ghost","pw":"pw"}`, http.StatusUnauthorized},
		{"missing field", `{"nickname":"me"}`, http.StatusBadRequest},
		{"not json", `nickname=me`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s.Handler(), http.MethodPost, "/sign/in", tt.body, "")
			if rec.Code != tt.want || env.Code != tt.want {
				t.Errorf("status = %d, code = %d, want %d", rec.Code, env.Code, tt.want)
			}
		})
	}
}

func TestChatRequiresSession(t *testing.T) {
	s := New()
	for _, target := range []string{"/chat/rooms", "/chat/messages"} {
		if rec, _ := do(t, s.Handler(), http.MethodGet, target, "", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without cookie = %d, want 401", target, rec.Code)
		}
		if rec, _ := do(t, s.Handler(), http.MethodGet, target, "", "forged"); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s with unknown token = %d, want 401", target, rec.Code)
		}
	}
}

func TestSendAndList(t *testing.T) {
	now := time.Date(2025, 11, 22, 16, 3, 0, 0, time.Local)
	s := New(WithClock(func() time.Time { return now }))
	s.AddUser("me", "pw")
	s.AddUser("bob", "pw")
	s.Seed("bob", "me", "판매중인가요?", now.Add(-time.Hour))
	token := signIn(t, s, "me")

	q := url.Values{"other_user": {"bob"}, "content": {"네 판매중입니다"}}
	if _, env := do(t, s.Handler(), http.MethodPost, "/chat/send?"+q.Encode(), "", token); env.Code != http.StatusOK {
		t.Fatalf("send: %+v", env)
	}

	_, env := do(t, s.Handler(), http.MethodGet, "/chat/rooms", "", token)
	var rooms []roomRecord
	if err := json.Unmarshal(env.Data, &rooms); err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 || rooms[0].With != "bob" || rooms[0].LastMessage == nil {
		t.Fatalf("rooms = %+v", rooms)
	}
	if got := *rooms[0].LastMessage; got.Who != "me" || got.When != "2025-11-22/16:03" || got.Content != "네 판매중입니다" {
		t.Errorf("last message = %+v", got)
	}
	if rooms[0].UnreadCount != nil {
		t.Error("unread count reported without WithUnreadCounts")
	}

	_, env = do(t, s.Handler(), http.MethodGet, "/chat/messages", "", token)
	var logs []roomLog
	if err := json.Unmarshal(env.Data, &logs); err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || len(logs[0].Log) != 2 || logs[0].Log[0].When != "2025-11-22/15:03" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestSendValidation(t *testing.T) {
	s := New()
	s.AddUser("me", "pw")
	token := signIn(t, s, "me")

	tests := []struct {
		name  string
		query url.Values
		want  int
	}{
		{"no counterpart", url.Values{"content": {"hi"}}, http.StatusBadRequest},
		{"blank content", url.Values{"other_user": {"me"}, "content": {"  "}}, http.StatusBadRequest},
		{"unknown user", url.Values{"other_user": {"ghost"}, "content": {"hi"}}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec, _ := do(t, s.Handler(), http.MethodPost, "/chat/send?"+tt.query.Encode(), "", token); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestFailNext(t *testing.T) {
	s := New()
	s.AddUser("me", "pw")
	token := signIn(t, s, "me")
	s.FailNext("/chat/rooms", 2)

	for i, want := range []int{500, 500, 200} {
		if rec, _ := do(t, s.Handler(), http.MethodGet, "/chat/rooms", "", token); rec.Code != want {
			t.Errorf("request %d = %d, want %d", i, rec.Code, want)
		}
	}
}

func TestUnreadCounts(t *testing.T) {
	s := New(WithUnreadCounts())
	s.AddUser("me", "pw")
	s.Seed("bob", "me", "1", time.Now())
	s.Seed("bob", "me", "2", time.Now())
	s.Seed("me", "bob", "3", time.Now())
	token := signIn(t, s, "me")

	_, env := do(t, s.Handler(), http.MethodGet, "/chat/rooms", "", token)
	var rooms []roomRecord
	if err := json.Unmarshal(env.Data, &rooms); err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 || rooms[0].UnreadCount == nil || *rooms[0].UnreadCount != 2 {
		t.Errorf("rooms = %+v, want unread 2", rooms)
	}
}

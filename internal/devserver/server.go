// Package devserver is an in-memory implementation of the marketplace chat
// API. It backs local development and the client's integration tests.
package devserver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "SSUK_SESSION"

type entry struct {
	who     string
	content string
	at      time.Time
}

type room struct {
	a, b   string
	log    []entry
	unread map[string]int
}

func (r *room) other(nick string) string {
	if r.a == nick {
		return r.b
	}
	return r.a
}

// Server holds users, sessions and rooms in memory.
type Server struct {
	mu       sync.Mutex
	users    map[string]string // nickname -> password
	sessions map[string]string // token -> nickname
	rooms    map[[2]string]*room
	failures map[string]int // path -> remaining injected failures
	delay    time.Duration

	reportUnread bool

	now    func() time.Time
	logger *zap.Logger
	engine *gin.Engine
}

type Option func(*Server)

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithUnreadCounts makes the room list report per-user unread counts, which
// the production backend does not.
func WithUnreadCounts() Option {
	return func(s *Server) { s.reportUnread = true }
}

// New creates an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		users:    make(map[string]string),
		sessions: make(map[string]string),
		rooms:    make(map[[2]string]*room),
		failures: make(map[string]int),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// AddUser registers a user that can sign in.
func (s *Server) AddUser(nickname, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[nickname] = password
}

// Seed appends a message from -> to at the given time, creating the room.
func (s *Server) Seed(from, to, content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(from, to, content, at)
}

// FailNext makes the next n requests to path answer 500.
func (s *Server) FailNext(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] += n
}

// ExpireSessions forgets every issued session token, so the next request
// of each signed-in client is answered 401.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sessions)
}

// SetDelay delays every response, to observe in-flight client state.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Messages returns the contents of the room between a and b in order.
func (s *Server) Messages(a, b string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomKey(a, b)]
	if !ok {
		return nil
	}
	out := make([]string, len(r.log))
	for i, e := range r.log {
		out[i] = e.content
	}
	return out
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.logger.Info("dev server listening", zap.String("addr", addr))
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) appendLocked(from, to, content string, at time.Time) {
	key := roomKey(from, to)
	r, ok := s.rooms[key]
	if !ok {
		r = &room{a: key[0], b: key[1], unread: make(map[string]int)}
		s.rooms[key] = r
	}
	r.log = append(r.log, entry{who: from, content: content, at: at})
	r.unread[to]++
}

// roomsOfLocked returns the rooms nick takes part in, most recent first.
func (s *Server) roomsOfLocked(nick string) []*room {
	var out []*room
	for _, r := range s.rooms {
		if r.a == nick || r.b == nick {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(x, y *room) int {
		if c := lastAt(y).Compare(lastAt(x)); c != 0 {
			return c
		}
		return cmp.Compare(x.other(nick), y.other(nick))
	})
	return out
}

func lastAt(r *room) time.Time {
	if len(r.log) == 0 {
		return time.Time{}
	}
	return r.log[len(r.log)-1].at
}

func roomKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

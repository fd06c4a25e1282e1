// Package auth tracks who is signed in. It is the gate every chat operation
// checks before touching the network.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/logging"
	"go.uber.org/zap"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a session and
	// none is active.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidCredentials is returned for input the login form rejects
	// before any request is made.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	maxNicknameLen = 50
	maxPasswordLen = 100
)

// Authenticator is the part of the REST client that owns the session cookie.
type Authenticator interface {
	SignIn(ctx context.Context, nickname, password string) error
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
	ResetCookies()
}

// Credentials persists the session between processes.
type Credentials interface {
	SaveAuth(nickname string, cookies []*http.Cookie) error
	LoadAuth() (nickname string, cookies []*http.Cookie, ok bool, err error)
	ClearAuth() error
}

// Identity is the signed-in user. Epoch changes on every login and logout,
// so work started under one session can tell it has been superseded.
type Identity struct {
	Nickname string
	Epoch    uint64
}

// Session is the authenticated-session provider.
type Session struct {
	mu       sync.RWMutex
	nickname string
	epoch    uint64

	api          Authenticator
	creds        Credentials
	bus          *bus.Bus
	logger       *zap.Logger
	onInvalidate func(Identity)
}

// NewSession creates a signed-out session. creds may be nil, in which case
// nothing survives the process.
func NewSession(api Authenticator, creds Credentials, b *bus.Bus, logger *zap.Logger) *Session {
	logger = logging.OrNop(logger)
	return &Session{api: api, creds: creds, bus: b, logger: logger}
}

// ValidateCredentials applies the login form rules: nickname 1–50
// characters after trimming, password 1–100 characters.
func ValidateCredentials(nickname, password string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(nickname))
	switch {
	case n == 0:
		return fmt.Errorf("%w: 닉네임을 입력해주세요", ErrInvalidCredentials)
	case n > maxNicknameLen:
		return fmt.Errorf("%w: 닉네임은 %d자 이내로 입력해주세요", ErrInvalidCredentials, maxNicknameLen)
	}
	p := utf8.RuneCountInString(password)
	switch {
	case p == 0:
		return fmt.Errorf("%w: 비밀번호를 입력해주세요", ErrInvalidCredentials)
	case p > maxPasswordLen:
		return fmt.Errorf("%w: 비밀번호는 %d자 이내로 입력해주세요", ErrInvalidCredentials, maxPasswordLen)
	}
	return nil
}

// Login signs in and makes nickname the current identity. A previous
// session is dropped first, even if the new sign in fails.
func (s *Session) Login(ctx context.Context, nickname, password string) error {
	if err := ValidateCredentials(nickname, password); err != nil {
		return err
	}
	nickname = conversation.NormalizeNickname(nickname)

	s.mu.Lock()
	prev := s.nickname
	s.nickname = ""
	s.epoch++
	s.mu.Unlock()
	s.api.ResetCookies()
	if prev != "" {
		s.bus.Emit("auth.signed_out", prev)
	}

	if err := s.api.SignIn(ctx, nickname, password); err != nil {
		s.logger.Warn("sign in failed", zap.String("nickname", nickname), zap.Error(err))
		return fmt.Errorf("login: %w", err)
	}

	s.mu.Lock()
	s.nickname = nickname
	s.epoch++
	s.mu.Unlock()

	if s.creds != nil {
		if err := s.creds.SaveAuth(nickname, s.api.Cookies()); err != nil {
			s.logger.Error("failed to persist session", zap.Error(err))
		}
	}
	s.logger.Info("signed in", zap.String("nickname", nickname))
	s.bus.Emit("auth.signed_in", nickname)
	return nil
}

// Logout ends the session locally. It never fails to sign out; the returned
// error only reports that persisted credentials could not be cleared.
func (s *Session) Logout() error {
	s.mu.Lock()
	prev := s.nickname
	s.nickname = ""
	s.epoch++
	s.mu.Unlock()

	s.api.ResetCookies()
	var err error
	if s.creds != nil {
		if err = s.creds.ClearAuth(); err != nil {
			err = fmt.Errorf("clear credentials: %w", err)
		}
	}
	if prev != "" {
		s.logger.Info("signed out", zap.String("nickname", prev))
		s.bus.Emit("auth.signed_out", prev)
	}
	return err
}

// Restore resumes a session persisted by an earlier process. It reports
// whether a session was found.
func (s *Session) Restore() (bool, error) {
	if s.creds == nil {
		return false, nil
	}
	nickname, cookies, ok, err := s.creds.LoadAuth()
	if err != nil {
		return false, fmt.Errorf("load credentials: %w", err)
	}
	if !ok || nickname == "" {
		return false, nil
	}
	s.api.SetCookies(cookies)

	s.mu.Lock()
	s.nickname = nickname
	s.epoch++
	s.mu.Unlock()

	s.logger.Info("session restored", zap.String("nickname", nickname))
	s.bus.Emit("auth.restored", nickname)
	return true, nil
}

// Current returns the signed-in nickname.
func (s *Session) Current() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname, s.nickname != ""
}

// Require returns the current identity or ErrNotAuthenticated.
func (s *Session) Require() (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.nickname == "" {
		return Identity{}, ErrNotAuthenticated
	}
	return Identity{Nickname: s.nickname, Epoch: s.epoch}, nil
}

// Valid reports whether id is still the current session.
func (s *Session) Valid(id Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname != "" && s.nickname == id.Nickname && s.epoch == id.Epoch
}

// SetOnInvalidate registers fn to run after Invalidate signs out. It runs
// on the invalidating goroutine before Invalidate returns.
func (s *Session) SetOnInvalidate(fn func(Identity)) {
	s.mu.Lock()
	s.onInvalidate = fn
	s.mu.Unlock()
}

// Invalidate drops a session the server no longer accepts.
func (s *Session) Invalidate(id Identity) {
	if !s.Valid(id) {
		return
	}
	s.logger.Warn("session rejected by server", zap.String("nickname", id.Nickname))
	_ = s.Logout()

	s.mu.RLock()
	fn := s.onInvalidate
	s.mu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

package devserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/timestamp"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type signInReq struct {
	Nickname string `json:"nickname" binding:"required"`
	Password string `json:"pw" binding:"required"`
}

type logEntry struct {
	Who     string `json:"who"`
	When    string `json:"when"`
	Content string `json:"content"`
}

type roomRecord struct {
	With        string    `json:"with"`
	LastMessage *logEntry `json:"last_message"`
	UnreadCount *int      `json:"unread_count,omitempty"`
}

type roomLog struct {
	With string     `json:"with"`
	Log  []logEntry `json:"log"`
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.injectFailures())

	r.POST("/sign/in", s.signIn)

	chat := r.Group("/chat")
	chat.Use(s.requireSession())
	chat.GET("/rooms", s.listRooms)
	chat.GET("/messages", s.listMessages)
	chat.POST("/send", s.send)
	return r
}

func reply(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": data})
}

func (s *Server) signIn(c *gin.Context) {
	var req signInReq
	if err := c.ShouldBindJSON(&req); err != nil {
		reply(c, http.StatusBadRequest, "invalid body", nil)
		return
	}

	s.mu.Lock()
	pw, ok := s.users[req.Nickname]
	if !ok || pw != req.Password {
		s.mu.Unlock()
		reply(c, http.StatusUnauthorized, "닉네임 또는 비밀번호가 올바르지 않습니다", nil)
		return
	}
	token := uuid.NewString()
	s.sessions[token] = req.Nickname
	s.mu.Unlock()

	c.SetCookie(SessionCookie, token, 0, "/", "", false, true)
	reply(c, http.StatusOK, "ok", gin.H{"nickname": req.Nickname})
}

func (s *Server) listRooms(c *gin.Context) {
	nick := c.GetString("nickname")

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]roomRecord, 0)
	for _, r := range s.roomsOfLocked(nick) {
		rec := roomRecord{With: r.other(nick)}
		if n := len(r.log); n > 0 {
			last := toWire(r.log[n-1])
			rec.LastMessage = &last
		}
		if s.reportUnread {
			unread := r.unread[nick]
			rec.UnreadCount = &unread
		}
		out = append(out, rec)
	}
	reply(c, http.StatusOK, "ok", out)
}

func (s *Server) listMessages(c *gin.Context) {
	nick := c.GetString("nickname")

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]roomLog, 0)
	for _, r := range s.roomsOfLocked(nick) {
		log := make([]logEntry, len(r.log))
		for i, e := range r.log {
			log[i] = toWire(e)
		}
		out = append(out, roomLog{With: r.other(nick), Log: log})
	}
	reply(c, http.StatusOK, "ok", out)
}

func (s *Server) send(c *gin.Context) {
	nick := c.GetString("nickname")
	other := c.Query("other_user")
	content := c.Query("content")
	if other == "" || strings.TrimSpace(content) == "" {
		reply(c, http.StatusBadRequest, "other_user and content are required", nil)
		return
	}

	s.mu.Lock()
	if _, ok := s.users[other]; !ok {
		s.mu.Unlock()
		reply(c, http.StatusNotFound, "unknown user", nil)
		return
	}
	s.appendLocked(nick, other, content, s.now())
	s.mu.Unlock()

	reply(c, http.StatusOK, "ok", nil)
}

func toWire(e entry) logEntry {
	return logEntry{Who: e.who, When: timestamp.Encode(e.at), Content: e.content}
}

func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil {
			c.Abort()
			reply(c, http.StatusUnauthorized, "login required", nil)
			return
		}
		s.mu.Lock()
		nick, ok := s.sessions[token]
		s.mu.Unlock()
		if !ok {
			c.Abort()
			reply(c, http.StatusUnauthorized, "session expired", nil)
			return
		}
		c.Set("nickname", nick)
		c.Next()
	}
}

func (s *Server) injectFailures() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		delay := s.delay
		fail := s.failures[c.Request.URL.Path] > 0
		if fail {
			s.failures[c.Request.URL.Path]--
		}
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if fail {
			c.Abort()
			reply(c, http.StatusInternalServerError, "injected failure", nil)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// Package outbox sends messages composed on this client. A message is shown
// as pending before the request leaves and is resolved in place when the
// server answers.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/auth"
	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/logging"
	"github.com/ekdusrla/ssukssuk-closet/internal/remote"
	"go.uber.org/zap"
)

var (
	// ErrEmptyMessage is returned for a body with nothing but whitespace.
	ErrEmptyMessage = errors.New("empty message")
	// ErrSendFailed is returned when the server did not accept a message.
	// The message stays in its room marked failed.
	ErrSendFailed = errors.New("send failed")
	// ErrNotRetryable is returned by Retry for a message that is not failed.
	ErrNotRetryable = errors.New("message is not failed")
)

// TextSender delivers a message body to a counterpart.
type TextSender interface {
	SendMessage(ctx context.Context, otherUser, content string) (serverMsgID string, err error)
}

// Gate provides the sending identity.
type Gate interface {
	Require() (auth.Identity, error)
	Invalidate(id auth.Identity)
}

// Journal records send attempts so interrupted sends survive a restart.
type Journal interface {
	QueueOutbox(clientMsgID, counterpart, body string) error
	MarkOutboxSent(clientMsgID, serverMsgID string) error
	MarkOutboxFailed(clientMsgID, errMsg string) error
	MarkOutboxRetried(clientMsgID string) error
}

// Delivery is the payload of message.send_ack and message.send_failed.
type Delivery struct {
	MessageID   string
	Counterpart string
	ServerMsgID string
	Error       string
}

// Pipeline sends messages optimistically.
type Pipeline struct {
	sender  TextSender
	store   *conversation.Store
	gate    Gate
	journal Journal
	bus     *bus.Bus
	logger  *zap.Logger
	now     func() time.Time
}

// NewPipeline creates a pipeline. journal may be nil.
func NewPipeline(sender TextSender, store *conversation.Store, gate Gate, journal Journal, b *bus.Bus, logger *zap.Logger) *Pipeline {
	logger = logging.OrNop(logger)
	return &Pipeline{
		sender:  sender,
		store:   store,
		gate:    gate,
		journal: journal,
		bus:     b,
		logger:  logger,
		now:     time.Now,
	}
}

// Send appends body to the room with counterpart as a pending message, then
// delivers it. It returns the message id in every case where the message was
// appended; on delivery failure the message is kept as failed and the error
// wraps ErrSendFailed.
func (p *Pipeline) Send(ctx context.Context, counterpart, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyMessage
	}
	key := conversation.NormalizeNickname(counterpart)
	if key == "" {
		return "", errors.New("send: no counterpart")
	}
	id, err := p.gate.Require()
	if err != nil {
		return "", err
	}

	msgID := p.store.AppendPending(key, id.Nickname, body, p.now())
	p.record("queue", msgID, func(j Journal) error { return j.QueueOutbox(msgID, key, body) })
	return msgID, p.deliver(ctx, id, msgID, key, body)
}

// Retry sends a failed message again with the same body. The failed copy is
// replaced by a new pending message at the tail of the room, whose id is
// returned.
func (p *Pipeline) Retry(ctx context.Context, msgID string) (string, error) {
	id, err := p.gate.Require()
	if err != nil {
		return "", err
	}

	old, newID, ok := p.store.Requeue(msgID, p.now())
	if !ok {
		return "", fmt.Errorf("retry %s: %w", msgID, ErrNotRetryable)
	}
	_, key, _ := p.store.Find(newID)

	p.record("retry", msgID, func(j Journal) error { return j.MarkOutboxRetried(msgID) })
	p.record("queue", newID, func(j Journal) error { return j.QueueOutbox(newID, key, old.Body) })
	p.logger.Info("retrying message", zap.String("failed_id", msgID), zap.String("client_msg_id", newID))
	return newID, p.deliver(ctx, id, newID, key, old.Body)
}

func (p *Pipeline) deliver(ctx context.Context, id auth.Identity, msgID, counterpart, body string) error {
	serverMsgID, err := p.sender.SendMessage(ctx, counterpart, body)
	if err != nil {
		if remote.IsUnauthorized(err) {
			p.gate.Invalidate(id)
		}
		p.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", msgID))
		p.store.ResolvePending(msgID, conversation.Fail())
		p.record("fail", msgID, func(j Journal) error { return j.MarkOutboxFailed(msgID, err.Error()) })
		p.bus.Emit("message.send_failed", Delivery{MessageID: msgID, Counterpart: counterpart, Error: err.Error()})
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	p.store.ResolvePending(msgID, conversation.Confirm(serverMsgID))
	p.record("sent", msgID, func(j Journal) error { return j.MarkOutboxSent(msgID, serverMsgID) })
	p.logger.Info("message sent", zap.String("client_msg_id", msgID), zap.String("server_msg_id", serverMsgID))
	p.bus.Emit("message.send_ack", Delivery{MessageID: msgID, Counterpart: counterpart, ServerMsgID: serverMsgID})
	return nil
}

// record writes to the journal. Journal errors are logged and never fail a send.
func (p *Pipeline) record(op, msgID string, fn func(Journal) error) {
	if p.journal == nil {
		return
	}
	if err := fn(p.journal); err != nil {
		p.logger.Error("outbox journal write failed", zap.String("op", op), zap.String("client_msg_id", msgID), zap.Error(err))
	}
}

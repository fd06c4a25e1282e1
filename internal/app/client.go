package app

import (
	"context"
	"errors"

	"github.com/ekdusrla/ssukssuk-closet/internal/attachment"
	"github.com/ekdusrla/ssukssuk-closet/internal/auth"
	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/outbox"
	"github.com/ekdusrla/ssukssuk-closet/internal/status"
	"github.com/ekdusrla/ssukssuk-closet/internal/store"
	intsync "github.com/ekdusrla/ssukssuk-closet/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Client is the surface the commands and the terminal UI use.
type Client struct {
	profile  string
	session  *auth.Session
	conv     *conversation.Store
	rooms    *intsync.RoomListSynchronizer
	room     *intsync.RoomSynchronizer
	pipeline *outbox.Pipeline
	gate     *attachment.Gate
	poller   *intsync.Poller
	machine  *status.Machine
	db       *store.DB
	bus      *bus.Bus
	logger   *zap.Logger
}

// ClientDeps are the components a Client is built from.
type ClientDeps struct {
	fx.In

	Params   Params
	Session  *auth.Session
	Conv     *conversation.Store
	Rooms    *intsync.RoomListSynchronizer
	Room     *intsync.RoomSynchronizer
	Pipeline *outbox.Pipeline
	Gate     *attachment.Gate
	Poller   *intsync.Poller
	Machine  *status.Machine
	DB       *store.DB
	Bus      *bus.Bus
	Logger   *zap.Logger
}

// NewClient assembles the facade from its fx-provided dependencies.
func NewClient(d ClientDeps) *Client {
	return &Client{
		profile:  d.Params.Profile,
		session:  d.Session,
		conv:     d.Conv,
		rooms:    d.Rooms,
		room:     d.Room,
		pipeline: d.Pipeline,
		gate:     d.Gate,
		poller:   d.Poller,
		machine:  d.Machine,
		db:       d.DB,
		bus:      d.Bus,
		logger:   d.Logger,
	}
}

// Profile returns the profile name.
func (c *Client) Profile() string { return c.profile }

// Me returns the signed-in nickname.
func (c *Client) Me() (string, bool) { return c.session.Current() }

// Status returns the client status.
func (c *Client) Status() status.State { return c.machine.Current() }

// Login signs in and loads the conversation list. Conversations of a
// previous user are discarded first. A failed list refresh does not fail the
// login; it shows in the status.
func (c *Client) Login(ctx context.Context, nickname, password string) error {
	c.poller.SetActive("")
	c.conv.Reset()
	if err := c.session.Login(ctx, nickname, password); err != nil {
		c.transition(status.SignedOut)
		return err
	}
	if err := c.poller.Tick(ctx); err != nil {
		c.logger.Warn("initial refresh failed", zap.Error(err))
	}
	return nil
}

// Logout ends the session and discards its conversations.
func (c *Client) Logout() error {
	c.poller.SetActive("")
	err := c.session.Logout()
	c.conv.Reset()
	c.transition(status.SignedOut)
	return err
}

// Summaries returns the conversation list filtered by query.
func (c *Client) Summaries(query string) []conversation.Summary {
	return conversation.FilterSummaries(c.conv.ListSummaries(), query)
}

// RefreshRooms reloads the conversation list.
func (c *Client) RefreshRooms(ctx context.Context) error {
	return c.rooms.Refresh(ctx)
}

// Sync runs one poll of the list and the open room.
func (c *Client) Sync(ctx context.Context) error {
	return c.poller.Tick(ctx)
}

// OpenRoom makes counterpart the room refreshed by the poller and loads its
// log. A failed refresh is tried once more; the cached log is returned
// either way.
func (c *Client) OpenRoom(ctx context.Context, counterpart string) ([]conversation.Message, error) {
	key := conversation.NormalizeNickname(counterpart)
	c.poller.SetActive(key)

	err := c.room.Refresh(ctx, key)
	if errors.Is(err, intsync.ErrSyncFailed) && ctx.Err() == nil {
		c.logger.Info("room refresh failed, retrying", zap.String("counterpart", key), zap.Error(err))
		err = c.room.Refresh(ctx, key)
	}
	return c.conv.Log(key), err
}

// CloseRoom stops refreshing the open room.
func (c *Client) CloseRoom() {
	c.poller.SetActive("")
}

// ActiveRoom returns the open room, if any.
func (c *Client) ActiveRoom() string {
	return c.poller.Active()
}

// Log returns the cached log of a room.
func (c *Client) Log(counterpart string) []conversation.Message {
	return c.conv.Log(counterpart)
}

// Send sends body to counterpart. See outbox.Pipeline.Send.
func (c *Client) Send(ctx context.Context, counterpart, body string) (string, error) {
	return c.pipeline.Send(ctx, counterpart, body)
}

// Retry resends a failed message.
func (c *Client) Retry(ctx context.Context, msgID string) (string, error) {
	return c.pipeline.Retry(ctx, msgID)
}

// CheckAttachment validates the file at path for attaching.
func (c *Client) CheckAttachment(path string) (attachment.File, error) {
	f, err := attachment.FromPath(path)
	if err != nil {
		return attachment.File{}, err
	}
	return f, c.gate.Validate(f)
}

// Outbox returns the most recent send attempts.
func (c *Client) Outbox(limit int) ([]store.OutboxEntry, error) {
	return c.db.ListOutbox(limit)
}

// LastRefresh returns when the room list, or a room when counterpart is
// set, was last refreshed.
func (c *Client) LastRefresh(counterpart string) (string, bool) {
	key := intsync.CheckpointRooms
	if counterpart != "" {
		key = intsync.CheckpointRoom(conversation.NormalizeNickname(counterpart))
	}
	v, ok, err := c.db.Checkpoint(key)
	if err != nil {
		c.logger.Warn("read checkpoint", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}

// Subscribe delivers client events whose kind starts with namespace.
func (c *Client) Subscribe(namespace string, bufSize int) (<-chan bus.Event, func()) {
	return c.bus.Subscribe(namespace, bufSize)
}

func (c *Client) transition(to status.State) {
	if err := c.machine.Transition(to); err != nil {
		c.logger.Debug("status transition skipped", zap.Error(err))
	}
}

package sync

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/auth"
	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/logging"
	"github.com/ekdusrla/ssukssuk-closet/internal/remote"
	"github.com/ekdusrla/ssukssuk-closet/internal/timestamp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RoomSynchronizer refreshes room logs. The messages endpoint returns every
// room at once, so concurrent refreshes share one request.
type RoomSynchronizer struct {
	api    LogFetcher
	store  *conversation.Store
	gate   Gate
	bus    *bus.Bus
	logger *zap.Logger
	loc    *time.Location
	group  singleflight.Group
}

// NewRoomSynchronizer creates a synchronizer that decodes times in time.Local.
func NewRoomSynchronizer(api LogFetcher, store *conversation.Store, gate Gate, b *bus.Bus, logger *zap.Logger) *RoomSynchronizer {
	logger = logging.OrNop(logger)
	return &RoomSynchronizer{api: api, store: store, gate: gate, bus: b, logger: logger, loc: time.Local}
}

// Refresh merges the server log of one room into the store. A room the
// server does not know yields an empty confirmed log. On failure the store is
// unchanged and the error matches ErrSyncFailed.
func (s *RoomSynchronizer) Refresh(ctx context.Context, counterpart string) error {
	key := conversation.NormalizeNickname(counterpart)
	if key == "" {
		return &Error{Op: "refresh room", Err: errors.New("empty counterpart")}
	}
	id, err := s.gate.Require()
	if err != nil {
		return err
	}

	logs, err := s.fetch(ctx, id)
	if err != nil {
		s.logger.Warn("room refresh failed", zap.String("counterpart", key), zap.Error(err))
		return fetchFailed(s.gate, id, "refresh room", key, err)
	}

	var entries []remote.LogEntry
	for _, l := range logs {
		if conversation.NormalizeNickname(l.With) == key {
			entries = append(entries, l.Log...)
		}
	}
	msgs, err := s.decode(key, entries)
	if err != nil {
		s.logger.Warn("room decode failed", zap.String("counterpart", key), zap.Error(err))
		return &Error{Op: "refresh room", Counterpart: key, Err: err}
	}

	if !s.gate.Valid(id) {
		return auth.ErrNotAuthenticated
	}
	s.store.MergeConfirmed(key, msgs)
	s.logger.Debug("room refreshed", zap.String("counterpart", key), zap.Int("messages", len(msgs)))
	s.bus.Emit("sync.room_refreshed", key)
	return nil
}

// RefreshAll merges every room the server returns. Rooms are decoded before
// any is merged, so a decode error leaves the store unchanged.
func (s *RoomSynchronizer) RefreshAll(ctx context.Context) error {
	id, err := s.gate.Require()
	if err != nil {
		return err
	}

	logs, err := s.fetch(ctx, id)
	if err != nil {
		s.logger.Warn("bulk room refresh failed", zap.Error(err))
		return fetchFailed(s.gate, id, "refresh all", "", err)
	}

	byRoom := make(map[string][]remote.LogEntry)
	var order []string
	for _, l := range logs {
		key := conversation.NormalizeNickname(l.With)
		if key == "" {
			continue
		}
		if _, ok := byRoom[key]; !ok {
			order = append(order, key)
		}
		byRoom[key] = append(byRoom[key], l.Log...)
	}

	decoded := make(map[string][]conversation.Message, len(order))
	for _, key := range order {
		msgs, err := s.decode(key, byRoom[key])
		if err != nil {
			return &Error{Op: "refresh all", Counterpart: key, Err: err}
		}
		decoded[key] = msgs
	}

	if !s.gate.Valid(id) {
		return auth.ErrNotAuthenticated
	}
	for _, key := range order {
		s.store.MergeConfirmed(key, decoded[key])
		s.bus.Emit("sync.room_refreshed", key)
	}
	s.logger.Debug("all rooms refreshed", zap.Int("rooms", len(order)))
	return nil
}

// fetch coalesces concurrent requests of the same session. The shared
// request is detached from any one caller's cancellation and is bounded by
// the transport timeout; each caller stops waiting when its own ctx ends.
func (s *RoomSynchronizer) fetch(ctx context.Context, id auth.Identity) ([]remote.RoomLog, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(strconv.FormatUint(id.Epoch, 10), func() (any, error) {
		return s.api.ListMessages(shared)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]remote.RoomLog), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// decode converts wire entries to confirmed messages ordered by send time.
// Entries with the same minute keep the server's order.
func (s *RoomSynchronizer) decode(counterpart string, entries []remote.LogEntry) ([]conversation.Message, error) {
	msgs := make([]conversation.Message, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		at, err := timestamp.DecodeIn(e.When, s.loc)
		if err != nil {
			return nil, err
		}
		occ := conversation.NormalizeNickname(e.Who) + "\x00" + e.When + "\x00" + e.Content
		msgs = append(msgs, conversation.Message{
			ID:       conversation.SnapshotID(counterpart, e.Who, at, e.Content, seen[occ]),
			AuthorID: e.Who,
			Body:     e.Content,
			SentAt:   at,
			State:    conversation.Confirmed,
		})
		seen[occ]++
	}
	slices.SortStableFunc(msgs, func(a, b conversation.Message) int {
		return a.SentAt.Compare(b.SentAt)
	})
	return msgs, nil
}

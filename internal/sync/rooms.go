package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/auth"
	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/logging"
	"github.com/ekdusrla/ssukssuk-closet/internal/remote"
	"github.com/ekdusrla/ssukssuk-closet/internal/timestamp"
	"go.uber.org/zap"
)

// RoomListSynchronizer refreshes the conversation list.
type RoomListSynchronizer struct {
	api    RoomLister
	store  *conversation.Store
	gate   Gate
	bus    *bus.Bus
	logger *zap.Logger
	loc    *time.Location
}

// NewRoomListSynchronizer creates a synchronizer that decodes wire
// timestamps in the local zone.
func NewRoomListSynchronizer(api RoomLister, store *conversation.Store, gate Gate, b *bus.Bus, logger *zap.Logger) *RoomListSynchronizer {
	logger = logging.OrNop(logger)
	return &RoomListSynchronizer{api: api, store: store, gate: gate, bus: b, logger: logger, loc: time.Local}
}

// Refresh replaces the stored summaries with the server's room list. On
// failure the stored list is kept and the error matches ErrSyncFailed; it
// is not retried. Without a session it returns auth.ErrNotAuthenticated
// without calling the server.
func (s *RoomListSynchronizer) Refresh(ctx context.Context) error {
	id, err := s.gate.Require()
	if err != nil {
		return err
	}

	records, err := s.api.ListRooms(ctx)
	if err != nil {
		s.logger.Warn("room list refresh failed", zap.Error(err))
		return fetchFailed(s.gate, id, "refresh rooms", "", err)
	}

	sums := make([]conversation.Summary, 0, len(records))
	for _, rec := range records {
		sum, err := s.summary(rec)
		if err != nil {
			s.logger.Warn("room list decode failed", zap.String("counterpart", rec.With), zap.Error(err))
			return &Error{Op: "refresh rooms", Err: err}
		}
		sums = append(sums, sum)
	}

	// The session may have ended while the request was in flight.
	if !s.gate.Valid(id) {
		return auth.ErrNotAuthenticated
	}
	s.store.ReplaceSummaries(sums)
	s.logger.Debug("room list refreshed", zap.Int("rooms", len(sums)))
	s.bus.Emit("sync.rooms_refreshed", len(sums))
	return nil
}

func (s *RoomListSynchronizer) summary(rec remote.RoomRecord) (conversation.Summary, error) {
	if conversation.NormalizeNickname(rec.With) == "" {
		return conversation.Summary{}, fmt.Errorf("room without counterpart")
	}
	sum := conversation.Summary{CounterpartID: rec.With}
	if rec.LastMessage != nil {
		at, err := timestamp.DecodeIn(rec.LastMessage.When, s.loc)
		if err != nil {
			return conversation.Summary{}, err
		}
		sum.LastMessagePreview = rec.LastMessage.Content
		sum.LastMessageAt = at
	}
	if rec.UnreadCount != nil && *rec.UnreadCount > 0 {
		sum.UnreadCount = *rec.UnreadCount
	}
	return sum, nil
}

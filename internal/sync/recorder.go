package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/logging"
	"github.com/ekdusrla/ssukssuk-closet/internal/store"
	"go.uber.org/zap"
)

const flushInterval = 250 * time.Millisecond

// Checkpoint keys written to the cache.
const (
	CheckpointRooms      = "rooms.refreshed_at"
	checkpointRoomPrefix = "room."
)

// CheckpointRoom is the checkpoint key of one room's last refresh.
func CheckpointRoom(counterpart string) string {
	return checkpointRoomPrefix + counterpart + ".refreshed_at"
}

// Recorder mirrors the conversation store into the local cache. It listens
// for change events on the bus and writes the current state of changed rooms
// in batches, so a dropped event only delays a write.
type Recorder struct {
	db     *store.DB
	conv   *conversation.Store
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu             gosync.Mutex
	dirtyRooms     map[string]struct{}
	dirtySummaries bool
}

// NewRecorder creates a new recorder.
func NewRecorder(db *store.DB, conv *conversation.Store, b *bus.Bus, logger *zap.Logger) *Recorder {
	logger = logging.OrNop(logger)
	return &Recorder{
		db:         db,
		conv:       conv,
		bus:        b,
		logger:     logger,
		dirtyRooms: make(map[string]struct{}),
	}
}

// Hydrate loads the cached state into the conversation store. Entries still
// queued in the outbox belonged to a process that exited mid-send.
func (r *Recorder) Hydrate() error {
	if n, err := r.db.FailStaleOutbox("interrupted before the server answered"); err != nil {
		return fmt.Errorf("fail stale outbox: %w", err)
	} else if n > 0 {
		r.logger.Info("marked interrupted sends as failed", zap.Int64("count", n))
	}

	cachedSums, err := r.db.ListSummaries()
	if err != nil {
		return fmt.Errorf("load summaries: %w", err)
	}
	cachedLogs, err := r.db.LoadRoomLogs()
	if err != nil {
		return fmt.Errorf("load room logs: %w", err)
	}

	sums := make([]conversation.Summary, len(cachedSums))
	for i, s := range cachedSums {
		sums[i] = conversation.Summary{
			CounterpartID:      s.Counterpart,
			LastMessagePreview: s.LastMessagePreview,
			LastMessageAt:      fromMillis(s.LastMessageAt),
			UnreadCount:        s.UnreadCount,
		}
	}
	logs := make(map[string][]conversation.Message, len(cachedLogs))
	for room, cached := range cachedLogs {
		msgs := make([]conversation.Message, 0, len(cached))
		for _, m := range cached {
			state, ok := conversation.ParseDeliveryState(m.State)
			if !ok {
				r.logger.Warn("skipping cached message with unknown state", zap.String("id", m.ID), zap.String("state", m.State))
				continue
			}
			msgs = append(msgs, conversation.Message{
				ID:       m.ID,
				ServerID: m.ServerID,
				AuthorID: m.Author,
				Body:     m.Body,
				SentAt:   fromMillis(m.SentAt),
				State:    state,
				Local:    m.Local,
			})
		}
		logs[room] = msgs
	}

	r.conv.Hydrate(sums, logs)
	r.logger.Info("cache hydrated", zap.Int("rooms", len(logs)), zap.Int("summaries", len(sums)))
	return nil
}

// Start subscribes to conversation and sync events on the bus.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	convCh, unsubConv := r.bus.Subscribe("conversation.", 1024)
	syncCh, unsubSync := r.bus.Subscribe("sync.", 256)

	go func() {
		defer close(r.done)
		defer unsubConv()
		defer unsubSync()
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()

		for {
			select {
			case evt := <-convCh:
				r.handleConversation(evt)
			case evt := <-syncCh:
				r.handleSync(evt)
			case <-ticker.C:
				r.flushLogged()
			case <-ctx.Done():
				r.drain(convCh, syncCh)
				r.flushLogged()
				return
			}
		}
	}()
}

// drain handles events already queued when the recorder stops.
func (r *Recorder) drain(convCh, syncCh <-chan bus.Event) {
	for {
		select {
		case evt := <-convCh:
			r.handleConversation(evt)
		case evt := <-syncCh:
			r.handleSync(evt)
		default:
			return
		}
	}
}

// Stop stops the recorder after a final flush.
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
		r.cancel = nil
	}
}

func (r *Recorder) handleConversation(evt bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch evt.Kind {
	case "conversation.log_changed":
		if change, ok := evt.Payload.(conversation.LogChange); ok {
			r.dirtyRooms[change.CounterpartID] = struct{}{}
		}
	case "conversation.summaries_replaced":
		r.dirtySummaries = true
	case "conversation.reset":
		r.dirtyRooms = make(map[string]struct{})
		r.dirtySummaries = false
		if err := r.db.Reset(); err != nil {
			r.logger.Error("failed to reset cache", zap.Error(err))
		}
	}
}

func (r *Recorder) handleSync(evt bus.Event) {
	var key string
	switch evt.Kind {
	case "sync.rooms_refreshed":
		key = CheckpointRooms
	case "sync.room_refreshed":
		counterpart, ok := evt.Payload.(string)
		if !ok {
			return
		}
		key = CheckpointRoom(counterpart)
	default:
		return
	}
	value := evt.Timestamp.UTC().Format(time.RFC3339)
	if err := r.db.SetCheckpoint(key, value); err != nil {
		r.logger.Error("failed to update checkpoint", zap.String("key", key), zap.Error(err))
	}
}

func (r *Recorder) flushLogged() {
	if err := r.Flush(); err != nil {
		r.logger.Error("cache flush failed", zap.Error(err))
	}
}

// Flush writes every changed room and the summaries if they changed.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dirtySummaries {
		sums := r.conv.ListSummaries()
		cached := make([]store.Summary, len(sums))
		for i, s := range sums {
			cached[i] = store.Summary{
				Counterpart:        s.CounterpartID,
				LastMessagePreview: s.LastMessagePreview,
				LastMessageAt:      toMillis(s.LastMessageAt),
				UnreadCount:        s.UnreadCount,
			}
		}
		if err := r.db.ReplaceSummaries(cached); err != nil {
			return fmt.Errorf("write summaries: %w", err)
		}
		r.dirtySummaries = false
	}

	for room := range r.dirtyRooms {
		log := r.conv.Log(room)
		cached := make([]store.Message, len(log))
		for i, m := range log {
			cached[i] = store.Message{
				ID:       m.ID,
				ServerID: m.ServerID,
				Author:   m.AuthorID,
				Body:     m.Body,
				SentAt:   toMillis(m.SentAt),
				State:    m.State.String(),
				Local:    m.Local,
			}
		}
		if err := r.db.ReplaceRoomLog(room, cached); err != nil {
			return fmt.Errorf("write room %s: %w", room, err)
		}
		delete(r.dirtyRooms, room)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

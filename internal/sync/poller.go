package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/auth"
	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/ekdusrla/ssukssuk-closet/internal/logging"
	"github.com/ekdusrla/ssukssuk-closet/internal/status"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Poller refreshes the room list and the open room on a fixed interval and
// drives the client status from the outcome.
type Poller struct {
	rooms    *RoomListSynchronizer
	room     *RoomSynchronizer
	gate     Gate
	machine  *status.Machine
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration

	mu     gosync.Mutex
	active string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller. A non-positive interval means five seconds.
func NewPoller(rooms *RoomListSynchronizer, room *RoomSynchronizer, gate Gate, machine *status.Machine, b *bus.Bus, interval time.Duration, logger *zap.Logger) *Poller {
	logger = logging.OrNop(logger)
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		rooms:    rooms,
		room:     room,
		gate:     gate,
		machine:  machine,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// SetActive selects the room refreshed alongside the list. Empty clears it.
func (p *Poller) SetActive(counterpart string) {
	p.mu.Lock()
	p.active = counterpart
	p.mu.Unlock()
}

// Active returns the room refreshed alongside the list.
func (p *Poller) Active() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Start polls immediately and then every interval until Stop.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		_ = p.Tick(ctx)
		for {
			select {
			case <-ticker.C:
				_ = p.Tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the poll loop and waits for an in-flight tick.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Tick runs one poll: both refreshes in parallel, then a status update.
func (p *Poller) Tick(ctx context.Context) error {
	if _, err := p.gate.Require(); err != nil {
		p.transition(status.SignedOut)
		return err
	}
	if p.machine.In(status.Booting, status.SignedOut) {
		p.transition(status.Syncing)
	}

	var g errgroup.Group
	g.Go(func() error { return p.rooms.Refresh(ctx) })
	if active := p.Active(); active != "" {
		g.Go(func() error { return p.room.Refresh(ctx, active) })
	}
	err := g.Wait()

	switch {
	case err == nil:
		p.transition(status.Ready)
	case errors.Is(err, auth.ErrNotAuthenticated):
		p.transition(status.SignedOut)
	case ctx.Err() != nil:
		// Shutting down; keep the last status.
	default:
		p.logger.Warn("poll failed", zap.Error(err))
		p.transition(status.Degraded)
		p.bus.Emit("sync.failed", err.Error())
	}
	return err
}

func (p *Poller) transition(to status.State) {
	if err := p.machine.Transition(to); err != nil {
		p.logger.Debug("status transition skipped", zap.Error(err))
	}
}

// Package app wires the chat client together with fx. Commands and the
// terminal UI talk to it through Client.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ekdusrla/ssukssuk-closet/internal/attachment"
	"github.com/ekdusrla/ssukssuk-closet/internal/auth"
	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/ekdusrla/ssukssuk-closet/internal/config"
	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/lock"
	"github.com/ekdusrla/ssukssuk-closet/internal/logging"
	"github.com/ekdusrla/ssukssuk-closet/internal/outbox"
	"github.com/ekdusrla/ssukssuk-closet/internal/profile"
	"github.com/ekdusrla/ssukssuk-closet/internal/remote"
	"github.com/ekdusrla/ssukssuk-closet/internal/status"
	"github.com/ekdusrla/ssukssuk-closet/internal/store"
	intsync "github.com/ekdusrla/ssukssuk-closet/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	Config  *config.Config
	// Exclusive takes the profile lock for the lifetime of the app.
	Exclusive bool
	// Console also logs warnings to stderr.
	Console bool
	// Poll starts the background poller.
	Poll bool
}

// Module returns the fx module for the client, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRemote,
			provideSession,
			provideConversation,
			provideRoomList,
			provideRoom,
			providePipeline,
			provideAttachmentGate,
			providePoller,
			provideRecorder,
			NewClient,
		),
		fx.Invoke(resetOnInvalidate, registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	return logging.New(profile.LogPath(p.Profile), p.Profile, p.Console)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if !p.Exclusive {
		return nil, nil
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.LockPath(p.Profile), filepath.Base(os.Args[0]))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed() {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", db.Path()))
	return db, nil
}

func provideRemote(p Params, logger *zap.Logger) (*remote.Client, error) {
	cfg := p.Config
	return remote.NewClient(
		remote.WithBaseURL(cfg.BaseURL),
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithEndpoints(remote.Endpoints{
			SignIn:   cfg.Endpoints.SignIn,
			Rooms:    cfg.Endpoints.Rooms,
			Messages: cfg.Endpoints.Messages,
			Send:     cfg.Endpoints.Send,
		}),
		remote.WithLogger(logger.Named("remote")),
	)
}

func provideSession(api *remote.Client, db *store.DB, b *bus.Bus, logger *zap.Logger) *auth.Session {
	return auth.NewSession(api, db, b, logger.Named("auth"))
}

func provideConversation(b *bus.Bus) *conversation.Store {
	return conversation.NewStore(b)
}

func provideRoomList(api *remote.Client, conv *conversation.Store, sess *auth.Session, b *bus.Bus, logger *zap.Logger) *intsync.RoomListSynchronizer {
	return intsync.NewRoomListSynchronizer(api, conv, sess, b, logger.Named("sync"))
}

func provideRoom(api *remote.Client, conv *conversation.Store, sess *auth.Session, b *bus.Bus, logger *zap.Logger) *intsync.RoomSynchronizer {
	return intsync.NewRoomSynchronizer(api, conv, sess, b, logger.Named("sync"))
}

func providePipeline(api *remote.Client, conv *conversation.Store, sess *auth.Session, db *store.DB, b *bus.Bus, logger *zap.Logger) *outbox.Pipeline {
	return outbox.NewPipeline(api, conv, sess, db, b, logger.Named("outbox"))
}

func provideAttachmentGate(p Params) *attachment.Gate {
	return attachment.NewGate(p.Config.Attachments.MaxBytes)
}

func providePoller(p Params, rooms *intsync.RoomListSynchronizer, room *intsync.RoomSynchronizer, sess *auth.Session, m *status.Machine, b *bus.Bus, logger *zap.Logger) *intsync.Poller {
	return intsync.NewPoller(rooms, room, sess, m, b, p.Config.PollInterval, logger.Named("poller"))
}

func provideRecorder(db *store.DB, conv *conversation.Store, b *bus.Bus, logger *zap.Logger) *intsync.Recorder {
	return intsync.NewRecorder(db, conv, b, logger.Named("recorder"))
}

// resetOnInvalidate discards the conversations of a session the server
// rejected, as Logout does for a session the user ended.
func resetOnInvalidate(sess *auth.Session, conv *conversation.Store, poller *intsync.Poller, machine *status.Machine, logger *zap.Logger) {
	sess.SetOnInvalidate(func(id auth.Identity) {
		poller.SetActive("")
		conv.Reset()
		if err := machine.Transition(status.SignedOut); err != nil {
			logger.Debug("status transition skipped", zap.Error(err))
		}
		logger.Info("conversations discarded after session rejection", zap.String("nickname", id.Nickname))
	})
}

func registerLifecycle(lc fx.Lifecycle, p Params, lk *lock.Lock, db *store.DB, sess *auth.Session, recorder *intsync.Recorder, poller *intsync.Poller, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			restored, err := sess.Restore()
			if err != nil {
				_ = machine.Transition(status.Error)
				return fmt.Errorf("restore session: %w", err)
			}
			if restored {
				if err := recorder.Hydrate(); err != nil {
					logger.Warn("cache hydrate failed", zap.Error(err))
				}
				_ = machine.Transition(status.Syncing)
			} else {
				logger.Info("no saved session, login required")
				_ = machine.Transition(status.SignedOut)
			}

			// The recorder subscribes after hydration so the cache is not
			// rewritten with what it just produced.
			recorder.Start(context.Background())
			if p.Poll {
				poller.Start(context.Background())
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			poller.Stop()
			recorder.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if lk != nil {
				if err := lk.Release(); err != nil {
					logger.Warn("error releasing lock", zap.Error(err))
				}
			}
			logger.Info("client stopped", zap.Uint64("events_dropped", b.Dropped()))
			_ = logger.Sync()
			return nil
		},
	})
}

// Package sync keeps the conversation store in step with the server through
// periodic fetches, and mirrors the store into the local cache.
package sync

import (
	"context"
	"fmt"

	"github.com/ekdusrla/ssukssuk-closet/internal/auth"
	"github.com/ekdusrla/ssukssuk-closet/internal/remote"
)

// Gate is the session check done before every fetch.
type Gate interface {
	Require() (auth.Identity, error)
	Valid(id auth.Identity) bool
	Invalidate(id auth.Identity)
}

// RoomLister fetches the room list.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]remote.RoomRecord, error)
}

// LogFetcher fetches the logs of every room.
type LogFetcher interface {
	ListMessages(ctx context.Context) ([]remote.RoomLog, error)
}

// fetchFailed turns a transport error into the error a refresh returns. A
// session the server rejects is dropped and reported as not authenticated.
func fetchFailed(gate Gate, id auth.Identity, op, counterpart string, err error) error {
	if remote.IsUnauthorized(err) {
		gate.Invalidate(id)
		return fmt.Errorf("%s: %w: %w", op, auth.ErrNotAuthenticated, err)
	}
	return &Error{Op: op, Counterpart: counterpart, Err: err}
}

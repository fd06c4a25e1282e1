package sync

import (
	"errors"
	"fmt"
)

// ErrSyncFailed marks a refresh that could not fetch or decode the remote
// state. The conversation store is left as it was.
var ErrSyncFailed = errors.New("sync failed")

// Error describes a failed refresh. It matches ErrSyncFailed and the
// underlying cause with errors.Is and errors.As.
type Error struct {
	Op          string // "refresh rooms", "refresh room", "refresh all"
	Counterpart string
	Err         error
}

func (e *Error) Error() string {
	if e.Counterpart != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Counterpart, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrSyncFailed, e.Err}
}

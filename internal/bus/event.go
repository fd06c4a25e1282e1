package bus

import (
	"strings"
	"time"
)

// Event is published on the bus. Kind is dotted, namespace first:
// "conversation.log_changed", "message.send_failed".
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Namespace returns the part of Kind before the first dot.
func (e Event) Namespace() string {
	ns, _, _ := strings.Cut(e.Kind, ".")
	return ns
}

// Matches reports whether a subscription to namespace receives e.
// The empty namespace matches everything.
func (e Event) Matches(namespace string) bool {
	return strings.HasPrefix(e.Kind, namespace)
}

package conversation

import "time"

// DeliveryState tracks a message from composition to server confirmation.
type DeliveryState int

const (
	Pending DeliveryState = iota
	Confirmed
	Failed
)

func (s DeliveryState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseDeliveryState is the inverse of DeliveryState.String.
func ParseDeliveryState(s string) (DeliveryState, bool) {
	switch s {
	case "pending":
		return Pending, true
	case "confirmed":
		return Confirmed, true
	case "failed":
		return Failed, true
	default:
		return 0, false
	}
}

// Message is one entry of a room log.
type Message struct {
	// ID is server derived for messages from a snapshot and "local-<uuid>"
	// for messages composed on this client.
	ID       string
	ServerID string // reported by the send endpoint, if any
	AuthorID string
	Body     string
	SentAt   time.Time
	State    DeliveryState
	Local    bool // composed on this client and not yet folded into a snapshot

	seq uint64
}

// Summary is one row of the conversation list.
type Summary struct {
	CounterpartID      string
	LastMessagePreview string
	LastMessageAt      time.Time
	UnreadCount        int
}

// Outcome is the result of a send attempt, applied with Store.ResolvePending.
type Outcome struct {
	state    DeliveryState
	serverID string
}

// Confirm reports a successful send. serverID may be empty when the
// endpoint does not report one.
func Confirm(serverID string) Outcome {
	return Outcome{state: Confirmed, serverID: serverID}
}

// Fail reports a failed send.
func Fail() Outcome {
	return Outcome{state: Failed}
}

// LogChange is the payload of "conversation.log_changed" events.
type LogChange struct {
	CounterpartID string
	Messages      []Message
}

package store

// Summary is a cached conversation list row.
type Summary struct {
	Counterpart        string
	LastMessagePreview string
	LastMessageAt      int64 // unix millis
	UnreadCount        int
}

// Message is a cached room log entry. Position keeps the in-memory order.
type Message struct {
	ID          string
	Counterpart string
	ServerID    string
	Author      string
	Body        string
	SentAt      int64 // unix millis
	State       string
	Local       bool
	Position    int
}

// OutboxEntry records one send attempt of a locally composed message.
type OutboxEntry struct {
	ClientMsgID  string
	Counterpart  string
	Body         string
	Status       string // queued, sent, failed, retried
	ErrorMessage string
	ServerMsgID  string
	CreatedAt    int64
	UpdatedAt    int64
}

const (
	OutboxQueued  = "queued"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
	OutboxRetried = "retried"
)

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// LogEntry is one message as the API reports it. When is a wire timestamp,
// "YYYY-MM-DD/HH:MM" in the server's local time.
type LogEntry struct {
	Who     string `json:"who"`
	When    string `json:"when"`
	Content string `json:"content"`
}

// RoomRecord is one element of the room list.
type RoomRecord struct {
	With        string    `json:"with"`
	LastMessage *LogEntry `json:"last_message"`
	// UnreadCount is only present on backends that track it.
	UnreadCount *int `json:"unread_count,omitempty"`
}

// RoomLog is the full message log of one room.
type RoomLog struct {
	With string     `json:"with"`
	Log  []LogEntry `json:"log"`
}

type signInRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"pw"`
}

// SignIn authenticates and stores the session cookie in the client's jar.
func (c *Client) SignIn(ctx context.Context, nickname, password string) error {
	_, err := c.doRequest(ctx, http.MethodPost, c.endpoints.SignIn, signInRequest{Nickname: nickname, Password: password}, nil)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

// ListRooms returns the rooms of the signed-in user.
func (c *Client) ListRooms(ctx context.Context) ([]RoomRecord, error) {
	data, err := c.doRequest(ctx, http.MethodGet, c.endpoints.Rooms, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return decodeData[[]RoomRecord](data)
}

// ListMessages returns the logs of every room of the signed-in user.
func (c *Client) ListMessages(ctx context.Context) ([]RoomLog, error) {
	data, err := c.doRequest(ctx, http.MethodGet, c.endpoints.Messages, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return decodeData[[]RoomLog](data)
}

// SendMessage posts content to the room with otherUser. The endpoint only
// reports success, so the returned server id is usually empty; it is filled
// when a backend includes one in the response data.
func (c *Client) SendMessage(ctx context.Context, otherUser, content string) (string, error) {
	q := url.Values{}
	q.Set("other_user", otherUser)
	q.Set("content", content)
	data, err := c.doRequest(ctx, http.MethodPost, c.endpoints.Send, nil, q)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return serverID(data), nil
}

func serverID(data json.RawMessage) string {
	var obj struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil || len(obj.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(obj.ID, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(obj.ID, &n); err == nil {
		if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return n.String()
		}
	}
	return ""
}

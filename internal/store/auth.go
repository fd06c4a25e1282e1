package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SaveAuth persists the signed-in nickname and the session cookies so a new
// process can resume without asking for the password.
func (db *DB) SaveAuth(nickname string, cookies []*http.Cookie) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO auth_state (id, nickname, cookies, signed_in_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			nickname = excluded.nickname,
			cookies = excluded.cookies,
			signed_in_at = excluded.signed_in_at`,
		nickname, string(data), time.Now().UnixMilli())
	return err
}

// LoadAuth returns the persisted session. ok is false when nobody is signed in.
func (db *DB) LoadAuth() (nickname string, cookies []*http.Cookie, ok bool, err error) {
	var raw string
	err = db.QueryRow(`SELECT nickname, cookies FROM auth_state WHERE id = 1`).Scan(&nickname, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
		return "", nil, false, fmt.Errorf("decode cookies: %w", err)
	}
	return nickname, cookies, true, nil
}

// ClearAuth forgets the persisted session.
func (db *DB) ClearAuth() error {
	_, err := db.Exec(`DELETE FROM auth_state`)
	return err
}
